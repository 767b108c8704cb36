// Package sheet mirrors reports to the configured remote endpoint, a web app
// in front of the report spreadsheet.
package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thatguy/facility-reports/internal/logger"
	"github.com/thatguy/facility-reports/internal/reports"
)

// Client posts report rows to the endpoint.
type Client struct {
	endpoint *url.URL
	sheet    string
	http     *http.Client
	log      *logger.Logger
}

type appendPayload struct {
	Action string     `json:"action"`
	Sheet  string     `json:"sheet"`
	Values [][]string `json:"values"`
}

type statusPayload struct {
	Action   string `json:"action"`
	Sheet    string `json:"sheet"`
	ReportID int64  `json:"report_id"`
	Status   string `json:"status"`
}

// New validates endpoint and returns a client with a 10s timeout.
func New(endpoint string, log *logger.Logger) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("sheet: parse endpoint: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("sheet: endpoint must be an absolute http(s) URL, got %q", endpoint)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Client{
		endpoint: u,
		sheet:    reports.SheetName,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}, nil
}

func (c *Client) AppendReport(ctx context.Context, r reports.Report) error {
	body, err := json.Marshal(appendPayload{
		Action: "append",
		Sheet:  c.sheet,
		Values: [][]string{r.Row()},
	})
	if err != nil {
		return fmt.Errorf("sheet: marshal append: %w", err)
	}
	_, err = c.post(ctx, body)
	return err
}

func (c *Client) SetStatus(ctx context.Context, reportID int64, status reports.Status) error {
	body, err := json.Marshal(statusPayload{
		Action:   "set_status",
		Sheet:    c.sheet,
		ReportID: reportID,
		Status:   string(status),
	})
	if err != nil {
		return fmt.Errorf("sheet: marshal status: %w", err)
	}
	_, err = c.post(ctx, body)
	return err
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	target := c.endpoint.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("sheet: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	c.log.DebugWithFields("Sending request to endpoint", logger.Fields{
		"endpoint":  target,
		"body_size": len(body),
	})

	start := time.Now()
	resp, err := c.http.Do(req)
	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("sheet: request failed after %s: %w", dur, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sheet: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.WarnWithFields("Endpoint returned non-2xx status", logger.Fields{
			"endpoint": target,
			"status":   resp.StatusCode,
			"duration": dur.String(),
			"body":     truncateForLog(data, 600),
		})
		return data, fmt.Errorf("sheet: non-2xx status %d", resp.StatusCode)
	}

	c.log.DebugWithFields("Endpoint request successful", logger.Fields{
		"endpoint":  target,
		"status":    resp.StatusCode,
		"duration":  dur.String(),
		"body_size": len(data),
	})
	return data, nil
}

// Status describes the client configuration for startup logs.
type Status struct {
	Endpoint string
	Sheet    string
	Timeout  time.Duration
}

func (c *Client) GetStatus() Status {
	return Status{
		Endpoint: c.endpoint.Redacted(),
		Sheet:    c.sheet,
		Timeout:  c.http.Timeout,
	}
}

// truncateForLog returns a single-line preview of a response body.
func truncateForLog(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	s := string(b)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return s
}
