// Package httpapi exposes the facility registry and report operations over JSON.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/thatguy/facility-reports/internal/facility"
	"github.com/thatguy/facility-reports/internal/logger"
	"github.com/thatguy/facility-reports/internal/reports"
)

type Metrics interface {
	RecordUnknownFacility()
	RecordError(errorType string)
}

type Options struct {
	Endpoint    string
	UploadDir   string
	MaxUploadMB int
	Metrics     Metrics
	Now         func() time.Time
}

type Server struct {
	svc  *reports.Service
	reg  *facility.Registry
	opts Options
	log  *logger.Logger
}

func New(svc *reports.Service, opts Options, log *logger.Logger) *Server {
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 16
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{svc: svc, reg: svc.Registry(), opts: opts, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/facilities", s.handleFacilities)
	mux.HandleFunc("GET /api/resolve/{id}", s.handleResolve)
	mux.HandleFunc("GET /api/resolve/{$}", s.handleResolve)
	mux.HandleFunc("GET /api/facilities/{id}", s.handleDashboard)
	mux.HandleFunc("POST /api/facilities/{id}/reports", s.handleSubmit)
	mux.HandleFunc("POST /api/facilities/{id}/reports/{reportID}/status", s.handleSetStatus)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.ForRequest(r).DebugWithFields("Request served", logger.Fields{
			"status":   sw.status,
			"duration": time.Since(start).Truncate(time.Microsecond).String(),
		})
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

type configResponse struct {
	Endpoint      string           `json:"endpoint"`
	FallbackLabel string           `json:"fallback_label"`
	Facilities    []facility.Entry `json:"facilities"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{
		Endpoint:      s.opts.Endpoint,
		FallbackLabel: s.reg.FallbackLabel(),
		Facilities:    s.reg.Entries(),
	})
}

func (s *Server) handleFacilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Entries())
}

type resolveResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Known bool   `json:"known"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	known := s.reg.Has(id)
	if !known && s.opts.Metrics != nil {
		s.opts.Metrics.RecordUnknownFacility()
	}
	writeJSON(w, http.StatusOK, resolveResponse{ID: id, Name: s.reg.Resolve(id), Known: known})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Dashboard(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type submitRequest struct {
	Room        string `json:"room"`
	IssueType   string `json:"issue_type"`
	Item        string `json:"item"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if !s.reg.Has(facilityID) {
		s.writeError(w, r, fmt.Errorf("%w: %q", reports.ErrUnknownFacility, facilityID))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.opts.MaxUploadMB)<<20)

	draft, err := s.decodeDraft(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.svc.Submit(r.Context(), facilityID, draft)
	if err != nil {
		if rmErr := reports.RemovePhoto(s.opts.UploadDir, draft.PhotoFilename); rmErr != nil {
			s.log.ForRequest(r).WithError(rmErr).WithField("photo", draft.PhotoFilename).Warn("Failed to remove photo of rejected report")
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]reports.Report{"report": report})
}

func (s *Server) decodeDraft(r *http.Request) (reports.Draft, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return reports.Draft{}, badRequest(fmt.Errorf("decode body: %w", err))
		}
		return reports.Draft{
			Room:        req.Room,
			IssueType:   req.IssueType,
			Item:        req.Item,
			Description: req.Description,
			Priority:    req.Priority,
		}, nil

	case "multipart/form-data", "application/x-www-form-urlencoded":
		if err := r.ParseMultipartForm(int64(s.opts.MaxUploadMB) << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return reports.Draft{}, badRequest(fmt.Errorf("parse form: %w", err))
		}
		d := reports.Draft{
			Room:        r.FormValue("room"),
			IssueType:   r.FormValue("issue_type"),
			Item:        r.FormValue("item"),
			Description: r.FormValue("description"),
			Priority:    r.FormValue("priority"),
		}
		if err := d.Validate(); err != nil {
			return reports.Draft{}, err
		}

		file, header, err := r.FormFile("photo")
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return d, nil
		case err != nil:
			return reports.Draft{}, badRequest(fmt.Errorf("read photo: %w", err))
		}
		defer file.Close()

		if header.Filename == "" {
			return d, nil
		}
		name, err := reports.SavePhoto(s.opts.UploadDir, header.Filename, file, s.opts.Now())
		if err != nil {
			return reports.Draft{}, fmt.Errorf("save photo: %w", err)
		}
		d.PhotoFilename = name
		return d, nil

	default:
		return reports.Draft{}, &httpError{status: http.StatusUnsupportedMediaType, err: fmt.Errorf("unsupported content type %q", mediaType)}
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	reportID, err := strconv.ParseInt(r.PathValue("reportID"), 10, 64)
	if err != nil {
		s.writeError(w, r, badRequest(fmt.Errorf("invalid report id %q", r.PathValue("reportID"))))
		return
	}

	var req statusRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			s.writeError(w, r, badRequest(fmt.Errorf("decode body: %w", err)))
			return
		}
	} else {
		req.Status = r.FormValue("status")
	}

	report, err := s.svc.SetStatus(r.Context(), r.PathValue("id"), reportID, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]reports.Report{"report": report})
}

type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }
func (e *httpError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &httpError{status: http.StatusBadRequest, err: err}
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		herr    *httpError
		verr    *reports.ValidationError
		maxErr  *http.MaxBytesError
		status  = http.StatusInternalServerError
		payload = errorResponse{Error: err.Error()}
	)

	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		payload.Fields = verr.Fields
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.As(err, &herr):
		status = herr.status
	case errors.Is(err, reports.ErrUnknownFacility):
		status = http.StatusNotFound
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordUnknownFacility()
		}
	case errors.Is(err, reports.ErrReportNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reports.ErrInvalidStatus):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.log.ForRequest(r).WithError(err).Error("Request failed")
		payload.Error = "internal error"
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordError("http")
		}
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
