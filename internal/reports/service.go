package reports

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thatguy/facility-reports/internal/facility"
	"github.com/thatguy/facility-reports/internal/logger"
)

type Store interface {
	AddReport(ctx context.Context, r Report) (int64, error)
	ImportReport(ctx context.Context, r Report) error
	GetReport(ctx context.Context, id int64) (Report, error)
	ReportsByFacility(ctx context.Context, facilityID string) ([]Report, error)
	UpdateStatus(ctx context.Context, id int64, status Status) (bool, error)
}

// Mirror pushes reports to the remote endpoint.
type Mirror interface {
	AppendReport(ctx context.Context, r Report) error
	SetStatus(ctx context.Context, reportID int64, status Status) error
}

// Broadcaster delivers a text to every subscriber and returns how many got it.
type Broadcaster interface {
	Broadcast(text string) int
}

type Recorder interface {
	RecordReportSubmitted(facilityID string)
	RecordStatusUpdate(status string)
	RecordMirror(result string, seconds float64)
	RecordNotificationsSent(n int)
	RecordError(kind string)
}

type Option func(*Service)

func WithMirror(m Mirror) Option { return func(s *Service) { s.mirror = m } }

func WithBroadcaster(b Broadcaster) Option { return func(s *Service) { s.broadcaster = b } }

func WithMetrics(r Recorder) Option { return func(s *Service) { s.metrics = r } }

func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// Service files reports against registered facilities and tracks their status.
type Service struct {
	registry    *facility.Registry
	store       Store
	mirror      Mirror
	broadcaster Broadcaster
	metrics     Recorder
	messages    *Messages
	log         *logger.Logger
	now         func() time.Time
}

// Dashboard is a facility with its reports, newest first.
type Dashboard struct {
	FacilityID string   `json:"id"`
	Name       string   `json:"name"`
	Reports    []Report `json:"reports"`
}

func NewService(registry *facility.Registry, store Store, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		store:    store,
		messages: NewMessages(),
		log:      logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Registry() *facility.Registry {
	return s.registry
}

func (s *Service) Messages() *Messages {
	return s.messages
}

func (s *Service) Facilities() []facility.Entry {
	return s.registry.Entries()
}

func (s *Service) FacilityName(id string) string {
	return s.registry.Resolve(id)
}

func (s *Service) Dashboard(ctx context.Context, facilityID string) (Dashboard, error) {
	name, ok := s.registry.Lookup(facilityID)
	if !ok {
		return Dashboard{}, fmt.Errorf("%w: %q", ErrUnknownFacility, facilityID)
	}

	list, err := s.store.ReportsByFacility(ctx, facilityID)
	if err != nil {
		s.recordError("storage")
		return Dashboard{}, fmt.Errorf("list reports for facility %s: %w", facilityID, err)
	}
	if list == nil {
		list = []Report{}
	}
	return Dashboard{FacilityID: facilityID, Name: name, Reports: list}, nil
}

func (s *Service) Submit(ctx context.Context, facilityID string, d Draft) (Report, error) {
	if !s.registry.Has(facilityID) {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownFacility, facilityID)
	}
	if err := d.Validate(); err != nil {
		return Report{}, err
	}

	r := Report{
		FacilityID:    facilityID,
		CreatedAt:     s.now().Truncate(time.Second),
		Room:          d.Room,
		IssueType:     d.IssueType,
		Description:   d.FullDescription(),
		Priority:      d.Priority,
		Status:        StatusReceived,
		PhotoFilename: d.PhotoFilename,
	}

	id, err := s.store.AddReport(ctx, r)
	if err != nil {
		s.recordError("storage")
		return Report{}, fmt.Errorf("store report: %w", err)
	}
	r.ID = id

	log := s.log.WithFacility(facilityID).WithReport(id)
	log.InfoWithFields("Report submitted", logger.Fields{
		"room":       r.Room,
		"issue_type": r.IssueType,
		"priority":   r.Priority,
	})
	if s.metrics != nil {
		s.metrics.RecordReportSubmitted(facilityID)
	}

	s.mirrorCall(log, "append", func() error { return s.mirror.AppendReport(ctx, r) })
	s.broadcast(log, s.messages.NewReport(r, s.registry.Resolve(facilityID)))

	return r, nil
}

func (s *Service) SetStatus(ctx context.Context, facilityID string, reportID int64, raw string) (Report, error) {
	if !s.registry.Has(facilityID) {
		return Report{}, fmt.Errorf("%w: %q", ErrUnknownFacility, facilityID)
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return Report{}, err
	}

	r, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return Report{}, err
	}
	if r.FacilityID != facilityID {
		return Report{}, fmt.Errorf("%w: %d in facility %s", ErrReportNotFound, reportID, facilityID)
	}

	ok, err := s.store.UpdateStatus(ctx, reportID, status)
	if err != nil {
		s.recordError("storage")
		return Report{}, fmt.Errorf("update status of report %d: %w", reportID, err)
	}
	if !ok {
		return Report{}, fmt.Errorf("%w: %d", ErrReportNotFound, reportID)
	}
	r.Status = status

	log := s.log.WithFacility(facilityID).WithReport(reportID)
	log.InfoWithFields("Report status updated", logger.Fields{"status": string(status)})
	if s.metrics != nil {
		s.metrics.RecordStatusUpdate(string(status))
	}

	s.mirrorCall(log, "set_status", func() error { return s.mirror.SetStatus(ctx, reportID, status) })
	s.broadcast(log, s.messages.StatusChanged(r, s.registry.Resolve(facilityID)))

	return r, nil
}

// Import stores rows exported from the report sheet. A leading header row is skipped.
func (s *Service) Import(ctx context.Context, rows [][]string, loc *time.Location) (int, error) {
	imported := 0
	for i, row := range rows {
		if i == 0 && isHeader(row) {
			continue
		}
		if isBlank(row) {
			continue
		}
		r, err := FromRow(row, loc)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", i+1, err)
		}
		if !s.registry.Has(r.FacilityID) {
			s.log.WithReport(r.ID).WarnWithFields("Importing report for unregistered facility", logger.Fields{
				"facility_id": r.FacilityID,
				"shown_as":    s.registry.Resolve(r.FacilityID),
			})
		}
		if err := s.store.ImportReport(ctx, r); err != nil {
			return imported, fmt.Errorf("row %d: store report %d: %w", i+1, r.ID, err)
		}
		imported++
	}
	s.log.InfoWithFields("Reports imported", logger.Fields{"count": imported})
	return imported, nil
}

func (s *Service) mirrorCall(log *logger.Logger, action string, fn func() error) {
	if s.mirror == nil {
		return
	}
	start := s.now()
	err := fn()
	dur := s.now().Sub(start).Seconds()

	result := "ok"
	if err != nil {
		result = "error"
		log.WithError(err).WarnWithFields("Failed to mirror report to endpoint", logger.Fields{"action": action})
	}
	if s.metrics != nil {
		s.metrics.RecordMirror(result, dur)
	}
}

func (s *Service) broadcast(log *logger.Logger, text string) {
	if s.broadcaster == nil {
		return
	}
	n := s.broadcaster.Broadcast(text)
	log.DebugWithFields("Subscribers notified", logger.Fields{"delivered": n})
	if s.metrics != nil {
		s.metrics.RecordNotificationsSent(n)
	}
}

func (s *Service) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}

func isHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	return err != nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
