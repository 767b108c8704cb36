package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thatguy/facility-reports/internal/facility"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]Report
	err    error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]Report)}
}

func (m *memStore) AddReport(_ context.Context, r Report) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.nextID++
	r.ID = m.nextID
	m.rows[r.ID] = r
	return r.ID, nil
}

func (m *memStore) ImportReport(_ context.Context, r Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = r
	if r.ID > m.nextID {
		m.nextID = r.ID
	}
	return nil
}

func (m *memStore) GetReport(_ context.Context, id int64) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Report{}, fmt.Errorf("%w: %d", ErrReportNotFound, id)
	}
	return r, nil
}

func (m *memStore) ReportsByFacility(_ context.Context, facilityID string) ([]Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []Report
	for _, r := range m.rows {
		if r.FacilityID == facilityID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, status Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	r.Status = status
	m.rows[id] = r
	return true, nil
}

type fakeMirror struct {
	appended []Report
	statuses map[int64]Status
	err      error
}

func (f *fakeMirror) AppendReport(_ context.Context, r Report) error {
	f.appended = append(f.appended, r)
	return f.err
}

func (f *fakeMirror) SetStatus(_ context.Context, id int64, s Status) error {
	if f.statuses == nil {
		f.statuses = make(map[int64]Status)
	}
	f.statuses[id] = s
	return f.err
}

type fakeBroadcaster struct {
	texts []string
}

func (f *fakeBroadcaster) Broadcast(text string) int {
	f.texts = append(f.texts, text)
	return 2
}

type fakeRecorder struct {
	submitted     []string
	statusUpdates []string
	mirror        []string
	notifications int
	errs          []string
}

func (f *fakeRecorder) RecordReportSubmitted(id string)     { f.submitted = append(f.submitted, id) }
func (f *fakeRecorder) RecordStatusUpdate(s string)         { f.statusUpdates = append(f.statusUpdates, s) }
func (f *fakeRecorder) RecordMirror(result string, _ float64) { f.mirror = append(f.mirror, result) }
func (f *fakeRecorder) RecordNotificationsSent(n int)       { f.notifications += n }
func (f *fakeRecorder) RecordError(kind string)             { f.errs = append(f.errs, kind) }

var fixedNow = time.Date(2025, 5, 1, 9, 15, 30, 0, time.UTC)

func newTestService(store Store, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(facility.Default(), store, opts...)
}

func validDraft() Draft {
	return Draft{
		Room:        "סלון",
		IssueType:   "חשמל",
		Item:        "מנורה",
		Description: "לא נדלקת",
		Priority:    "high",
	}
}

func TestSubmitStoresReceivedReport(t *testing.T) {
	store := newMemStore()
	mirror := &fakeMirror{}
	bc := &fakeBroadcaster{}
	rec := &fakeRecorder{}
	svc := newTestService(store, WithMirror(mirror), WithBroadcaster(bc), WithMetrics(rec))

	r, err := svc.Submit(context.Background(), "5", validDraft())
	require.NoError(t, err)

	assert.Equal(t, int64(1), r.ID)
	assert.Equal(t, StatusReceived, r.Status)
	assert.Equal(t, "מנורה - לא נדלקת", r.Description)
	assert.Equal(t, fixedNow, r.CreatedAt)

	stored, err := store.GetReport(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, r, stored)

	require.Len(t, mirror.appended, 1)
	assert.Equal(t, r.ID, mirror.appended[0].ID)

	require.Len(t, bc.texts, 1)
	assert.Contains(t, bc.texts[0], "#1")
	assert.Contains(t, bc.texts[0], "מוריה")

	assert.Equal(t, []string{"5"}, rec.submitted)
	assert.Equal(t, []string{"ok"}, rec.mirror)
	assert.Equal(t, 2, rec.notifications)
}

func TestSubmitUnknownFacility(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.Submit(context.Background(), "99", validDraft())
	assert.ErrorIs(t, err, ErrUnknownFacility)
}

func TestSubmitValidation(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.Submit(context.Background(), "1", Draft{Room: "a", Item: "b"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"issue_type", "priority"}, verr.Fields)
}

func TestSubmitMirrorFailureIsNotFatal(t *testing.T) {
	mirror := &fakeMirror{err: errors.New("endpoint down")}
	rec := &fakeRecorder{}
	svc := newTestService(newMemStore(), WithMirror(mirror), WithMetrics(rec))

	_, err := svc.Submit(context.Background(), "2", validDraft())
	require.NoError(t, err)
	assert.Equal(t, []string{"error"}, rec.mirror)
}

func TestSubmitStorageFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("disk full")
	rec := &fakeRecorder{}
	svc := newTestService(store, WithMetrics(rec))

	_, err := svc.Submit(context.Background(), "2", validDraft())
	require.Error(t, err)
	assert.Equal(t, []string{"storage"}, rec.errs)
}

func TestDashboard(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	for _, fid := range []string{"3", "4", "3"} {
		_, err := svc.Submit(ctx, fid, validDraft())
		require.NoError(t, err)
	}

	d, err := svc.Dashboard(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "ארז", d.Name)
	require.Len(t, d.Reports, 2)
	assert.Equal(t, int64(3), d.Reports[0].ID)
	assert.Equal(t, int64(1), d.Reports[1].ID)

	empty, err := svc.Dashboard(ctx, "12")
	require.NoError(t, err)
	assert.NotNil(t, empty.Reports)
	assert.Empty(t, empty.Reports)

	_, err = svc.Dashboard(ctx, "13")
	assert.ErrorIs(t, err, ErrUnknownFacility)
}

func TestSetStatus(t *testing.T) {
	store := newMemStore()
	mirror := &fakeMirror{}
	bc := &fakeBroadcaster{}
	rec := &fakeRecorder{}
	svc := newTestService(store, WithMirror(mirror), WithBroadcaster(bc), WithMetrics(rec))
	ctx := context.Background()

	r, err := svc.Submit(ctx, "6", validDraft())
	require.NoError(t, err)

	updated, err := svc.SetStatus(ctx, "6", r.ID, "in_progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, updated.Status)
	assert.Equal(t, StatusInProgress, mirror.statuses[r.ID])
	assert.Equal(t, []string{"in_progress"}, rec.statusUpdates)
	require.Len(t, bc.texts, 2)
	assert.Contains(t, bc.texts[1], "בטיפול")

	_, err = svc.SetStatus(ctx, "6", r.ID, "closed")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "7", r.ID, "done")
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = svc.SetStatus(ctx, "6", 500, "done")
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = svc.SetStatus(ctx, "60", r.ID, "done")
	assert.ErrorIs(t, err, ErrUnknownFacility)
}

func TestImport(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	rows := [][]string{
		{"report_id", "apartment_id", "created_at", "room", "issue_type", "description", "priority", "status"},
		{"1", "2", "2025-01-02 08:00:00", "חדר שינה", "מזגן", "לא מקרר", "normal", "done"},
		{"", "", ""},
		{"2", "77", "", "מקלחת"},
	}
	n, err := svc.Import(context.Background(), rows, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r, err := store.GetReport(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "77", r.FacilityID)
	assert.Equal(t, StatusReceived, r.Status)

	id, err := store.AddReport(context.Background(), Report{FacilityID: "1"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
}

func TestImportBadRow(t *testing.T) {
	svc := newTestService(newMemStore())
	n, err := svc.Import(context.Background(), [][]string{
		{"1", "2"},
		{"x", "2"},
	}, time.UTC)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
	assert.Equal(t, 1, n)
}

func TestFacilityNameUsesFallback(t *testing.T) {
	svc := newTestService(newMemStore())
	assert.Equal(t, "רותם", svc.FacilityName("1"))
	assert.Equal(t, "מתקן 99", svc.FacilityName("99"))
	assert.Len(t, svc.Facilities(), 12)
}
