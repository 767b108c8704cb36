package reports

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thatguy/facility-reports/internal/facility"
)

func TestFullDescription(t *testing.T) {
	tests := []struct {
		item, desc, want string
	}{
		{"ברז", "מטפטף", "ברז - מטפטף"},
		{"ברז", "", "ברז"},
		{"", "מטפטף", "מטפטף"},
		{"  ברז ", "  ", "ברז"},
	}
	for _, tt := range tests {
		d := Draft{Item: tt.item, Description: tt.desc}
		assert.Equal(t, tt.want, d.FullDescription())
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" DONE ")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, s)
	assert.Equal(t, "טופל", s.Label())

	_, err = ParseStatus("")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	assert.Equal(t, "weird", Status("weird").Label())
}

func TestRowRoundTrip(t *testing.T) {
	r := Report{
		ID:          12,
		FacilityID:  "4",
		CreatedAt:   time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
		Room:        "מטבח",
		IssueType:   "אינסטלציה",
		Description: "כיור סתום",
		Priority:    "urgent",
		Status:      StatusInProgress,
	}
	row := r.Row()
	assert.Equal(t, []string{"12", "4", "2025-02-03 04:05:06", "מטבח", "אינסטלציה", "כיור סתום", "urgent", "in_progress"}, row)

	back, err := FromRow(row, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestFromRowPadsShortRows(t *testing.T) {
	r, err := FromRow([]string{"3", "9"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.ID)
	assert.True(t, r.CreatedAt.IsZero())
	assert.Equal(t, StatusReceived, r.Status)
}

func TestFromRowNormalizesStatus(t *testing.T) {
	tests := map[string]Status{
		"Done ":        StatusDone,
		" IN_PROGRESS": StatusInProgress,
		"received":     StatusReceived,
		"":             StatusReceived,
		"archived":     Status("archived"),
	}
	for cell, want := range tests {
		r, err := FromRow([]string{"1", "2", "", "", "", "", "", cell}, time.UTC)
		require.NoError(t, err, cell)
		assert.Equal(t, want, r.Status, cell)
	}

	r, err := FromRow([]string{"1", "2", "", "", "", "", "", "Done "}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "טופל", r.Status.Label())
}

func TestFromRowErrors(t *testing.T) {
	_, err := FromRow([]string{"abc", "1"}, time.UTC)
	assert.Error(t, err)

	_, err = FromRow([]string{"1", ""}, time.UTC)
	assert.Error(t, err)

	_, err = FromRow([]string{"1", "2", "yesterday"}, time.UTC)
	assert.Error(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"photo.jpg":          "photo.jpg",
		"my photo.JPG":       "my_photo.JPG",
		"../../etc/passwd":   "passwd",
		`C:\Users\me\a b.png`: "a_b.png",
		"תמונה.jpg":          "photo.jpg",
		"":                   "photo",
		"..":                 "photo",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestStampedFilename(t *testing.T) {
	now := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)
	assert.Equal(t, "leak_20250607080910.jpg", StampedFilename("leak.jpg", now))
	assert.Equal(t, "photo_20250607080910", StampedFilename("", now))
}

func TestSavePhoto(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC)

	name, err := SavePhoto(dir, "leak.png", strings.NewReader("png-bytes"), now)
	require.NoError(t, err)
	assert.Equal(t, "leak_20250607080910.png", name)

	second, err := SavePhoto(dir, "leak.png", strings.NewReader("again"), now)
	require.NoError(t, err)
	assert.Equal(t, "leak_20250607080910_2.png", second)

	third, err := SavePhoto(dir, "leak.png", strings.NewReader("third"), now)
	require.NoError(t, err)
	assert.Equal(t, "leak_20250607080910_3.png", third)

	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data), "existing file must not be overwritten")
	data, err = os.ReadFile(filepath.Join(dir, second))
	require.NoError(t, err)
	assert.Equal(t, "again", string(data))
}

func TestRemovePhoto(t *testing.T) {
	dir := t.TempDir()
	name, err := SavePhoto(dir, "x.jpg", strings.NewReader("x"), time.Now())
	require.NoError(t, err)

	require.NoError(t, RemovePhoto(dir, name))
	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, RemovePhoto(dir, name))
	assert.NoError(t, RemovePhoto(dir, ""))
}

func TestMessages(t *testing.T) {
	m := NewMessages()

	assert.Contains(t, m.Welcome(), "/facilities")
	assert.Contains(t, m.Help(), "/status")
	assert.NotEmpty(t, m.Goodbye())

	list := m.FacilityList(facility.Default().Entries())
	assert.Contains(t, list, "1 - רותם")
	assert.Contains(t, list, "12 - זקיף אקליפטוס")
	assert.Less(t, strings.Index(list, "2 - דפנה"), strings.Index(list, "10 - מלונית ורד"))

	assert.Contains(t, m.ReportList("ורד", nil, 10), "אין דיווחים")

	reports := []Report{
		{ID: 3, Room: "a", IssueType: "b", Status: StatusDone},
		{ID: 2, Room: "c", IssueType: "d", Status: StatusReceived},
		{ID: 1, Room: "e", IssueType: "f", Status: StatusReceived},
	}
	out := m.ReportList("ורד", reports, 2)
	assert.Contains(t, out, "#3 | a | b | טופל")
	assert.Contains(t, out, "#2 | c | d | התקבל")
	assert.NotContains(t, out, "#1 |")
	assert.Contains(t, out, "ועוד 1")

	note := m.NewReport(Report{ID: 8, Room: "מרפסת", CreatedAt: time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)}, "אגוז")
	assert.Contains(t, note, "#8")
	assert.Contains(t, note, "אגוז")
	assert.Contains(t, note, "02.01.2025 03:04")

	assert.Contains(t, m.StatusChanged(Report{ID: 8, Status: StatusDone}, "אגוז"), "טופל")
}
