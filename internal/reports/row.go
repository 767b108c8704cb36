package reports

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SheetName is the tab the report rows live in.
const SheetName = "ApartmentReports"

// TimeLayout is the created_at format used in sheet rows.
const TimeLayout = "2006-01-02 15:04:05"

// RowWidth is the number of sheet columns (A..H).
const RowWidth = 8

// Row encodes the report as sheet columns:
// id, facility id, created at, room, issue type, description, priority, status.
func (r Report) Row() []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.FacilityID,
		r.CreatedAt.Format(TimeLayout),
		r.Room,
		r.IssueType,
		r.Description,
		r.Priority,
		string(r.Status),
	}
}

// FromRow decodes a sheet row. Short rows are padded with empty cells.
func FromRow(row []string, loc *time.Location) (Report, error) {
	cells := make([]string, RowWidth)
	copy(cells, row)
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	id, err := strconv.ParseInt(cells[0], 10, 64)
	if err != nil {
		return Report{}, fmt.Errorf("parse report id %q: %w", cells[0], err)
	}
	if cells[1] == "" {
		return Report{}, fmt.Errorf("report %d: empty facility id", id)
	}

	if loc == nil {
		loc = time.Local
	}
	var created time.Time
	if cells[2] != "" {
		created, err = time.ParseInLocation(TimeLayout, cells[2], loc)
		if err != nil {
			return Report{}, fmt.Errorf("report %d: parse created_at: %w", id, err)
		}
	}

	status := StatusReceived
	if cells[7] != "" {
		// values outside the known set are kept so nothing is lost on import
		if status, err = ParseStatus(cells[7]); err != nil {
			status = Status(cells[7])
		}
	}

	return Report{
		ID:          id,
		FacilityID:  cells[1],
		CreatedAt:   created,
		Room:        cells[3],
		IssueType:   cells[4],
		Description: cells[5],
		Priority:    cells[6],
		Status:      status,
	}, nil
}
