package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownFacility = errors.New("facility does not exist")
	ErrReportNotFound  = errors.New("report not found")
	ErrInvalidStatus   = errors.New("invalid report status")
)

// Status is the lifecycle state of a report.
type Status string

const (
	StatusReceived   Status = "received"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

var statusLabels = map[Status]string{
	StatusReceived:   "התקבל",
	StatusInProgress: "בטיפול",
	StatusDone:       "טופל",
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := statusLabels[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Label is the display text of the status; unknown values are shown as-is.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Report is a maintenance issue filed against a facility.
type Report struct {
	ID            int64     `json:"id"`
	FacilityID    string    `json:"facility_id"`
	CreatedAt     time.Time `json:"created_at"`
	Room          string    `json:"room"`
	IssueType     string    `json:"issue_type"`
	Description   string    `json:"description"`
	Priority      string    `json:"priority"`
	Status        Status    `json:"status"`
	PhotoFilename string    `json:"photo_filename,omitempty"`
}

// Draft is the user input for a new report.
type Draft struct {
	Room          string
	IssueType     string
	Item          string
	Description   string
	Priority      string
	PhotoFilename string
}

// ValidationError lists required fields left empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (d Draft) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"room", d.Room},
		{"issue_type", d.IssueType},
		{"item", d.Item},
		{"priority", d.Priority},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// FullDescription joins the item and the free-text description.
func (d Draft) FullDescription() string {
	item := strings.TrimSpace(d.Item)
	desc := strings.TrimSpace(d.Description)
	switch {
	case item != "" && desc != "":
		return item + " - " + desc
	case item != "":
		return item
	default:
		return desc
	}
}
