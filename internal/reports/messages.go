package reports

import (
	"bytes"
	"embed"
	"strings"
	"text/template"
	"time"

	"github.com/thatguy/facility-reports/internal/facility"
	"github.com/thatguy/facility-reports/internal/logger"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("messages").Funcs(template.FuncMap{
	"statusLabel": func(s Status) string { return s.Label() },
	"formatTime":  func(t time.Time) string { return t.Format("02.01.2006 15:04") },
}).ParseFS(templateFS, "templates/*.tmpl"))

// Messages renders the chat texts.
type Messages struct {
	tmpl *template.Template
	log  *logger.Logger
}

func NewMessages() *Messages {
	return &Messages{tmpl: templates, log: logger.Discard()}
}

// SetLogger sets the logger used for template failures.
func (m *Messages) SetLogger(l *logger.Logger) {
	m.log = l
}

func (m *Messages) render(name string, data interface{}) string {
	var buf bytes.Buffer
	if err := m.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		m.log.WithError(err).ErrorWithFields("Failed to execute template", logger.Fields{"template": name})
		return "Template error"
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (m *Messages) Welcome() string {
	return m.render("welcome.tmpl", nil)
}

func (m *Messages) Goodbye() string {
	return m.render("goodbye.tmpl", nil)
}

func (m *Messages) Help() string {
	return m.render("help.tmpl", nil)
}

func (m *Messages) FacilityList(entries []facility.Entry) string {
	return m.render("facilities.tmpl", entries)
}

// ReportList shows at most limit reports; limit <= 0 shows all.
func (m *Messages) ReportList(name string, list []Report, limit int) string {
	more := 0
	if limit > 0 && len(list) > limit {
		more = len(list) - limit
		list = list[:limit]
	}
	return m.render("report_list.tmpl", struct {
		Name    string
		Reports []Report
		More    int
	}{Name: name, Reports: list, More: more})
}

func (m *Messages) NewReport(r Report, facilityName string) string {
	return m.render("new_report.tmpl", struct {
		Report       Report
		FacilityName string
	}{Report: r, FacilityName: facilityName})
}

func (m *Messages) StatusChanged(r Report, facilityName string) string {
	return m.render("status_changed.tmpl", struct {
		Report       Report
		FacilityName string
	}{Report: r, FacilityName: facilityName})
}
