package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	DebugLevel LogLevel = "DEBUG"
	InfoLevel  LogLevel = "INFO"
	WarnLevel  LogLevel = "WARN"
	ErrorLevel LogLevel = "ERROR"
)

// Fields type for structured logging
type Fields map[string]interface{}

// Logger writes one JSON object per line.
type Logger struct {
	logger *log.Logger
	fields Fields
	level  LogLevel
}

// New creates a Logger writing to stdout
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Logger writing to w
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		logger: log.New(w, "", 0),
		fields: make(Fields),
		level:  InfoLevel,
	}
}

// Discard returns a logger that drops everything, handy for tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard)
}

// ParseLevel maps a case-insensitive level name to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel, nil
	case "INFO", "":
		return InfoLevel, nil
	case "WARN", "WARNING":
		return WarnLevel, nil
	case "ERROR":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// WithLevel returns a copy of the logger with the given level
func (l *Logger) WithLevel(level LogLevel) *Logger {
	return &Logger{
		logger: l.logger,
		fields: l.fields,
		level:  level,
	}
}

// WithField adds a single field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields adds multiple fields to the logger
func (l *Logger) WithFields(fields Fields) *Logger {
	newFields := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	return &Logger{
		logger: l.logger,
		fields: newFields,
		level:  l.level,
	}
}

// WithError adds an error field to the logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) WithComponent(name string) *Logger {
	return l.WithField("component", name)
}

func (l *Logger) WithFacility(id string) *Logger {
	return l.WithField("facility_id", id)
}

func (l *Logger) WithReport(id int64) *Logger {
	return l.WithField("report_id", id)
}

// ForRequest adds request method, path and remote address
func (l *Logger) ForRequest(r *http.Request) *Logger {
	if r == nil {
		return l
	}
	return l.WithFields(Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"remote_addr": r.RemoteAddr,
	})
}

func (l *Logger) log(level LogLevel, msg string, fields Fields) {
	if levelToInt(level) < levelToInt(l.level) {
		return
	}
	l.write(l.prepareEntry(level, msg, fields))
}

func (l *Logger) prepareEntry(level LogLevel, msg string, fields Fields) Fields {
	entry := make(Fields, len(l.fields)+len(fields)+4)

	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = string(level)
	entry["message"] = msg

	// skip prepareEntry, log and the exported wrapper
	if _, file, line, ok := runtime.Caller(3); ok {
		short := file
		if i := strings.LastIndexByte(file, '/'); i >= 0 {
			short = file[i+1:]
		}
		entry["caller"] = fmt.Sprintf("%s:%d", short, line)
	}

	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}

	return entry
}

func (l *Logger) write(entry Fields) {
	jsonData, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("{\"level\":\"ERROR\",\"message\":\"Failed to marshal log entry: %v\"}", err)
		return
	}

	l.logger.Println(string(jsonData))
}

// Debug logs a message at Debug level
func (l *Logger) Debug(msg string) {
	l.log(DebugLevel, msg, nil)
}

// Info logs a message at Info level
func (l *Logger) Info(msg string) {
	l.log(InfoLevel, msg, nil)
}

// Warn logs a message at Warn level
func (l *Logger) Warn(msg string) {
	l.log(WarnLevel, msg, nil)
}

// Error logs a message at Error level
func (l *Logger) Error(msg string) {
	l.log(ErrorLevel, msg, nil)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// DebugWithFields logs a message with fields at Debug level
func (l *Logger) DebugWithFields(msg string, fields Fields) {
	l.log(DebugLevel, msg, fields)
}

// InfoWithFields logs a message with fields at Info level
func (l *Logger) InfoWithFields(msg string, fields Fields) {
	l.log(InfoLevel, msg, fields)
}

// WarnWithFields logs a message with fields at Warn level
func (l *Logger) WarnWithFields(msg string, fields Fields) {
	l.log(WarnLevel, msg, fields)
}

// ErrorWithFields logs a message with fields at Error level
func (l *Logger) ErrorWithFields(msg string, fields Fields) {
	l.log(ErrorLevel, msg, fields)
}

func levelToInt(level LogLevel) int {
	switch strings.ToUpper(string(level)) {
	case "DEBUG":
		return 0
	case "INFO":
		return 1
	case "WARN":
		return 2
	case "ERROR":
		return 3
	default:
		return 1 // Default to INFO
	}
}
