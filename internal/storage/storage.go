package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/thatguy/facility-reports/internal/logger"
	"github.com/thatguy/facility-reports/internal/reports"
)

type Storage struct {
	db  *sql.DB
	log *logger.Logger
}

func New(dbPath string, log *logger.Logger) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers anyway; one connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	s := &Storage{
		db:  db,
		log: log,
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return s, nil
}

func (s *Storage) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			facility_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			room TEXT NOT NULL DEFAULT '',
			issue_type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'received',
			photo_filename TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_facility ON reports (facility_id)`,
		`CREATE TABLE IF NOT EXISTS subscribers (
			chat_id INTEGER PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	s.log.Info("Database migrated successfully")
	return nil
}

const reportColumns = `id, facility_id, created_at, room, issue_type, description, priority, status, photo_filename`

func (s *Storage) AddReport(ctx context.Context, r reports.Report) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (facility_id, created_at, room, issue_type, description, priority, status, photo_filename)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.FacilityID, r.CreatedAt.Unix(), r.Room, r.IssueType, r.Description, r.Priority, string(r.Status), r.PhotoFilename,
	)
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return res.LastInsertId()
}

// ImportReport stores r under its own id, replacing any existing row.
func (s *Storage) ImportReport(ctx context.Context, r reports.Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FacilityID, r.CreatedAt.Unix(), r.Room, r.IssueType, r.Description, r.Priority, string(r.Status), r.PhotoFilename,
	)
	if err != nil {
		return fmt.Errorf("import report %d: %w", r.ID, err)
	}
	return nil
}

func (s *Storage) GetReport(ctx context.Context, id int64) (reports.Report, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return reports.Report{}, fmt.Errorf("%w: %d", reports.ErrReportNotFound, id)
	}
	if err != nil {
		return reports.Report{}, fmt.Errorf("get report %d: %w", id, err)
	}
	return r, nil
}

// ReportsByFacility returns the facility's reports, newest first.
func (s *Storage) ReportsByFacility(ctx context.Context, facilityID string) ([]reports.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE facility_id = ? ORDER BY id DESC`, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reports.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			s.log.WithError(err).Warn("Failed to scan report row")
			continue
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateStatus reports false when no report has the given id.
func (s *Storage) UpdateStatus(ctx context.Context, id int64, status reports.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE reports SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (reports.Report, error) {
	var (
		r       reports.Report
		created int64
		status  string
	)
	err := sc.Scan(&r.ID, &r.FacilityID, &created, &r.Room, &r.IssueType, &r.Description, &r.Priority, &status, &r.PhotoFilename)
	if err != nil {
		return reports.Report{}, err
	}
	r.CreatedAt = time.Unix(created, 0)
	r.Status = reports.Status(status)
	return r, nil
}

func (s *Storage) AddSubscriber(chatID int64) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO subscribers (chat_id) VALUES (?)", chatID)
	return err
}

func (s *Storage) RemoveSubscriber(chatID int64) error {
	_, err := s.db.Exec("DELETE FROM subscribers WHERE chat_id = ?", chatID)
	return err
}

func (s *Storage) GetSubscribers() ([]int64, error) {
	rows, err := s.db.Query("SELECT chat_id FROM subscribers ORDER BY chat_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscribers []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			continue
		}
		subscribers = append(subscribers, chatID)
	}
	return subscribers, rows.Err()
}

func (s *Storage) IsSubscribed(chatID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM subscribers WHERE chat_id = ?)", chatID).Scan(&exists)
	return exists, err
}

// GetStats returns the subscriber and report counts.
func (s *Storage) GetStats() (subscribers, reportCount int, err error) {
	if err = s.db.QueryRow("SELECT COUNT(*) FROM subscribers").Scan(&subscribers); err != nil {
		return 0, 0, fmt.Errorf("count subscribers: %w", err)
	}
	if err = s.db.QueryRow("SELECT COUNT(*) FROM reports").Scan(&reportCount); err != nil {
		return 0, 0, fmt.Errorf("count reports: %w", err)
	}
	return subscribers, reportCount, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}
