package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the durable log of submitted reports and of each day's report
// requests. All day keys are computed in the store's location.
type Store struct {
	db  *sql.DB
	loc *time.Location
	mu  sync.Mutex

	// now is swapped in tests to pin the calendar day.
	now func() time.Time
}

// Report is one accepted daily report row.
type Report struct {
	ChannelID   string
	ChannelName string
	Username    string
	Day         string
	Message     string
	CreatedAt   time.Time
}

// Request records that a user was asked to report in a channel on a day.
type Request struct {
	ChannelID   string
	ChannelName string
	Username    string
	Day         string
}

func Open(dbPath string, loc *time.Location) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	s := &Store{db: db, loc: loc, now: time.Now}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS daily_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			channel_name TEXT NOT NULL,
			username TEXT NOT NULL,
			report_date TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_day ON daily_reports(channel_id, report_date)`,
		`CREATE TABLE IF NOT EXISTS report_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			channel_name TEXT NOT NULL,
			username TEXT NOT NULL,
			report_date TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_day ON report_requests(channel_id, report_date)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Today returns the current calendar day in the store's location, YYYY-MM-DD.
func (s *Store) Today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}

// AddReport persists one submitted report, keyed by today's local date.
func (s *Store) AddReport(channelID, channelName, username, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO daily_reports (channel_id, channel_name, username, report_date, message) VALUES (?, ?, ?, ?, ?)`,
		channelID, channelName, username, s.Today(), message,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// AddRequest records the set of users asked to report in a channel on a day.
func (s *Store) AddRequest(channelID, channelName, day string, usernames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin request tx: %w", err)
	}
	for _, username := range usernames {
		if _, err := tx.Exec(
			`INSERT INTO report_requests (channel_id, channel_name, username, report_date) VALUES (?, ?, ?, ?)`,
			channelID, channelName, username, day,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert request: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit request tx: %w", err)
	}
	return nil
}

// TodayReporters returns the set of usernames with at least one report in the
// channel today.
func (s *Store) TodayReporters(channelID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT username FROM daily_reports WHERE channel_id = ? AND report_date = ?`,
		channelID, s.Today(),
	)
	if err != nil {
		return nil, fmt.Errorf("query today reporters: %w", err)
	}
	defer rows.Close()

	reporters := make(map[string]bool)
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan reporter: %w", err)
		}
		reporters[username] = true
	}
	return reporters, rows.Err()
}

// HasReportedToday reports whether the user already has an accepted report in
// the channel today.
func (s *Store) HasReportedToday(channelID, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM daily_reports WHERE channel_id = ? AND username = ? AND report_date = ?`,
		channelID, username, s.Today(),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query has reported: %w", err)
	}
	return count > 0, nil
}

// ReportsBetween returns all reports with report_date in [from, to], both
// YYYY-MM-DD inclusive, ordered by day then user.
func (s *Store) ReportsBetween(from, to string) ([]Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT channel_id, channel_name, username, report_date, message, created_at
		 FROM daily_reports WHERE report_date BETWEEN ? AND ?
		 ORDER BY report_date, username`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ChannelID, &r.ChannelName, &r.Username, &r.Day, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// RequestsBetween returns all report requests with report_date in [from, to].
func (s *Store) RequestsBetween(from, to string) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT channel_id, channel_name, username, report_date
		 FROM report_requests WHERE report_date BETWEEN ? AND ?
		 ORDER BY report_date, username`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var requests []Request
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ChannelID, &r.ChannelName, &r.Username, &r.Day); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}
