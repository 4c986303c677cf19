// Package store persists scan history and traceability matrices to
// SQLite so check and report commands can run without rescanning.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"reqtrace/internal/annotation"
	"reqtrace/internal/logging"
	"reqtrace/internal/scan"
	"reqtrace/internal/trace"
)

// Store manages the trace database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewStore creates or opens the trace database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		file_count INTEGER NOT NULL,
		tag_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		languages_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_scans_finished ON scans(finished_at);

	CREATE TABLE IF NOT EXISTS tags (
		scan_id TEXT NOT NULL,
		req_id TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		symbol TEXT,
		placement TEXT NOT NULL,
		language TEXT,
		FOREIGN KEY (scan_id) REFERENCES scans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_tags_scan ON tags(scan_id);
	CREATE INDEX IF NOT EXISTS idx_tags_req ON tags(req_id);

	CREATE TABLE IF NOT EXISTS warnings (
		scan_id TEXT NOT NULL,
		file TEXT NOT NULL,
		line INTEGER NOT NULL,
		message TEXT NOT NULL,
		FOREIGN KEY (scan_id) REFERENCES scans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_warnings_scan ON warnings(scan_id);

	CREATE TABLE IF NOT EXISTS file_states (
		scan_id TEXT NOT NULL,
		path TEXT NOT NULL,
		hash TEXT NOT NULL,
		language TEXT,
		mod_time INTEGER NOT NULL,
		is_test INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (scan_id) REFERENCES scans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_file_states_scan ON file_states(scan_id);

	CREATE TABLE IF NOT EXISTS matrices (
		scan_id TEXT PRIMARY KEY,
		generated_at DATETIME NOT NULL,
		coverage REAL NOT NULL,
		matrix_json TEXT NOT NULL,
		FOREIGN KEY (scan_id) REFERENCES scans(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveScan stores a scan result with its tags, warnings and file states
// in one transaction.
func (s *Store) SaveScan(res *scan.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	languagesJSON, _ := json.Marshal(res.Languages)

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO scans (id, root, started_at, finished_at, file_count, tag_count, warning_count, languages_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ID, res.Root, res.StartedAt, res.FinishedAt, len(res.Files), len(res.Tags), len(res.Warnings), string(languagesJSON))
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}

	for _, t := range res.Tags {
		_, err = tx.Exec(`
			INSERT INTO tags (scan_id, req_id, file, line, symbol, placement, language)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, res.ID, t.ReqID, t.File, t.Line, t.Symbol, string(t.Placement), t.Language)
		if err != nil {
			return fmt.Errorf("failed to save tag: %w", err)
		}
	}

	for _, w := range res.Warnings {
		_, err = tx.Exec(`
			INSERT INTO warnings (scan_id, file, line, message) VALUES (?, ?, ?, ?)
		`, res.ID, w.File, w.Line, w.Message)
		if err != nil {
			return fmt.Errorf("failed to save warning: %w", err)
		}
	}

	for _, f := range res.Files {
		_, err = tx.Exec(`
			INSERT INTO file_states (scan_id, path, hash, language, mod_time, is_test)
			VALUES (?, ?, ?, ?, ?, ?)
		`, res.ID, f.Path, f.Hash, f.Language, f.ModTime, f.IsTest)
		if err != nil {
			return fmt.Errorf("failed to save file state: %w", err)
		}
	}

	return tx.Commit()
}

// LatestScan returns the most recently finished scan, or nil if the
// database holds none.
func (s *Store) LatestScan() (*scan.Result, error) {
	s.mu.RLock()
	var id string
	err := s.db.QueryRow(`SELECT id FROM scans ORDER BY finished_at DESC LIMIT 1`).Scan(&id)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest scan: %w", err)
	}
	return s.GetScan(id)
}

// GetScan rehydrates a scan result by ID.
func (s *Store) GetScan(id string) (*scan.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := &scan.Result{ID: id, Languages: make(map[string]int)}
	var languagesJSON sql.NullString
	var fileCount, tagCount, warningCount int

	err := s.db.QueryRow(`
		SELECT root, started_at, finished_at, file_count, tag_count, warning_count, languages_json
		FROM scans WHERE id = ?
	`, id).Scan(&res.Root, &res.StartedAt, &res.FinishedAt, &fileCount, &tagCount, &warningCount, &languagesJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load scan %s: %w", id, err)
	}
	if languagesJSON.Valid {
		if err := json.Unmarshal([]byte(languagesJSON.String), &res.Languages); err != nil {
			logging.Get(logging.CategoryStore).Warn("scan %s: bad languages_json: %v", id, err)
		}
	}

	res.Tags, err = s.tagsForScanLocked(id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
		SELECT path, hash, language, mod_time, is_test FROM file_states
		WHERE scan_id = ? ORDER BY path
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f scan.FileInfo
		if err := rows.Scan(&f.Path, &f.Hash, &f.Language, &f.ModTime, &f.IsTest); err != nil {
			logging.Get(logging.CategoryStore).Warn("scan %s: skipping file state row: %v", id, err)
			continue
		}
		if f.IsTest {
			res.TestFiles++
		}
		res.Files = append(res.Files, f)
	}

	wrows, err := s.db.Query(`
		SELECT file, line, message FROM warnings WHERE scan_id = ? ORDER BY file, line
	`, id)
	if err != nil {
		return nil, err
	}
	defer wrows.Close()
	for wrows.Next() {
		var w annotation.Warning
		if err := wrows.Scan(&w.File, &w.Line, &w.Message); err != nil {
			logging.Get(logging.CategoryStore).Warn("scan %s: skipping warning row: %v", id, err)
			continue
		}
		res.Warnings = append(res.Warnings, w)
	}

	return res, nil
}

// TagsForScan returns the tags recorded for a scan, ordered by
// (file, line).
func (s *Store) TagsForScan(id string) ([]annotation.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tagsForScanLocked(id)
}

func (s *Store) tagsForScanLocked(id string) ([]annotation.Tag, error) {
	rows, err := s.db.Query(`
		SELECT req_id, file, line, symbol, placement, language FROM tags
		WHERE scan_id = ? ORDER BY file, line
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []annotation.Tag
	for rows.Next() {
		var t annotation.Tag
		var symbol, language sql.NullString
		var placement string
		if err := rows.Scan(&t.ReqID, &t.File, &t.Line, &symbol, &placement, &language); err != nil {
			logging.Get(logging.CategoryStore).Warn("scan %s: skipping tag row: %v", id, err)
			continue
		}
		t.Symbol = symbol.String
		t.Language = language.String
		t.Placement = annotation.Placement(placement)
		tags = append(tags, t)
	}
	return tags, nil
}

// SaveMatrix stores the traceability matrix derived for a scan.
func (s *Store) SaveMatrix(scanID string, m *trace.Matrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matrixJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode matrix: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO matrices (scan_id, generated_at, coverage, matrix_json)
		VALUES (?, ?, ?, ?)
	`, scanID, m.GeneratedAt, m.Coverage, string(matrixJSON))
	if err != nil {
		return fmt.Errorf("failed to save matrix: %w", err)
	}
	return nil
}

// LatestMatrix returns the most recent matrix and its scan ID, or
// ("", nil) if none was saved.
func (s *Store) LatestMatrix() (string, *trace.Matrix, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scanID, matrixJSON string
	err := s.db.QueryRow(`
		SELECT scan_id, matrix_json FROM matrices ORDER BY generated_at DESC LIMIT 1
	`).Scan(&scanID, &matrixJSON)
	if err == sql.ErrNoRows {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load matrix: %w", err)
	}

	var m trace.Matrix
	if err := json.Unmarshal([]byte(matrixJSON), &m); err != nil {
		return "", nil, fmt.Errorf("failed to decode matrix: %w", err)
	}
	return scanID, &m, nil
}

// ScanSummary is one row of scan history.
type ScanSummary struct {
	ID           string    `json:"id"`
	Root         string    `json:"root"`
	FinishedAt   time.Time `json:"finished_at"`
	FileCount    int       `json:"file_count"`
	TagCount     int       `json:"tag_count"`
	WarningCount int       `json:"warning_count"`
}

// ListScans returns recent scans, newest first.
func (s *Store) ListScans(limit int) ([]ScanSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, root, finished_at, file_count, tag_count, warning_count
		FROM scans ORDER BY finished_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ScanSummary
	for rows.Next() {
		var sum ScanSummary
		if err := rows.Scan(&sum.ID, &sum.Root, &sum.FinishedAt, &sum.FileCount, &sum.TagCount, &sum.WarningCount); err != nil {
			logging.Get(logging.CategoryStore).Warn("skipping scan summary row: %v", err)
			continue
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}
