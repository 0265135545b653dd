package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/filesystem"
	"github.com/doeshing/vocmd/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS commands (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	text TEXT,
	command_id TEXT,
	context TEXT,
	session_id TEXT,
	user_id TEXT,
	outcome TEXT,
	success INTEGER,
	message TEXT,
	risk_level TEXT,
	confidence REAL,
	duration_ms INTEGER
);
CREATE TABLE IF NOT EXISTS audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	command_text TEXT,
	action TEXT,
	risk TEXT,
	result TEXT,
	reason TEXT,
	session_id TEXT
);
CREATE TABLE IF NOT EXISTS permissions (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	body TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS grants (
	key TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL,
	body TEXT NOT NULL
);`

// SQLiteStore persists history, audit entries and permission state in one
// SQLite database so separate CLI invocations share them.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex

	historyLimit int
	auditCap     int
	auditRetain  int
}

// Option customizes a SQLiteStore.
type Option func(*SQLiteStore)

// WithHistoryLimit keeps only the newest n command records. n <= 0 disables the bound.
func WithHistoryLimit(n int) Option {
	return func(s *SQLiteStore) { s.historyLimit = n }
}

// WithAuditBounds trims the audit table to the newest retain entries once it
// grows past capacity.
func WithAuditBounds(capacity, retain int) Option {
	return func(s *SQLiteStore) {
		if capacity > 0 && retain > 0 && retain <= capacity {
			s.auditCap, s.auditRetain = capacity, retain
		}
	}
}

// DefaultPath is ~/.vocmd/history/history.db.
func DefaultPath() string {
	return filesystem.AppPath("history", "history.db")
}

// Open creates (or opens) the database at path. ":memory:" is accepted.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// modernc connections do not share an in-memory database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	s := &SQLiteStore{
		db:           db,
		path:         path,
		historyLimit: domain.DefaultHistoryEntries,
		auditCap:     domain.DefaultAuditCapacity,
		auditRetain:  domain.DefaultAuditRetain,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Save inserts a new history record.
func (s *SQLiteStore) Save(record domain.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO commands
		(ts, text, command_id, context, session_id, user_id, outcome, success, message, risk_level, confidence, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.UnixNano(),
		record.Text,
		record.CommandID,
		string(record.Context),
		record.SessionID,
		record.UserID,
		string(record.Outcome),
		boolToInt(record.Success),
		record.Message,
		string(record.RiskLevel),
		record.Confidence,
		record.DurationMS,
	)
	if err != nil {
		return err
	}
	if s.historyLimit > 0 {
		return s.keepNewest("commands", s.historyLimit)
	}
	return nil
}

// Records returns history entries newest first (limit/search optional).
func (s *SQLiteStore) Records(limit int, search string) ([]domain.HistoryRecord, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ts, text, command_id, context, session_id, user_id, outcome, success, message, risk_level, confidence, duration_ms FROM commands`)
	var args []interface{}
	if search != "" {
		builder.WriteString(" WHERE text LIKE ? OR command_id LIKE ?")
		args = append(args, "%"+search+"%", "%"+search+"%")
	}
	builder.WriteString(" ORDER BY ts DESC, id DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var ts int64
		var success int
		var ctx, outcome, risk string
		if err := rows.Scan(&ts, &rec.Text, &rec.CommandID, &ctx, &rec.SessionID, &rec.UserID, &outcome, &success, &rec.Message, &risk, &rec.Confidence, &rec.DurationMS); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ts)
		rec.Context = domain.ContextType(ctx)
		rec.Outcome = domain.Outcome(outcome)
		rec.RiskLevel = domain.RiskLevel(risk)
		rec.Success = success == 1
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all history entries. Audit and permission state survive.
func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("DELETE FROM commands")
	return err
}

// ExportJSON writes the command table to a jsonl file, oldest first.
func (s *SQLiteStore) ExportJSON(dest string) error {
	records, err := s.Records(0, "")
	if err != nil {
		return err
	}
	return writeJSONL(dest, reversed(records))
}

// AppendAudit stores one audit entry.
func (s *SQLiteStore) AppendAudit(entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO audit (ts, command_text, action, risk, result, reason, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UnixNano(),
		entry.CommandText,
		entry.Action,
		string(entry.Risk),
		string(entry.Result),
		entry.Reason,
		entry.SessionID,
	)
	if err != nil {
		return err
	}
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audit`).Scan(&count); err != nil {
		return fmt.Errorf("count audit entries: %w", err)
	}
	if count > s.auditCap {
		return s.keepNewest("audit", s.auditRetain)
	}
	return nil
}

// keepNewest deletes all but the n most recently inserted rows of table.
// Callers hold s.mu.
func (s *SQLiteStore) keepNewest(table string, n int) error {
	_, err := s.db.Exec(`DELETE FROM `+table+` WHERE id <= (SELECT id FROM `+table+` ORDER BY id DESC LIMIT 1 OFFSET ?)`, n)
	if err != nil {
		return fmt.Errorf("trim %s: %w", table, err)
	}
	return nil
}

// AuditEntries returns the newest entries first.
func (s *SQLiteStore) AuditEntries(limit int) ([]domain.AuditEntry, error) {
	query := `SELECT ts, command_text, action, risk, result, reason, session_id FROM audit ORDER BY ts DESC, id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var ts int64
		var risk, result string
		if err := rows.Scan(&ts, &e.CommandText, &e.Action, &risk, &result, &e.Reason, &e.SessionID); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts)
		e.Risk = domain.RiskLevel(risk)
		e.Result = domain.AuditResult(result)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PutRequest upserts an open permission request.
func (s *SQLiteStore) PutRequest(req domain.PermissionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO permissions (id, created_at, body) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET created_at = excluded.created_at, body = excluded.body`,
		req.ID, req.CreatedAt.UnixNano(), string(body))
	return err
}

// Request loads one permission request.
func (s *SQLiteStore) Request(id string) (domain.PermissionRequest, bool, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM permissions WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PermissionRequest{}, false, nil
	}
	if err != nil {
		return domain.PermissionRequest{}, false, err
	}
	var req domain.PermissionRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return domain.PermissionRequest{}, false, fmt.Errorf("decode permission %s: %w", id, err)
	}
	return req, true, nil
}

// DeleteRequest removes a permission request. Missing ids are not an error.
func (s *SQLiteStore) DeleteRequest(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM permissions WHERE id = ?`, id)
	return err
}

// Requests returns every open request, oldest first.
func (s *SQLiteStore) Requests() ([]domain.PermissionRequest, error) {
	rows, err := s.db.Query(`SELECT body FROM permissions ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.PermissionRequest
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var req domain.PermissionRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// PutGrant upserts an approval grant.
func (s *SQLiteStore) PutGrant(g domain.PermissionGrant) error {
	body, err := json.Marshal(g)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO grants (key, expires_at, body) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at, body = excluded.body`,
		g.Key, g.ExpiresAt.UnixNano(), string(body))
	return err
}

// Grant loads a grant by key.
func (s *SQLiteStore) Grant(key string) (domain.PermissionGrant, bool, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM grants WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PermissionGrant{}, false, nil
	}
	if err != nil {
		return domain.PermissionGrant{}, false, err
	}
	var g domain.PermissionGrant
	if err := json.Unmarshal([]byte(body), &g); err != nil {
		return domain.PermissionGrant{}, false, fmt.Errorf("decode grant: %w", err)
	}
	return g, true, nil
}

// DeleteGrant removes a grant.
func (s *SQLiteStore) DeleteGrant(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM grants WHERE key = ?`, key)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ ports.HistoryRepository = (*SQLiteStore)(nil)
	_ ports.AuditRepository   = (*SQLiteStore)(nil)
	_ ports.PermissionStore   = (*SQLiteStore)(nil)
)
