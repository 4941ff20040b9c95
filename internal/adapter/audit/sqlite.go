package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// SQLiteStore implements domain.RoutingAuditStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ domain.RoutingAuditStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath
// and runs the schema migration.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// dsn carries the pragmas in the connection string so every connection the
// pool opens gets them, not only the first.
func dsn(dbPath string) string {
	return "file:" + dbPath +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS routing_audit (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id    TEXT NOT NULL,
			mode          TEXT NOT NULL,
			primary_agent TEXT NOT NULL DEFAULT '',
			selected      TEXT NOT NULL DEFAULT '[]',
			confidence    REAL NOT NULL DEFAULT 0,
			outcome       TEXT NOT NULL,
			detail        TEXT NOT NULL DEFAULT '',
			created_at    INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_routing_audit_session ON routing_audit (session_id, id);
		CREATE INDEX IF NOT EXISTS idx_routing_audit_created ON routing_audit (created_at);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record inserts one entry. A zero CreatedAt is stamped with the current time.
func (s *SQLiteStore) Record(ctx context.Context, e domain.RoutingAuditEntry) error {
	selected := e.Selected
	if selected == nil {
		selected = []string{}
	}
	selJSON, err := json.Marshal(selected)
	if err != nil {
		return fmt.Errorf("marshal selected agents: %w", err)
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO routing_audit (session_id, mode, primary_agent, selected, confidence, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Mode, e.PrimaryAgent, string(selJSON), e.Confidence, e.Outcome, e.Detail,
		created.UTC().UnixMilli(),
	)
	if err != nil {
		return domain.NewDomainError("SQLiteStore.Record", domain.ErrAuditWrite, err.Error())
	}
	return nil
}

// List returns the newest entries first. An empty sessionID lists all
// sessions; limit <= 0 means no limit.
func (s *SQLiteStore) List(ctx context.Context, sessionID string, limit int) ([]domain.RoutingAuditEntry, error) {
	query := `SELECT id, session_id, mode, primary_agent, selected, confidence, outcome, detail, created_at
		FROM routing_audit`
	var args []any
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.RoutingAuditEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries created before the cutoff and reports how many went.
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM routing_audit WHERE created_at < ?", before.UTC().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEntry(rows *sql.Rows) (domain.RoutingAuditEntry, error) {
	var e domain.RoutingAuditEntry
	var selStr string
	var createdMs int64
	if err := rows.Scan(&e.ID, &e.SessionID, &e.Mode, &e.PrimaryAgent, &selStr, &e.Confidence,
		&e.Outcome, &e.Detail, &createdMs); err != nil {
		return e, err
	}
	if err := json.Unmarshal([]byte(selStr), &e.Selected); err != nil {
		return e, fmt.Errorf("unmarshal selected agents: %w", err)
	}
	e.CreatedAt = time.UnixMilli(createdMs).UTC()
	return e, nil
}
