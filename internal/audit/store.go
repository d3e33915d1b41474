// Package audit persists gate decisions to SQLite for compliance review.
// Denials (and, when configured, allows) are recorded so an operator can
// answer "who tried what, and why was it blocked" after the fact.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// Record is a single gate decision audit entry.
type Record struct {
	ID         string    `json:"id"`
	Principal  string    `json:"principal"`
	Action     string    `json:"action"`
	Repository string    `json:"repository"`
	Allowed    bool      `json:"allowed"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store is a SQLite-backed decision log.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the audit database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		principal TEXT NOT NULL,
		action TEXT NOT NULL,
		repository TEXT NOT NULL,
		allowed BOOLEAN NOT NULL,
		reason TEXT,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_principal ON decisions(principal);
	CREATE INDEX IF NOT EXISTS idx_decisions_created_at ON decisions(created_at);
	`
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// LogDecision records a gate decision. Best effort: a failed insert is
// logged, never propagated — auditing must not block the gate itself.
func (s *Store) LogDecision(ctx context.Context, principal, action, repository string, allowed bool, reason string) {
	query := `INSERT INTO decisions (id, principal, action, repository, allowed, reason, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), principal, action, repository, allowed, reason, time.Now()); err != nil {
		log.Warn().Err(err).Msg("audit_insert_failed")
	}
}

// List returns the most recent decisions, newest first. Limit <= 0 means
// no limit.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, principal, action, repository, allowed, reason, created_at
	          FROM decisions ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var reason sql.NullString
		if err := rows.Scan(&r.ID, &r.Principal, &r.Action, &r.Repository, &r.Allowed, &reason, &r.Timestamp); err != nil {
			continue
		}
		r.Reason = reason.String
		records = append(records, r)
	}
	return records, rows.Err()
}
