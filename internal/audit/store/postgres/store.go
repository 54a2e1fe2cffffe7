package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"gatekeep/internal/audit"
)

// Store persists audit entries in PostgreSQL. It is the durable alternative
// to the in-memory store; the trail semantics (append-only, newest-first
// reads) are identical.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_logs (
			id          BIGSERIAL PRIMARY KEY,
			user_id     BIGINT NOT NULL,
			session_id  BIGINT,
			resource_id BIGINT,
			action      TEXT NOT NULL,
			command     TEXT,
			output      TEXT,
			status      TEXT NOT NULL,
			ip_address  TEXT,
			user_agent  TEXT,
			ts          TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs
			(user_id, session_id, resource_id, action, command, output, status, ip_address, user_agent, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		entry.UserID,
		nullableID(entry.SessionID),
		nullableID(entry.ResourceID),
		string(entry.Action),
		nullableText(entry.Command),
		nullableText(entry.Output),
		string(entry.Status),
		nullableText(entry.IPAddress),
		nullableText(entry.UserAgent),
		entry.Timestamp,
	)
	if err := row.Scan(&entry.ID); err != nil {
		return audit.Entry{}, fmt.Errorf("append audit entry: %w", err)
	}
	return entry, nil
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, selectEntries+`
		ORDER BY ts DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *Store) ListByUser(ctx context.Context, userID int64) ([]audit.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries+`
		WHERE user_id = $1
		ORDER BY ts DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries by user: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

const selectEntries = `
	SELECT id, user_id, session_id, resource_id, action, command, output, status, ip_address, user_agent, ts
	FROM audit_logs
`

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var (
			entry                   audit.Entry
			sessionID, resourceID   sql.NullInt64
			command, output, ip, ua sql.NullString
			action, status          string
		)
		if err := rows.Scan(&entry.ID, &entry.UserID, &sessionID, &resourceID,
			&action, &command, &output, &status, &ip, &ua, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.SessionID = sessionID.Int64
		entry.ResourceID = resourceID.Int64
		entry.Action = audit.Action(action)
		entry.Command = command.String
		entry.Output = output.String
		entry.Status = audit.Status(status)
		entry.IPAddress = ip.String
		entry.UserAgent = ua.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullableText(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
