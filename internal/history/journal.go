package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Entry is one recorded pipeline run.
type Entry struct {
	ID            string    `json:"id"`
	Operation     string    `json:"operation"`
	Target        string    `json:"target,omitempty"`
	Succeeded     bool      `json:"succeeded"`
	Preview       bool      `json:"preview,omitempty"`
	ErrorCode     string    `json:"errorCode,omitempty"`
	Message       string    `json:"message,omitempty"`
	FilesModified int       `json:"filesModified"`
	FilesCreated  int       `json:"filesCreated"`
	FilesDeleted  int       `json:"filesDeleted"`
	RefsUpdated   int       `json:"refsUpdated"`
	ElapsedMs     int64     `json:"elapsedMs"`
	Detail        []byte    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Record appends an entry and prunes the journal to the configured
// maximum. The detail payload is compressed with the configured codec.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		return fmt.Errorf("journal entry requires an operation id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	detail, codec := s.compress(e.Detail)

	return s.WithTx(func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO operations (
				id, operation, target, succeeded, preview,
				error_code, message,
				files_modified, files_created, files_deleted,
				refs_updated, elapsed_ms,
				detail, detail_codec, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ID, e.Operation, e.Target, boolInt(e.Succeeded), boolInt(e.Preview),
			e.ErrorCode, e.Message,
			e.FilesModified, e.FilesCreated, e.FilesDeleted,
			e.RefsUpdated, e.ElapsedMs,
			detail, codec, e.CreatedAt.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to record operation: %w", err)
		}
		if s.cfg.MaxEntries > 0 {
			_, err = tx.ExecContext(ctx, `
				DELETE FROM operations WHERE id NOT IN (
					SELECT id FROM operations
					ORDER BY created_at DESC, id DESC
					LIMIT ?
				)
			`, s.cfg.MaxEntries)
			if err != nil {
				return fmt.Errorf("failed to prune journal: %w", err)
			}
		}
		return nil
	})
}

// List returns the most recent entries, newest first. Detail payloads
// are not loaded; use Get for one full entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, operation, target, succeeded, preview,
		       error_code, message,
		       files_modified, files_created, files_deleted,
		       refs_updated, elapsed_ms, created_at
		FROM operations
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var succeeded, preview int
		var createdAt string
		if err := rows.Scan(
			&e.ID, &e.Operation, &e.Target, &succeeded, &preview,
			&e.ErrorCode, &e.Message,
			&e.FilesModified, &e.FilesCreated, &e.FilesDeleted,
			&e.RefsUpdated, &e.ElapsedMs, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Succeeded = succeeded != 0
		e.Preview = preview != 0
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one entry with its decompressed detail payload, or nil
// when the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	var e Entry
	var succeeded, preview int
	var createdAt, codec string
	var detail []byte
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, operation, target, succeeded, preview,
		       error_code, message,
		       files_modified, files_created, files_deleted,
		       refs_updated, elapsed_ms,
		       detail, detail_codec, created_at
		FROM operations WHERE id = ?
	`, id).Scan(
		&e.ID, &e.Operation, &e.Target, &succeeded, &preview,
		&e.ErrorCode, &e.Message,
		&e.FilesModified, &e.FilesCreated, &e.FilesDeleted,
		&e.RefsUpdated, &e.ElapsedMs,
		&detail, &codec, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load journal entry: %w", err)
	}
	e.Succeeded = succeeded != 0
	e.Preview = preview != 0
	e.CreatedAt = parseTime(createdAt)
	e.Detail, err = s.decompress(detail, codec)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress detail for %s: %w", id, err)
	}
	return &e, nil
}

// Count returns the number of journal rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM operations").Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
