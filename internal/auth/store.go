package auth

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"recast/internal/logging"
	"recast/internal/paths"
)

// KeyStore persists issued API keys in SQLite under the workspace
// state directory.
type KeyStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// OpenKeyStore opens or creates the key database at .recast/auth.db.
func OpenKeyStore(workspaceRoot string, logger *logging.Logger) (*KeyStore, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if _, err := paths.EnsureStateDir(workspaceRoot); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", paths.AuthDBPath(workspaceRoot))
	if err != nil {
		return nil, fmt.Errorf("failed to open key database: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &KeyStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *KeyStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			token_hash TEXT NOT NULL,
			token_prefix TEXT NOT NULL,
			scopes TEXT NOT NULL,
			expires_at TEXT,
			created_at TEXT NOT NULL,
			last_used_at TEXT,
			revoked INTEGER NOT NULL DEFAULT 0,
			revoked_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(token_prefix);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init key schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *KeyStore) Close() error {
	return s.db.Close()
}

// Save persists a new API key.
func (s *KeyStore) Save(key *APIKey) error {
	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return fmt.Errorf("marshal scopes: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO api_keys
			(id, name, token_hash, token_prefix, scopes, expires_at, created_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		key.ID, key.Name, key.TokenHash, key.TokenPrefix, string(scopesJSON),
		timePtr(key.ExpiresAt), key.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save key %s: %w", key.ID, err)
	}
	return nil
}

// KeysByPrefix returns the keys whose stored prefix matches, revoked
// ones included so the caller can report revocation rather than a bad
// token. The caller still verifies the full token against the hash.
func (s *KeyStore) KeysByPrefix(prefix string) ([]*APIKey, error) {
	rows, err := s.db.Query(`
		SELECT id, name, token_hash, token_prefix, scopes,
		       expires_at, created_at, last_used_at, revoked, revoked_at
		FROM api_keys WHERE token_prefix = ?`, prefix)
	if err != nil {
		return nil, fmt.Errorf("query keys by prefix: %w", err)
	}
	defer rows.Close()
	return scanKeys(rows)
}

// List returns every key, newest first.
func (s *KeyStore) List() ([]*APIKey, error) {
	rows, err := s.db.Query(`
		SELECT id, name, token_hash, token_prefix, scopes,
		       expires_at, created_at, last_used_at, revoked, revoked_at
		FROM api_keys ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	return scanKeys(rows)
}

// Get returns one key by ID.
func (s *KeyStore) Get(id string) (*APIKey, error) {
	rows, err := s.db.Query(`
		SELECT id, name, token_hash, token_prefix, scopes,
		       expires_at, created_at, last_used_at, revoked, revoked_at
		FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get key %s: %w", id, err)
	}
	defer rows.Close()
	keys, err := scanKeys(rows)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrKeyNotFound
	}
	return keys[0], nil
}

// UpdateToken swaps a key's secret. The old token stops verifying
// immediately; revoked keys cannot be rotated.
func (s *KeyStore) UpdateToken(id, hash, prefix string) error {
	res, err := s.db.Exec(`
		UPDATE api_keys SET token_hash = ?, token_prefix = ? WHERE id = ? AND revoked = 0`,
		hash, prefix, id)
	if err != nil {
		return fmt.Errorf("rotate key %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// Revoke marks a key unusable. Revoking twice is an error so callers
// can tell a bad ID from a successful revocation.
func (s *KeyStore) Revoke(id string) error {
	res, err := s.db.Exec(`
		UPDATE api_keys SET revoked = 1, revoked_at = ? WHERE id = ? AND revoked = 0`,
		time.Now().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("revoke key %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// UpdateLastUsed stamps the key's most recent successful use.
func (s *KeyStore) UpdateLastUsed(id string) error {
	_, err := s.db.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		time.Now().Format(time.RFC3339Nano), id)
	return err
}

func scanKeys(rows *sql.Rows) ([]*APIKey, error) {
	var keys []*APIKey
	for rows.Next() {
		var (
			k          APIKey
			scopesJSON string
			expiresAt  sql.NullString
			createdAt  string
			lastUsedAt sql.NullString
			revokedAt  sql.NullString
		)
		if err := rows.Scan(&k.ID, &k.Name, &k.TokenHash, &k.TokenPrefix, &scopesJSON,
			&expiresAt, &createdAt, &lastUsedAt, &k.Revoked, &revokedAt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		if err := json.Unmarshal([]byte(scopesJSON), &k.Scopes); err != nil {
			return nil, fmt.Errorf("unmarshal scopes for %s: %w", k.ID, err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			k.CreatedAt = t
		}
		k.ExpiresAt = parseTimePtr(expiresAt)
		k.LastUsedAt = parseTimePtr(lastUsedAt)
		k.RevokedAt = parseTimePtr(revokedAt)
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func timePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTimePtr(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}
