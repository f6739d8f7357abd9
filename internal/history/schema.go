package history

import (
	"database/sql"
)

const currentSchemaVersion = 1

func (s *Store) initializeSchema() error {
	return s.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createOperationsTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}
		s.logger.Info("journal schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})
		return nil
	})
}

func (s *Store) runMigrations() error {
	version, err := s.getSchemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		return nil
	}
	if version == 0 {
		// database predates version tracking; create what is missing
		return s.initializeSchema()
	}
	s.logger.Info("migrating journal schema", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})
	// migrations are added here as the schema evolves
	return nil
}

func (s *Store) getSchemaVersion() (int, error) {
	var tableName string
	err := s.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = s.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

func createOperationsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS operations (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			target TEXT,
			succeeded INTEGER NOT NULL,
			preview INTEGER NOT NULL DEFAULT 0,
			error_code TEXT,
			message TEXT,
			files_modified INTEGER NOT NULL DEFAULT 0,
			files_created INTEGER NOT NULL DEFAULT 0,
			files_deleted INTEGER NOT NULL DEFAULT 0,
			refs_updated INTEGER NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL DEFAULT 0,
			detail BLOB,
			detail_codec TEXT NOT NULL DEFAULT 'none',
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_operations_created
		ON operations(created_at DESC)
	`)
	return err
}
