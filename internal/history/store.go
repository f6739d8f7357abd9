// Package history is the operation journal: every pipeline run is
// recorded in a SQLite database under the workspace state directory.
// The journal is an audit trail, not an undo log; nothing in it can be
// replayed.
package history

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"recast/internal/config"
	"recast/internal/logging"
	"recast/internal/paths"
)

// Store wraps the journal database.
type Store struct {
	conn   *sql.DB
	logger *logging.Logger
	cfg    config.HistoryConfig
	dbPath string

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the journal at .recast/history.db.
func Open(workspaceRoot string, cfg config.HistoryConfig, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if _, err := paths.EnsureStateDir(workspaceRoot); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	dbPath := paths.HistoryDBPath(workspaceRoot)
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{conn: conn, logger: logger, cfg: cfg, dbPath: dbPath}
	if s.cfg.Compression == "zstd" {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to init zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to init zstd decoder: %w", err)
		}
		s.enc, s.dec = enc, dec
	}

	if !dbExists {
		logger.Info("creating journal database", map[string]interface{}{"path": dbPath})
		if err := s.initializeSchema(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
		}
	} else {
		if err := s.runMigrations(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate journal schema: %w", err)
		}
	}

	return s, nil
}

// Close closes the journal.
func (s *Store) Close() error {
	if s.enc != nil {
		s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// WithTx executes fn inside a transaction, rolling back on error or
// panic.
func (s *Store) WithTx(fn func(*sql.Tx) error) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compress applies the configured codec to a detail payload and names
// the codec used.
func (s *Store) compress(data []byte) ([]byte, string) {
	if len(data) == 0 || s.enc == nil {
		return data, codecNone
	}
	return s.enc.EncodeAll(data, nil), codecZstd
}

// decompress reverses compress for a stored payload.
func (s *Store) decompress(data []byte, codec string) ([]byte, error) {
	if codec != codecZstd || len(data) == 0 {
		return data, nil
	}
	if s.dec == nil {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		s.dec = dec
	}
	return s.dec.DecodeAll(data, nil)
}

const (
	codecNone = "none"
	codecZstd = "zstd"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
