package checkpoint

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps checkpoints in a single-file database under the state
// directory. last_run is stored as RFC3339 text, last_entry_date as epoch
// seconds (NULL when absent).
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(stateDir string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, "checkpoints.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection sidesteps SQLITE_BUSY between concurrent savers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	version, dirty, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("Checkpoint database ready", "path", dbPath, "schema_version", version, "dirty", dirty)

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Load(feedName string) (*Checkpoint, error) {
	var lastRunText string
	var lastEntryEpoch sql.NullInt64

	err := s.db.QueryRow(`
		SELECT last_run, last_entry_date
		FROM checkpoints
		WHERE feed_name = ?
	`, feedName).Scan(&lastRunText, &lastEntryEpoch)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	lastRun, err := time.Parse(time.RFC3339, lastRunText)
	if err != nil {
		s.logger.Warn("Malformed checkpoint, treating as absent", "feed", feedName, "error", err)
		return nil, nil
	}

	cp := &Checkpoint{LastRun: lastRun}
	if lastEntryEpoch.Valid {
		lastEntryDate := time.Unix(lastEntryEpoch.Int64, 0).UTC()
		cp.LastEntryDate = &lastEntryDate
	}

	return cp, nil
}

func (s *SQLiteStore) Save(feedName string, lastRun time.Time, lastEntryDate *time.Time) error {
	var lastEntryEpoch sql.NullInt64
	if lastEntryDate != nil {
		lastEntryEpoch = sql.NullInt64{Int64: lastEntryDate.Unix(), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO checkpoints (feed_name, last_run, last_entry_date, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (feed_name) DO UPDATE SET
			last_run = excluded.last_run,
			last_entry_date = excluded.last_entry_date,
			updated_at = excluded.updated_at
	`, feedName, lastRun.UTC().Format(time.RFC3339), lastEntryEpoch)

	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
