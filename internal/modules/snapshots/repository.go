// Package snapshots persists the latest optimization result in cache.db
// so the dashboard can show the last run across restarts without
// re-sampling. Payloads are msgpack-encoded blobs keyed by name.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/abidamassi/frontier/internal/modules/optimization"
)

const latestRunKey = "optimizer:latest_run"

// Repository handles snapshot persistence in cache.db.
type Repository struct {
	cacheDB *sql.DB
	log     zerolog.Logger
}

// NewRepository creates a new snapshot repository.
func NewRepository(cacheDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		cacheDB: cacheDB,
		log:     log.With().Str("repo", "snapshots").Logger(),
	}
}

// InitSchema creates the snapshots table if it does not exist.
func (r *Repository) InitSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			key        TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	if _, err := r.cacheDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create snapshots schema: %w", err)
	}
	return nil
}

// SaveLatestRun stores the run summary, replacing any previous one.
func (r *Repository) SaveLatestRun(summary *optimization.RunSummary) error {
	payload, err := msgpack.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode run snapshot: %w", err)
	}

	_, err = r.cacheDB.Exec(`
		INSERT INTO snapshots (key, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, latestRunKey, payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store run snapshot: %w", err)
	}

	r.log.Debug().Str("run_id", summary.RunID).Int("bytes", len(payload)).Msg("Stored run snapshot")
	return nil
}

// LatestRun retrieves the last stored run summary, or nil if no run has
// been persisted yet.
func (r *Repository) LatestRun() (*optimization.RunSummary, error) {
	var payload []byte
	err := r.cacheDB.QueryRow("SELECT payload FROM snapshots WHERE key = ?", latestRunKey).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run snapshot: %w", err)
	}

	var summary optimization.RunSummary
	if err := msgpack.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode run snapshot: %w", err)
	}
	return &summary, nil
}

// Clear removes the stored run snapshot.
func (r *Repository) Clear() error {
	if _, err := r.cacheDB.Exec("DELETE FROM snapshots WHERE key = ?", latestRunKey); err != nil {
		return fmt.Errorf("failed to clear run snapshot: %w", err)
	}
	return nil
}
