// internal/store/history.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"builder-licensing/internal/common/logger"
)

// HistoryEntry is one saved build record for a license holder.
type HistoryEntry struct {
	Entry     string    `json:"entry"`
	CreatedAt time.Time `json:"createdAt"`
}

// HistoryStore keeps the holder's build records; purged irreversibly when a
// license reaches deleted.
type HistoryStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewHistoryStore(db *sql.DB, log logger.Logger) *HistoryStore {
	return &HistoryStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "history-store"}),
	}
}

func (h *HistoryStore) Save(ctx context.Context, licenseKey, entry string, now time.Time) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO build_history (license_key, entry, created_at) VALUES ($1, $2, $3)`,
		licenseKey, entry, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

func (h *HistoryStore) List(ctx context.Context, licenseKey string, limit int) ([]HistoryEntry, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT entry, created_at FROM build_history
		WHERE license_key = $1 ORDER BY created_at DESC LIMIT $2`,
		licenseKey, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Entry, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Purge deletes all history for a key and returns how many rows went away.
func (h *HistoryStore) Purge(ctx context.Context, licenseKey string) (int64, error) {
	res, err := h.db.ExecContext(ctx,
		`DELETE FROM build_history WHERE license_key = $1`, licenseKey)
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	h.logger.Info("build history purged", map[string]interface{}{
		"key":     licenseKey,
		"entries": n,
	})
	return n, nil
}
