// internal/store/licenses.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/models"

	"github.com/lib/pq"
)

// ErrTransitionConflict is returned when a per-license compare-and-swap
// loses against a concurrent sweep. The caller re-evaluates on its next run.
var ErrTransitionConflict = errors.New("concurrent transition conflict")

const licenseColumns = `license_key, email, name, tier, status, expires_at,
	last_transition_at, notified_states, source_payment_id, notes, created_at`

// LicenseStore is the durable source of truth for license status and expiry.
type LicenseStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewLicenseStore(db *sql.DB, log logger.Logger) *LicenseStore {
	return &LicenseStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "license-store"}),
	}
}

// IssueParams carries everything issuance needs. SourcePaymentID, when set,
// is the external idempotency key: replays return the existing license.
type IssueParams struct {
	Email           string
	Name            string
	Tier            string
	Days            int
	SourcePaymentID string
	Notes           string
	Now             time.Time
}

// Issue creates a license, or returns the existing one when the same
// SourcePaymentID was seen before. The bool result reports whether a new
// row was created.
func (s *LicenseStore) Issue(ctx context.Context, p IssueParams) (*models.License, bool, error) {
	if p.SourcePaymentID != "" {
		existing, err := s.GetBySourcePaymentID(ctx, p.SourcePaymentID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			s.logger.Info("duplicate issuance resolved to existing license", map[string]interface{}{
				"sourcePaymentId": p.SourcePaymentID,
				"key":             existing.Key,
			})
			return existing, false, nil
		}
	}

	lic := &models.License{
		Key:              GenerateKey(),
		Email:            p.Email,
		Name:             p.Name,
		Tier:             p.Tier,
		Status:           models.StatusActive,
		ExpiresAt:        p.Now.AddDate(0, 0, p.Days),
		LastTransitionAt: p.Now,
		NotifiedStates:   []string{},
		SourcePaymentID:  p.SourcePaymentID,
		Notes:            p.Notes,
		CreatedAt:        p.Now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO licenses (license_key, email, name, tier, status, expires_at,
			last_transition_at, notified_states, source_payment_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		lic.Key, lic.Email, lic.Name, lic.Tier, lic.Status, lic.ExpiresAt,
		lic.LastTransitionAt, pq.Array(lic.NotifiedStates),
		nullableString(lic.SourcePaymentID), lic.Notes, lic.CreatedAt,
	)
	if err != nil {
		// The unique partial index on source_payment_id closes the race
		// between the pre-check and the insert under webhook replay.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" && p.SourcePaymentID != "" {
			existing, getErr := s.GetBySourcePaymentID(ctx, p.SourcePaymentID)
			if getErr != nil {
				return nil, false, getErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to insert license: %w", err)
	}

	s.logger.Info("license issued", map[string]interface{}{
		"key":     lic.Key,
		"email":   lic.Email,
		"tier":    lic.Tier,
		"expires": lic.ExpiresAt.Format("2006-01-02"),
	})
	return lic, true, nil
}

// GetByKey returns nil when the key is unknown; the validate path treats
// that as a normal answer, not an error.
func (s *LicenseStore) GetByKey(ctx context.Context, key string) (*models.License, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE license_key = $1`, key)
	return scanLicense(row)
}

func (s *LicenseStore) GetBySourcePaymentID(ctx context.Context, paymentID string) (*models.License, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+licenseColumns+` FROM licenses WHERE source_payment_id = $1`, paymentID)
	return scanLicense(row)
}

// ListNonTerminal returns every license the sweep still has to evaluate.
func (s *LicenseStore) ListNonTerminal(ctx context.Context) ([]*models.License, error) {
	return s.list(ctx, `SELECT `+licenseColumns+` FROM licenses
		WHERE status NOT IN ($1, $2) ORDER BY created_at ASC`,
		models.StatusRevoked, models.StatusDeleted)
}

// List returns all licenses, newest first.
func (s *LicenseStore) List(ctx context.Context) ([]*models.License, error) {
	return s.list(ctx, `SELECT `+licenseColumns+` FROM licenses ORDER BY created_at DESC`)
}

func (s *LicenseStore) list(ctx context.Context, query string, args ...interface{}) ([]*models.License, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query licenses: %w", err)
	}
	defer rows.Close()

	var licenses []*models.License
	for rows.Next() {
		lic, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, lic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating licenses: %w", err)
	}
	return licenses, nil
}

// Extend pushes expiry forward from max(expiresAt, now), resets the license
// to active and clears the notified set so the next cycle warns again.
// Deleted and revoked licenses are not extendable.
func (s *LicenseStore) Extend(ctx context.Context, key string, days int, now time.Time) (*models.License, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE licenses
		SET expires_at = GREATEST(expires_at, $3) + make_interval(days => $2),
			status = $4,
			notified_states = '{}',
			last_transition_at = $3
		WHERE license_key = $1 AND status NOT IN ($5, $6)
		RETURNING `+licenseColumns,
		key, days, now, models.StatusActive, models.StatusRevoked, models.StatusDeleted,
	)
	lic, err := scanLicense(row)
	if err != nil {
		return nil, err
	}
	if lic == nil {
		return nil, nil
	}
	s.logger.Info("license extended", map[string]interface{}{
		"key":       key,
		"days":      days,
		"newExpiry": lic.ExpiresAt.Format(time.RFC3339),
	})
	return lic, nil
}

// Revoke is immediate and terminal. Revoking an already-revoked key is a
// no-op that still reports success, so admin retries stay harmless.
func (s *LicenseStore) Revoke(ctx context.Context, key, reason string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE licenses
		SET status = $3, notes = $2, last_transition_at = $4
		WHERE license_key = $1 AND status NOT IN ($3, $5)`,
		key, reason, models.StatusRevoked, now, models.StatusDeleted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to revoke license: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.Info("license revoked", map[string]interface{}{"key": key, "reason": reason})
	}
	return n > 0, nil
}

// TransitionAndEnqueue applies one lifecycle decision atomically: a
// compare-and-swap on (status, last_transition_at) guards against a racing
// sweep, the optional notification insert rides the same transaction, and
// purge clears the holder's build history on the way to deleted. A lost CAS
// returns ErrTransitionConflict and leaves nothing behind.
func (s *LicenseStore) TransitionAndEnqueue(ctx context.Context, lic *models.License, target string, job *models.NotificationJob, purge bool, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transition: %w", err)
	}
	defer tx.Rollback()

	notified := lic.NotifiedStates
	if job != nil {
		notified = append(append([]string{}, notified...), target)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE licenses
		SET status = $3, last_transition_at = $4, notified_states = $5
		WHERE license_key = $1 AND status = $2 AND last_transition_at = $6`,
		lic.Key, lic.Status, target, now, pq.Array(notified), lic.LastTransitionAt,
	)
	if err != nil {
		return fmt.Errorf("failed to transition license: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTransitionConflict
	}

	if job != nil {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notification_jobs (id, type, to_email, name, payload, status, retries, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, $7)`,
			job.ID, job.Type, job.ToEmail, job.Name, []byte(job.Payload), models.JobPending, now,
		); err != nil {
			return fmt.Errorf("failed to enqueue notification: %w", err)
		}
	}

	if purge {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM build_history WHERE license_key = $1`, lic.Key); err != nil {
			return fmt.Errorf("failed to purge build history: %w", err)
		}
	}

	return tx.Commit()
}

// Stats summarizes license counts for the admin dashboard.
type LicenseStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	ByTier   map[string]int `json:"byTier"` // active licenses only
}

func (s *LicenseStore) Stats(ctx context.Context) (*LicenseStats, error) {
	stats := &LicenseStats{
		ByStatus: map[string]int{},
		ByTier:   map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM licenses GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query license stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tierRows, err := s.db.QueryContext(ctx,
		`SELECT tier, COUNT(*) FROM licenses WHERE status = $1 GROUP BY tier`,
		models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query tier stats: %w", err)
	}
	defer tierRows.Close()
	for tierRows.Next() {
		var tier string
		var count int
		if err := tierRows.Scan(&tier, &count); err != nil {
			return nil, err
		}
		stats.ByTier[tier] = count
	}
	return stats, tierRows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLicense(row rowScanner) (*models.License, error) {
	var lic models.License
	var notified pq.StringArray
	var paymentID sql.NullString

	err := row.Scan(
		&lic.Key, &lic.Email, &lic.Name, &lic.Tier, &lic.Status,
		&lic.ExpiresAt, &lic.LastTransitionAt, &notified,
		&paymentID, &lic.Notes, &lic.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan license: %w", err)
	}
	lic.NotifiedStates = []string(notified)
	lic.SourcePaymentID = paymentID.String
	return &lic, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
