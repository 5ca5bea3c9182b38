// internal/lifecycle/sweeper.go
package lifecycle

import (
	"context"
	"errors"
	"time"

	"builder-licensing/internal/audit"
	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/common/observability"
	"builder-licensing/internal/models"
	"builder-licensing/internal/notify"
	"builder-licensing/internal/store"
)

// Licenses is the slice of the license store the sweeper needs.
type Licenses interface {
	ListNonTerminal(ctx context.Context) ([]*models.License, error)
	TransitionAndEnqueue(ctx context.Context, lic *models.License, target string, job *models.NotificationJob, purge bool, now time.Time) error
}

// Invalidator drops a license from the validation cache after its status
// changes. Optional; validation falls back to the database either way.
type Invalidator interface {
	Invalidate(ctx context.Context, key string)
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Scanned      int `json:"scanned"`
	Transitioned int `json:"transitioned"`
	Enqueued     int `json:"enqueued"`
	Purged       int `json:"purged"`
	Conflicts    int `json:"conflicts"`
}

// Sweeper walks every non-terminal license and converges it to the status
// the clock says it should hold, enqueueing the owed notification in the
// same transaction.
type Sweeper struct {
	licenses Licenses
	windows  Windows
	audit    audit.Recorder
	cache    Invalidator
	obs      *observability.Observability
	logger   logger.Logger
}

func NewSweeper(licenses Licenses, windows Windows, rec audit.Recorder, cache Invalidator, obs *observability.Observability, log logger.Logger) *Sweeper {
	return &Sweeper{
		licenses: licenses,
		windows:  windows,
		audit:    rec,
		cache:    cache,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "sweeper"}),
	}
}

// Sweep runs one full pass. Losing a compare-and-swap race on an individual
// license is not an error; another writer moved it first and the next sweep
// will converge it.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	start := time.Now()
	licenses, err := s.licenses.ListNonTerminal(ctx)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Scanned: len(licenses)}
	for _, lic := range licenses {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.converge(ctx, lic, now, result); err != nil {
			if errors.Is(err, store.ErrTransitionConflict) {
				result.Conflicts++
				continue
			}
			s.logger.WithError(err).Error("failed to converge license", map[string]interface{}{
				"key":    lic.Key,
				"status": lic.Status,
			})
		}
	}

	s.obs.RecordSweepDuration(ctx, time.Since(start))
	s.logger.Info("sweep complete", map[string]interface{}{
		"scanned":      result.Scanned,
		"transitioned": result.Transitioned,
		"enqueued":     result.Enqueued,
		"purged":       result.Purged,
		"conflicts":    result.Conflicts,
	})
	return result, nil
}

func (s *Sweeper) converge(ctx context.Context, lic *models.License, now time.Time, result *SweepResult) error {
	decision := Evaluate(lic, now, s.windows)
	if !decision.Actionable(lic.Status) {
		return nil
	}

	job, err := s.buildJob(lic, decision, now)
	if err != nil {
		return err
	}

	if err := s.licenses.TransitionAndEnqueue(ctx, lic, decision.Target, job, decision.Purge, now); err != nil {
		return err
	}

	if decision.Target != lic.Status {
		result.Transitioned++
		s.obs.RecordTransition(ctx, decision.Target)
		s.audit.Transition(ctx, lic.Key, lic.Status, decision.Target, now)
		if s.cache != nil {
			s.cache.Invalidate(ctx, lic.Key)
		}
	}
	if job != nil {
		result.Enqueued++
		s.obs.RecordEnqueued(ctx, job.Type)
	}
	if decision.Purge {
		result.Purged++
	}

	s.logger.Info("license converged", map[string]interface{}{
		"key":  lic.Key,
		"from": lic.Status,
		"to":   decision.Target,
	})
	return nil
}

// buildJob materializes the notification a decision owes, if any.
func (s *Sweeper) buildJob(lic *models.License, decision Decision, now time.Time) (*models.NotificationJob, error) {
	var payload notify.Payload
	switch decision.Notify {
	case "":
		return nil, nil
	case models.NotifyExpiryWarning:
		payload = notify.ExpiryWarningPayload{
			DaysRemaining: models.DaysRemaining(lic.ExpiresAt, now),
		}
	case models.NotifyFinalWarning:
		payload = notify.FinalWarningPayload{
			DaysOver: -models.DaysRemaining(lic.ExpiresAt, now),
		}
	default:
		return nil, errors.New("unknown lifecycle notification type " + decision.Notify)
	}
	return notify.NewJob(lic.Email, lic.Name, payload, now)
}
