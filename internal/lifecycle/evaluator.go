// internal/lifecycle/evaluator.go
package lifecycle

import (
	"time"

	"builder-licensing/internal/models"
)

// Windows are the lifecycle thresholds, expressed as distances from expiry
// rather than absolute dates. That makes evaluation idempotent: a sweeper
// that was down for a week converges every license to the same status a
// continuously running one would have.
type Windows struct {
	// Warn starts this long before expiry.
	Warn time.Duration
	// Grace extends usability this long past expiry.
	Grace time.Duration
	// Final is how long after the grace period ends an expired license is
	// retained before deletion.
	Final time.Duration
}

// WindowsFromDays builds Windows from whole-day configuration values.
func WindowsFromDays(warn, grace, final int) Windows {
	day := 24 * time.Hour
	return Windows{
		Warn:  time.Duration(warn) * day,
		Grace: time.Duration(grace) * day,
		Final: time.Duration(final) * day,
	}
}

// Decision is the outcome of evaluating one license at one instant.
// Target is the status the license should hold now. Notify is the
// notification type owed for that status, empty when none is due or it was
// already sent this cycle. Purge requests build-history deletion.
type Decision struct {
	Target string
	Notify string
	Purge  bool
}

// Actionable reports whether the decision requires a write: either the
// status must change or a notification is still owed for the current state.
func (d Decision) Actionable(current string) bool {
	return d.Target != current || d.Notify != ""
}

// Evaluate computes where a license belongs on the time axis. It is a pure
// function of the license, the clock and the windows; callers apply the
// decision through the store's compare-and-swap transition.
//
// Terminal licenses (revoked, deleted) always map to themselves with no
// notification, no matter how far past expiry they drift.
func Evaluate(lic *models.License, now time.Time, w Windows) Decision {
	if lic.Terminal() {
		return Decision{Target: lic.Status}
	}

	untilExpiry := lic.ExpiresAt.Sub(now)

	var d Decision
	switch {
	case untilExpiry > w.Warn:
		d = Decision{Target: models.StatusActive}
	case untilExpiry > 0:
		d = Decision{Target: models.StatusWarned, Notify: models.NotifyExpiryWarning}
	case untilExpiry >= -w.Grace:
		d = Decision{Target: models.StatusGrace}
	case untilExpiry >= -(w.Grace + w.Final):
		d = Decision{Target: models.StatusExpired, Notify: models.NotifyFinalWarning}
	default:
		d = Decision{Target: models.StatusDeleted, Purge: true}
	}

	if d.Notify != "" && lic.Notified(d.Target) {
		d.Notify = ""
	}
	return d
}
