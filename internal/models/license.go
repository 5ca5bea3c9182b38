// internal/models/license.go
package models

import (
	"math"
	"time"
)

// License status values. Revoked and deleted are terminal.
const (
	StatusActive  = "active"
	StatusWarned  = "warned"
	StatusGrace   = "grace"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
	StatusDeleted = "deleted"
)

// License tiers. Tier affects quota elsewhere; the lifecycle never touches it.
const (
	TierStarter = "starter"
	TierPro     = "pro"
	TierMaster  = "master"
)

// License is the unit of access, identified by an opaque key.
type License struct {
	Key              string    `json:"key"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Tier             string    `json:"tier"`
	Status           string    `json:"status"`
	ExpiresAt        time.Time `json:"expiresAt"`
	LastTransitionAt time.Time `json:"lastTransitionAt"`
	NotifiedStates   []string  `json:"notifiedStates"`
	SourcePaymentID  string    `json:"sourcePaymentId,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Terminal reports whether the license can never transition again.
func (l *License) Terminal() bool {
	return l.Status == StatusRevoked || l.Status == StatusDeleted
}

// Usable reports whether the key should validate. Grace-period licenses
// still validate; expired, revoked and deleted ones do not.
func (l *License) Usable() bool {
	switch l.Status {
	case StatusActive, StatusWarned, StatusGrace:
		return true
	}
	return false
}

// Notified reports whether a notification was already enqueued for the
// given state in the current renewal cycle.
func (l *License) Notified(state string) bool {
	for _, s := range l.NotifiedStates {
		if s == state {
			return true
		}
	}
	return false
}

// DaysRemaining is the whole number of days between now and expiry,
// floored (so 36 hours left is 1 day, and 12 hours past expiry is -1).
func DaysRemaining(expiresAt, now time.Time) int {
	return int(math.Floor(expiresAt.Sub(now).Hours() / 24))
}

// ValidTier reports whether tier is one of the known plans.
func ValidTier(tier string) bool {
	switch tier {
	case TierStarter, TierPro, TierMaster:
		return true
	}
	return false
}
