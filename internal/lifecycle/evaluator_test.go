// internal/lifecycle/evaluator_test.go
package lifecycle

import (
	"testing"
	"time"

	"builder-licensing/internal/models"

	"github.com/stretchr/testify/assert"
)

// ==========================
// Test Helper Functions
// ==========================

func testWindows() Windows {
	return WindowsFromDays(10, 15, 15)
}

func createLicense(status string, expiresAt time.Time, notified ...string) *models.License {
	return &models.License{
		Key:              "BLDR-TEST-TEST-TEST",
		Email:            "smith@forge.example",
		Name:             "Smith",
		Tier:             models.TierPro,
		Status:           status,
		ExpiresAt:        expiresAt,
		LastTransitionAt: expiresAt.Add(-365 * 24 * time.Hour),
		NotifiedStates:   notified,
	}
}

// expiringIn returns an expiry n days from now (negative n means the
// license expired n days ago).
func expiringIn(now time.Time, n int) time.Time {
	return now.Add(time.Duration(n) * 24 * time.Hour)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestEvaluate_Timeline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		status       string
		daysToExpiry int
		notified     []string
		expected     Decision
	}{
		{
			name:         "well before warn window stays active",
			status:       models.StatusActive,
			daysToExpiry: 30,
			expected:     Decision{Target: models.StatusActive},
		},
		{
			name:         "day 21 of 30, nine days left, enters warned with notification",
			status:       models.StatusActive,
			daysToExpiry: 9,
			expected:     Decision{Target: models.StatusWarned, Notify: models.NotifyExpiryWarning},
		},
		{
			name:         "exactly at warn boundary counts as warned",
			status:       models.StatusActive,
			daysToExpiry: 10,
			expected:     Decision{Target: models.StatusWarned, Notify: models.NotifyExpiryWarning},
		},
		{
			name:         "already warned and notified, no duplicate notification",
			status:       models.StatusWarned,
			daysToExpiry: 5,
			notified:     []string{models.StatusWarned},
			expected:     Decision{Target: models.StatusWarned},
		},
		{
			name:         "day after expiry enters grace silently",
			status:       models.StatusWarned,
			daysToExpiry: -1,
			expected:     Decision{Target: models.StatusGrace},
		},
		{
			name:         "exactly at the end of grace still counts as grace",
			status:       models.StatusGrace,
			daysToExpiry: -15,
			expected:     Decision{Target: models.StatusGrace},
		},
		{
			name:         "sixteen days past expiry, grace over, expired with final warning",
			status:       models.StatusGrace,
			daysToExpiry: -16,
			expected:     Decision{Target: models.StatusExpired, Notify: models.NotifyFinalWarning},
		},
		{
			name:         "expired and already notified stays put",
			status:       models.StatusExpired,
			daysToExpiry: -20,
			notified:     []string{models.StatusWarned, models.StatusExpired},
			expected:     Decision{Target: models.StatusExpired},
		},
		{
			name:         "exactly at the end of the final window is still expired, not deleted",
			status:       models.StatusExpired,
			daysToExpiry: -30,
			notified:     []string{models.StatusWarned, models.StatusExpired},
			expected:     Decision{Target: models.StatusExpired},
		},
		{
			name:         "thirty one days past expiry, deletion with purge",
			status:       models.StatusExpired,
			daysToExpiry: -31,
			notified:     []string{models.StatusWarned, models.StatusExpired},
			expected:     Decision{Target: models.StatusDeleted, Purge: true},
		},
		{
			name:         "sweeper downtime: active license jumps straight to expired",
			status:       models.StatusActive,
			daysToExpiry: -20,
			expected:     Decision{Target: models.StatusExpired, Notify: models.NotifyFinalWarning},
		},
		{
			name:         "revoked is pinned no matter how old",
			status:       models.StatusRevoked,
			daysToExpiry: -400,
			expected:     Decision{Target: models.StatusRevoked},
		},
		{
			name:         "deleted is pinned",
			status:       models.StatusDeleted,
			daysToExpiry: -400,
			expected:     Decision{Target: models.StatusDeleted},
		},
		{
			name:         "renewal cleared notified states, warning fires again next cycle",
			status:       models.StatusActive,
			daysToExpiry: 3,
			notified:     nil,
			expected:     Decision{Target: models.StatusWarned, Notify: models.NotifyExpiryWarning},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lic := createLicense(tt.status, expiringIn(now, tt.daysToExpiry), tt.notified...)
			got := Evaluate(lic, now, testWindows())
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lic := createLicense(models.StatusActive, expiringIn(now, 5))

	first := Evaluate(lic, now, testWindows())
	assert.Equal(t, models.StatusWarned, first.Target)
	assert.Equal(t, models.NotifyExpiryWarning, first.Notify)

	// Apply the decision the way the store would, then evaluate again at
	// the same instant: the second pass must be a no-op.
	lic.Status = first.Target
	lic.NotifiedStates = append(lic.NotifiedStates, first.Target)

	second := Evaluate(lic, now, testWindows())
	assert.Equal(t, models.StatusWarned, second.Target)
	assert.Empty(t, second.Notify)
	assert.False(t, second.Actionable(lic.Status))
}

func TestEvaluate_GraceKeepsLicenseUsable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lic := createLicense(models.StatusWarned, expiringIn(now, -3))

	d := Evaluate(lic, now, testWindows())
	assert.Equal(t, models.StatusGrace, d.Target)
	assert.Empty(t, d.Notify)

	lic.Status = d.Target
	assert.True(t, lic.Usable())
}

func TestDecision_Actionable(t *testing.T) {
	assert.True(t, Decision{Target: models.StatusWarned, Notify: models.NotifyExpiryWarning}.Actionable(models.StatusActive))
	assert.True(t, Decision{Target: models.StatusWarned, Notify: models.NotifyExpiryWarning}.Actionable(models.StatusWarned))
	assert.True(t, Decision{Target: models.StatusGrace}.Actionable(models.StatusWarned))
	assert.False(t, Decision{Target: models.StatusActive}.Actionable(models.StatusActive))
}
