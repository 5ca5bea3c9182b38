// internal/lifecycle/sweeper_test.go
package lifecycle

import (
	"context"
	"testing"
	"time"

	"builder-licensing/internal/audit"
	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/common/observability"
	"builder-licensing/internal/models"
	"builder-licensing/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// fakeLicenses applies transitions in memory with the same semantics the
// SQL store implements: CAS on (status, last_transition_at), notified
// append only when a job rides along, purge flag tracked per key.
type fakeLicenses struct {
	licenses map[string]*models.License
	jobs     []*models.NotificationJob
	purged   map[string]int
	conflict map[string]bool // keys whose first CAS should lose
}

func newFakeLicenses(lics ...*models.License) *fakeLicenses {
	f := &fakeLicenses{
		licenses: map[string]*models.License{},
		purged:   map[string]int{},
		conflict: map[string]bool{},
	}
	for _, l := range lics {
		f.licenses[l.Key] = l
	}
	return f
}

func (f *fakeLicenses) ListNonTerminal(ctx context.Context) ([]*models.License, error) {
	var out []*models.License
	for _, l := range f.licenses {
		if !l.Terminal() {
			copied := *l
			copied.NotifiedStates = append([]string{}, l.NotifiedStates...)
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeLicenses) TransitionAndEnqueue(ctx context.Context, lic *models.License, target string, job *models.NotificationJob, purge bool, now time.Time) error {
	if f.conflict[lic.Key] {
		delete(f.conflict, lic.Key)
		return store.ErrTransitionConflict
	}
	current := f.licenses[lic.Key]
	if current == nil || current.Status != lic.Status || !current.LastTransitionAt.Equal(lic.LastTransitionAt) {
		return store.ErrTransitionConflict
	}
	current.Status = target
	current.LastTransitionAt = now
	if job != nil {
		current.NotifiedStates = append(current.NotifiedStates, target)
		f.jobs = append(f.jobs, job)
	}
	if purge {
		f.purged[lic.Key]++
	}
	return nil
}

func newTestSweeper(t *testing.T, f *fakeLicenses) *Sweeper {
	return NewSweeper(f, testWindows(), audit.NopRecorder{}, nil,
		observability.New("sweeper-test"), logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestSweeper_TransitionsAndEnqueues(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	warned := createLicense(models.StatusActive, expiringIn(now, 5))
	warned.Key = "BLDR-AAAA-AAAA-AAAA"
	fresh := createLicense(models.StatusActive, expiringIn(now, 200))
	fresh.Key = "BLDR-BBBB-BBBB-BBBB"

	f := newFakeLicenses(warned, fresh)
	s := newTestSweeper(t, f)

	result, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, 1, result.Enqueued)
	assert.Equal(t, 0, result.Conflicts)

	assert.Equal(t, models.StatusWarned, f.licenses[warned.Key].Status)
	assert.Equal(t, models.StatusActive, f.licenses[fresh.Key].Status)

	require.Len(t, f.jobs, 1)
	assert.Equal(t, models.NotifyExpiryWarning, f.jobs[0].Type)
	assert.Equal(t, warned.Email, f.jobs[0].ToEmail)
}

func TestSweeper_DoubleSweepIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lic := createLicense(models.StatusActive, expiringIn(now, 5))

	f := newFakeLicenses(lic)
	s := newTestSweeper(t, f)

	first, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Transitioned)
	assert.Equal(t, 1, first.Enqueued)

	second, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Transitioned)
	assert.Equal(t, 0, second.Enqueued)
	assert.Len(t, f.jobs, 1)
}

func TestSweeper_PurgesOnDeletion(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lic := createLicense(models.StatusExpired, expiringIn(now, -45),
		models.StatusWarned, models.StatusExpired)

	f := newFakeLicenses(lic)
	s := newTestSweeper(t, f)

	result, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, 1, result.Purged)
	assert.Equal(t, 0, result.Enqueued)
	assert.Equal(t, models.StatusDeleted, f.licenses[lic.Key].Status)
	assert.Equal(t, 1, f.purged[lic.Key])

	// Terminal now: another sweep never touches it or purges again.
	again, err := s.Sweep(context.Background(), now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, again.Scanned)
	assert.Equal(t, 1, f.purged[lic.Key])
}

func TestSweeper_LostRaceIsNotAnError(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lic := createLicense(models.StatusActive, expiringIn(now, 5))

	f := newFakeLicenses(lic)
	f.conflict[lic.Key] = true
	s := newTestSweeper(t, f)

	result, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)
	assert.Equal(t, 0, result.Transitioned)

	// The retry on the next pass wins.
	result, err = s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
}

func TestSweeper_SkipsRevokedEvenWhenOverdue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	revoked := createLicense(models.StatusRevoked, expiringIn(now, -100))

	f := newFakeLicenses(revoked)
	s := newTestSweeper(t, f)

	result, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
	assert.Equal(t, models.StatusRevoked, f.licenses[revoked.Key].Status)
}
