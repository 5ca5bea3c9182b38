// internal/notify/drainer_test.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

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

// fakeQueue mirrors the SQL queue's resolve accounting in memory.
type fakeQueue struct {
	jobs       map[string]*models.NotificationJob
	maxRetries int
	claimErr   error
}

func newFakeQueue(jobs ...*models.NotificationJob) *fakeQueue {
	f := &fakeQueue{jobs: map[string]*models.NotificationJob{}, maxRetries: 3}
	for _, j := range jobs {
		f.jobs[j.ID] = j
	}
	return f
}

func (f *fakeQueue) ClaimPending(ctx context.Context, limit, maxRetries int, lease time.Duration, now time.Time) ([]*models.NotificationJob, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	var out []*models.NotificationJob
	for _, j := range f.jobs {
		if j.Status == models.JobPending && j.Retries < maxRetries && len(out) < limit {
			claimed := *j
			out = append(out, &claimed)
		}
	}
	return out, nil
}

func (f *fakeQueue) Resolve(ctx context.Context, id, outcome string, maxRetries int, now time.Time) (*models.NotificationJob, error) {
	j, ok := f.jobs[id]
	if !ok || j.Status != models.JobPending {
		return nil, store.ErrJobNotPending
	}
	switch outcome {
	case store.OutcomeSent:
		j.Status = models.JobSent
		j.SentAt = &now
	case store.OutcomeRetry:
		j.Retries++
		if j.Retries >= maxRetries {
			j.Status = models.JobDead
		}
	default:
		return nil, fmt.Errorf("unknown resolve outcome %q", outcome)
	}
	copied := *j
	return &copied, nil
}

// fakeSender records deliveries and fails the addresses told to fail.
type fakeSender struct {
	sent    []string
	failing map[string]bool
}

func (f *fakeSender) Send(ctx context.Context, to, subject, html string) error {
	if f.failing[to] {
		return errors.New("mailbox on fire")
	}
	f.sent = append(f.sent, to)
	return nil
}

// fakeAlerter records dead-job alerts.
type fakeAlerter struct {
	alerted []string
}

func (f *fakeAlerter) DeadJob(ctx context.Context, job *models.NotificationJob) {
	f.alerted = append(f.alerted, job.ID)
}

func pendingJob(id, email string, retries int) *models.NotificationJob {
	payload, _ := json.Marshal(WelcomePayload{LicenseKey: "BLDR-AAAA-BBBB-CCCC", Tier: "pro"})
	return &models.NotificationJob{
		ID:        id,
		Type:      models.NotifyWelcome,
		ToEmail:   email,
		Name:      "Smith",
		Payload:   payload,
		Status:    models.JobPending,
		Retries:   retries,
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

func newTestDrainer(t *testing.T, q JobQueue, sender Sender, alerter Alerter) *Drainer {
	return NewDrainer(q, sender, &Renderer{AppURL: "https://forge.example", PaymentURL: "https://forge.example/pay"},
		alerter, observability.New("drainer-test"), logger.NewTestLogger(t), DrainerConfig{
			BatchSize:   50,
			MaxRetries:  3,
			ClaimLease:  10 * time.Minute,
			SendTimeout: 2 * time.Second,
		})
}

// ==========================
// Core Functionality Tests
// ==========================

func TestDrainer_SendsAndResolves(t *testing.T) {
	q := newFakeQueue(
		pendingJob("job-1", "a@forge.example", 0),
		pendingJob("job-2", "b@forge.example", 0),
	)
	sender := &fakeSender{}
	d := newTestDrainer(t, q, sender, nil)

	result, err := d.Drain(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Claimed)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 0, result.Retried)
	assert.ElementsMatch(t, []string{"a@forge.example", "b@forge.example"}, sender.sent)
	assert.Equal(t, models.JobSent, q.jobs["job-1"].Status)
	assert.NotNil(t, q.jobs["job-1"].SentAt)
}

func TestDrainer_FailureCountsAgainstRetries(t *testing.T) {
	q := newFakeQueue(pendingJob("job-1", "broken@forge.example", 0))
	sender := &fakeSender{failing: map[string]bool{"broken@forge.example": true}}
	d := newTestDrainer(t, q, sender, nil)

	result, err := d.Drain(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Retried)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, models.JobPending, q.jobs["job-1"].Status)
	assert.Equal(t, 1, q.jobs["job-1"].Retries)
}

func TestDrainer_ExhaustedRetriesGoDeadAndAlert(t *testing.T) {
	q := newFakeQueue(pendingJob("job-1", "broken@forge.example", 2))
	sender := &fakeSender{failing: map[string]bool{"broken@forge.example": true}}
	alerter := &fakeAlerter{}
	d := newTestDrainer(t, q, sender, alerter)

	result, err := d.Drain(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Dead)
	assert.Equal(t, models.JobDead, q.jobs["job-1"].Status)
	assert.Equal(t, []string{"job-1"}, alerter.alerted)

	// Dead jobs are no longer claimable.
	again, err := d.Drain(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Claimed)
}

func TestDrainer_OneBadJobDoesNotBlockTheBatch(t *testing.T) {
	q := newFakeQueue(
		pendingJob("job-1", "broken@forge.example", 0),
		pendingJob("job-2", "fine@forge.example", 0),
	)
	sender := &fakeSender{failing: map[string]bool{"broken@forge.example": true}}
	d := newTestDrainer(t, q, sender, nil)

	result, err := d.Drain(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Retried)
	assert.Equal(t, models.JobSent, q.jobs["job-2"].Status)
}

func TestDrainer_CorruptPayloadCountsAsRetry(t *testing.T) {
	bad := pendingJob("job-1", "a@forge.example", 0)
	bad.Type = "carrier_pigeon"
	q := newFakeQueue(bad)
	sender := &fakeSender{}
	d := newTestDrainer(t, q, sender, nil)

	result, err := d.Drain(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Retried)
	assert.Empty(t, sender.sent)
}

func TestDrainer_ClaimErrorSurfaces(t *testing.T) {
	q := newFakeQueue()
	q.claimErr = errors.New("database down")
	d := newTestDrainer(t, q, &fakeSender{}, nil)

	_, err := d.Drain(context.Background(), time.Now())
	assert.Error(t, err)
}
