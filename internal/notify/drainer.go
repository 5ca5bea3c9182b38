// internal/notify/drainer.go
package notify

import (
	"context"
	"time"

	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/common/observability"
	"builder-licensing/internal/models"
	"builder-licensing/internal/store"
)

// JobQueue is the slice of the queue store the drainer needs.
type JobQueue interface {
	ClaimPending(ctx context.Context, limit, maxRetries int, lease time.Duration, now time.Time) ([]*models.NotificationJob, error)
	Resolve(ctx context.Context, id, outcome string, maxRetries int, now time.Time) (*models.NotificationJob, error)
}

// DrainerConfig holds the per-pass delivery knobs.
type DrainerConfig struct {
	BatchSize   int
	MaxRetries  int
	ClaimLease  time.Duration
	SendTimeout time.Duration
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Dead    int `json:"dead"`
}

// Drainer claims pending notification jobs and delivers them. Each job is
// resolved individually, so one bad recipient never blocks the batch.
type Drainer struct {
	queue    JobQueue
	sender   Sender
	renderer *Renderer
	alerter  Alerter
	obs      *observability.Observability
	logger   logger.Logger
	cfg      DrainerConfig
}

func NewDrainer(queue JobQueue, sender Sender, renderer *Renderer, alerter Alerter, obs *observability.Observability, log logger.Logger, cfg DrainerConfig) *Drainer {
	return &Drainer{
		queue:    queue,
		sender:   sender,
		renderer: renderer,
		alerter:  alerter,
		obs:      obs,
		logger:   log.WithFields(map[string]interface{}{"component": "drainer"}),
		cfg:      cfg,
	}
}

// Drain claims up to BatchSize pending jobs and attempts delivery of each.
// Send failures and render failures both count against the job's retry
// budget; a render failure will never succeed on retry but flipping the job
// to dead through the normal path keeps it visible to operators.
func (d *Drainer) Drain(ctx context.Context, now time.Time) (*DrainResult, error) {
	jobs, err := d.queue.ClaimPending(ctx, d.cfg.BatchSize, d.cfg.MaxRetries, d.cfg.ClaimLease, now)
	if err != nil {
		return nil, err
	}

	result := &DrainResult{Claimed: len(jobs)}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if d.deliver(ctx, job, now) {
			result.Sent++
			continue
		}
		resolved, rerr := d.queue.Resolve(ctx, job.ID, store.OutcomeRetry, d.cfg.MaxRetries, now)
		if rerr != nil {
			d.logger.WithError(rerr).Error("failed to resolve job after delivery failure", map[string]interface{}{
				"jobId": job.ID,
			})
			continue
		}
		if resolved.Status == models.JobDead {
			result.Dead++
			d.obs.RecordDead(ctx, resolved.Type)
			if d.alerter != nil {
				d.alerter.DeadJob(ctx, resolved)
			}
		} else {
			result.Retried++
			d.obs.RecordRetry(ctx, resolved.Type)
		}
	}

	if result.Claimed > 0 {
		d.logger.Info("drain pass complete", map[string]interface{}{
			"claimed": result.Claimed,
			"sent":    result.Sent,
			"retried": result.Retried,
			"dead":    result.Dead,
		})
	}
	return result, nil
}

// deliver renders and sends one job, marking it sent on success. Returns
// whether the job was delivered and resolved as sent.
func (d *Drainer) deliver(ctx context.Context, job *models.NotificationJob, now time.Time) bool {
	subject, body, err := d.renderer.Render(job)
	if err != nil {
		d.logger.WithError(err).Error("failed to render notification", map[string]interface{}{
			"jobId": job.ID,
			"type":  job.Type,
		})
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err = d.sender.Send(sendCtx, job.ToEmail, subject, body)
	cancel()
	if err != nil {
		d.logger.WithError(err).Warn("notification delivery failed", map[string]interface{}{
			"jobId":   job.ID,
			"type":    job.Type,
			"to":      job.ToEmail,
			"retries": job.Retries,
		})
		return false
	}

	if _, err := d.queue.Resolve(ctx, job.ID, store.OutcomeSent, d.cfg.MaxRetries, now); err != nil {
		// The email went out but the row did not flip; the job will be
		// claimed and sent again. At-least-once is the documented contract.
		d.logger.WithError(err).Error("failed to mark job sent", map[string]interface{}{
			"jobId": job.ID,
		})
		return false
	}
	d.obs.RecordSent(ctx, job.Type)
	return true
}
