// internal/store/queue.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"builder-licensing/internal/common/logger"
	"builder-licensing/internal/models"
)

// Resolve outcomes.
const (
	OutcomeSent  = "sent"
	OutcomeRetry = "retry"
)

var ErrJobNotPending = errors.New("notification job not pending")

const jobColumns = `id, type, to_email, name, payload, status, retries, created_at, claimed_at, sent_at`

// Queue is the durable notification job table. Enqueue never deduplicates;
// that is the evaluator's job via notified_states.
type Queue struct {
	db     *sql.DB
	logger logger.Logger
}

func NewQueue(db *sql.DB, log logger.Logger) *Queue {
	return &Queue{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "notify-queue"}),
	}
}

// Enqueue appends a pending job. It always succeeds for well-formed input.
func (q *Queue) Enqueue(ctx context.Context, job *models.NotificationJob) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO notification_jobs (id, type, to_email, name, payload, status, retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)`,
		job.ID, job.Type, job.ToEmail, job.Name, []byte(job.Payload),
		models.JobPending, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	q.logger.Info("notification queued", map[string]interface{}{
		"id":   job.ID,
		"type": job.Type,
		"to":   job.ToEmail,
	})
	return nil
}

// ClaimPending atomically claims up to limit pending jobs, oldest first.
// FOR UPDATE SKIP LOCKED keeps concurrent drainers from claiming the same
// row; the claimed_at stamp acts as a lease so jobs from a crashed drainer
// become claimable again after the lease passes.
func (q *Queue) ClaimPending(ctx context.Context, limit, maxRetries int, lease time.Duration, now time.Time) ([]*models.NotificationJob, error) {
	rows, err := q.db.QueryContext(ctx, `
		UPDATE notification_jobs SET claimed_at = $4
		WHERE id IN (
			SELECT id FROM notification_jobs
			WHERE status = $1 AND retries < $2
				AND (claimed_at IS NULL OR claimed_at < $5)
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		models.JobPending, maxRetries, limit, now, now.Add(-lease),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	defer rows.Close()

	jobs, err := scanJobs(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not guarantee order; restore FIFO fairness here.
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// PeekPending lists claimable jobs without claiming them. Used by the queue
// inspection endpoint.
func (q *Queue) PeekPending(ctx context.Context, limit, maxRetries int) ([]*models.NotificationJob, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM notification_jobs
		WHERE status = $1 AND retries < $2
		ORDER BY created_at ASC
		LIMIT $3`,
		models.JobPending, maxRetries, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// Resolve finishes one claimed job. OutcomeSent is terminal; OutcomeRetry
// increments the counter and flips the job to dead once the budget is
// spent. Dead jobs are kept for audit and never retried again.
func (q *Queue) Resolve(ctx context.Context, id, outcome string, maxRetries int, now time.Time) (*models.NotificationJob, error) {
	var row *sql.Row
	switch outcome {
	case OutcomeSent:
		row = q.db.QueryRowContext(ctx, `
			UPDATE notification_jobs
			SET status = $2, sent_at = $3, claimed_at = NULL
			WHERE id = $1 AND status = $4
			RETURNING `+jobColumns,
			id, models.JobSent, now, models.JobPending,
		)
	case OutcomeRetry:
		row = q.db.QueryRowContext(ctx, `
			UPDATE notification_jobs
			SET retries = retries + 1,
				claimed_at = NULL,
				status = CASE WHEN retries + 1 >= $2 THEN $3 ELSE $4 END
			WHERE id = $1 AND status = $4
			RETURNING `+jobColumns,
			id, maxRetries, models.JobDead, models.JobPending,
		)
	default:
		return nil, fmt.Errorf("unknown resolve outcome %q", outcome)
	}

	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotPending
	}

	if job.Status == models.JobDead {
		q.logger.Error("notification job dead after exhausting retries", map[string]interface{}{
			"id":      job.ID,
			"type":    job.Type,
			"to":      job.ToEmail,
			"retries": job.Retries,
		})
	}
	return job, nil
}

// Stats reports queue depth for the admin dashboard.
type QueueStats struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Dead    int `json:"dead"`
}

func (q *Queue) Stats(ctx context.Context) (*QueueStats, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM notification_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue stats: %w", err)
	}
	defer rows.Close()

	var stats QueueStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case models.JobPending:
			stats.Pending = count
		case models.JobSent:
			stats.Sent = count
		case models.JobDead:
			stats.Dead = count
		}
	}
	return &stats, rows.Err()
}

func scanJobs(rows *sql.Rows) ([]*models.NotificationJob, error) {
	var jobs []*models.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row rowScanner) (*models.NotificationJob, error) {
	var job models.NotificationJob
	var payload []byte
	var claimedAt, sentAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.Type, &job.ToEmail, &job.Name, &payload,
		&job.Status, &job.Retries, &job.CreatedAt, &claimedAt, &sentAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	job.Payload = payload
	if claimedAt.Valid {
		t := claimedAt.Time
		job.ClaimedAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		job.SentAt = &t
	}
	return &job, nil
}
