// internal/api/queue.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	stderrors "builder-licensing/internal/common/errors"
	"builder-licensing/internal/models"
	"builder-licensing/internal/notify"
	"builder-licensing/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type enqueueRequest struct {
	Type    string          `json:"type"`
	ToEmail string          `json:"toEmail"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// handleEnqueue accepts an internally constructed notification. The payload
// is decoded through the tagged-union types so a malformed body is rejected
// here rather than discovered by the drainer.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeBody(r, enqueueSchema, &req); err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}
	if !models.KnownNotifyType(req.Type) {
		stderrors.WriteHTTP(w, stderrors.NewValidationError("unknown notification type "+req.Type))
		return
	}
	if _, err := notify.UnmarshalPayload(req.Type, req.Payload); err != nil {
		stderrors.WriteHTTP(w, stderrors.NewValidationError(err.Error()))
		return
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	job := &models.NotificationJob{
		ID:        uuid.New().String(),
		Type:      req.Type,
		ToEmail:   req.ToEmail,
		Name:      req.Name,
		Payload:   payload,
		Status:    models.JobPending,
		CreatedAt: s.clock(),
	}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		stderrors.WriteHTTP(w, stderrors.NewStorageUnavailableError(err.Error()))
		return
	}
	s.obs.RecordEnqueued(r.Context(), job.Type)
	writeJSON(w, http.StatusCreated, job)
}

// handlePending lists claimable jobs without claiming them.
func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Lifecycle.DrainBatchSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			stderrors.WriteHTTP(w, stderrors.NewValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	jobs, err := s.queue.PeekPending(r.Context(), limit, s.cfg.Lifecycle.MaxRetries)
	if err != nil {
		stderrors.WriteHTTP(w, stderrors.NewStorageUnavailableError(err.Error()))
		return
	}
	if jobs == nil {
		jobs = []*models.NotificationJob{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

type resolveRequest struct {
	Outcome string `json:"outcome"`
}

// handleResolve finishes a claimed job on behalf of an external sender.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req resolveRequest
	if err := decodeBody(r, resolveSchema, &req); err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}

	job, err := s.queue.Resolve(r.Context(), id, req.Outcome, s.cfg.Lifecycle.MaxRetries, s.clock())
	if err != nil {
		if errors.Is(err, store.ErrJobNotPending) {
			stderrors.WriteHTTP(w, stderrors.NewJobNotFoundError(id))
			return
		}
		stderrors.WriteHTTP(w, err)
		return
	}

	switch {
	case job.Status == models.JobSent:
		s.obs.RecordSent(r.Context(), job.Type)
	case job.Status == models.JobDead:
		s.obs.RecordDead(r.Context(), job.Type)
	default:
		s.obs.RecordRetry(r.Context(), job.Type)
	}
	writeJSON(w, http.StatusOK, job)
}

// handleLifecycleRun triggers one sweep pass synchronously. Operators use
// it after maintenance windows instead of waiting for the ticker.
func (s *Server) handleLifecycleRun(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweeper.Sweep(r.Context(), s.clock())
	if err != nil {
		stderrors.WriteHTTP(w, stderrors.NewStorageUnavailableError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
