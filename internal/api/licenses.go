// internal/api/licenses.go
package api

import (
	"net/http"

	stderrors "builder-licensing/internal/common/errors"
	"builder-licensing/internal/models"
	"builder-licensing/internal/notify"
	"builder-licensing/internal/store"
)

type issueRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	Tier            string `json:"tier"`
	Days            int    `json:"days"`
	SourcePaymentID string `json:"sourcePaymentId"`
	Notes           string `json:"notes"`
}

type issueResponse struct {
	License *models.License `json:"license"`
	Created bool            `json:"created"`
}

// handleIssue creates a license, or returns the existing one when the same
// payment was already processed. A fresh license also gets a welcome email
// queued; replays do not, so customers never get welcomed twice.
func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := decodeBody(r, issueSchema, &req); err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}

	now := s.clock()
	lic, created, err := s.licenses.Issue(r.Context(), store.IssueParams{
		Email:           req.Email,
		Name:            req.Name,
		Tier:            req.Tier,
		Days:            req.Days,
		SourcePaymentID: req.SourcePaymentID,
		Notes:           req.Notes,
		Now:             now,
	})
	if err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}

	if created {
		s.audit.Issued(r.Context(), lic.Key, lic.Tier, now)
		s.enqueueWelcome(r, lic)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, issueResponse{License: lic, Created: created})
}

func (s *Server) enqueueWelcome(r *http.Request, lic *models.License) {
	job, err := notify.NewJob(lic.Email, lic.Name, notify.WelcomePayload{
		LicenseKey: lic.Key,
		Tier:       lic.Tier,
	}, s.clock())
	if err != nil {
		s.logger.WithError(err).Error("failed to build welcome job", nil)
		return
	}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		// The license exists either way; the welcome email is owed but the
		// issue call must not fail over it.
		s.logger.WithError(err).Error("failed to enqueue welcome", map[string]interface{}{
			"key": lic.Key,
		})
		return
	}
	s.obs.RecordEnqueued(r.Context(), job.Type)
}

type validateRequest struct {
	Key string `json:"key"`
}

type validateResponse struct {
	Valid         bool   `json:"valid"`
	Status        string `json:"status"`
	Tier          string `json:"tier,omitempty"`
	DaysRemaining *int   `json:"daysRemaining,omitempty"`
}

// handleValidate answers the hot-path key check. An unknown key is a normal
// negative answer, not an error; the endpoint only fails when storage does.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeBody(r, validateSchema, &req); err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}

	lic := (*models.License)(nil)
	if s.cache != nil {
		lic = s.cache.Get(r.Context(), req.Key)
	}
	if lic == nil {
		var err error
		lic, err = s.licenses.GetByKey(r.Context(), req.Key)
		if err != nil {
			stderrors.WriteHTTP(w, stderrors.NewStorageUnavailableError(err.Error()))
			return
		}
		if lic != nil && s.cache != nil {
			s.cache.Set(r.Context(), lic)
		}
	}

	if lic == nil {
		writeJSON(w, http.StatusOK, validateResponse{Valid: false, Status: "not_found"})
		return
	}

	days := models.DaysRemaining(lic.ExpiresAt, s.clock())
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:         lic.Usable(),
		Status:        lic.Status,
		Tier:          lic.Tier,
		DaysRemaining: &days,
	})
}

type extendRequest struct {
	Key  string `json:"key"`
	Days int    `json:"days"`
}

// handleExtend pushes expiry forward and resets the lifecycle so warnings
// fire again next cycle.
func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := decodeBody(r, extendSchema, &req); err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}

	lic, err := s.licenses.Extend(r.Context(), req.Key, req.Days, s.clock())
	if err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}
	if lic == nil {
		stderrors.WriteHTTP(w, stderrors.NewLicenseNotFoundError(req.Key))
		return
	}

	if s.cache != nil {
		s.cache.Invalidate(r.Context(), req.Key)
	}
	writeJSON(w, http.StatusOK, lic)
}

type revokeRequest struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// handleRevoke terminates a license immediately. Revoking an unknown key is
// 404; revoking twice succeeds quietly.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if err := decodeBody(r, revokeSchema, &req); err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}

	now := s.clock()
	found, err := s.licenses.Revoke(r.Context(), req.Key, req.Reason, now)
	if err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}

	lic, err := s.licenses.GetByKey(r.Context(), req.Key)
	if err != nil {
		stderrors.WriteHTTP(w, err)
		return
	}
	if lic == nil {
		stderrors.WriteHTTP(w, stderrors.NewLicenseNotFoundError(req.Key))
		return
	}

	if found {
		s.audit.Revoked(r.Context(), req.Key, req.Reason, now)
		if s.cache != nil {
			s.cache.Invalidate(r.Context(), req.Key)
		}
	}
	writeJSON(w, http.StatusOK, lic)
}

func (s *Server) handleAdminLicenses(w http.ResponseWriter, r *http.Request) {
	licenses, err := s.licenses.List(r.Context())
	if err != nil {
		stderrors.WriteHTTP(w, stderrors.NewStorageUnavailableError(err.Error()))
		return
	}
	if licenses == nil {
		licenses = []*models.License{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"licenses": licenses,
		"count":    len(licenses),
	})
}

type statsResponse struct {
	Licenses *store.LicenseStats `json:"licenses"`
	Queue    *store.QueueStats   `json:"queue"`
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	licStats, err := s.licenses.Stats(r.Context())
	if err != nil {
		stderrors.WriteHTTP(w, stderrors.NewStorageUnavailableError(err.Error()))
		return
	}
	queueStats, err := s.queue.Stats(r.Context())
	if err != nil {
		stderrors.WriteHTTP(w, stderrors.NewStorageUnavailableError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Licenses: licStats, Queue: queueStats})
}
