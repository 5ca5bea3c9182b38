// internal/api/stripe.go
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"builder-licensing/internal/models"
	"builder-licensing/internal/notify"
	"builder-licensing/internal/store"
	"builder-licensing/pkg/tiers"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const stripeMaxBodyBytes = int64(65536)

// handleStripeWebhook turns billing events into licensing actions. The
// webhook authenticates by Stripe signature, not the internal key. Stripe
// retries non-2xx responses, so handler failures here are safe to surface.
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, stripeMaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.WithError(err).Error("failed to read stripe payload", nil)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.cfg.Stripe.WebhookSecret)
	if err != nil {
		s.logger.WithError(err).Warn("stripe signature verification failed", nil)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.logger.Info("stripe event received", map[string]interface{}{
		"type": event.Type,
		"id":   event.ID,
	})

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		err = s.handleCheckoutCompleted(r, &session)
	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		err = s.handlePaymentFailed(r, &invoice)
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		err = s.handleSubscriptionDeleted(r, &sub)
	default:
		s.logger.Debug("unhandled stripe event type", map[string]interface{}{
			"type": event.Type,
		})
	}

	if err != nil {
		s.logger.WithError(err).Error("failed to process stripe event", map[string]interface{}{
			"type": event.Type,
			"id":   event.ID,
		})
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}

// handleCheckoutCompleted issues a license for a completed purchase. The
// subscription ID (falling back to the session ID for one-off payments) is
// the idempotency key, so Stripe's replays cannot double-issue, and
// subscription cancellation events can find the license later.
func (s *Server) handleCheckoutCompleted(r *http.Request, session *stripe.CheckoutSession) error {
	var email, name string
	if session.CustomerDetails != nil {
		email = session.CustomerDetails.Email
		name = session.CustomerDetails.Name
	}
	if email == "" {
		s.logger.Warn("checkout session without customer email, skipping", map[string]interface{}{
			"session": session.ID,
		})
		return nil
	}

	paymentID := session.ID
	if session.Subscription != nil && session.Subscription.ID != "" {
		paymentID = session.Subscription.ID
	}

	tier := s.resolveTier(session)

	now := s.clock()
	lic, created, err := s.licenses.Issue(r.Context(), store.IssueParams{
		Email:           email,
		Name:            name,
		Tier:            tier.ID,
		Days:            tier.Days,
		SourcePaymentID: paymentID,
		Notes:           "stripe checkout " + session.ID,
		Now:             now,
	})
	if err != nil {
		return err
	}
	if created {
		s.audit.Issued(r.Context(), lic.Key, lic.Tier, now)
		s.enqueueWelcome(r, lic)
	}
	return nil
}

// resolveTier maps a checkout session to a catalog tier. The checkout
// metadata is authoritative when present; otherwise the line-item price IDs
// are matched against the catalog, and an unrecognizable purchase falls back
// to the pro tier.
func (s *Server) resolveTier(session *stripe.CheckoutSession) *tiers.Tier {
	if t := s.tiers.ByID(session.Metadata["tier"]); t != nil {
		return t
	}
	if session.LineItems != nil {
		for _, item := range session.LineItems.Data {
			if item.Price == nil {
				continue
			}
			if t := s.tiers.ByPriceID(item.Price.ID); t != nil {
				return t
			}
		}
	}
	if t := s.tiers.ByID(models.TierPro); t != nil {
		return t
	}
	return &s.tiers.Tiers[0]
}

// handlePaymentFailed notifies the customer directly off the invoice; a
// failed renewal does not change license state, the lifecycle handles the
// eventual expiry on its own.
func (s *Server) handlePaymentFailed(r *http.Request, invoice *stripe.Invoice) error {
	if invoice.CustomerEmail == "" {
		return nil
	}
	job, err := notify.NewJob(invoice.CustomerEmail, invoice.CustomerName, notify.PaymentFailedPayload{}, s.clock())
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		return err
	}
	s.obs.RecordEnqueued(r.Context(), job.Type)
	return nil
}

// handleSubscriptionDeleted revokes the license issued for the subscription
// and tells the customer. An unknown subscription is ignored; the purchase
// may predate this system or the license was already revoked by an admin.
func (s *Server) handleSubscriptionDeleted(r *http.Request, sub *stripe.Subscription) error {
	lic, err := s.licenses.GetBySourcePaymentID(r.Context(), sub.ID)
	if err != nil || lic == nil {
		return err
	}

	now := s.clock()
	found, err := s.licenses.Revoke(r.Context(), lic.Key, "subscription cancelled", now)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	s.audit.Revoked(r.Context(), lic.Key, "subscription cancelled", now)
	if s.cache != nil {
		s.cache.Invalidate(r.Context(), lic.Key)
	}

	job, err := notify.NewJob(lic.Email, lic.Name, notify.SubscriptionCancelledPayload{
		Reason: "subscription cancelled",
	}, now)
	if err != nil {
		return err
	}
	if err := s.queue.Enqueue(r.Context(), job); err != nil {
		return err
	}
	s.obs.RecordEnqueued(r.Context(), job.Type)
	return nil
}
