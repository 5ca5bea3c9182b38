// internal/models/notification.go
package models

import (
	"encoding/json"
	"time"
)

// Notification job types.
const (
	NotifyWelcome               = "welcome"
	NotifyExpiryWarning         = "expiry_warning"
	NotifyFinalWarning          = "final_warning"
	NotifyPaymentFailed         = "payment_failed"
	NotifySubscriptionCancelled = "subscription_cancelled"
)

// Notification job statuses. A claimed job stays pending until resolved;
// dead jobs have exhausted their retry budget and need operator attention.
const (
	JobPending = "pending"
	JobSent    = "sent"
	JobDead    = "dead"
)

// NotificationJob is one outbound email obligation. Jobs are created by the
// lifecycle evaluator or by issuance and mutated only by the drainer. They
// are retained after terminal status for audit.
type NotificationJob struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	ToEmail   string          `json:"toEmail"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Status    string          `json:"status"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"createdAt"`
	ClaimedAt *time.Time      `json:"claimedAt,omitempty"`
	SentAt    *time.Time      `json:"sentAt,omitempty"`
}

// KnownNotifyType reports whether t names a notification kind the drainer
// can render.
func KnownNotifyType(t string) bool {
	switch t {
	case NotifyWelcome, NotifyExpiryWarning, NotifyFinalWarning,
		NotifyPaymentFailed, NotifySubscriptionCancelled:
		return true
	}
	return false
}
