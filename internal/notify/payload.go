// internal/notify/payload.go
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"builder-licensing/internal/models"

	"github.com/google/uuid"
)

// Payload is the typed body of one notification. Each notification kind
// carries only the fields its template needs; adding a kind without
// extending Render and UnmarshalPayload fails at the exhaustive switches.
type Payload interface {
	NotifyType() string
}

type WelcomePayload struct {
	LicenseKey string `json:"licenseKey"`
	Tier       string `json:"tier"`
}

func (WelcomePayload) NotifyType() string { return models.NotifyWelcome }

type ExpiryWarningPayload struct {
	DaysRemaining int `json:"daysRemaining"`
}

func (ExpiryWarningPayload) NotifyType() string { return models.NotifyExpiryWarning }

type FinalWarningPayload struct {
	DaysOver int `json:"daysOver"`
}

func (FinalWarningPayload) NotifyType() string { return models.NotifyFinalWarning }

type PaymentFailedPayload struct{}

func (PaymentFailedPayload) NotifyType() string { return models.NotifyPaymentFailed }

type SubscriptionCancelledPayload struct {
	Reason string `json:"reason,omitempty"`
}

func (SubscriptionCancelledPayload) NotifyType() string { return models.NotifySubscriptionCancelled }

// NewJob builds a pending NotificationJob around a typed payload.
func NewJob(toEmail, name string, p Payload, now time.Time) (*models.NotificationJob, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", p.NotifyType(), err)
	}
	return &models.NotificationJob{
		ID:        uuid.New().String(),
		Type:      p.NotifyType(),
		ToEmail:   toEmail,
		Name:      name,
		Payload:   raw,
		Status:    models.JobPending,
		CreatedAt: now,
	}, nil
}

// UnmarshalPayload decodes a stored payload back into its typed form.
func UnmarshalPayload(jobType string, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch jobType {
	case models.NotifyWelcome:
		var p WelcomePayload
		return p, json.Unmarshal(raw, &p)
	case models.NotifyExpiryWarning:
		var p ExpiryWarningPayload
		return p, json.Unmarshal(raw, &p)
	case models.NotifyFinalWarning:
		var p FinalWarningPayload
		return p, json.Unmarshal(raw, &p)
	case models.NotifyPaymentFailed:
		var p PaymentFailedPayload
		return p, json.Unmarshal(raw, &p)
	case models.NotifySubscriptionCancelled:
		var p SubscriptionCancelledPayload
		return p, json.Unmarshal(raw, &p)
	default:
		return nil, fmt.Errorf("unknown notification type %q", jobType)
	}
}
