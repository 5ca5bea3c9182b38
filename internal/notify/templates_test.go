// internal/notify/templates_test.go
package notify

import (
	"testing"
	"time"

	"builder-licensing/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenderer() *Renderer {
	return &Renderer{
		AppURL:     "https://forge.example",
		PaymentURL: "https://forge.example/pay",
	}
}

func TestRenderer_AllTypes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name            string
		payload         Payload
		subjectContains string
		bodyContains    string
	}{
		{
			name:            "welcome carries the key",
			payload:         WelcomePayload{LicenseKey: "BLDR-AAAA-BBBB-CCCC", Tier: "pro"},
			subjectContains: "Welcome",
			bodyContains:    "BLDR-AAAA-BBBB-CCCC",
		},
		{
			name:            "expiry warning counts down",
			payload:         ExpiryWarningPayload{DaysRemaining: 7},
			subjectContains: "expires in 7 day",
			bodyContains:    "https://forge.example/pay",
		},
		{
			name:            "final warning threatens deletion",
			payload:         FinalWarningPayload{DaysOver: 16},
			subjectContains: "deletion",
			bodyContains:    "16 day",
		},
		{
			name:            "payment failed asks for action",
			payload:         PaymentFailedPayload{},
			subjectContains: "action required",
			bodyContains:    "Update payment",
		},
		{
			name:            "cancellation says goodbye",
			payload:         SubscriptionCancelledPayload{Reason: "cancelled by user"},
			subjectContains: "cancelled",
			bodyContains:    "Re-subscribe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := NewJob("smith@forge.example", "Smith", tt.payload, now)
			require.NoError(t, err)

			subject, html, err := testRenderer().Render(job)
			require.NoError(t, err)
			assert.Contains(t, subject, tt.subjectContains)
			assert.Contains(t, html, tt.bodyContains)
			assert.Contains(t, html, "Smith")
		})
	}
}

func TestRenderer_UnknownTypeFails(t *testing.T) {
	job := &models.NotificationJob{
		ID:      "job-1",
		Type:    "carrier_pigeon",
		Payload: []byte(`{}`),
	}
	_, _, err := testRenderer().Render(job)
	assert.Error(t, err)
}

func TestRenderer_CorruptPayloadFails(t *testing.T) {
	job := &models.NotificationJob{
		ID:      "job-1",
		Type:    models.NotifyWelcome,
		Payload: []byte(`{broken`),
	}
	_, _, err := testRenderer().Render(job)
	assert.Error(t, err)
}

func TestRenderer_EmptyNameGetsFallback(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job, err := NewJob("smith@forge.example", "", ExpiryWarningPayload{DaysRemaining: 3}, now)
	require.NoError(t, err)

	_, html, err := testRenderer().Render(job)
	require.NoError(t, err)
	assert.Contains(t, html, "Builder")
}

func TestUnmarshalPayload_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job, err := NewJob("smith@forge.example", "Smith", FinalWarningPayload{DaysOver: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, models.NotifyFinalWarning, job.Type)

	p, err := UnmarshalPayload(job.Type, job.Payload)
	require.NoError(t, err)
	assert.Equal(t, FinalWarningPayload{DaysOver: 20}, p)
}
