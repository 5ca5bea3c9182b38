// internal/notify/templates.go
package notify

import (
	"fmt"

	"builder-licensing/internal/models"
)

// Renderer turns a notification job into a subject and HTML body. Content
// is deliberately minimal; the delivery guarantee is the point, not the
// copywriting.
type Renderer struct {
	AppURL     string
	PaymentURL string
}

// Render produces the email for one job. The switch over payload types is
// exhaustive; an unknown or corrupt payload is an error the drainer counts
// against the job's retry budget.
func (r *Renderer) Render(job *models.NotificationJob) (subject, html string, err error) {
	p, err := UnmarshalPayload(job.Type, job.Payload)
	if err != nil {
		return "", "", err
	}

	name := job.Name
	if name == "" {
		name = "Builder"
	}

	switch p := p.(type) {
	case WelcomePayload:
		subject = "Welcome to The Builder — your license key inside"
		html = wrap(fmt.Sprintf(
			`<h2>Welcome to the forge, %s</h2>
			<p>Your <strong>%s</strong> license is active.</p>
			<div class="key">%s</div>
			<p>Enter this key at <a href="%s">%s</a> to get started.</p>`,
			name, p.Tier, p.LicenseKey, r.AppURL, r.AppURL))
	case ExpiryWarningPayload:
		subject = fmt.Sprintf("Your Builder license expires in %d day(s)", p.DaysRemaining)
		html = wrap(fmt.Sprintf(
			`<h2>License expiring in %d day(s)</h2>
			<p>Hey %s, renew now to keep your build history and forge access.</p>
			<a href="%s">Renew license</a>`,
			p.DaysRemaining, name, r.PaymentURL))
	case FinalWarningPayload:
		subject = "Your Builder license expired — data deletion approaching"
		html = wrap(fmt.Sprintf(
			`<h2>License expired %d day(s) ago</h2>
			<p>Hey %s, your builds are still safe, but not for long.
			Renew to pick up exactly where you left off.</p>
			<a href="%s">Renew license</a>`,
			p.DaysOver, name, r.PaymentURL))
	case PaymentFailedPayload:
		subject = "Builder payment failed — action required"
		html = wrap(fmt.Sprintf(
			`<h2>Payment failed</h2>
			<p>Hey %s, your Builder payment did not go through.
			Update your payment method to keep the forge running.</p>
			<a href="%s">Update payment</a>`,
			name, r.PaymentURL))
	case SubscriptionCancelledPayload:
		subject = "Your Builder subscription was cancelled"
		html = wrap(fmt.Sprintf(
			`<h2>Subscription cancelled</h2>
			<p>Hey %s, your subscription is cancelled and your key no longer
			validates. You can come back any time.</p>
			<a href="%s">Re-subscribe</a>`,
			name, r.PaymentURL))
	default:
		return "", "", fmt.Errorf("no template for notification type %q", job.Type)
	}
	return subject, html, nil
}

func wrap(content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="background:#0a0a0a;color:#e8d5b0;font-family:Arial,sans-serif;padding:40px;">
  <div style="max-width:600px;margin:0 auto;border:1px solid #ff6600;padding:40px;">
    <h1 style="color:#ff6600;letter-spacing:4px;">THE BUILDER</h1>
    <hr style="border-color:#ff6600;"/>
    %s
  </div>
</body>
</html>`, content)
}
