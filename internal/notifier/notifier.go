// Package notifier delivers one-time verification codes out-of-band.
package notifier

import (
	"context"
	"fmt"

	"github.com/naruebet/wallet-auth-api/internal/mailer"
)

// Notifier sends a verification code to a destination (email address or
// phone number depending on the implementation).
type Notifier interface {
	SendVerificationCode(ctx context.Context, destination, code string) error
}

// EmailNotifier delivers codes over SMTP.
type EmailNotifier struct {
	mailer *mailer.Mailer
}

// NewEmailNotifier creates a Notifier backed by the given mailer.
func NewEmailNotifier(m *mailer.Mailer) *EmailNotifier {
	return &EmailNotifier{mailer: m}
}

func (n *EmailNotifier) SendVerificationCode(_ context.Context, destination, code string) error {
	htmlBody := fmt.Sprintf(`
		<p>Hi,</p>
		<p>Your verification code is:</p>

		<p><strong>%s</strong></p>

		<p>This code will expire in 10 minutes. If you did not request it,
		you can safely ignore this email.</p>
	`, code)

	if err := n.mailer.SendHTML([]string{destination}, "Your verification code", htmlBody); err != nil {
		return fmt.Errorf("sending verification email: %w", err)
	}

	return nil
}
