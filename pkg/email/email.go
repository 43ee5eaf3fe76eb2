// Package email sends the notification emails that follow subscription
// lifecycle events: cancellation, group member removal, and group
// invitations. Sending is routed through pkg/deferred so a slow mail
// provider never blocks the mutating request.
package email

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrFailedToSendEmail wraps provider-side delivery failures.
	ErrFailedToSendEmail = errors.New("failed to send email")

	// ErrInvalidConfig is returned when the sender configuration is
	// incomplete.
	ErrInvalidConfig = errors.New("invalid email config")

	// ErrInvalidParams is returned when send parameters are incomplete.
	ErrInvalidParams = errors.New("invalid email params")
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Config holds the outbound email configuration. The Postmark tokens stay
// optional so development environments can run on the log-only sender.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}

// Sender delivers one email.
type Sender interface {
	SendEmail(ctx context.Context, params SendParams) error
}

// SendParams are the parameters for one outbound email.
type SendParams struct {
	SendTo   string
	Subject  string
	BodyHTML string
	Tag      string
}

// Validate checks required fields.
func (p SendParams) Validate() error {
	if p.SendTo == "" || !emailRegex.MatchString(p.SendTo) {
		return fmt.Errorf("%w: valid recipient is required", ErrInvalidParams)
	}
	if p.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if p.BodyHTML == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}
