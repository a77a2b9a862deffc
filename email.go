package sso

import (
	"log/slog"
	"regexp"
	"strings"
)

// Subject line for the verification mail.
const VerifyEmailSubject = "Welcome to FM Project!"

// Only the very basic shape is checked here; the real validation happens
// when we actually deliver to the address. This keeps unconventional local
// parts usable.
var emailFormat = regexp.MustCompile(`^[^@]+@[^@]+$`)

// NormalizeEmail validates the basic format and lower-cases the domain so
// that yahoo.com and Yahoo.com are recognized as the same. The local part
// keeps its case as given.
func NormalizeEmail(email string) (string, error) {
	if len(email) > MaxEmailLength || !emailFormat.MatchString(email) {
		return "", ErrInvalidEmail
	}
	// The regex guarantees exactly one '@'.
	at := strings.Index(email, "@")
	return email[:at+1] + strings.ToLower(email[at+1:]), nil
}

// Mailer delivers outbound mail. Failures are not retried here; the
// caller decides whether and how to surface them.
type Mailer interface {
	Send(to, subject, body string) error
}

// ConsoleMailer writes mail to the process log instead of delivering it.
// Development use only.
type ConsoleMailer struct {
	Logger *slog.Logger
}

func (c *ConsoleMailer) Send(to, subject, body string) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("mail (console delivery)", "to", to, "subject", subject, "body", body)
	return nil
}
