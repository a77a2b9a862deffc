package sso

import (
	"errors"
	"fmt"
	"log/slog"
)

// Registration is the validated input for completing a signup. Validation
// is side-effect free; persistence happens in CompleteRegistration.
type Registration struct {
	Token     string
	ShortName string
	FullName  string
	Password  string
}

// Validate checks presence and lengths. It does not touch any store.
func (r *Registration) Validate() *AuthError {
	switch {
	case r.Token == "":
		return NewAuthError(ErrCodeMissingField, "Verification token is required.", "token")
	case r.ShortName == "":
		return NewAuthError(ErrCodeMissingField, "Short name is required.", "short_name")
	case len(r.ShortName) > MaxShortNameLength:
		return NewAuthError(ErrCodeFieldTooLong, fmt.Sprintf("Short name must be at most %d characters.", MaxShortNameLength), "short_name")
	case len(r.FullName) > MaxFullNameLength:
		return NewAuthError(ErrCodeFieldTooLong, fmt.Sprintf("Full name must be at most %d characters.", MaxFullNameLength), "full_name")
	case r.Password == "":
		return NewAuthError(ErrCodeMissingField, "Password is required.", "password")
	}
	return nil
}

// VerificationFlow coordinates the token store and the account directory
// through the signup sequence: prove email ownership first, create the
// account second. The flow holds no persistent state of its own.
type VerificationFlow struct {
	Tokens   TokenStore
	Accounts AccountDirectory
	Mailer   Mailer

	// BaseURL is prepended to the verification path when building the
	// mailed link, e.g. https://example.com/auth/verify?token=...
	BaseURL string

	Logger *slog.Logger
}

func (f *VerificationFlow) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// VerifyLink returns the link a user follows to redeem a token.
func (f *VerificationFlow) VerifyLink(token string) string {
	return f.BaseURL + "/auth/verify?token=" + token
}

// RequestVerification issues a token for the email and mails the
// verification link. Refused with ErrAlreadyRegistered for addresses that
// already have an account, since such a token could never complete signup.
// The token is returned so the caller can embed it in its own response if
// needed; the completion flow is stateless and echoes the token back
// through a hidden form field.
func (f *VerificationFlow) RequestVerification(email string) (string, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	registered, err := f.Accounts.IsRegistered(normalized)
	if err != nil {
		return "", err
	}
	if registered {
		return "", ErrAlreadyRegistered
	}

	token, err := f.Tokens.IssueToken(normalized)
	if err != nil {
		return "", err
	}

	body := "Please confirm your email address by clicking this link:\n\n" +
		f.VerifyLink(token) + "\n"
	if err := f.Mailer.Send(normalized, VerifyEmailSubject, body); err != nil {
		return "", fmt.Errorf("sending verification mail: %w", err)
	}
	return token, nil
}

// RedeemVerification resolves a token back to its email address. The
// token stays live; single use is enforced by account creation, not here.
func (f *VerificationFlow) RedeemVerification(token string) (string, error) {
	return f.Tokens.RedeemToken(token)
}

// CompleteRegistration finishes a signup. It re-validates the token (it
// may have expired between the link click and the form submission),
// re-checks that the email is still unregistered (two open tabs can
// race), creates the account and retires all tokens for the address.
//
// Two concurrent completions for the same email race safely: exactly one
// wins, the other observes the email uniqueness constraint and gets
// ErrAlreadyRegistered.
func (f *VerificationFlow) CompleteRegistration(reg Registration) (*Account, error) {
	if authErr := reg.Validate(); authErr != nil {
		return nil, authErr
	}

	email, err := f.Tokens.RedeemToken(reg.Token)
	if err != nil {
		return nil, err
	}

	registered, err := f.Accounts.IsRegistered(email)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, ErrAlreadyRegistered
	}

	account, err := f.Accounts.CreateAccount(NewAccount{
		Email:     email,
		ShortName: reg.ShortName,
		FullName:  reg.FullName,
		Password:  reg.Password,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			// Lost the race to another registration for the same email.
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}

	if err := f.Tokens.Remove(email); err != nil {
		// The account exists; stale tokens only linger until the sweep.
		f.logger().Warn("failed to remove verification tokens", "email", email, "err", err)
	}
	return account, nil
}
