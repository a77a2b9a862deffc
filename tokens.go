package sso

import (
	"crypto/rand"
	"time"
)

// Tokens are valid for up to 24 hours after issue.
const TokenValidity = 24 * time.Hour

// Tokens are a random string of 64 letters and digits. This is overkill.
const TokenLength = 64

// Don't expire a token immediately after it is checked. A redeemed token
// keeps at least this much validity so the user can finish the signup form.
const SignupGraceTime = 10 * time.Minute

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// VerificationToken associates a random token with an email address being
// verified. Mailing the token to the address and getting it back proves
// the user owns the address.
type VerificationToken struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the token is past its expiry at the given time.
func (t *VerificationToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// TokenStore owns verification-token records. The token column carries a
// uniqueness constraint; implementations detect a collision at insert time
// and retry with a fresh token rather than fail.
type TokenStore interface {
	// IssueToken normalizes the email, stores a fresh token valid for
	// TokenValidity and returns the token string.
	IssueToken(email string) (string, error)

	// RedeemToken returns the email associated with a live token, topping
	// its expiry up to SignupGraceTime from now if it is closer than that.
	// Expired or unknown tokens get ErrTokenInvalid, with no distinction
	// between the two. Redemption does not consume the token.
	RedeemToken(token string) (string, error)

	// Remove deletes every token issued for the (normalized) email.
	// Called once an account exists so stale links stop working.
	Remove(email string) error

	// Sweep deletes all tokens that expired before now and reports how
	// many went away. Idempotent; safe to run alongside issue and redeem.
	Sweep(now time.Time) (int64, error)
}

// NewToken returns a fresh random token of TokenLength letters and digits.
func NewToken() string {
	b := make([]byte, TokenLength)
	rand.Read(b)
	for i := range b {
		b[i] = tokenAlphabet[int(b[i])%len(tokenAlphabet)]
	}
	return string(b)
}
