package sso

// SessionIssuer validates credentials and enforces the active-account
// policy. It returns the authenticated Account; establishing the actual
// session (cookies, tokens) is the caller's job.
type SessionIssuer struct {
	Accounts AccountDirectory
}

// Authenticate returns ErrInvalidCredentials when the email is unknown or
// the password is wrong, without revealing which, and ErrInactiveAccount
// for accounts that authenticated but are disabled.
func (s *SessionIssuer) Authenticate(email, password string) (*Account, error) {
	account, err := s.Accounts.Authenticate(email, password)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, ErrInactiveAccount
	}
	return account, nil
}
