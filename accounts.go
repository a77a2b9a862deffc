package sso

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Field limits, matching the accounts schema.
const (
	MaxEmailLength     = 254
	MaxFullNameLength  = 64
	MaxShortNameLength = 32
)

// Account is a registered member. Members are identified by email address.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// ShortName is used for greeting, as in "Hi, <name>."
	ShortName string `json:"short_name"`

	// FullName is optional; DisplayName falls back to ShortName.
	FullName string `json:"full_name,omitempty"`

	// Setting IsActive to false effectively deletes the account without
	// losing any of its data. Inactive accounts cannot sign in.
	IsActive bool `json:"is_active"`

	// IsAdmin gates the admin surfaces. For other kinds of privileges
	// use Roles.
	IsAdmin bool `json:"is_admin"`

	// Roles is a bitmask of app-defined roles (staff, moderator, gold
	// member, ...) for apps where full group machinery is overkill.
	Roles uint16 `json:"roles"`

	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the full name, or the short name when no full name
// was given.
func (a *Account) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	return a.ShortName
}

// HasRole reports whether the account has any of the roles in the mask.
func (a *Account) HasRole(mask uint16) bool { return a.Roles&mask != 0 }

// HasRoles reports whether the account has all of the roles in the mask.
func (a *Account) HasRoles(mask uint16) bool { return a.Roles&mask == mask }

// NewAccount carries the fields needed to create an account.
type NewAccount struct {
	Email     string
	ShortName string
	FullName  string
	Password  string
	IsAdmin   bool
}

// AccountDirectory owns account records. Emails are unique across all
// accounts, active or not.
type AccountDirectory interface {
	// IsRegistered reports whether the (normalized) email has an account.
	IsRegistered(email string) (bool, error)

	// CreateAccount hashes the password and inserts a new active account.
	// A uniqueness violation on the email surfaces as ErrDuplicateEmail,
	// distinct from infrastructure failure.
	CreateAccount(acc NewAccount) (*Account, error)

	// FindByEmail returns the account for a (normalized) email, or
	// ErrAccountNotFound.
	FindByEmail(email string) (*Account, error)

	// Authenticate looks the account up by email and verifies the
	// password. Unknown email and wrong password both return
	// ErrInvalidCredentials. Inactive accounts still authenticate here;
	// the active-account policy lives in SessionIssuer.
	Authenticate(email, password string) (*Account, error)
}

// PasswordHasher is the credential hashing capability. Plaintext is never
// stored or compared directly.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	// Cost defaults to bcrypt.DefaultCost when zero.
	Cost int
}

func (h BcryptHasher) cost() int {
	if h.Cost > 0 {
		return h.Cost
	}
	return bcrypt.DefaultCost
}

func (h BcryptHasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost())
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(out), nil
}

func (h BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
