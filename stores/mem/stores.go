// Package mem provides in-memory implementations of the sso store
// interfaces, guarded by a mutex. Intended for development and tests;
// nothing survives a restart.
package mem

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	sso "github.com/fmproj/sso"
)

// TokenStore implements sso.TokenStore in memory.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]*sso.VerificationToken

	// Now and NewToken can be overridden for testing.
	Now      func() time.Time
	NewToken func() string
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens:   make(map[string]*sso.VerificationToken),
		Now:      time.Now,
		NewToken: sso.NewToken,
	}
}

func (s *TokenStore) IssueToken(email string) (string, error) {
	normalized, err := sso.NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		token := s.NewToken()
		if _, taken := s.tokens[token]; taken {
			continue
		}
		s.tokens[token] = &sso.VerificationToken{
			Email:     normalized,
			Token:     token,
			ExpiresAt: s.Now().Add(sso.TokenValidity),
		}
		return token, nil
	}
}

func (s *TokenStore) RedeemToken(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	rec, ok := s.tokens[token]
	if !ok || rec.Expired(now) {
		return "", sso.ErrTokenInvalid
	}
	if rec.ExpiresAt.Before(now.Add(sso.SignupGraceTime)) {
		rec.ExpiresAt = now.Add(sso.SignupGraceTime)
	}
	return rec.Email, nil
}

func (s *TokenStore) Remove(email string) error {
	normalized, err := sso.NormalizeEmail(email)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for token, rec := range s.tokens {
		if rec.Email == normalized {
			delete(s.tokens, token)
		}
	}
	return nil
}

func (s *TokenStore) Sweep(now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for token, rec := range s.tokens {
		if rec.Expired(now) {
			delete(s.tokens, token)
			deleted++
		}
	}
	return deleted, nil
}

type accountRecord struct {
	account        sso.Account
	credentialHash string
}

// AccountDirectory implements sso.AccountDirectory in memory.
type AccountDirectory struct {
	mu       sync.Mutex
	accounts map[string]*accountRecord // keyed by normalized email
	hasher   sso.PasswordHasher
}

// NewAccountDirectory creates a directory. A nil hasher defaults to bcrypt
// at its minimum cost, which is plenty for tests.
func NewAccountDirectory(hasher sso.PasswordHasher) *AccountDirectory {
	if hasher == nil {
		hasher = sso.BcryptHasher{Cost: 4}
	}
	return &AccountDirectory{
		accounts: make(map[string]*accountRecord),
		hasher:   hasher,
	}
}

func (d *AccountDirectory) IsRegistered(email string) (bool, error) {
	normalized, err := sso.NormalizeEmail(email)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.accounts[normalized]
	return ok, nil
}

func (d *AccountDirectory) CreateAccount(acc sso.NewAccount) (*sso.Account, error) {
	normalized, err := sso.NormalizeEmail(acc.Email)
	if err != nil {
		return nil, err
	}
	hash, err := d.hasher.Hash(acc.Password)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.accounts[normalized]; exists {
		return nil, sso.ErrDuplicateEmail
	}
	rec := &accountRecord{
		account: sso.Account{
			ID:        uuid.NewString(),
			Email:     normalized,
			ShortName: acc.ShortName,
			FullName:  acc.FullName,
			IsActive:  true,
			IsAdmin:   acc.IsAdmin,
			CreatedAt: time.Now(),
		},
		credentialHash: hash,
	}
	d.accounts[normalized] = rec
	out := rec.account
	return &out, nil
}

func (d *AccountDirectory) FindByEmail(email string) (*sso.Account, error) {
	rec, err := d.find(email)
	if err != nil {
		return nil, err
	}
	out := rec.account
	return &out, nil
}

func (d *AccountDirectory) Authenticate(email, password string) (*sso.Account, error) {
	rec, err := d.find(email)
	if err != nil {
		if errors.Is(err, sso.ErrAccountNotFound) {
			return nil, sso.ErrInvalidCredentials
		}
		return nil, err
	}
	if !d.hasher.Verify(password, rec.credentialHash) {
		return nil, sso.ErrInvalidCredentials
	}
	out := rec.account
	return &out, nil
}

// SetActive flips the soft-delete flag on an account. Admin surface.
func (d *AccountDirectory) SetActive(email string, active bool) error {
	rec, err := d.find(email)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec.account.IsActive = active
	return nil
}

func (d *AccountDirectory) find(email string) (*accountRecord, error) {
	normalized, err := sso.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.accounts[normalized]
	if !ok {
		return nil, sso.ErrAccountNotFound
	}
	return rec, nil
}
