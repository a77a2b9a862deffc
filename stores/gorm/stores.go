package gorm

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	sso "github.com/fmproj/sso"
)

// Collisions on a 64-character alphanumeric token are astronomically
// unlikely; the bound exists so a broken generator cannot spin forever.
const maxIssueAttempts = 100

// TokenStore implements sso.TokenStore on a GORM database.
type TokenStore struct {
	db *gorm.DB

	// Now and NewToken can be overridden for testing.
	Now      func() time.Time
	NewToken func() string
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db, Now: time.Now, NewToken: sso.NewToken}
}

func (s *TokenStore) IssueToken(email string) (string, error) {
	normalized, err := sso.NormalizeEmail(email)
	if err != nil {
		return "", err
	}

	expiresAt := s.Now().Add(sso.TokenValidity)
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		token := s.NewToken()
		err := s.db.Create(&VerificationTokenModel{
			Email:     normalized,
			Token:     token,
			ExpiresAt: expiresAt,
		}).Error
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", err
		}
		// duplicate token, regenerate and retry
	}
	return "", fmt.Errorf("no unique token after %d attempts", maxIssueAttempts)
}

func (s *TokenStore) RedeemToken(token string) (string, error) {
	now := s.Now()
	var model VerificationTokenModel
	err := s.db.First(&model, "token = ? AND expires_at >= ?", token, now).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", sso.ErrTokenInvalid
	}
	if err != nil {
		return "", err
	}

	// We've just fetched it, so make sure it's not about to expire. The
	// user needs time to finish the signup form. Concurrent redemptions
	// may both extend; extension only ever moves the expiry later.
	if model.ExpiresAt.Before(now.Add(sso.SignupGraceTime)) {
		err := s.db.Model(&model).Update("expires_at", now.Add(sso.SignupGraceTime)).Error
		if err != nil {
			return "", err
		}
	}
	return model.Email, nil
}

func (s *TokenStore) Remove(email string) error {
	normalized, err := sso.NormalizeEmail(email)
	if err != nil {
		return err
	}
	return s.db.Where("email = ?", normalized).Delete(&VerificationTokenModel{}).Error
}

func (s *TokenStore) Sweep(now time.Time) (int64, error) {
	res := s.db.Where("expires_at < ?", now).Delete(&VerificationTokenModel{})
	return res.RowsAffected, res.Error
}

// AccountDirectory implements sso.AccountDirectory on a GORM database.
type AccountDirectory struct {
	db     *gorm.DB
	hasher sso.PasswordHasher
}

// NewAccountDirectory creates a directory. A nil hasher defaults to bcrypt.
func NewAccountDirectory(db *gorm.DB, hasher sso.PasswordHasher) *AccountDirectory {
	if hasher == nil {
		hasher = sso.BcryptHasher{}
	}
	return &AccountDirectory{db: db, hasher: hasher}
}

func (d *AccountDirectory) IsRegistered(email string) (bool, error) {
	normalized, err := sso.NormalizeEmail(email)
	if err != nil {
		return false, err
	}
	var count int64
	err = d.db.Model(&AccountModel{}).Where("email = ?", normalized).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
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

	model := &AccountModel{
		ID:             uuid.NewString(),
		Email:          normalized,
		CredentialHash: hash,
		ShortName:      acc.ShortName,
		FullName:       acc.FullName,
		IsActive:       true,
		IsAdmin:        acc.IsAdmin,
	}
	if err := d.db.Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, sso.ErrDuplicateEmail
		}
		return nil, err
	}
	return model.ToAccount(), nil
}

func (d *AccountDirectory) FindByEmail(email string) (*sso.Account, error) {
	model, err := d.findModel(email)
	if err != nil {
		return nil, err
	}
	return model.ToAccount(), nil
}

// A well-formed bcrypt hash that matches no password we'd ever accept.
// Verified against when the account doesn't exist so response timing does
// not reveal whether an email is registered.
const dummyCredentialHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func (d *AccountDirectory) Authenticate(email, password string) (*sso.Account, error) {
	model, err := d.findModel(email)
	if errors.Is(err, sso.ErrAccountNotFound) {
		d.hasher.Verify(password, dummyCredentialHash)
		return nil, sso.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !d.hasher.Verify(password, model.CredentialHash) {
		return nil, sso.ErrInvalidCredentials
	}
	return model.ToAccount(), nil
}

func (d *AccountDirectory) findModel(email string) (*AccountModel, error) {
	normalized, err := sso.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	var model AccountModel
	err = d.db.First(&model, "email = ?", normalized).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sso.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}
