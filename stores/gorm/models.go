package gorm

import (
	"time"

	"gorm.io/gorm"

	sso "github.com/fmproj/sso"
)

// AccountModel is the GORM model for accounts.
type AccountModel struct {
	ID             string    `gorm:"primaryKey;size:64"`
	Email          string    `gorm:"size:254;uniqueIndex"`
	CredentialHash string    `gorm:"size:128"`
	ShortName      string    `gorm:"size:32"`
	FullName       string    `gorm:"size:64"`
	IsActive       bool      `gorm:"default:true"`
	IsAdmin        bool      `gorm:"default:false"`
	Roles          uint16    `gorm:"default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *sso.Account {
	return &sso.Account{
		ID:        m.ID,
		Email:     m.Email,
		ShortName: m.ShortName,
		FullName:  m.FullName,
		IsActive:  m.IsActive,
		IsAdmin:   m.IsAdmin,
		Roles:     m.Roles,
		CreatedAt: m.CreatedAt,
	}
}

// VerificationTokenModel is the GORM model for verification tokens. The
// same email may have any number of live tokens; each is independently
// valid until redeemed into an account or swept.
type VerificationTokenModel struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"size:254;index"`
	Token     string    `gorm:"size:64;uniqueIndex"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (VerificationTokenModel) TableName() string {
	return "verification_tokens"
}

// AutoMigrate runs database migrations for all sso tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{}, &VerificationTokenModel{})
}
