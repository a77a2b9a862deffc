// Package gorm provides GORM-based implementations of the sso store
// interfaces. It works with any database GORM supports and is the
// intended production backend.
//
// # Database Schema
//
// The package auto-migrates two tables:
//   - accounts: member accounts, unique on email
//   - verification_tokens: email-verification tokens, unique on token
//
// Both stores rely on the database's uniqueness constraints for their
// concurrency guarantees, so the *gorm.DB must be opened with
// gorm.Config{TranslateError: true} for violations to surface as
// gorm.ErrDuplicatedKey.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	gormstores.AutoMigrate(db)
//	tokens := gormstores.NewTokenStore(db)
//	accounts := gormstores.NewAccountDirectory(db, sso.BcryptHasher{})
package gorm
