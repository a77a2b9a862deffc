// Package sso is an account and identity-verification service: it
// registers new members, authenticates returning ones, and proves
// ownership of an email address with a time-limited emailed link before
// an account may be created.
//
// # Flow
//
// Signup is a two-step, stateless flow:
//
//  1. The user submits an email address. VerificationFlow issues a random
//     64-character token, stores it with a 24-hour expiry, and mails a
//     link carrying the token.
//  2. The user follows the link. The token is redeemed back into the
//     email address (and its expiry topped up so the user has at least
//     ten minutes to fill in the rest of the form), the remaining profile
//     fields are collected, and the account is created. Creating the
//     account retires every outstanding token for that address.
//
// Redeeming a token does not consume it: single use is enforced by the
// uniqueness of the account email, so duplicate submissions and racing
// browser tabs resolve to exactly one account.
//
// # Pieces
//
// TokenStore owns verification-token records, AccountDirectory owns
// account records, and VerificationFlow coordinates the two. SessionIssuer
// checks credentials and the active-account policy for returning members.
// Server binds everything to HTTP with scs-managed sessions, and Sweeper
// deletes expired tokens on a cron schedule.
//
// Store implementations live in stores/gorm (relational, production) and
// stores/mem (in-memory, for development and tests). The oauth2
// subpackage bridges to GitHub and Facebook for fetching a verified email
// on the provider's behalf.
//
// # Basic usage
//
//	db, _ := gorm.Open(sqlite.Open("sso.db"), &gorm.Config{TranslateError: true})
//	gormstores.AutoMigrate(db)
//
//	tokens := gormstores.NewTokenStore(db)
//	accounts := gormstores.NewAccountDirectory(db, sso.BcryptHasher{})
//
//	flow := &sso.VerificationFlow{
//		Tokens:   tokens,
//		Accounts: accounts,
//		Mailer:   &sso.ConsoleMailer{},
//		BaseURL:  "http://localhost:8080",
//	}
//	server := &sso.Server{
//		Flow:         flow,
//		Sessions:     &sso.SessionIssuer{Accounts: accounts},
//		JWTSecretKey: secret,
//	}
//	http.ListenAndServe(":8080", server.Handler())
package sso
