package sso_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sso "github.com/fmproj/sso"
	"github.com/fmproj/sso/stores/mem"
)

func newSessionFixture(t *testing.T) (*sso.SessionIssuer, *mem.AccountDirectory) {
	t.Helper()
	accounts := mem.NewAccountDirectory(nil)
	_, err := accounts.CreateAccount(sso.NewAccount{
		Email: "jo@example.com", ShortName: "Jo", Password: "secret",
	})
	require.NoError(t, err)
	return &sso.SessionIssuer{Accounts: accounts}, accounts
}

func TestSessionIssuerAuthenticate(t *testing.T) {
	issuer, _ := newSessionFixture(t)

	account, err := issuer.Authenticate("jo@Example.COM", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", account.Email)
}

func TestSessionIssuerInvalidCredentials(t *testing.T) {
	issuer, _ := newSessionFixture(t)

	// wrong password and unknown account must be indistinguishable
	_, wrongPassword := issuer.Authenticate("jo@example.com", "nope")
	_, unknownAccount := issuer.Authenticate("ghost@example.com", "secret")

	assert.ErrorIs(t, wrongPassword, sso.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownAccount, sso.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownAccount.Error())
}

func TestSessionIssuerInactiveAccount(t *testing.T) {
	issuer, accounts := newSessionFixture(t)
	require.NoError(t, accounts.SetActive("jo@example.com", false))

	// correct credentials on a disabled account get a distinct error
	_, err := issuer.Authenticate("jo@example.com", "secret")
	assert.ErrorIs(t, err, sso.ErrInactiveAccount)

	// but wrong credentials on a disabled account must not reveal that
	// the account exists
	_, err = issuer.Authenticate("jo@example.com", "nope")
	assert.ErrorIs(t, err, sso.ErrInvalidCredentials)
}
