package sso_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sso "github.com/fmproj/sso"
	"github.com/fmproj/sso/stores/mem"
)

type serverFixture struct {
	server   *sso.Server
	handler  http.Handler
	tokens   *mem.TokenStore
	accounts *mem.AccountDirectory
	mailer   *recordingMailer
}

func newServerFixture(t *testing.T, providers ...sso.EmailProvider) *serverFixture {
	t.Helper()
	tokens := mem.NewTokenStore()
	accounts := mem.NewAccountDirectory(nil)
	mailer := &recordingMailer{}
	server := &sso.Server{
		Flow: &sso.VerificationFlow{
			Tokens:   tokens,
			Accounts: accounts,
			Mailer:   mailer,
			BaseURL:  "http://localhost:8080",
		},
		Sessions:     &sso.SessionIssuer{Accounts: accounts},
		Providers:    providers,
		JWTSecretKey: "test-secret-key",
	}
	return &serverFixture{
		server:   server,
		handler:  server.Handler(),
		tokens:   tokens,
		accounts: accounts,
		mailer:   mailer,
	}
}

func postForm(handler http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return resp.Error.Code
}

func TestHandleSignup(t *testing.T) {
	f := newServerFixture(t)
	_, err := f.accounts.CreateAccount(sso.NewAccount{
		Email: "taken@example.com", ShortName: "Taken", Password: "secret",
	})
	require.NoError(t, err)

	tests := []struct {
		name           string
		email          string
		expectedStatus int
		expectedCode   string
	}{
		{name: "successful signup", email: "new@example.com", expectedStatus: http.StatusOK},
		{name: "invalid email", email: "not-an-email", expectedStatus: http.StatusBadRequest, expectedCode: sso.ErrCodeInvalidEmail},
		{name: "already registered", email: "taken@Example.COM", expectedStatus: http.StatusConflict, expectedCode: sso.ErrCodeAlreadyRegistered},
		{name: "missing email", email: "", expectedStatus: http.StatusBadRequest, expectedCode: sso.ErrCodeInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			form.Set("email", tt.email)
			rr := postForm(f.handler, "/auth/signup", form)

			assert.Equal(t, tt.expectedStatus, rr.Code, "body: %s", rr.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, rr.Body.String()))
			}
		})
	}

	assert.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "new@example.com", f.mailer.sent[0].to)
}

func TestHandleSignupJSONBody(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/signup",
		strings.NewReader(`{"email": "json@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "json@example.com", f.mailer.sent[0].to)
}

func TestHandleVerifyGet(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.tokens.IssueToken("jo@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/auth/verify?token="+token, nil)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "jo@example.com", resp["email"])
	assert.Equal(t, token, resp["token"])

	// wrong and missing tokens get the same generic response
	for _, tok := range []string{"bogus", ""} {
		req := httptest.NewRequest(http.MethodGet, "/auth/verify?token="+tok, nil)
		rr := httptest.NewRecorder()
		f.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, sso.ErrCodeTokenInvalid, errorCode(t, rr.Body.String()))
	}
}

func TestHandleVerifyPost(t *testing.T) {
	f := newServerFixture(t)
	token, err := f.tokens.IssueToken("jo@example.com")
	require.NoError(t, err)

	form := url.Values{}
	form.Set("token", token)
	form.Set("short_name", "Jo")
	form.Set("full_name", "Jo Smith")
	form.Set("password", "secret")
	rr := postForm(f.handler, "/auth/verify", form)

	require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())

	var resp struct {
		Account sso.Account `json:"account"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "jo@example.com", resp.Account.Email)
	assert.Equal(t, "Jo Smith", resp.Account.FullName)

	// the new member is signed in
	cookies := rr.Result().Cookies()
	var authCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == f.server.AuthTokenSessionVar {
			authCookie = c
		}
	}
	require.NotNil(t, authCookie, "auth token cookie not set")
	accountID, err := f.server.VerifyAuthToken(authCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, resp.Account.ID, accountID)

	// the token was consumed by account creation
	rr = postForm(f.handler, "/auth/verify", form)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, sso.ErrCodeTokenInvalid, errorCode(t, rr.Body.String()))
}

func TestHandleSignin(t *testing.T) {
	f := newServerFixture(t)
	_, err := f.accounts.CreateAccount(sso.NewAccount{
		Email: "jo@example.com", ShortName: "Jo", Password: "secret",
	})
	require.NoError(t, err)
	_, err = f.accounts.CreateAccount(sso.NewAccount{
		Email: "off@example.com", ShortName: "Off", Password: "secret",
	})
	require.NoError(t, err)
	require.NoError(t, f.accounts.SetActive("off@example.com", false))

	tests := []struct {
		name           string
		email          string
		password       string
		expectedStatus int
		expectedCode   string
	}{
		{name: "successful signin", email: "jo@Example.COM", password: "secret", expectedStatus: http.StatusOK},
		{name: "wrong password", email: "jo@example.com", password: "nope", expectedStatus: http.StatusUnauthorized, expectedCode: sso.ErrCodeInvalidCredentials},
		{name: "unknown account", email: "ghost@example.com", password: "secret", expectedStatus: http.StatusUnauthorized, expectedCode: sso.ErrCodeInvalidCredentials},
		{name: "inactive account", email: "off@example.com", password: "secret", expectedStatus: http.StatusUnauthorized, expectedCode: sso.ErrCodeInactiveAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{}
			form.Set("email", tt.email)
			form.Set("password", tt.password)
			rr := postForm(f.handler, "/auth/signin", form)

			assert.Equal(t, tt.expectedStatus, rr.Code, "body: %s", rr.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(t, rr.Body.String()))
			}
		})
	}
}

var verifyLinkPattern = regexp.MustCompile(`token=([A-Za-z0-9]+)`)

// TestSignupJourney walks the full flow against a live test server with a
// cookie jar: request verification, follow the mailed link, complete the
// form, then hit an authenticated endpoint.
func TestSignupJourney(t *testing.T) {
	f := newServerFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	// step 1: ask for a verification link
	resp, err := client.PostForm(ts.URL+"/auth/signup", url.Values{"email": {"User@Example.COM"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, f.mailer.sent, 1)
	match := verifyLinkPattern.FindStringSubmatch(f.mailer.sent[0].body)
	require.NotNil(t, match, "no token in mail body: %s", f.mailer.sent[0].body)
	token := match[1]

	// step 2: click the link
	resp, err = client.Get(ts.URL + "/auth/verify?token=" + token)
	require.NoError(t, err)
	var verify map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&verify))
	resp.Body.Close()
	assert.Equal(t, "User@example.com", verify["email"])

	// step 3: submit the registration form
	resp, err = client.PostForm(ts.URL+"/auth/verify", url.Values{
		"token":      {token},
		"short_name": {"Jo"},
		"password":   {"secret"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// step 4: the session is established
	resp, err = client.Get(ts.URL + "/auth/me")
	require.NoError(t, err)
	var me map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, me["account_id"])

	// step 5: sign out again
	resp, err = client.Get(ts.URL + "/auth/signout")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(ts.URL + "/auth/me")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// fakeProvider stands in for an external identity provider.
type fakeProvider struct {
	email string
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.example/authorize?state=" + state
}

func (p *fakeProvider) FetchEmail(ctx context.Context, code string) (string, error) {
	return p.email, p.err
}

func TestProviderCallbackUnknownEmail(t *testing.T) {
	provider := &fakeProvider{email: "New@Example.COM"}
	f := newServerFixture(t, provider)

	// begin: state cookie plus redirect to the consent page
	req := httptest.NewRequest(http.MethodGet, "/auth/fake", nil)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusFound, rr.Code)

	var state *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "oauthstate" {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.Contains(t, rr.Header().Get("Location"), "state="+state.Value)

	// callback: unknown email gets a token and lands in the signup form
	req = httptest.NewRequest(http.MethodGet, "/auth/fake/callback?state="+state.Value+"&code=abc", nil)
	req.AddCookie(state)
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusFound, rr.Code, "body: %s", rr.Body.String())

	location := rr.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/auth/verify?token="), "location: %s", location)
	token := strings.TrimPrefix(location, "/auth/verify?token=")

	email, err := f.tokens.RedeemToken(token)
	require.NoError(t, err)
	assert.Equal(t, "New@example.com", email)
}

func TestProviderCallbackKnownEmail(t *testing.T) {
	provider := &fakeProvider{email: "jo@example.com"}
	f := newServerFixture(t, provider)
	_, err := f.accounts.CreateAccount(sso.NewAccount{
		Email: "jo@example.com", ShortName: "Jo", Password: "secret",
	})
	require.NoError(t, err)

	state := &http.Cookie{Name: "oauthstate", Value: "state123"}
	req := httptest.NewRequest(http.MethodGet, "/auth/fake/callback?state=state123&code=abc", nil)
	req.AddCookie(state)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code, "body: %s", rr.Body.String())
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestProviderCallbackBadState(t *testing.T) {
	provider := &fakeProvider{email: "jo@example.com"}
	f := newServerFixture(t, provider)

	req := httptest.NewRequest(http.MethodGet, "/auth/fake/callback?state=evil&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: "oauthstate", Value: "good"})
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
