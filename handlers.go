package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// EmailProvider is an external identity provider that can prove ownership
// of an email address through an OAuth-style code exchange. The core only
// needs the exchange result; the provider's wire format is its own
// business.
type EmailProvider interface {
	Name() string
	AuthCodeURL(state string) string
	FetchEmail(ctx context.Context, code string) (string, error)
}

// Session key under which the signed-in account ID is kept.
const sessionAccountIDKey = "loggedInAccountId"

// Server exposes the signup, verification and signin flows over HTTP.
// Responses are JSON; form posts may be urlencoded or JSON bodies.
type Server struct {
	Flow     *VerificationFlow
	Sessions *SessionIssuer

	// Optional identity providers mounted at /auth/{name} and
	// /auth/{name}/callback.
	Providers []EmailProvider

	// Session manager. Created with sane defaults when nil.
	Session *scs.SessionManager

	// Optional name used as a prefix for derived defaults.
	AppName string

	// Name of the session variable (and cookie) holding the auth token.
	AuthTokenSessionVar string

	// JWT signing configuration for the session auth token.
	JwtIssuer    string
	JWTSecretKey string

	// How long a session is valid for. Defaults to 1 day.
	SessionTimeoutInSeconds int

	Logger *slog.Logger
}

// EnsureDefaults fills in unset fields.
func (s *Server) EnsureDefaults() *Server {
	if s.AppName == "" {
		s.AppName = "SSO"
	}
	if s.SessionTimeoutInSeconds <= 0 {
		s.SessionTimeoutInSeconds = 86400
	}
	if s.JwtIssuer == "" {
		s.JwtIssuer = s.AppName + "-Issuer"
	}
	if s.AuthTokenSessionVar == "" {
		s.AuthTokenSessionVar = s.AppName + "AuthToken"
	}
	if s.Session == nil {
		s.Session = scs.New()
		s.Session.Lifetime = time.Duration(s.SessionTimeoutInSeconds) * time.Second
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	return s
}

// Handler returns the full route tree, wrapped in session middleware.
func (s *Server) Handler() http.Handler {
	s.EnsureDefaults()
	r := mux.NewRouter()
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost)
	auth.HandleFunc("/verify", s.handleVerifyGet).Methods(http.MethodGet)
	auth.HandleFunc("/verify", s.handleVerifyPost).Methods(http.MethodPost)
	auth.HandleFunc("/signin", s.handleSignin).Methods(http.MethodPost)
	auth.HandleFunc("/signout", s.handleSignout)
	auth.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	for _, p := range s.Providers {
		auth.HandleFunc("/"+p.Name(), s.beginProviderAuth(p)).Methods(http.MethodGet)
		auth.HandleFunc("/"+p.Name()+"/callback", s.providerCallback(p)).Methods(http.MethodGet)
	}
	return s.Session.LoadAndSave(r)
}

// handleSignup kicks off a registration by mailing a verification link.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(r, "email")
	if err != nil {
		s.writeError(w, err)
		return
	}

	if _, err := s.Flow.RequestVerification(fields["email"]); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Check your email for a verification link.",
		"email":   fields["email"],
	})
}

// handleVerifyGet redeems the token from the emailed link and hands the
// email and token back so the caller can render the registration form.
// The token is echoed through a hidden form field instead of the session,
// so the click and the eventual form post don't have to share state.
func (s *Server) handleVerifyGet(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	email, err := s.Flow.RedeemVerification(token)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"email": email, "token": token})
}

// handleVerifyPost completes the registration and signs the new member in.
func (s *Server) handleVerifyPost(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(r, "token", "short_name", "full_name", "password")
	if err != nil {
		s.writeError(w, err)
		return
	}

	account, err := s.Flow.CompleteRegistration(Registration{
		Token:     fields["token"],
		ShortName: fields["short_name"],
		FullName:  fields["full_name"],
		Password:  fields["password"],
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.setLoggedInAccount(account, w, r)
	s.writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

func (s *Server) handleSignin(w http.ResponseWriter, r *http.Request) {
	fields, err := parseFields(r, "email", "password")
	if err != nil {
		s.writeError(w, err)
		return
	}

	account, err := s.Sessions.Authenticate(fields["email"], fields["password"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.setLoggedInAccount(account, w, r)
	s.writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

func (s *Server) handleSignout(w http.ResponseWriter, r *http.Request) {
	s.setLoggedInAccount(nil, w, r)
	to := r.URL.Query().Get("to")
	if to != "" {
		http.Redirect(w, r, to, http.StatusFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"message": "Signed out."})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	accountID := s.Session.GetString(r.Context(), sessionAccountIDKey)
	if accountID == "" {
		s.writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Not signed in."})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"account_id": accountID})
}

// beginProviderAuth sets the anti-forgery state cookie and redirects to
// the provider's consent page.
func (s *Server) beginProviderAuth(p EmailProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := newOauthState()
		http.SetCookie(w, &http.Cookie{
			Name:     "oauthstate",
			Value:    state,
			Path:     "/",
			Expires:  time.Now().Add(20 * time.Minute),
			HttpOnly: true,
		})
		http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
	}
}

// providerCallback exchanges the provider code for a verified email. A
// known email signs the member straight in; an unknown one gets a
// verification token issued on the spot (the provider already proved
// ownership, so no mail round-trip is needed) and lands in the
// registration form.
func (s *Server) providerCallback(p EmailProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stateCookie, _ := r.Cookie("oauthstate")
		if stateCookie == nil || r.FormValue("state") != stateCookie.Value {
			http.SetCookie(w, &http.Cookie{Name: "oauthstate", MaxAge: -1, Path: "/"})
			s.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid oauth state."})
			return
		}

		email, err := p.FetchEmail(r.Context(), r.FormValue("code"))
		if err != nil {
			s.Logger.Info("provider exchange failed", "provider", p.Name(), "err", err)
			s.writeJSON(w, http.StatusBadGateway, map[string]any{"error": "Could not verify email with " + p.Name() + "."})
			return
		}
		normalized, err := NormalizeEmail(email)
		if err != nil {
			s.writeError(w, err)
			return
		}

		account, err := s.Flow.Accounts.FindByEmail(normalized)
		switch {
		case err == nil:
			if !account.IsActive {
				s.writeError(w, ErrInactiveAccount)
				return
			}
			s.setLoggedInAccount(account, w, r)
			http.Redirect(w, r, "/", http.StatusFound)
		case errors.Is(err, ErrAccountNotFound):
			token, err := s.Flow.Tokens.IssueToken(normalized)
			if err != nil {
				s.writeError(w, err)
				return
			}
			http.Redirect(w, r, "/auth/verify?token="+token, http.StatusFound)
		default:
			s.writeError(w, err)
		}
	}
}

// setLoggedInAccount stores the account ID and a signed auth token in the
// session, mirroring the token in a cookie. A nil account clears both.
func (s *Server) setLoggedInAccount(account *Account, w http.ResponseWriter, r *http.Request) {
	s.EnsureDefaults()
	http.SetCookie(w, &http.Cookie{Name: "oauthstate", Value: "", MaxAge: -1, Path: "/"})

	if account == nil {
		if err := s.Session.Destroy(r.Context()); err != nil {
			s.Logger.Warn("error clearing session", "err", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name: s.AuthTokenSessionVar, Path: "/", MaxAge: -1, Expires: time.Now(),
		})
		return
	}

	s.Session.Put(r.Context(), sessionAccountIDKey, account.ID)

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": account.ID,
		"iss": s.JwtIssuer,
		"exp": now.Add(time.Duration(s.SessionTimeoutInSeconds) * time.Second).Unix(),
		"iat": now.Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.JWTSecretKey))
	if err != nil {
		s.Logger.Warn("error signing auth token", "err", err)
		return
	}
	s.Session.Put(r.Context(), s.AuthTokenSessionVar, tokenString)
	http.SetCookie(w, &http.Cookie{
		Name:    s.AuthTokenSessionVar,
		Value:   tokenString,
		Path:    "/",
		MaxAge:  s.SessionTimeoutInSeconds,
		Expires: now.Add(time.Duration(s.SessionTimeoutInSeconds) * time.Second),
	})
}

// VerifyAuthToken parses and validates a token minted by
// setLoggedInAccount and returns the account ID it was issued for.
func (s *Server) VerifyAuthToken(tokenString string) (string, error) {
	s.EnsureDefaults()
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(s.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("subject not found")
	}
	return sub, nil
}

func newOauthState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// parseFields pulls the named fields from an urlencoded/multipart form or
// a JSON body, depending on Content-Type.
func parseFields(r *http.Request, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return nil, NewAuthError(ErrCodeMissingField, "Error parsing form.", "")
		}
		for _, name := range names {
			out[name] = r.FormValue(name)
		}
		return out, nil
	}

	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
		return nil, NewAuthError(ErrCodeMissingField, "Invalid post body.", "")
	}
	for _, name := range names {
		if v, ok := data[name].(string); ok {
			out[name] = v
		}
	}
	return out, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.Logger.Warn("error encoding response", "err", err)
	}
}

// writeError maps AuthErrors onto 4xx responses with their code, message
// and field; anything else is an infrastructure failure and surfaces as a
// generic 500 so internals don't leak.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		status := http.StatusBadRequest
		switch authErr.Code {
		case ErrCodeInvalidCredentials, ErrCodeInactiveAccount:
			status = http.StatusUnauthorized
		case ErrCodeAlreadyRegistered, ErrCodeDuplicateEmail:
			status = http.StatusConflict
		}
		s.writeJSON(w, status, map[string]any{"error": authErr})
		return
	}
	s.Logger.Error("request failed", "err", err)
	s.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error."})
}
