// Package oauth2 bridges to third-party identity providers that can vouch
// for an email address. Each provider exchanges an OAuth2 authorization
// code for an access token and uses it to fetch the account's verified
// email; everything past that (token lifetimes, profile data) stays the
// provider's business.
//
// Provider credentials are passed in explicitly via Config; there is no
// package-level state.
package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// Config carries the credentials for one provider. Construct it once at
// startup and hand it to the provider constructor.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Provider holds the pieces shared by the concrete providers.
type Provider struct {
	name        string
	oauthConfig oauth2.Config

	// HTTPClient is used for profile fetches. Overridable for testing;
	// defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (p *Provider) Name() string { return p.name }

// AuthCodeURL returns the provider's consent page URL carrying the given
// anti-forgery state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state)
}

// Exchange trades the callback code for an access token.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauthConfig.Exchange(ctx, code)
}

// SetEndpoint overrides the provider's OAuth2 endpoint. For testing.
func (p *Provider) SetEndpoint(endpoint oauth2.Endpoint) {
	p.oauthConfig.Endpoint = endpoint
}

func (p *Provider) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return http.DefaultClient
}

// getJSON fetches url with the bearer token and decodes the JSON body
// into out.
func (p *Provider) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
