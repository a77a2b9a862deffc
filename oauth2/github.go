package oauth2

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Github fetches a verified email through GitHub's OAuth2 code exchange.
type Github struct {
	*Provider

	// API URLs default to GitHub's. Overridable for testing.
	UserInfoURL   string
	UserEmailsURL string
}

func NewGithub(cfg Config) *Github {
	return &Github{
		Provider: &Provider{
			name: "github",
			oauthConfig: oauth2.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				RedirectURL:  cfg.CallbackURL,
				Scopes:       []string{"read:user", "user:email"},
				Endpoint:     github.Endpoint,
			},
		},
		UserInfoURL:   "https://api.github.com/user",
		UserEmailsURL: "https://api.github.com/user/emails",
	}
}

// FetchEmail exchanges the code and returns the account's email. GitHub
// users can hide the email on their public profile, in which case the
// primary verified address from the emails endpoint is used instead.
func (g *Github) FetchEmail(ctx context.Context, code string) (string, error) {
	token, err := g.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("github code exchange: %w", err)
	}

	var profile struct {
		Email string `json:"email"`
	}
	if err := g.getJSON(ctx, g.UserInfoURL, token.AccessToken, &profile); err != nil {
		return "", fmt.Errorf("github user profile: %w", err)
	}
	if profile.Email != "" {
		return profile.Email, nil
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.getJSON(ctx, g.UserEmailsURL, token.AccessToken, &emails); err != nil {
		return "", fmt.Errorf("github user emails: %w", err)
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", fmt.Errorf("github account has no verified primary email")
}
