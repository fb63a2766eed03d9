package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// GoogleUserInfoURL Google OIDC 用户信息
const GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProfile is the identity returned by a completed Google sign-in.
type GoogleProfile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// GoogleIdentity runs the Google OAuth code flow.
type GoogleIdentity interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*GoogleProfile, error)
}

// GoogleOAuth is the oauth2 backed GoogleIdentity.
type GoogleOAuth struct {
	conf        *oauth2.Config
	userInfoURL string
}

// NewGoogleOAuth creates the Google client from config.
func NewGoogleOAuth(cfg config.GoogleConfig) *GoogleOAuth {
	return newGoogleOAuth(&oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
	}, GoogleUserInfoURL)
}

func newGoogleOAuth(conf *oauth2.Config, userInfoURL string) *GoogleOAuth {
	return &GoogleOAuth{conf: conf, userInfoURL: userInfoURL}
}

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*GoogleProfile, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var p GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if p.Subject == "" || p.Email == "" {
		return nil, fmt.Errorf("userinfo missing subject or email")
	}
	return &p, nil
}
