package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/jakechorley/drop-in-shifts/internal/config"
)

const ScopeGmailSend = "https://www.googleapis.com/auth/gmail.send"

// redirectURL is the out-of-band style loopback target; the code is pasted back into the CLI
const redirectURL = "http://localhost"

// GetOAuthConfig creates an OAuth2 config for sending mail from the client configuration
func GetOAuthConfig(oauthCfg *config.OAuthClientConfig) (*oauth2.Config, error) {
	oauthConfigJSON, err := json.Marshal(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal oauth config: %w", err)
	}

	googleConfig, err := google.ConfigFromJSON(oauthConfigJSON, ScopeGmailSend)
	if err != nil {
		return nil, fmt.Errorf("failed to create google config: %w", err)
	}
	googleConfig.RedirectURL = redirectURL

	return googleConfig, nil
}

// AuthURL returns the consent URL that yields a long-lived refresh token
func AuthURL(oauthConfig *oauth2.Config) string {
	return oauthConfig.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode swaps an authorization code for a token and checks a refresh token was issued
func ExchangeCode(ctx context.Context, oauthConfig *oauth2.Config, code string) (*oauth2.Token, error) {
	token, err := oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}
	if token.RefreshToken == "" {
		return nil, errors.New("no refresh token returned; revoke the app's access and authorize again")
	}
	return token, nil
}

// RefreshTokenSource returns a token source that mints access tokens from a stored refresh token
func RefreshTokenSource(ctx context.Context, oauthConfig *oauth2.Config, refreshToken string) (oauth2.TokenSource, error) {
	if refreshToken == "" {
		return nil, errors.New("gmail refresh token is not configured")
	}
	return oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}), nil
}
