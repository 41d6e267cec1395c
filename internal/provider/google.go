// Package provider validates delegated OAuth credentials against external
// identity providers.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

var ErrInvalidGoogleAudience = errors.New("invalid google audience")

// UserInfo is the provider-agnostic identity extracted from a validated
// token.
type UserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Picture        string
}

// OAuthProvider validates a provider-issued token and returns the identity
// it attests to.
type OAuthProvider interface {
	Name() string
	ValidateToken(ctx context.Context, token string) (*UserInfo, error)
}

// GoogleOAuthProvider validates Google ID tokens.
type GoogleOAuthProvider struct {
	clientID string
}

// NewGoogleOAuthProvider creates a provider pinned to the given OAuth
// client id.
func NewGoogleOAuthProvider(clientID string) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{clientID: clientID}
}

func (p *GoogleOAuthProvider) Name() string {
	return "google"
}

func (p *GoogleOAuthProvider) ValidateToken(ctx context.Context, token string) (*UserInfo, error) {
	oauth2Service, err := oauth2.NewService(ctx, option.WithHTTPClient(&http.Client{}))
	if err != nil {
		return nil, err
	}

	tokenInfoCall := oauth2Service.Tokeninfo()
	tokenInfoCall.IdToken(token)
	tokenInfo, err := tokenInfoCall.Do()
	if err != nil {
		return nil, err
	}

	if tokenInfo.Audience != p.clientID {
		return nil, ErrInvalidGoogleAudience
	}

	userInfo, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	return &UserInfo{
		ProviderUserID: tokenInfo.UserId,
		Email:          tokenInfo.Email,
		EmailVerified:  tokenInfo.VerifiedEmail,
		Name:           userInfo.Name,
		Picture:        userInfo.Picture,
	}, nil
}

func (p *GoogleOAuthProvider) fetchUserInfo(ctx context.Context, token string) (*oauth2.Userinfo, error) {
	client := &http.Client{}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		"https://www.googleapis.com/oauth2/v1/userinfo",
		nil,
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("status code is not OK")
	}

	var userInfo oauth2.Userinfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, err
	}

	return &userInfo, nil
}
