package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naruebet/wallet-auth-api/internal/auth"
	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/provider"
)

// fakeProvider accepts a single token string and returns a fixed identity.
type fakeProvider struct {
	name  string
	token string
	info  *provider.UserInfo
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) ValidateToken(_ context.Context, token string) (*provider.UserInfo, error) {
	if token != p.token {
		return nil, errors.New("token rejected")
	}
	return p.info, nil
}

type oauthFixture struct {
	usecase        OAuthUsecase
	userRepo       *memUserRepo
	authMethodRepo *memAuthMethodRepo
}

func newOAuthFixture(t *testing.T, providers map[string]provider.OAuthProvider) *oauthFixture {
	t.Helper()

	cfg := testConfig()
	userRepo := newMemUserRepo()
	authMethodRepo := newMemAuthMethodRepo()
	sessionRepo := newMemSessionRepo()
	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer)
	sessions := NewSessionUsecase(sessionRepo, userRepo, jwtAuth, cfg)

	return &oauthFixture{
		usecase:        NewOAuthUsecase(userRepo, authMethodRepo, sessions, providers),
		userRepo:       userRepo,
		authMethodRepo: authMethodRepo,
	}
}

func TestOAuthLogin(t *testing.T) {
	google := &fakeProvider{
		name:  "google",
		token: "valid-id-token",
		info: &provider.UserInfo{
			ProviderUserID: "108973412345",
			Email:          "ivan@example.com",
			EmailVerified:  true,
			Name:           "Ivan",
			Picture:        "https://example.com/ivan.png",
		},
	}
	f := newOAuthFixture(t, map[string]provider.OAuthProvider{"google": google})
	ctx := context.Background()

	result, err := f.usecase.Login(ctx, "google", "valid-id-token")
	require.NoError(t, err)
	require.NotNil(t, result.User)
	require.NotNil(t, result.Tokens)

	assert.Equal(t, "ivan@example.com", result.User.Email)
	assert.True(t, result.User.EmailVerified)
	assert.Equal(t, "Ivan", result.User.DisplayName)
	assert.Equal(t, "https://example.com/ivan.png", result.User.AvatarURL)

	// The auth method identifier is namespaced by provider.
	method, err := f.authMethodRepo.GetAuthMethod(ctx, "google:108973412345", model.AuthMethodOAuth)
	require.NoError(t, err)
	assert.Equal(t, "google", method.Provider)
	assert.Equal(t, result.User.ID.Hex(), method.UserID)
}

func TestOAuthLogin_LinksByEmail(t *testing.T) {
	google := &fakeProvider{
		name:  "google",
		token: "valid-id-token",
		info: &provider.UserInfo{
			ProviderUserID: "108973412345",
			Email:          "judy@example.com",
			EmailVerified:  true,
		},
	}
	f := newOAuthFixture(t, map[string]provider.OAuthProvider{"google": google})
	ctx := context.Background()

	existing, err := f.userRepo.CreateUser(ctx, &model.User{Email: "judy@example.com"})
	require.NoError(t, err)

	result, err := f.usecase.Login(ctx, "google", "valid-id-token")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.User.ID)
}

func TestOAuthLogin_UnsupportedProvider(t *testing.T) {
	f := newOAuthFixture(t, map[string]provider.OAuthProvider{})

	_, err := f.usecase.Login(context.Background(), "github", "whatever")
	require.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestOAuthLogin_ProviderRejectsToken(t *testing.T) {
	google := &fakeProvider{name: "google", token: "valid-id-token"}
	f := newOAuthFixture(t, map[string]provider.OAuthProvider{"google": google})

	_, err := f.usecase.Login(context.Background(), "google", "forged")
	require.ErrorIs(t, err, ErrProviderRejected)
}
