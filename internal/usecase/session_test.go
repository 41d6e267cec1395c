package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naruebet/wallet-auth-api/internal/auth"
	"github.com/naruebet/wallet-auth-api/internal/config"
	"github.com/naruebet/wallet-auth-api/internal/model"
)

type sessionFixture struct {
	usecase     SessionUsecase
	userRepo    *memUserRepo
	sessionRepo *memSessionRepo
	cfg         *config.Config
}

func newSessionFixture(t *testing.T, mutate func(*config.Config)) *sessionFixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	userRepo := newMemUserRepo()
	sessionRepo := newMemSessionRepo()
	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer)

	return &sessionFixture{
		usecase:     NewSessionUsecase(sessionRepo, userRepo, jwtAuth, cfg),
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cfg:         cfg,
	}
}

func (f *sessionFixture) createUser(t *testing.T, email string) *model.User {
	t.Helper()

	user, err := f.userRepo.CreateUser(context.Background(), &model.User{Email: email})
	require.NoError(t, err)
	return user
}

func TestGenerateTokenPair(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	accessClaims, err := f.usecase.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), accessClaims.UserID)
	assert.Equal(t, user.Email, accessClaims.Email)
	assert.Equal(t, auth.TokenTypeAccess, accessClaims.TokenType)

	refreshClaims, err := f.usecase.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), refreshClaims.UserID)
	assert.Empty(t, refreshClaims.Email, "refresh tokens must not carry the email claim")
	assert.Equal(t, auth.TokenTypeRefresh, refreshClaims.TokenType)

	assert.Equal(t, accessClaims.SessionID, refreshClaims.SessionID)

	session, err := f.sessionRepo.GetSession(context.Background(), accessClaims.SessionID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, session.RefreshToken)
	assert.False(t, session.Revoked)
}

func TestVerifyAccessToken_RejectsRefreshToken(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	_, err = f.usecase.VerifyAccessToken(pair.RefreshToken)
	require.ErrorIs(t, err, ErrWrongTokenType)
	assert.NotErrorIs(t, err, ErrInvalidToken, "type confusion must not surface as a signature failure")

	_, err = f.usecase.VerifyRefreshToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrWrongTokenType)
}

func TestVerifyAccessToken_Expired(t *testing.T) {
	f := newSessionFixture(t, func(cfg *config.Config) {
		cfg.Token.AccessTokenExpiresIn = -time.Minute
	})
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	_, err = f.usecase.VerifyAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyAccessToken_WrongSecret(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	other := newSessionFixture(t, func(cfg *config.Config) {
		cfg.Token.AccessTokenSecret = "a-different-secret"
	})

	pair, err := other.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	_, err = f.usecase.VerifyAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyAccessToken_Garbage(t *testing.T) {
	f := newSessionFixture(t, nil)

	_, err := f.usecase.VerifyAccessToken("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	accessToken, err := f.usecase.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	oldClaims, err := f.usecase.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	newClaims, err := f.usecase.VerifyAccessToken(accessToken)
	require.NoError(t, err)

	// Refreshing reuses the session, it does not rotate it.
	assert.Equal(t, oldClaims.SessionID, newClaims.SessionID)
	assert.Equal(t, user.Email, newClaims.Email)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	_, err = f.usecase.Refresh(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, ErrWrongTokenType)
}

func TestRefresh_RevokedSession(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	claims, err := f.usecase.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	require.NoError(t, f.usecase.Revoke(context.Background(), claims.SessionID))

	_, err = f.usecase.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionRevoked)
}

func TestRefresh_ExpiredSession(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	claims, err := f.usecase.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)

	// Expire the session row while the JWT itself is still valid.
	f.sessionRepo.mu.Lock()
	f.sessionRepo.sessions[claims.SessionID].ExpiresAt = time.Now().Add(-time.Minute)
	f.sessionRepo.mu.Unlock()

	_, err = f.usecase.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestRefresh_UnknownSession(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	claims, err := f.usecase.VerifyRefreshToken(pair.RefreshToken)
	require.NoError(t, err)

	f.sessionRepo.mu.Lock()
	delete(f.sessionRepo.sessions, claims.SessionID)
	f.sessionRepo.mu.Unlock()

	_, err = f.usecase.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTouch(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	pair, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
	require.NoError(t, err)

	claims, err := f.usecase.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)

	before, err := f.sessionRepo.GetSession(context.Background(), claims.SessionID)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, f.usecase.Touch(context.Background(), claims.SessionID))

	after, err := f.sessionRepo.GetSession(context.Background(), claims.SessionID)
	require.NoError(t, err)
	assert.True(t, after.LastActivityAt.After(before.LastActivityAt))

	require.ErrorIs(t,
		f.usecase.Touch(context.Background(), "64f000000000000000000000"),
		ErrSessionNotFound)
}

func TestRevoke_UnknownSession(t *testing.T) {
	f := newSessionFixture(t, nil)

	err := f.usecase.Revoke(context.Background(), "64f000000000000000000000")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRevokeAll(t *testing.T) {
	f := newSessionFixture(t, nil)
	user := f.createUser(t, "alice@example.com")

	for range 3 {
		_, err := f.usecase.GenerateTokenPair(context.Background(), user.ID.Hex(), user.Email)
		require.NoError(t, err)
	}

	sessions, err := f.usecase.ListSessions(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	require.NoError(t, f.usecase.RevokeAll(context.Background(), user.ID.Hex()))

	sessions, err = f.usecase.ListSessions(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
