package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/wallet-auth-api/internal/auth"
	"github.com/naruebet/wallet-auth-api/internal/config"
	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/repository"
)

// SessionUsecase issues and verifies JWT access/refresh pairs and manages
// the session records behind them.
type SessionUsecase interface {
	// GenerateTokenPair mints a fresh session and an access/refresh token
	// pair sharing its session id.
	GenerateTokenPair(ctx context.Context, userID, email string) (*TokenPair, error)

	// VerifyAccessToken validates an access token and returns its claims.
	VerifyAccessToken(token string) (*auth.SessionClaims, error)

	// VerifyRefreshToken validates a refresh token and returns its claims.
	VerifyRefreshToken(token string) (*auth.SessionClaims, error)

	// Refresh validates a refresh token against its session record and
	// issues a new access token only, reusing the same session id.
	Refresh(ctx context.Context, refreshToken string) (string, error)

	// Revoke permanently revokes a session.
	Revoke(ctx context.Context, sessionID string) error

	// RevokeAll revokes every active session of a user.
	RevokeAll(ctx context.Context, userID string) error

	// Touch records activity on a session.
	Touch(ctx context.Context, sessionID string) error

	// ListSessions returns a user's active sessions, newest first.
	ListSessions(ctx context.Context, userID string) ([]model.Session, error)
}

// TokenPair is an issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

var (
	ErrWrongTokenType  = errors.New("wrong token type")
	ErrTokenExpired    = errors.New("token has expired")
	ErrInvalidToken    = errors.New("invalid token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionRevoked  = errors.New("session has been revoked")
	ErrSessionExpired  = errors.New("session has expired")
)

type sessionUsecase struct {
	sessionRepo repository.SessionRepository
	userRepo    repository.UserRepository
	jwtAuth     auth.JWTAuthenticator
	cfg         *config.Config
}

// NewSessionUsecase creates a new instance of SessionUsecase.
func NewSessionUsecase(
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	jwtAuth auth.JWTAuthenticator,
	cfg *config.Config,
) SessionUsecase {
	return &sessionUsecase{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
		jwtAuth:     jwtAuth,
		cfg:         cfg,
	}
}

func (u *sessionUsecase) GenerateTokenPair(ctx context.Context, userID, email string) (*TokenPair, error) {
	sessionID := bson.NewObjectID()

	accessToken, err := u.generateToken(
		userID,
		email,
		sessionID.Hex(),
		auth.TokenTypeAccess,
		u.cfg.Token.AccessTokenSecret,
		u.cfg.Token.AccessTokenExpiresIn,
	)
	if err != nil {
		return nil, err
	}

	// Refresh tokens never carry the email claim.
	refreshToken, err := u.generateToken(
		userID,
		"",
		sessionID.Hex(),
		auth.TokenTypeRefresh,
		u.cfg.Token.RefreshTokenSecret,
		u.cfg.Token.RefreshTokenExpiresIn,
	)
	if err != nil {
		return nil, err
	}

	if _, err := u.sessionRepo.CreateSession(ctx, &model.Session{
		ID:           sessionID,
		UserID:       userID,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(u.cfg.Token.RefreshTokenExpiresIn),
	}); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (u *sessionUsecase) VerifyAccessToken(token string) (*auth.SessionClaims, error) {
	return u.verifyToken(token, auth.TokenTypeAccess, u.cfg.Token.AccessTokenSecret)
}

func (u *sessionUsecase) VerifyRefreshToken(token string) (*auth.SessionClaims, error) {
	return u.verifyToken(token, auth.TokenTypeRefresh, u.cfg.Token.RefreshTokenSecret)
}

func (u *sessionUsecase) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := u.VerifyRefreshToken(refreshToken)
	if err != nil {
		return "", err
	}

	session, err := u.sessionRepo.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrSessionNotFound
		}
		return "", err
	}

	if session.RefreshToken != refreshToken {
		return "", ErrInvalidToken
	}
	if session.Revoked {
		return "", ErrSessionRevoked
	}
	// The session row expires independently of the JWT's own exp claim.
	if time.Now().After(session.ExpiresAt) {
		return "", ErrSessionExpired
	}

	user, err := u.userRepo.GetUser(ctx, session.UserID)
	if err != nil {
		return "", err
	}

	if err := u.sessionRepo.UpdateLastActivity(ctx, session.ID.Hex()); err != nil {
		return "", err
	}

	return u.generateToken(
		session.UserID,
		user.Email,
		session.ID.Hex(),
		auth.TokenTypeAccess,
		u.cfg.Token.AccessTokenSecret,
		u.cfg.Token.AccessTokenExpiresIn,
	)
}

func (u *sessionUsecase) Revoke(ctx context.Context, sessionID string) error {
	if err := u.sessionRepo.RevokeSession(ctx, sessionID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

func (u *sessionUsecase) RevokeAll(ctx context.Context, userID string) error {
	return u.sessionRepo.RevokeUserSessions(ctx, userID)
}

func (u *sessionUsecase) Touch(ctx context.Context, sessionID string) error {
	if err := u.sessionRepo.UpdateLastActivity(ctx, sessionID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

func (u *sessionUsecase) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	return u.sessionRepo.ListSessionsByUserID(ctx, userID)
}

// verifyToken checks the type claim before any cryptographic validation so
// a refresh token presented where an access token is required fails with a
// precise type-mismatch error rather than a signature error.
func (u *sessionUsecase) verifyToken(tokenStr, wantType, secret string) (*auth.SessionClaims, error) {
	tokenType, err := u.jwtAuth.PeekTokenType(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if tokenType != wantType {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongTokenType, tokenType, wantType)
	}

	claims := &auth.SessionClaims{}
	if _, err := u.jwtAuth.ValidateTokenWithClaims(tokenStr, secret, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims, nil
}

func (u *sessionUsecase) generateToken(
	userID, email, sessionID, tokenType, secret string,
	expiresIn time.Duration,
) (string, error) {
	now := time.Now()
	claims := auth.SessionClaims{
		UserID:    userID,
		Email:     email,
		SessionID: sessionID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    u.cfg.Token.Issuer,
			Audience:  jwt.ClaimStrings{u.cfg.Token.Audience},
		},
	}

	token, err := u.jwtAuth.GenerateToken(claims, secret)
	if err != nil {
		return "", err
	}

	return token, nil
}
