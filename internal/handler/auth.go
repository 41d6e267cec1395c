package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/usecase"
)

// AuthHandler serves the login, session and challenge endpoints.
type AuthHandler struct {
	siweUsecase  usecase.SIWEUsecase
	codeUsecase  usecase.VerificationCodeUsecase
	oauthUsecase usecase.OAuthUsecase
	sessions     usecase.SessionUsecase
	logger       *zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(
	siweUsecase usecase.SIWEUsecase,
	codeUsecase usecase.VerificationCodeUsecase,
	oauthUsecase usecase.OAuthUsecase,
	sessions usecase.SessionUsecase,
	logger *zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		siweUsecase:  siweUsecase,
		codeUsecase:  codeUsecase,
		oauthUsecase: oauthUsecase,
		sessions:     sessions,
		logger:       logger,
	}
}

type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
	DisplayName   string `json:"display_name,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
}

type LoginResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

func toUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:            user.ID.Hex(),
		Email:         user.Email,
		Phone:         user.Phone,
		EmailVerified: user.EmailVerified,
		PhoneVerified: user.PhoneVerified,
		DisplayName:   user.DisplayName,
		AvatarURL:     user.AvatarURL,
	}
}

func toLoginResponse(result *usecase.LoginResult) LoginResponse {
	return LoginResponse{
		User:         toUserResponse(result.User),
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}
}

type SIWEChallengeRequest struct {
	Address   string `json:"address"   validate:"required,max=42"`
	ChainID   int    `json:"chain_id"  validate:"required,min=1"`
	Statement string `json:"statement" validate:"max=256"`
}

type SIWEChallengeResponse struct {
	Address   string    `json:"address"`
	Message   string    `json:"message"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *AuthHandler) CreateSIWEChallenge(w http.ResponseWriter, r *http.Request) {
	var req SIWEChallengeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	challenge, err := h.siweUsecase.CreateChallenge(r.Context(), usecase.CreateChallengeParams{
		Address:   req.Address,
		ChainID:   req.ChainID,
		Statement: req.Statement,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidAddress) {
			badRequest(w, "invalid ethereum address")
			return
		}
		h.logger.Error().Err(err).Msg("failed to create siwe challenge")
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, SIWEChallengeResponse{
		Address:   challenge.Address,
		Message:   challenge.Message,
		Nonce:     challenge.Nonce,
		ExpiresAt: challenge.ExpiresAt,
	})
}

type SIWEVerifyRequest struct {
	Address   string `json:"address"   validate:"required,max=42"`
	Signature string `json:"signature" validate:"required,max=256"`
	Message   string `json:"message"   validate:"required,max=4096"`
}

func (h *AuthHandler) VerifySIWEChallenge(w http.ResponseWriter, r *http.Request) {
	var req SIWEVerifyRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.siweUsecase.VerifyChallenge(r.Context(), req.Address, req.Signature, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidMessage):
			badRequest(w, "malformed challenge message")
		case errors.Is(err, usecase.ErrChallengeNotFound):
			notFound(w, "challenge not found")
		case errors.Is(err, usecase.ErrChallengeExpired):
			writeError(w, http.StatusUnauthorized, ErrCodeTokenExpired, "challenge has expired")
		case errors.Is(err, usecase.ErrInvalidSignature):
			invalidCredentials(w, "signature verification failed")
		default:
			h.logger.Error().Err(err).Msg("failed to verify siwe challenge")
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, toLoginResponse(result))
}

type CodeRequestRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Type       string `json:"type"       validate:"required,oneof=email sms mfa"`
}

type CodeRequestResponse struct {
	Message string `json:"message"`
}

func (h *AuthHandler) RequestVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req CodeRequestRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if err := h.codeUsecase.Request(r.Context(), req.Identifier, req.Type); err != nil {
		if errors.Is(err, usecase.ErrUnsupportedCodeType) {
			badRequest(w, "unsupported verification code type")
			return
		}
		h.logger.Error().Err(err).Msg("failed to request verification code")
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, CodeRequestResponse{
		Message: "A verification code has been sent",
	})
}

type CodeVerifyRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Type       string `json:"type"       validate:"required,oneof=email sms mfa"`
	Code       string `json:"code"       validate:"required,len=6,numeric"`
}

func (h *AuthHandler) VerifyVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req CodeVerifyRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.codeUsecase.Verify(r.Context(), req.Identifier, req.Type, req.Code)
	if err != nil {
		var invalid *usecase.InvalidCodeError
		switch {
		case errors.Is(err, usecase.ErrCodeNotFound):
			notFound(w, "verification code not found")
		case errors.Is(err, usecase.ErrCodeExpired):
			writeError(w, http.StatusUnauthorized, ErrCodeTokenExpired, "verification code has expired")
		case errors.Is(err, usecase.ErrMaxAttemptsExceeded):
			tooManyRequests(w, "maximum verification attempts exceeded")
		case errors.As(err, &invalid):
			invalidCredentials(w, fmt.Sprintf("invalid code, %d attempts remaining", invalid.RemainingAttempts))
		default:
			h.logger.Error().Err(err).Msg("failed to verify code")
			internalError(w)
		}
		return
	}

	if result.User == nil {
		// MFA confirmations consume the code without starting a session.
		writeJSON(w, http.StatusOK, CodeRequestResponse{Message: "Code verified"})
		return
	}

	writeJSON(w, http.StatusOK, toLoginResponse(result))
}

type OAuthLoginRequest struct {
	Provider string `json:"provider" validate:"required,max=32"`
	Token    string `json:"token"    validate:"required,max=4096"`
}

func (h *AuthHandler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req OAuthLoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := h.oauthUsecase.Login(r.Context(), req.Provider, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrUnsupportedProvider):
			badRequest(w, "unsupported oauth provider")
		case errors.Is(err, usecase.ErrProviderRejected):
			invalidCredentials(w, "provider rejected the token")
		default:
			h.logger.Error().Err(err).Msg("failed to log in with oauth")
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, toLoginResponse(result))
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	accessToken, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, ErrCodeTokenExpired, "refresh token has expired")
		case errors.Is(err, usecase.ErrWrongTokenType),
			errors.Is(err, usecase.ErrInvalidToken),
			errors.Is(err, usecase.ErrSessionNotFound),
			errors.Is(err, usecase.ErrSessionRevoked),
			errors.Is(err, usecase.ErrSessionExpired):
			unauthorized(w, "invalid refresh token")
		default:
			h.logger.Error().Err(err).Msg("failed to refresh access token")
			internalError(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{AccessToken: accessToken})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r)
	if claims == nil {
		unauthorized(w, "Authorization required")
		return
	}

	if err := h.sessions.Revoke(r.Context(), claims.SessionID); err != nil {
		if errors.Is(err, usecase.ErrSessionNotFound) {
			notFound(w, "session not found")
			return
		}
		h.logger.Error().Err(err).Msg("failed to revoke session")
		internalError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type SessionResponse struct {
	ID             string    `json:"id"`
	Current        bool      `json:"current"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r)
	if claims == nil {
		unauthorized(w, "Authorization required")
		return
	}

	sessions, err := h.sessions.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list sessions")
		internalError(w)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:             s.ID.Hex(),
			Current:        s.ID.Hex() == claims.SessionID,
			LastActivityAt: s.LastActivityAt,
			CreatedAt:      s.CreatedAt,
			ExpiresAt:      s.ExpiresAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *AuthHandler) RevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r)
	if claims == nil {
		unauthorized(w, "Authorization required")
		return
	}

	if err := h.sessions.RevokeAll(r.Context(), claims.UserID); err != nil {
		h.logger.Error().Err(err).Msg("failed to revoke sessions")
		internalError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
