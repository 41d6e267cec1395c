package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/usecase"
)

// TokenHandler serves the personal access token endpoints. Every route is
// guarded by the auth middleware.
type TokenHandler struct {
	patUsecase usecase.PersonalAccessTokenUsecase
	logger     *zerolog.Logger
}

// NewTokenHandler creates a new TokenHandler instance.
func NewTokenHandler(patUsecase usecase.PersonalAccessTokenUsecase, logger *zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		patUsecase: patUsecase,
		logger:     logger,
	}
}

type CreateTokenRequest struct {
	Name      string     `json:"name"       validate:"required,max=100"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type TokenResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toTokenResponse(token *model.PersonalAccessToken) TokenResponse {
	resp := TokenResponse{
		ID:        token.ID.Hex(),
		Name:      token.Name,
		Token:     token.Token,
		CreatedAt: token.CreatedAt,
	}
	if !token.ExpiresAt.IsZero() {
		expiresAt := token.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	if !token.LastUsedAt.IsZero() {
		lastUsedAt := token.LastUsedAt
		resp.LastUsedAt = &lastUsedAt
	}
	return resp
}

func (h *TokenHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r)
	if claims == nil {
		unauthorized(w, "Authorization required")
		return
	}

	var req CreateTokenRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		badRequest(w, "expires_at must be in the future")
		return
	}

	token, err := h.patUsecase.CreateToken(r.Context(), claims.UserID, req.Name, req.ExpiresAt)
	if err != nil {
		var rateLimited *usecase.RateLimitError
		switch {
		case errors.Is(err, usecase.ErrInvalidTokenName):
			badRequest(w, "invalid token name")
		case errors.As(err, &rateLimited):
			tooManyRequests(w, fmt.Sprintf(
				"token creation limit reached, try again after %s",
				rateLimited.ResetAt.Format(time.RFC3339),
			))
		case errors.Is(err, usecase.ErrMaxTokensExceeded):
			conflict(w, "active token limit reached, delete an existing token first")
		default:
			h.logger.Error().Err(err).Msg("failed to create personal access token")
			internalError(w)
		}
		return
	}

	// The only response that ever carries the token string.
	writeJSON(w, http.StatusCreated, toTokenResponse(token))
}

func (h *TokenHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r)
	if claims == nil {
		unauthorized(w, "Authorization required")
		return
	}

	tokens, err := h.patUsecase.ListTokens(r.Context(), claims.UserID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list personal access tokens")
		internalError(w)
		return
	}

	out := make([]TokenResponse, 0, len(tokens))
	for i := range tokens {
		out = append(out, toTokenResponse(&tokens[i]))
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *TokenHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	claims := SessionClaims(r)
	if claims == nil {
		unauthorized(w, "Authorization required")
		return
	}

	tokenID := chi.URLParam(r, "tokenID")
	if tokenID == "" {
		badRequest(w, "token id is required")
		return
	}

	if err := h.patUsecase.DeleteToken(r.Context(), claims.UserID, tokenID); err != nil {
		switch {
		case errors.Is(err, usecase.ErrTokenNotFound):
			notFound(w, "token not found")
		case errors.Is(err, usecase.ErrTokenForbidden):
			forbidden(w, "token belongs to another user")
		default:
			h.logger.Error().Err(err).Msg("failed to delete personal access token")
			internalError(w)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
