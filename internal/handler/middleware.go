package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/naruebet/wallet-auth-api/internal/auth"
	"github.com/naruebet/wallet-auth-api/internal/usecase"
)

type contextKey string

const (
	claimsKey    contextKey = "sessionClaims"
	requestIDKey contextKey = "requestID"
)

// AuthMiddleware guards routes behind a valid access token.
type AuthMiddleware struct {
	sessions usecase.SessionUsecase
	logger   *zerolog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
func NewAuthMiddleware(sessions usecase.SessionUsecase, logger *zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		logger:   logger,
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(w, "Invalid authorization header format")
			return
		}

		claims, err := m.sessions.VerifyAccessToken(parts[1])
		if err != nil {
			if errors.Is(err, usecase.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, ErrCodeTokenExpired, "Access token has expired")
				return
			}
			unauthorized(w, "Invalid access token")
			return
		}

		// Best effort; a stale last-activity timestamp never blocks the
		// request.
		if err := m.sessions.Touch(r.Context(), claims.SessionID); err != nil &&
			!errors.Is(err, usecase.ErrSessionNotFound) {
			m.logger.Warn().Err(err).Str("session_id", claims.SessionID).Msg("failed to touch session")
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionClaims returns the claims attached by RequireAuth, or nil on an
// unguarded route.
func SessionClaims(r *http.Request) *auth.SessionClaims {
	claims, _ := r.Context().Value(claimsKey).(*auth.SessionClaims)
	return claims
}

// RequestID assigns each request an id and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLogger emits one structured log line per request.
func RequestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(recorder, r)

			requestID, _ := r.Context().Value(requestIDKey).(string)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Str("request_id", requestID).
				Msg("request completed")
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
