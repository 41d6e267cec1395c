// Package handler exposes the authentication service over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// NewRouter assembles the HTTP routing table.
func NewRouter(
	authHandler *AuthHandler,
	tokenHandler *TokenHandler,
	authMiddleware *AuthMiddleware,
	logger *zerolog.Logger,
) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(RequestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(maxBodySize(1 << 20)) // 1 MB

		r.Route("/auth", func(r chi.Router) {
			r.Post("/siwe/challenge", authHandler.CreateSIWEChallenge)
			r.Post("/siwe/verify", authHandler.VerifySIWEChallenge)
			r.Post("/code/request", authHandler.RequestVerificationCode)
			r.Post("/code/verify", authHandler.VerifyVerificationCode)
			r.Post("/oauth", authHandler.OAuthLogin)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.RequireAuth)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Get("/", authHandler.ListSessions)
			r.Delete("/", authHandler.RevokeAllSessions)
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Use(authMiddleware.RequireAuth)
			r.Post("/", tokenHandler.CreateToken)
			r.Get("/", tokenHandler.ListTokens)
			r.Delete("/{tokenID}", tokenHandler.DeleteToken)
		})
	})

	return r
}

func maxBodySize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
