package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/naruebet/wallet-auth-api/internal/auth"
	"github.com/naruebet/wallet-auth-api/internal/config"
	"github.com/naruebet/wallet-auth-api/internal/handler"
	"github.com/naruebet/wallet-auth-api/internal/mailer"
	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/notifier"
	"github.com/naruebet/wallet-auth-api/internal/provider"
	"github.com/naruebet/wallet-auth-api/internal/ratelimit"
	"github.com/naruebet/wallet-auth-api/internal/repository"
	"github.com/naruebet/wallet-auth-api/internal/usecase"
)

const (
	shutdownTimeout = 10 * time.Second

	limiterSweepInterval = time.Minute
	tokenSweepInterval   = time.Hour
)

func main() {
	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger := &zl

	cfg := config.New(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect from mongodb")
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}

	db := client.Database(cfg.MongoDatabase)

	userRepo := repository.NewUserMongoRepository(ctx, logger, db)
	authMethodRepo := repository.NewAuthMethodMongoRepository(ctx, logger, db)
	sessionRepo := repository.NewSessionMongoRepository(ctx, logger, db)
	codeRepo := repository.NewVerificationCodeMongoRepository(ctx, logger, db)
	challengeRepo := repository.NewSIWEChallengeMongoRepository(ctx, logger, db)
	tokenRepo := repository.NewPersonalAccessTokenMongoRepository(ctx, logger, db)

	limiter := newLimiter(ctx, cfg, logger)

	jwtAuth := auth.NewJWTAuthenticator(cfg.Token.Audience, cfg.Token.Issuer)
	sessions := usecase.NewSessionUsecase(sessionRepo, userRepo, jwtAuth, cfg)

	notifiers := map[string]notifier.Notifier{
		model.CodeTypeEmail: notifier.NewEmailNotifier(mailer.NewMailer(logger)),
		model.CodeTypeMFA:   notifier.NewEmailNotifier(mailer.NewMailer(logger)),
	}
	if cfg.SMS.GatewayURL != "" {
		notifiers[model.CodeTypeSMS] = notifier.NewSMSNotifier(cfg.SMS)
	}

	providers := map[string]provider.OAuthProvider{}
	if cfg.GoogleClientID != "" {
		providers["google"] = provider.NewGoogleOAuthProvider(cfg.GoogleClientID)
	}

	codeUsecase := usecase.NewVerificationCodeUsecase(
		codeRepo, userRepo, authMethodRepo, sessions, notifiers)
	siweUsecase := usecase.NewSIWEUsecase(
		challengeRepo, userRepo, authMethodRepo, sessions, cfg)
	oauthUsecase := usecase.NewOAuthUsecase(
		userRepo, authMethodRepo, sessions, providers)
	patUsecase := usecase.NewPersonalAccessTokenUsecase(
		tokenRepo, limiter, cfg, logger)

	limiter.StartSweeper(ctx, limiterSweepInterval, logger)
	go sweepExpiredTokens(ctx, patUsecase, logger)

	authHandler := handler.NewAuthHandler(siweUsecase, codeUsecase, oauthUsecase, sessions, logger)
	tokenHandler := handler.NewTokenHandler(patUsecase, logger)
	authMiddleware := handler.NewAuthMiddleware(sessions, logger)
	router := handler.NewRouter(authHandler, tokenHandler, authMiddleware, logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}

	// Drain queued last-used updates before the mongo client goes away.
	patUsecase.Flush()
}

func newLimiter(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *ratelimit.Limiter {
	if cfg.RedisAddr == "" {
		return ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping redis")
	}

	return ratelimit.NewLimiter(ratelimit.NewRedisStore(client, "ratelimit"))
}

func sweepExpiredTokens(ctx context.Context, pat usecase.PersonalAccessTokenUsecase, logger *zerolog.Logger) {
	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := pat.DeleteExpired(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("expired token sweep failed")
				continue
			}
			if deleted > 0 {
				logger.Info().Int64("deleted", deleted).Msg("swept expired personal access tokens")
			}
		}
	}
}
