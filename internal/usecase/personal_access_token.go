package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/wallet-auth-api/internal/config"
	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/otp"
	"github.com/naruebet/wallet-auth-api/internal/ratelimit"
	"github.com/naruebet/wallet-auth-api/internal/repository"
)

// PersonalAccessTokenUsecase issues and validates long-lived API
// credentials under dual quota: a creation rate limit and an active-token
// ceiling.
type PersonalAccessTokenUsecase interface {
	// CreateToken mints a new token. The token string is visible in the
	// returned record only at creation time.
	CreateToken(ctx context.Context, userID, name string, expiresAt *time.Time) (*model.PersonalAccessToken, error)

	// ValidateToken looks a token up by its exact string and records the
	// hit asynchronously.
	ValidateToken(ctx context.Context, token string) (*model.PersonalAccessToken, error)

	// ListTokens lists the caller's tokens with the token strings omitted.
	ListTokens(ctx context.Context, userID string) ([]model.PersonalAccessToken, error)

	// DeleteToken removes a token after an ownership check.
	DeleteToken(ctx context.Context, callerID, tokenID string) error

	// DeleteExpired removes tokens past their expiry.
	DeleteExpired(ctx context.Context) (int64, error)

	// Flush waits for all queued last-used updates to be written. It exists
	// so tests and shutdown paths can drain the queue deterministically.
	Flush()
}

const (
	tokenBodyLength    = 32
	tokenNameMaxLength = 100
	rateLimitWindow    = 24 * time.Hour
	rateLimitKeyPrefix = "api_key_creation:"
	touchQueueCapacity = 256
)

var (
	ErrInvalidTokenName      = errors.New("invalid token name")
	ErrRateLimitExceeded     = errors.New("token creation rate limit exceeded")
	ErrMaxTokensExceeded     = errors.New("active token limit exceeded")
	ErrTokenGenerationFailed = errors.New("failed to generate a unique token")
	ErrTokenNotFound         = errors.New("token not found")
	ErrPATExpired            = errors.New("token has expired")
	ErrTokenForbidden        = errors.New("token belongs to another user")
)

// RateLimitError reports a denied creation along with a reset time rounded
// up to the top of the hour, deliberately coarse so callers cannot probe
// the limiter's precise state.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("token creation rate limit exceeded, resets at %s", e.ResetAt.Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}

var tokenNamePattern = regexp.MustCompile(`^[A-Za-z0-9 ._-]+$`)

// dangerousNameParts are rejected even though the whitelist already
// excludes them; the check survives any future whitelist relaxation.
var dangerousNameParts = []string{
	"<script",
	"<iframe",
	"javascript:",
	"onerror=",
	"onload=",
	"onclick=",
	"data:text/html",
}

type personalAccessTokenUsecase struct {
	tokenRepo repository.PersonalAccessTokenRepository
	limiter   *ratelimit.Limiter
	cfg       *config.Config
	logger    *zerolog.Logger

	touchCh chan string
	touchWG sync.WaitGroup
}

// NewPersonalAccessTokenUsecase creates a new instance of
// PersonalAccessTokenUsecase and starts its last-used update worker.
func NewPersonalAccessTokenUsecase(
	tokenRepo repository.PersonalAccessTokenRepository,
	limiter *ratelimit.Limiter,
	cfg *config.Config,
	logger *zerolog.Logger,
) PersonalAccessTokenUsecase {
	u := &personalAccessTokenUsecase{
		tokenRepo: tokenRepo,
		limiter:   limiter,
		cfg:       cfg,
		logger:    logger,
		touchCh:   make(chan string, touchQueueCapacity),
	}

	go u.touchWorker()

	return u
}

func (u *personalAccessTokenUsecase) CreateToken(
	ctx context.Context,
	userID, name string,
	expiresAt *time.Time,
) (*model.PersonalAccessToken, error) {
	// Name validation runs before any side effect, quota checks included.
	name, err := validateTokenName(name)
	if err != nil {
		return nil, err
	}

	for range u.cfg.PAT.GenerateRetry {
		result, err := u.limiter.CheckLimit(ctx, rateLimitKeyPrefix+userID, u.cfg.PAT.MaxPerDay, rateLimitWindow)
		if err != nil {
			return nil, err
		}
		if !result.Allowed {
			return nil, &RateLimitError{ResetAt: ceilToHour(result.ResetAt)}
		}

		active, err := u.tokenRepo.CountActiveTokens(ctx, userID, time.Now())
		if err != nil {
			return nil, err
		}
		if active >= int64(u.cfg.PAT.MaxActive) {
			return nil, ErrMaxTokensExceeded
		}

		body, err := otp.GenerateBase62(tokenBodyLength)
		if err != nil {
			return nil, err
		}
		tokenStr := fmt.Sprintf("%s_%s_%s", u.cfg.PAT.Prefix, u.cfg.PAT.Environment, body)

		token := &model.PersonalAccessToken{
			UserID: userID,
			Name:   name,
			Token:  tokenStr,
		}
		if expiresAt != nil {
			token.ExpiresAt = *expiresAt
		}

		created, err := u.tokenRepo.CreateToken(ctx, token)
		if err != nil {
			// A collision is entropy-improbable but the unique index makes
			// it loud; take another lap.
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return nil, err
		}

		return created, nil
	}

	return nil, ErrTokenGenerationFailed
}

func (u *personalAccessTokenUsecase) ValidateToken(
	ctx context.Context,
	token string,
) (*model.PersonalAccessToken, error) {
	record, err := u.tokenRepo.GetTokenByString(ctx, token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	// Lazy expiry: the row stays until the sweep collects it.
	if !record.ExpiresAt.IsZero() && time.Now().After(record.ExpiresAt) {
		return nil, ErrPATExpired
	}

	u.enqueueTouch(record.ID.Hex())

	return record, nil
}

func (u *personalAccessTokenUsecase) ListTokens(
	ctx context.Context,
	userID string,
) ([]model.PersonalAccessToken, error) {
	tokens, err := u.tokenRepo.ListTokensByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The token string is shown only at creation time.
	for i := range tokens {
		tokens[i].Token = ""
	}

	return tokens, nil
}

func (u *personalAccessTokenUsecase) DeleteToken(ctx context.Context, callerID, tokenID string) error {
	token, err := u.tokenRepo.GetToken(ctx, tokenID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTokenNotFound
		}
		return err
	}

	if token.UserID != callerID {
		return ErrTokenForbidden
	}

	if err := u.tokenRepo.DeleteToken(ctx, tokenID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTokenNotFound
		}
		return err
	}

	return nil
}

func (u *personalAccessTokenUsecase) DeleteExpired(ctx context.Context) (int64, error) {
	return u.tokenRepo.DeleteExpiredTokens(ctx)
}

func (u *personalAccessTokenUsecase) Flush() {
	u.touchWG.Wait()
}

// enqueueTouch submits a last-used update without blocking the caller. A
// full queue drops the update; validation latency wins over freshness.
func (u *personalAccessTokenUsecase) enqueueTouch(id string) {
	u.touchWG.Add(1)
	select {
	case u.touchCh <- id:
	default:
		u.touchWG.Done()
		u.logger.Warn().Str("token_id", id).Msg("last-used update queue full, dropping update")
	}
}

func (u *personalAccessTokenUsecase) touchWorker() {
	for id := range u.touchCh {
		if err := u.tokenRepo.UpdateLastUsed(context.Background(), id); err != nil {
			u.logger.Warn().Err(err).Str("token_id", id).Msg("failed to update token last-used time")
		}
		u.touchWG.Done()
	}
}

func validateTokenName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidTokenName)
	}
	if len(trimmed) > tokenNameMaxLength {
		return "", fmt.Errorf("%w: name exceeds %d characters", ErrInvalidTokenName, tokenNameMaxLength)
	}
	if !tokenNamePattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: name contains disallowed characters", ErrInvalidTokenName)
	}

	lowered := strings.ToLower(trimmed)
	for _, part := range dangerousNameParts {
		if strings.Contains(lowered, part) {
			return "", fmt.Errorf("%w: name contains a dangerous pattern", ErrInvalidTokenName)
		}
	}

	return trimmed, nil
}

// ceilToHour rounds a time up to the next top of the hour. A reset time
// already on the hour is kept as is.
func ceilToHour(t time.Time) time.Time {
	truncated := t.Truncate(time.Hour)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Hour)
}
