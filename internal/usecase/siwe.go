package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/wallet-auth-api/internal/config"
	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/otp"
	"github.com/naruebet/wallet-auth-api/internal/repository"
	"github.com/naruebet/wallet-auth-api/internal/siwe"
)

// SIWEUsecase orchestrates the Sign-In with Ethereum challenge-response
// flow.
type SIWEUsecase interface {
	// CreateChallenge issues a one-time challenge message for the wallet to
	// sign.
	CreateChallenge(ctx context.Context, params CreateChallengeParams) (*model.SIWEChallenge, error)

	// VerifyChallenge checks the signed message, consumes the challenge and
	// logs the wallet in.
	VerifyChallenge(ctx context.Context, address, signature, message string) (*LoginResult, error)
}

// CreateChallengeParams defines the parameters for issuing a challenge.
type CreateChallengeParams struct {
	Address   string
	ChainID   int
	Statement string
}

var (
	ErrInvalidAddress    = errors.New("invalid ethereum address")
	ErrInvalidMessage    = errors.New("malformed siwe message")
	ErrInvalidSignature  = errors.New("signature verification failed")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge has expired")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

type siweUsecase struct {
	loginFinalizer
	challengeRepo repository.SIWEChallengeRepository
	cfg           *config.Config
}

// NewSIWEUsecase creates a new instance of SIWEUsecase.
func NewSIWEUsecase(
	challengeRepo repository.SIWEChallengeRepository,
	userRepo repository.UserRepository,
	authMethodRepo repository.AuthMethodRepository,
	sessions SessionUsecase,
	cfg *config.Config,
) SIWEUsecase {
	return &siweUsecase{
		loginFinalizer: loginFinalizer{
			userRepo:       userRepo,
			authMethodRepo: authMethodRepo,
			sessions:       sessions,
		},
		challengeRepo: challengeRepo,
		cfg:           cfg,
	}
}

func (u *siweUsecase) CreateChallenge(
	ctx context.Context,
	params CreateChallengeParams,
) (*model.SIWEChallenge, error) {
	if !addressPattern.MatchString(params.Address) {
		return nil, ErrInvalidAddress
	}

	nonce, err := otp.GenerateNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	message := siwe.Message{
		Domain:         u.cfg.SIWE.Domain,
		Address:        params.Address,
		Statement:      params.Statement,
		URI:            u.cfg.SIWE.URI,
		ChainID:        params.ChainID,
		Nonce:          nonce,
		IssuedAt:       now,
		ExpirationTime: now.Add(u.cfg.SIWE.ChallengeTTL),
	}

	return u.challengeRepo.CreateChallenge(ctx, &model.SIWEChallenge{
		Address:   strings.ToLower(params.Address),
		Message:   message.Build(),
		Nonce:     nonce,
		ExpiresAt: now.Add(u.cfg.SIWE.ChallengeTTL),
	})
}

func (u *siweUsecase) VerifyChallenge(
	ctx context.Context,
	address, signature, message string,
) (*LoginResult, error) {
	nonce, err := siwe.ParseNonce(message)
	if err != nil {
		return nil, ErrInvalidMessage
	}

	challenge, err := u.challengeRepo.GetChallenge(ctx, strings.ToLower(address), nonce)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}

	if time.Now().After(challenge.ExpiresAt) {
		return nil, ErrChallengeExpired
	}

	if !siwe.VerifySignature(address, signature, message) {
		return nil, ErrInvalidSignature
	}

	// Consuming the challenge is atomic against the store: only one of two
	// concurrent verifications can win.
	if err := u.challengeRepo.MarkVerified(ctx, challenge.ID.Hex()); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrChallengeNotFound
		}
		return nil, err
	}

	return u.completeLogin(ctx, loginIdentity{
		MethodType: model.AuthMethodWallet,
		Identifier: challenge.Address,
	})
}
