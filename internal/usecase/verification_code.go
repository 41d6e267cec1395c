package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/notifier"
	"github.com/naruebet/wallet-auth-api/internal/otp"
	"github.com/naruebet/wallet-auth-api/internal/repository"
)

// VerificationCodeUsecase issues and verifies one-time codes delivered by
// email or SMS, and completes the login on a successful verification.
type VerificationCodeUsecase interface {
	// Request generates a code for the identifier and delivers it
	// out-of-band.
	Request(ctx context.Context, identifier, codeType string) error

	// Verify checks a candidate code. On success the code is consumed and
	// the caller is logged in.
	Verify(ctx context.Context, identifier, codeType, candidate string) (*LoginResult, error)
}

const (
	codeLength      = 6
	codeTTL         = 10 * time.Minute
	codeMaxAttempts = 3
)

var (
	ErrCodeNotFound        = errors.New("verification code not found")
	ErrCodeExpired         = errors.New("verification code has expired")
	ErrMaxAttemptsExceeded = errors.New("maximum verification attempts exceeded")
	ErrInvalidCode         = errors.New("invalid verification code")
	ErrDeliveryFailed      = errors.New("verification code delivery failed")
	ErrUnsupportedCodeType = errors.New("unsupported verification code type")
)

// InvalidCodeError reports a wrong candidate along with the remaining
// attempts. Max-attempts failures intentionally carry no such counter.
type InvalidCodeError struct {
	RemainingAttempts int
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid verification code, %d attempts remaining", e.RemainingAttempts)
}

func (e *InvalidCodeError) Is(target error) bool {
	return target == ErrInvalidCode
}

type verificationCodeUsecase struct {
	loginFinalizer
	codeRepo  repository.VerificationCodeRepository
	notifiers map[string]notifier.Notifier
}

// NewVerificationCodeUsecase creates a new instance of
// VerificationCodeUsecase. The notifiers map is keyed by code type.
func NewVerificationCodeUsecase(
	codeRepo repository.VerificationCodeRepository,
	userRepo repository.UserRepository,
	authMethodRepo repository.AuthMethodRepository,
	sessions SessionUsecase,
	notifiers map[string]notifier.Notifier,
) VerificationCodeUsecase {
	return &verificationCodeUsecase{
		loginFinalizer: loginFinalizer{
			userRepo:       userRepo,
			authMethodRepo: authMethodRepo,
			sessions:       sessions,
		},
		codeRepo:  codeRepo,
		notifiers: notifiers,
	}
}

func (u *verificationCodeUsecase) Request(ctx context.Context, identifier, codeType string) error {
	sender, ok := u.notifiers[codeType]
	if !ok {
		return ErrUnsupportedCodeType
	}

	code, err := otp.GenerateOTP(codeLength)
	if err != nil {
		return err
	}

	if _, err := u.codeRepo.CreateCode(ctx, &model.VerificationCode{
		Identifier:  identifier,
		Type:        codeType,
		Code:        code,
		Attempts:    0,
		MaxAttempts: codeMaxAttempts,
		ExpiresAt:   time.Now().Add(codeTTL),
	}); err != nil {
		return err
	}

	if err := sender.SendVerificationCode(ctx, identifier, code); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return nil
}

func (u *verificationCodeUsecase) Verify(
	ctx context.Context,
	identifier, codeType, candidate string,
) (*LoginResult, error) {
	code, err := u.codeRepo.GetLatestCode(ctx, identifier, codeType)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Returned both for never-issued and already-consumed codes so
			// callers cannot probe whether a code once existed.
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	if time.Now().After(code.ExpiresAt) {
		return nil, ErrCodeExpired
	}

	// The exhaustion check runs before the comparison: a correct code
	// submitted after the limit is still rejected.
	if code.Attempts >= code.MaxAttempts {
		return nil, ErrMaxAttemptsExceeded
	}

	if candidate != code.Code {
		if err := u.codeRepo.IncrementAttempts(ctx, code.ID.Hex()); err != nil {
			return nil, err
		}
		return nil, &InvalidCodeError{RemainingAttempts: code.MaxAttempts - code.Attempts - 1}
	}

	if err := u.codeRepo.MarkVerified(ctx, code.ID.Hex()); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Consumed by a concurrent request between lookup and consume.
			return nil, ErrCodeNotFound
		}
		return nil, err
	}

	ident := u.identityFor(identifier, codeType)
	if ident.MethodType == "" {
		// MFA codes confirm an action for an already authenticated user;
		// consuming the code is the whole operation.
		return &LoginResult{}, nil
	}

	return u.completeLogin(ctx, ident)
}

func (u *verificationCodeUsecase) identityFor(identifier, codeType string) loginIdentity {
	ident := loginIdentity{
		Identifier: identifier,
	}

	switch codeType {
	case model.CodeTypeEmail:
		ident.MethodType = model.AuthMethodEmail
		ident.Email = identifier
		ident.EmailVerified = true
	case model.CodeTypeSMS:
		ident.MethodType = model.AuthMethodSMS
		ident.Phone = identifier
		ident.PhoneVerified = true
	}

	return ident
}
