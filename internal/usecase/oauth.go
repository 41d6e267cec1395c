package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/provider"
	"github.com/naruebet/wallet-auth-api/internal/repository"
)

// OAuthUsecase logs users in with a token issued by an external identity
// provider. Only ID-token validation happens here; the authorization-code
// exchange is the client's concern.
type OAuthUsecase interface {
	Login(ctx context.Context, providerName, token string) (*LoginResult, error)
}

var (
	ErrUnsupportedProvider = errors.New("unsupported oauth provider")
	ErrProviderRejected    = errors.New("provider rejected the token")
)

type oauthUsecase struct {
	loginFinalizer
	providers map[string]provider.OAuthProvider
}

// NewOAuthUsecase creates a new instance of OAuthUsecase.
func NewOAuthUsecase(
	userRepo repository.UserRepository,
	authMethodRepo repository.AuthMethodRepository,
	sessions SessionUsecase,
	providers map[string]provider.OAuthProvider,
) OAuthUsecase {
	return &oauthUsecase{
		loginFinalizer: loginFinalizer{
			userRepo:       userRepo,
			authMethodRepo: authMethodRepo,
			sessions:       sessions,
		},
		providers: providers,
	}
}

func (u *oauthUsecase) Login(ctx context.Context, providerName, token string) (*LoginResult, error) {
	p, ok := u.providers[providerName]
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	info, err := p.ValidateToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRejected, err)
	}

	return u.completeLogin(ctx, loginIdentity{
		MethodType: model.AuthMethodOAuth,
		Provider:   p.Name(),
		// Provider user ids are only unique within a provider.
		Identifier:    p.Name() + ":" + info.ProviderUserID,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		DisplayName:   info.Name,
		AvatarURL:     info.Picture,
	})
}
