package usecase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/repository"
)

// LoginResult is returned by every successful verification flow.
type LoginResult struct {
	User   *model.User
	Tokens *TokenPair
}

// loginIdentity describes the identity a verification flow has just proven
// control of.
type loginIdentity struct {
	MethodType    string
	Provider      string
	Identifier    string
	Email         string
	Phone         string
	EmailVerified bool
	PhoneVerified bool
	DisplayName   string
	AvatarURL     string
}

// loginFinalizer turns a successful verification into a logged-in user:
// it upserts the User and AuthMethod records and mints a session token
// pair. It is embedded by every login-producing usecase.
type loginFinalizer struct {
	userRepo       repository.UserRepository
	authMethodRepo repository.AuthMethodRepository
	sessions       SessionUsecase
}

func (f *loginFinalizer) completeLogin(ctx context.Context, ident loginIdentity) (*LoginResult, error) {
	user, method, err := f.resolveUser(ctx, ident)
	if err != nil {
		return nil, err
	}

	user, err = f.markVerified(ctx, user, ident)
	if err != nil {
		return nil, err
	}

	if err := f.authMethodRepo.UpdateLastUsed(ctx, method.ID.Hex()); err != nil {
		return nil, err
	}

	tokens, err := f.sessions.GenerateTokenPair(ctx, user.ID.Hex(), user.Email)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Tokens: tokens}, nil
}

// resolveUser finds the user behind the proven identity, creating the User
// and AuthMethod records on a first login.
func (f *loginFinalizer) resolveUser(
	ctx context.Context,
	ident loginIdentity,
) (*model.User, *model.AuthMethod, error) {
	method, err := f.authMethodRepo.GetAuthMethod(ctx, ident.Identifier, ident.MethodType)
	if err == nil {
		user, err := f.userRepo.GetUser(ctx, method.UserID)
		if err != nil {
			return nil, nil, err
		}
		return user, method, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil, err
	}

	user, err := f.findExistingUser(ctx, ident)
	if err != nil {
		return nil, nil, err
	}

	firstMethod := false
	if user == nil {
		user, err = f.userRepo.CreateUser(ctx, &model.User{
			Email:       ident.Email,
			Phone:       ident.Phone,
			DisplayName: ident.DisplayName,
			AvatarURL:   ident.AvatarURL,
		})
		if err != nil {
			return nil, nil, err
		}
		firstMethod = true
	}

	method, err = f.authMethodRepo.CreateAuthMethod(ctx, &model.AuthMethod{
		UserID:     user.ID.Hex(),
		Type:       ident.MethodType,
		Provider:   ident.Provider,
		Identifier: ident.Identifier,
		Verified:   true,
	})
	if err != nil {
		return nil, nil, err
	}

	if firstMethod {
		if err := f.authMethodRepo.SetPrimary(ctx, user.ID.Hex(), method.ID.Hex()); err != nil {
			return nil, nil, err
		}
	}

	return user, method, nil
}

// findExistingUser looks a user up by the contact details the identity
// carries. A nil user with a nil error means no match.
func (f *loginFinalizer) findExistingUser(ctx context.Context, ident loginIdentity) (*model.User, error) {
	lookups := []func(context.Context) (*model.User, error){}
	if ident.Email != "" {
		lookups = append(lookups, func(ctx context.Context) (*model.User, error) {
			return f.userRepo.GetUserByEmail(ctx, ident.Email)
		})
	}
	if ident.Phone != "" {
		lookups = append(lookups, func(ctx context.Context) (*model.User, error) {
			return f.userRepo.GetUserByPhone(ctx, ident.Phone)
		})
	}

	for _, lookup := range lookups {
		user, err := lookup(ctx)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, err
		}
	}

	return nil, nil
}

func (f *loginFinalizer) markVerified(
	ctx context.Context,
	user *model.User,
	ident loginIdentity,
) (*model.User, error) {
	now := time.Now()
	params := repository.UpdateUserParams{LastLoginAt: &now}

	if ident.EmailVerified {
		verified := true
		params.EmailVerified = &verified
		if user.Email == "" && ident.Email != "" {
			params.Email = &ident.Email
		}
	}
	if ident.PhoneVerified {
		verified := true
		params.PhoneVerified = &verified
		if user.Phone == "" && ident.Phone != "" {
			params.Phone = &ident.Phone
		}
	}

	return f.userRepo.UpdateUser(ctx, user.ID.Hex(), params)
}
