package usecase

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/naruebet/wallet-auth-api/internal/config"
	"github.com/naruebet/wallet-auth-api/internal/model"
	"github.com/naruebet/wallet-auth-api/internal/repository"
)

// In-memory repository fakes. They mirror the Mongo implementations'
// observable behavior, including mongo.ErrNoDocuments on misses and
// duplicate key errors on unique index violations.

func testConfig() *config.Config {
	return &config.Config{
		Token: config.TokenConfig{
			Issuer:                "wallet-auth-api-test",
			Audience:              "wallet-auth-api-test",
			AccessTokenSecret:     "access-secret",
			AccessTokenExpiresIn:  15 * time.Minute,
			RefreshTokenSecret:    "refresh-secret",
			RefreshTokenExpiresIn: 7 * 24 * time.Hour,
		},
		SIWE: config.SIWEConfig{
			Domain:       "example.com",
			URI:          "https://example.com/login",
			ChallengeTTL: 15 * time.Minute,
		},
		PAT: config.PATConfig{
			Prefix:        "wat",
			Environment:   "test",
			MaxPerDay:     50,
			MaxActive:     500,
			GenerateRetry: 5,
		},
	}
}

func duplicateKeyError() error {
	return mongo.WriteException{
		WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key error"}},
	}
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user.ID = bson.NewObjectID()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	clone := *user
	r.users[user.ID.Hex()] = &clone
	return user, nil
}

func (r *memUserRepo) GetUser(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Email != "" && u.Email == email })
}

func (r *memUserRepo) GetUserByPhone(_ context.Context, phone string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return u.Phone != "" && u.Phone == phone })
}

func (r *memUserRepo) UpdateUser(
	_ context.Context,
	id string,
	params repository.UpdateUserParams,
) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	if params.Email != nil {
		user.Email = *params.Email
	}
	if params.Phone != nil {
		user.Phone = *params.Phone
	}
	if params.EmailVerified != nil {
		user.EmailVerified = *params.EmailVerified
	}
	if params.PhoneVerified != nil {
		user.PhoneVerified = *params.PhoneVerified
	}
	if params.DisplayName != nil {
		user.DisplayName = *params.DisplayName
	}
	if params.AvatarURL != nil {
		user.AvatarURL = *params.AvatarURL
	}
	if params.LastLoginAt != nil {
		user.LastLoginAt = *params.LastLoginAt
	}
	user.UpdatedAt = time.Now()

	clone := *user
	return &clone, nil
}

func (r *memUserRepo) findBy(match func(*model.User) bool) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if match(user) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

type memAuthMethodRepo struct {
	mu      sync.Mutex
	methods []*model.AuthMethod
}

func newMemAuthMethodRepo() *memAuthMethodRepo {
	return &memAuthMethodRepo{}
}

func (r *memAuthMethodRepo) CreateAuthMethod(
	_ context.Context,
	method *model.AuthMethod,
) (*model.AuthMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.methods {
		if m.Identifier == method.Identifier && m.Type == method.Type {
			return nil, duplicateKeyError()
		}
	}

	method.ID = bson.NewObjectID()
	now := time.Now()
	method.CreatedAt = now
	method.UpdatedAt = now

	clone := *method
	r.methods = append(r.methods, &clone)
	return method, nil
}

func (r *memAuthMethodRepo) GetAuthMethod(
	_ context.Context,
	identifier, methodType string,
) (*model.AuthMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.methods {
		if m.Identifier == identifier && m.Type == methodType {
			clone := *m
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memAuthMethodRepo) GetAuthMethodsByUserID(_ context.Context, userID string) ([]model.AuthMethod, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.AuthMethod
	for _, m := range r.methods {
		if m.UserID == userID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memAuthMethodRepo) SetPrimary(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, m := range r.methods {
		if m.UserID == userID {
			m.IsPrimary = m.ID.Hex() == id
			if m.IsPrimary {
				found = true
			}
		}
	}
	if !found {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *memAuthMethodRepo) UpdateLastUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.methods {
		if m.ID.Hex() == id {
			m.LastUsedAt = time.Now()
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*model.Session)}
}

func (r *memSessionRepo) CreateSession(_ context.Context, session *model.Session) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ID.IsZero() {
		session.ID = bson.NewObjectID()
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.LastActivityAt = now

	clone := *session
	r.sessions[session.ID.Hex()] = &clone
	return session, nil
}

func (r *memSessionRepo) GetSession(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	clone := *session
	return &clone, nil
}

func (r *memSessionRepo) GetSessionByRefreshToken(_ context.Context, refreshToken string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.RefreshToken == refreshToken {
			clone := *s
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memSessionRepo) ListSessionsByUserID(_ context.Context, userID string) ([]model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.Session
	for _, s := range r.sessions {
		if s.UserID == userID && !s.Revoked {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memSessionRepo) RevokeSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	session.Revoked = true
	session.RevokedAt = time.Now()
	return nil
}

func (r *memSessionRepo) RevokeUserSessions(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.UserID == userID && !s.Revoked {
			s.Revoked = true
			s.RevokedAt = time.Now()
		}
	}
	return nil
}

func (r *memSessionRepo) UpdateLastActivity(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	session.LastActivityAt = time.Now()
	return nil
}

type memCodeRepo struct {
	mu    sync.Mutex
	codes []*model.VerificationCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{}
}

func (r *memCodeRepo) CreateCode(
	_ context.Context,
	code *model.VerificationCode,
) (*model.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code.ID = bson.NewObjectID()
	now := time.Now()
	code.CreatedAt = now
	code.UpdatedAt = now
	code.Verified = false

	clone := *code
	r.codes = append(r.codes, &clone)
	return code, nil
}

func (r *memCodeRepo) GetLatestCode(
	_ context.Context,
	identifier, codeType string,
) (*model.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.codes) - 1; i >= 0; i-- {
		c := r.codes[i]
		if c.Identifier == identifier && c.Type == codeType && !c.Verified {
			clone := *c
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memCodeRepo) IncrementAttempts(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.codes {
		if c.ID.Hex() == id {
			c.Attempts++
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (r *memCodeRepo) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.codes {
		if c.ID.Hex() == id && !c.Verified {
			c.Verified = true
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

type memChallengeRepo struct {
	mu         sync.Mutex
	challenges []*model.SIWEChallenge
}

func newMemChallengeRepo() *memChallengeRepo {
	return &memChallengeRepo{}
}

func (r *memChallengeRepo) CreateChallenge(
	_ context.Context,
	challenge *model.SIWEChallenge,
) (*model.SIWEChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.challenges {
		if c.Nonce == challenge.Nonce {
			return nil, duplicateKeyError()
		}
	}

	challenge.ID = bson.NewObjectID()
	now := time.Now()
	challenge.CreatedAt = now
	challenge.UpdatedAt = now
	challenge.Verified = false

	clone := *challenge
	r.challenges = append(r.challenges, &clone)
	return challenge, nil
}

func (r *memChallengeRepo) GetChallenge(
	_ context.Context,
	address, nonce string,
) (*model.SIWEChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.challenges {
		if c.Address == address && c.Nonce == nonce && !c.Verified {
			clone := *c
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (r *memChallengeRepo) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.challenges {
		if c.ID.Hex() == id && !c.Verified {
			c.Verified = true
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

type memTokenRepo struct {
	mu     sync.Mutex
	tokens []*model.PersonalAccessToken

	// forceDuplicates makes the next N inserts fail with a duplicate key
	// error, simulating token string collisions.
	forceDuplicates int
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{}
}

func (r *memTokenRepo) CreateToken(
	_ context.Context,
	token *model.PersonalAccessToken,
) (*model.PersonalAccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.forceDuplicates > 0 {
		r.forceDuplicates--
		return nil, duplicateKeyError()
	}

	for _, t := range r.tokens {
		if t.Token == token.Token {
			return nil, duplicateKeyError()
		}
	}

	token.ID = bson.NewObjectID()
	now := time.Now()
	token.CreatedAt = now
	token.UpdatedAt = now

	clone := *token
	r.tokens = append(r.tokens, &clone)
	return token, nil
}

func (r *memTokenRepo) GetTokenByString(_ context.Context, token string) (*model.PersonalAccessToken, error) {
	return r.findBy(func(t *model.PersonalAccessToken) bool { return t.Token == token })
}

func (r *memTokenRepo) GetToken(_ context.Context, id string) (*model.PersonalAccessToken, error) {
	return r.findBy(func(t *model.PersonalAccessToken) bool { return t.ID.Hex() == id })
}

func (r *memTokenRepo) ListTokensByUserID(_ context.Context, userID string) ([]model.PersonalAccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []model.PersonalAccessToken
	for _, t := range r.tokens {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *memTokenRepo) CountActiveTokens(_ context.Context, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, t := range r.tokens {
		if t.UserID == userID && (t.ExpiresAt.IsZero() || t.ExpiresAt.After(now)) {
			count++
		}
	}
	return count, nil
}

func (r *memTokenRepo) DeleteToken(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, t := range r.tokens {
		if t.ID.Hex() == id {
			r.tokens = append(r.tokens[:i], r.tokens[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (r *memTokenRepo) UpdateLastUsed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.ID.Hex() == id {
			t.LastUsedAt = time.Now()
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (r *memTokenRepo) DeleteExpiredTokens(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var kept []*model.PersonalAccessToken
	var deleted int64
	for _, t := range r.tokens {
		if !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	r.tokens = kept
	return deleted, nil
}

func (r *memTokenRepo) findBy(match func(*model.PersonalAccessToken) bool) (*model.PersonalAccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if match(t) {
			clone := *t
			return &clone, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}
