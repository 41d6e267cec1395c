package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/naruebet/wallet-auth-api/internal/model"
)

// PersonalAccessTokenRepository defines the interface for API token
// operations.
type PersonalAccessTokenRepository interface {
	// CreateToken inserts a new token. The unique index on the token string
	// surfaces collisions as a duplicate key error.
	CreateToken(ctx context.Context, token *model.PersonalAccessToken) (*model.PersonalAccessToken, error)

	// GetTokenByString retrieves a token by its exact string.
	GetTokenByString(ctx context.Context, token string) (*model.PersonalAccessToken, error)

	// GetToken retrieves a token by id.
	GetToken(ctx context.Context, id string) (*model.PersonalAccessToken, error)

	// ListTokensByUserID lists a user's tokens, newest first.
	ListTokensByUserID(ctx context.Context, userID string) ([]model.PersonalAccessToken, error)

	// CountActiveTokens counts a user's tokens that have no expiry or
	// expire after now.
	CountActiveTokens(ctx context.Context, userID string, now time.Time) (int64, error)

	// DeleteToken removes a token by id.
	DeleteToken(ctx context.Context, id string) error

	// UpdateLastUsed records a validation hit.
	UpdateLastUsed(ctx context.Context, id string) error

	// DeleteExpiredTokens removes tokens past their expiry.
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

const personalAccessTokenCollection = "personal_access_tokens"

type personalAccessTokenMongoRepository struct {
	db *mongo.Database
}

// NewPersonalAccessTokenMongoRepository creates a new MongoDB repository
// for personal access tokens.
func NewPersonalAccessTokenMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) PersonalAccessTokenRepository {
	collection := db.Collection(personalAccessTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create personal access token indexes")
	}

	return &personalAccessTokenMongoRepository{db: db}
}

func (r *personalAccessTokenMongoRepository) CreateToken(
	ctx context.Context,
	token *model.PersonalAccessToken,
) (*model.PersonalAccessToken, error) {
	now := time.Now()
	token.CreatedAt = now
	token.UpdatedAt = now

	result, err := r.db.Collection(personalAccessTokenCollection).InsertOne(ctx, token)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		token.ID = objectID
	}

	return token, nil
}

func (r *personalAccessTokenMongoRepository) GetTokenByString(
	ctx context.Context,
	token string,
) (*model.PersonalAccessToken, error) {
	return r.findOne(ctx, bson.M{"token": token})
}

func (r *personalAccessTokenMongoRepository) GetToken(
	ctx context.Context,
	id string,
) (*model.PersonalAccessToken, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *personalAccessTokenMongoRepository) ListTokensByUserID(
	ctx context.Context,
	userID string,
) ([]model.PersonalAccessToken, error) {
	cursor, err := r.db.Collection(personalAccessTokenCollection).Find(
		ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, err
	}

	var tokens []model.PersonalAccessToken
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, err
	}

	return tokens, nil
}

func (r *personalAccessTokenMongoRepository) CountActiveTokens(
	ctx context.Context,
	userID string,
	now time.Time,
) (int64, error) {
	filter := bson.M{
		"user_id": userID,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}

	return r.db.Collection(personalAccessTokenCollection).CountDocuments(ctx, filter)
}

func (r *personalAccessTokenMongoRepository) DeleteToken(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.db.Collection(personalAccessTokenCollection).DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}

	return nil
}

func (r *personalAccessTokenMongoRepository) UpdateLastUsed(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.db.Collection(personalAccessTokenCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"last_used_at": time.Now()}},
	)
	return err
}

func (r *personalAccessTokenMongoRepository) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	filter := bson.M{
		"expires_at": bson.M{
			"$exists": true,
			"$lt":     time.Now(),
		},
	}

	result, err := r.db.Collection(personalAccessTokenCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}

	return result.DeletedCount, nil
}

func (r *personalAccessTokenMongoRepository) findOne(
	ctx context.Context,
	filter bson.M,
) (*model.PersonalAccessToken, error) {
	result := r.db.Collection(personalAccessTokenCollection).FindOne(ctx, filter)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var token model.PersonalAccessToken
	if err := result.Decode(&token); err != nil {
		return nil, err
	}

	return &token, nil
}
