package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/naruebet/wallet-auth-api/internal/model"
)

// AuthMethodRepository defines the interface for auth-method-related
// database operations.
type AuthMethodRepository interface {
	CreateAuthMethod(ctx context.Context, method *model.AuthMethod) (*model.AuthMethod, error)
	GetAuthMethod(ctx context.Context, identifier, methodType string) (*model.AuthMethod, error)
	GetAuthMethodsByUserID(ctx context.Context, userID string) ([]model.AuthMethod, error)
	SetPrimary(ctx context.Context, userID, id string) error
	UpdateLastUsed(ctx context.Context, id string) error
}

const authMethodCollection = "auth_methods"

type authMethodMongoRepository struct {
	db *mongo.Database
}

// NewAuthMethodMongoRepository creates a new MongoDB repository for auth
// methods.
func NewAuthMethodMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) AuthMethodRepository {
	collection := db.Collection(authMethodCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "identifier", Value: 1},
				{Key: "type", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create auth method indexes")
	}

	return &authMethodMongoRepository{db: db}
}

func (r *authMethodMongoRepository) CreateAuthMethod(
	ctx context.Context,
	method *model.AuthMethod,
) (*model.AuthMethod, error) {
	now := time.Now()
	method.CreatedAt = now
	method.UpdatedAt = now

	result, err := r.db.Collection(authMethodCollection).InsertOne(ctx, method)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		method.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return method, nil
}

func (r *authMethodMongoRepository) GetAuthMethod(
	ctx context.Context,
	identifier, methodType string,
) (*model.AuthMethod, error) {
	result := r.db.Collection(authMethodCollection).FindOne(ctx, bson.M{
		"identifier": identifier,
		"type":       methodType,
	})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var method model.AuthMethod
	if err := result.Decode(&method); err != nil {
		return nil, err
	}

	return &method, nil
}

func (r *authMethodMongoRepository) GetAuthMethodsByUserID(
	ctx context.Context,
	userID string,
) ([]model.AuthMethod, error) {
	cursor, err := r.db.Collection(authMethodCollection).Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}

	var methods []model.AuthMethod
	if err := cursor.All(ctx, &methods); err != nil {
		return nil, err
	}

	return methods, nil
}

// SetPrimary makes the given method the single primary one for the user by
// unsetting every primary flag first and then setting the requested one.
func (r *authMethodMongoRepository) SetPrimary(ctx context.Context, userID, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	now := time.Now()
	if _, err := r.db.Collection(authMethodCollection).UpdateMany(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"is_primary": false, "updated_at": now}},
	); err != nil {
		return err
	}

	result, err := r.db.Collection(authMethodCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID, "user_id": userID},
		bson.M{"$set": bson.M{"is_primary": true, "updated_at": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	return nil
}

func (r *authMethodMongoRepository) UpdateLastUsed(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.db.Collection(authMethodCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"last_used_at": time.Now()}},
	)
	return err
}
