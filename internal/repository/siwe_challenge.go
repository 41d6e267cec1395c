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

// SIWEChallengeRepository defines the interface for wallet challenge
// operations.
type SIWEChallengeRepository interface {
	// CreateChallenge creates a new challenge row.
	CreateChallenge(ctx context.Context, challenge *model.SIWEChallenge) (*model.SIWEChallenge, error)

	// GetChallenge retrieves the unverified challenge for the lower-cased
	// (address, nonce) pair, regardless of expiry.
	GetChallenge(ctx context.Context, address, nonce string) (*model.SIWEChallenge, error)

	// MarkVerified consumes a challenge. The update matches only unverified
	// rows so concurrent verifications of the same challenge cannot both
	// succeed; mongo.ErrNoDocuments means it was already consumed.
	MarkVerified(ctx context.Context, id string) error
}

const siweChallengeCollection = "siwe_challenges"

type siweChallengeMongoRepository struct {
	db *mongo.Database
}

// NewSIWEChallengeMongoRepository creates a new MongoDB repository for
// wallet challenges.
func NewSIWEChallengeMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) SIWEChallengeRepository {
	collection := db.Collection(siweChallengeCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "nonce", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "address", Value: 1},
				{Key: "nonce", Value: 1},
			},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32((24 * time.Hour).Seconds())),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create siwe challenge indexes")
	}

	return &siweChallengeMongoRepository{db: db}
}

func (r *siweChallengeMongoRepository) CreateChallenge(
	ctx context.Context,
	challenge *model.SIWEChallenge,
) (*model.SIWEChallenge, error) {
	now := time.Now()
	challenge.CreatedAt = now
	challenge.UpdatedAt = now
	challenge.Verified = false

	result, err := r.db.Collection(siweChallengeCollection).InsertOne(ctx, challenge)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		challenge.ID = objectID
	}

	return challenge, nil
}

func (r *siweChallengeMongoRepository) GetChallenge(
	ctx context.Context,
	address, nonce string,
) (*model.SIWEChallenge, error) {
	result := r.db.Collection(siweChallengeCollection).FindOne(ctx, bson.M{
		"address":  address,
		"nonce":    nonce,
		"verified": false,
	})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var challenge model.SIWEChallenge
	if err := result.Decode(&challenge); err != nil {
		return nil, err
	}

	return &challenge, nil
}

func (r *siweChallengeMongoRepository) MarkVerified(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.db.Collection(siweChallengeCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID, "verified": false},
		bson.M{"$set": bson.M{"verified": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	return nil
}
