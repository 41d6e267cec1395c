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

// VerificationCodeRepository defines the interface for one-time code
// operations.
type VerificationCodeRepository interface {
	// CreateCode creates a new verification code row.
	CreateCode(ctx context.Context, code *model.VerificationCode) (*model.VerificationCode, error)

	// GetLatestCode retrieves the most recently created unverified code for
	// the (identifier, type) pair, regardless of expiry. Expiry is the
	// caller's concern so that expired codes can be reported distinctly.
	GetLatestCode(ctx context.Context, identifier, codeType string) (*model.VerificationCode, error)

	// IncrementAttempts bumps the attempts counter of a code.
	IncrementAttempts(ctx context.Context, id string) error

	// MarkVerified consumes a code. The update matches only unverified rows
	// so that check-then-set is a single atomic document operation; if the
	// code was already consumed, mongo.ErrNoDocuments is returned.
	MarkVerified(ctx context.Context, id string) error
}

const verificationCodeCollection = "verification_codes"

type verificationCodeMongoRepository struct {
	db *mongo.Database
}

// NewVerificationCodeMongoRepository creates a new MongoDB repository for
// verification codes.
func NewVerificationCodeMongoRepository(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
) VerificationCodeRepository {
	collection := db.Collection(verificationCodeCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "identifier", Value: 1},
				{Key: "type", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32((24 * time.Hour).Seconds())),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create verification code indexes")
	}

	return &verificationCodeMongoRepository{db: db}
}

func (r *verificationCodeMongoRepository) CreateCode(
	ctx context.Context,
	code *model.VerificationCode,
) (*model.VerificationCode, error) {
	now := time.Now()
	code.CreatedAt = now
	code.UpdatedAt = now
	code.Verified = false

	result, err := r.db.Collection(verificationCodeCollection).InsertOne(ctx, code)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		code.ID = objectID
	}

	return code, nil
}

func (r *verificationCodeMongoRepository) GetLatestCode(
	ctx context.Context,
	identifier, codeType string,
) (*model.VerificationCode, error) {
	result := r.db.Collection(verificationCodeCollection).FindOne(
		ctx,
		bson.M{
			"identifier": identifier,
			"type":       codeType,
			"verified":   false,
		},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var code model.VerificationCode
	if err := result.Decode(&code); err != nil {
		return nil, err
	}

	return &code, nil
}

func (r *verificationCodeMongoRepository) IncrementAttempts(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.db.Collection(verificationCodeCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	return err
}

func (r *verificationCodeMongoRepository) MarkVerified(ctx context.Context, id string) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.db.Collection(verificationCodeCollection).UpdateOne(
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
