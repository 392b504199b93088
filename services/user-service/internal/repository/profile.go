package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/model"
)

// ProfileRepository defines the interface for profile-related database operations.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error)
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, id string, params UpdateProfileParams) (*model.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
	ListProfiles(ctx context.Context, params FilterProfilesParams) ([]*model.Profile, error)
}

// UpdateProfileParams defines the optional parameters for updating a profile.
// Only the fields that are not nil will be updated.
type UpdateProfileParams struct {
	FullName                    *string
	Phone                       *string
	DefaultCommissionPercentage *float64
}

// FilterProfilesParams defines the parameters for filtering and paginating profiles.
type FilterProfilesParams struct {
	Search *string
	Limit  uint64
	Offset uint64
}

const profileCollection = "profiles"

type profileMongoRepository struct {
	db *mongo.Database
}

func NewProfileMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) ProfileRepository {
	collection := db.Collection(profileCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create profile indexes")
	}

	return &profileMongoRepository{db: db}
}

func (r *profileMongoRepository) CreateProfile(ctx context.Context, profile *model.Profile) (*model.Profile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	if _, err := r.db.Collection(profileCollection).InsertOne(ctx, profile); err != nil {
		return nil, err
	}

	return profile, nil
}

func (r *profileMongoRepository) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	result := r.db.Collection(profileCollection).FindOne(ctx, bson.M{"_id": id})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var profile model.Profile
	if err := result.Decode(&profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileMongoRepository) UpdateProfile(
	ctx context.Context,
	id string,
	params UpdateProfileParams,
) (*model.Profile, error) {
	// Build update query
	updateMap := bson.M{}
	if params.FullName != nil {
		updateMap["full_name"] = *params.FullName
	}
	if params.Phone != nil {
		updateMap["phone"] = *params.Phone
	}
	if params.DefaultCommissionPercentage != nil {
		updateMap["default_commission_percentage"] = *params.DefaultCommissionPercentage
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no profile fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(profileCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var profile model.Profile
	if err := result.Decode(&profile); err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileMongoRepository) DeleteProfile(ctx context.Context, id string) error {
	result := r.db.Collection(profileCollection).FindOneAndDelete(ctx, bson.M{"_id": id})
	return result.Err()
}

func (r *profileMongoRepository) ListProfiles(
	ctx context.Context,
	params FilterProfilesParams,
) ([]*model.Profile, error) {
	findOptions := options.Find()

	limit := params.Limit
	if limit == 0 {
		limit = 50
	}
	findOptions.SetLimit(int64(limit))

	if params.Offset > 0 {
		findOptions.SetSkip(int64(params.Offset))
	}

	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})

	// Build filter query
	filter := bson.M{}
	if params.Search != nil {
		filter["$or"] = bson.A{
			bson.M{"email": bson.M{"$regex": *params.Search, "$options": "i"}},
			bson.M{"full_name": bson.M{"$regex": *params.Search, "$options": "i"}},
		}
	}

	cursor, err := r.db.Collection(profileCollection).Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var profiles []*model.Profile
	for cursor.Next(ctx) {
		var profile model.Profile
		if err := cursor.Decode(&profile); err != nil {
			return nil, err
		}
		profiles = append(profiles, &profile)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}
