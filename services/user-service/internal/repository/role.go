package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/model"
)

// RoleRepository defines the interface for role-assignment database operations.
type RoleRepository interface {
	AssignRole(ctx context.Context, assignment *model.RoleAssignment) (*model.RoleAssignment, error)
	GetRoleByUserID(ctx context.Context, userID string) (*model.RoleAssignment, error)
	UpdateRole(ctx context.Context, userID string, role string) (*model.RoleAssignment, error)
	DeleteRoleByUserID(ctx context.Context, userID string) error
}

const roleCollection = "user_roles"

type roleMongoRepository struct {
	db *mongo.Database
}

func NewRoleMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) RoleRepository {
	collection := db.Collection(roleCollection)

	// A user holds at most one role; the unique index enforces it so the
	// lookup can rely on FindOne.
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create role indexes")
	}

	return &roleMongoRepository{db: db}
}

func (r *roleMongoRepository) AssignRole(
	ctx context.Context,
	assignment *model.RoleAssignment,
) (*model.RoleAssignment, error) {
	now := time.Now()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	result, err := r.db.Collection(roleCollection).InsertOne(ctx, assignment)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		assignment.ID = objectID
	}

	return assignment, nil
}

func (r *roleMongoRepository) GetRoleByUserID(ctx context.Context, userID string) (*model.RoleAssignment, error) {
	result := r.db.Collection(roleCollection).FindOne(ctx, bson.M{"user_id": userID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var assignment model.RoleAssignment
	if err := result.Decode(&assignment); err != nil {
		return nil, err
	}

	return &assignment, nil
}

func (r *roleMongoRepository) UpdateRole(
	ctx context.Context,
	userID string,
	role string,
) (*model.RoleAssignment, error) {
	result := r.db.Collection(roleCollection).FindOneAndUpdate(
		ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"role": role, "updated_at": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var assignment model.RoleAssignment
	if err := result.Decode(&assignment); err != nil {
		return nil, err
	}

	return &assignment, nil
}

func (r *roleMongoRepository) DeleteRoleByUserID(ctx context.Context, userID string) error {
	_, err := r.db.Collection(roleCollection).DeleteOne(ctx, bson.M{"user_id": userID})
	return err
}
