package provider

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/config"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/model"
	"github.com/tecnomga/insurance-portal-api/shared/auth"
	"github.com/tecnomga/insurance-portal-api/shared/security"
)

const identityCollection = "identities"

// LocalProvider keeps identities in the portal database for self-hosted
// deployments where no external identity store is available. Tokens are
// HS256 JWTs signed with the configured access-token secret.
type LocalProvider struct {
	db      *mongo.Database
	jwtAuth auth.JWTAuthenticator
	cfg     *config.UserServiceConfig
}

// NewLocalProvider creates a LocalProvider backed by the given database.
func NewLocalProvider(ctx context.Context, cfg *config.UserServiceConfig, logger *zerolog.Logger, db *mongo.Database) *LocalProvider {
	collection := db.Collection(identityCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		logger.Fatal().Err(err).Msg("failed to create identity indexes")
	}

	return &LocalProvider{
		db:      db,
		jwtAuth: auth.NewJWTAuthenticator(cfg.Token.Issuer, cfg.Token.Issuer),
		cfg:     cfg,
	}
}

func (p *LocalProvider) VerifyToken(ctx context.Context, accessToken string) (*Identity, error) {
	claims := &auth.AccessClaims{}
	if _, err := p.jwtAuth.ValidateTokenWithClaims(accessToken, p.cfg.Token.AccessTokenSecret, claims); err != nil {
		return nil, err
	}

	identity, err := p.getIdentity(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.New("local: token resolved to no user")
		}
		return nil, err
	}

	return toLocalIdentity(identity), nil
}

func (p *LocalProvider) CreateUser(ctx context.Context, params CreateUserParams) (*Identity, error) {
	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	identity := &model.LocalIdentity{
		ID:             uuid.NewString(),
		Email:          params.Email,
		PasswordHash:   passwordHash,
		EmailConfirmed: true,
		Metadata: map[string]string{
			"full_name": params.FullName,
			"phone":     params.Phone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := p.db.Collection(identityCollection).InsertOne(ctx, identity); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, &StoreError{
				StatusCode: http.StatusUnprocessableEntity,
				Message:    "A user with this email address has already been registered",
			}
		}
		return nil, err
	}

	return toLocalIdentity(identity), nil
}

func (p *LocalProvider) DeleteUser(ctx context.Context, id string) error {
	_, err := p.db.Collection(identityCollection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (*Token, error) {
	result := p.db.Collection(identityCollection).FindOne(ctx, bson.M{"email": email})
	if result.Err() != nil {
		if errors.Is(result.Err(), mongo.ErrNoDocuments) {
			return nil, &StoreError{StatusCode: http.StatusBadRequest, Message: "Invalid login credentials"}
		}
		return nil, result.Err()
	}

	var identity model.LocalIdentity
	if err := result.Decode(&identity); err != nil {
		return nil, err
	}

	if ok, err := security.VerifyPassword(password, identity.PasswordHash); err != nil {
		return nil, err
	} else if !ok {
		return nil, &StoreError{StatusCode: http.StatusBadRequest, Message: "Invalid login credentials"}
	}

	now := time.Now()
	claims := auth.AccessClaims{
		UserID: identity.ID,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    p.cfg.Token.Issuer,
			Audience:  jwt.ClaimStrings{p.cfg.Token.Issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.Token.AccessTokenExpiresIn)),
		},
	}

	accessToken, err := p.jwtAuth.GenerateToken(claims, p.cfg.Token.AccessTokenSecret)
	if err != nil {
		return nil, err
	}

	return &Token{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(p.cfg.Token.AccessTokenExpiresIn.Seconds()),
	}, nil
}

func (p *LocalProvider) getIdentity(ctx context.Context, id string) (*model.LocalIdentity, error) {
	result := p.db.Collection(identityCollection).FindOne(ctx, bson.M{"_id": id})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var identity model.LocalIdentity
	if err := result.Decode(&identity); err != nil {
		return nil, err
	}

	return &identity, nil
}

func toLocalIdentity(identity *model.LocalIdentity) *Identity {
	return &Identity{
		ID:             identity.ID,
		Email:          identity.Email,
		EmailConfirmed: identity.EmailConfirmed,
		FullName:       identity.Metadata["full_name"],
		Phone:          identity.Metadata["phone"],
		CreatedAt:      identity.CreatedAt,
	}
}
