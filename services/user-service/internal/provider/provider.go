package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/config"
)

// Identity is the authentication record held by the identity store for a
// portal user. The store assigns the ID; profiles and role assignments are
// keyed by it.
type Identity struct {
	ID             string
	Email          string
	EmailConfirmed bool
	FullName       string
	Phone          string
	CreatedAt      time.Time
}

// Token is an access token issued by the identity store.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int
}

// CreateUserParams defines the parameters for creating an identity.
type CreateUserParams struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// IdentityProvider is the contract the user-service requires from the
// external identity store.
type IdentityProvider interface {
	// VerifyToken resolves an access token to the identity it belongs to.
	VerifyToken(ctx context.Context, accessToken string) (*Identity, error)

	// CreateUser creates a confirmed identity with the given credentials.
	CreateUser(ctx context.Context, params CreateUserParams) (*Identity, error)

	// DeleteUser removes an identity. Callers compensating a failed
	// provisioning treat this as best-effort.
	DeleteUser(ctx context.Context, id string) error

	// Authenticate performs a password grant and returns an access token.
	Authenticate(ctx context.Context, email, password string) (*Token, error)
}

// New builds the identity provider selected by the configuration.
func New(ctx context.Context, cfg *config.UserServiceConfig, logger *zerolog.Logger, db *mongo.Database) (IdentityProvider, error) {
	switch cfg.Identity.Provider {
	case "gotrue":
		return NewGoTrueProvider(cfg.Identity.URL, cfg.Identity.ServiceRoleKey), nil
	case "local":
		return NewLocalProvider(ctx, cfg, logger, db), nil
	default:
		return nil, fmt.Errorf("provider: unknown identity provider %q", cfg.Identity.Provider)
	}
}
