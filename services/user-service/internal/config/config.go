package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// UserServiceConfig holds every setting the user-service reads. It is
// parsed once in main and injected; nothing reads the environment at
// request time.
type UserServiceConfig struct {
	HTTPAddr   string `env:"HTTP_ADDR"   envDefault:":8080"`
	HealthAddr string `env:"HEALTH_ADDR" envDefault:":9090"`

	Mongo    MongoConfig    `envPrefix:"MONGO_"`
	Identity IdentityConfig `envPrefix:"IDENTITY_"`
	Token    TokenConfig    `envPrefix:"TOKEN_"`
	Consul   ConsulConfig   `envPrefix:"CONSUL_"`
}

// MongoConfig holds the connection settings for the portal database.
type MongoConfig struct {
	URI      string `env:"URI"      envDefault:"mongodb://localhost:27017"`
	Database string `env:"DATABASE" envDefault:"insurance_portal"`
}

// IdentityConfig selects and configures the external identity store.
type IdentityConfig struct {
	// Provider is either "gotrue" (hosted identity store) or "local".
	Provider string `env:"PROVIDER" envDefault:"gotrue"`

	// URL and ServiceRoleKey are required for the gotrue provider. They are
	// deliberately not part of validate(): a service started without them
	// answers provisioning requests with the configuration-missing error
	// instead of refusing to boot, matching the hosted deployment.
	URL            string `env:"URL"`
	ServiceRoleKey string `env:"SERVICE_ROLE_KEY"`
}

// TokenConfig holds the signing settings used by the local identity provider.
type TokenConfig struct {
	Issuer               string        `env:"ISSUER"    envDefault:"insurance-portal"`
	AccessTokenSecret    string        `env:"ACCESS_TOKEN_SECRET"`
	AccessTokenExpiresIn time.Duration `env:"ACCESS_TOKEN_EXPIRES_IN" envDefault:"15m"`
}

// ConsulConfig holds the optional service-discovery settings.
type ConsulConfig struct {
	Addr           string `env:"ADDR"`
	ServiceAddress string `env:"SERVICE_ADDRESS" envDefault:"127.0.0.1"`
	ServicePort    int    `env:"SERVICE_PORT"    envDefault:"8080"`
	HealthPort     int    `env:"HEALTH_PORT"     envDefault:"9090"`
}

// NewUserServiceConfig creates a UserServiceConfig instance from environment variables.
func NewUserServiceConfig(logger *zerolog.Logger) *UserServiceConfig {
	cfg, err := env.ParseAs[UserServiceConfig]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate user-service configuration")
	}

	return &cfg
}

// IdentityStoreConfigured reports whether the selected identity provider has
// the credentials it needs to serve provisioning requests.
func (c *UserServiceConfig) IdentityStoreConfigured() bool {
	switch c.Identity.Provider {
	case "local":
		return c.Token.AccessTokenSecret != ""
	default:
		return c.Identity.URL != "" && c.Identity.ServiceRoleKey != ""
	}
}

// validate checks if the user-service configuration is valid.
func (c *UserServiceConfig) validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("missing MONGO_URI environment variable")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("missing MONGO_DATABASE environment variable")
	}
	if c.Identity.Provider != "gotrue" && c.Identity.Provider != "local" {
		return fmt.Errorf("unknown identity provider %q", c.Identity.Provider)
	}

	return nil
}
