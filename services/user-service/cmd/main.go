package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/config"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/handler"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/provider"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/repository"
	"github.com/tecnomga/insurance-portal-api/services/user-service/internal/usecase"
	"github.com/tecnomga/insurance-portal-api/shared/discovery"
	"github.com/tecnomga/insurance-portal-api/shared/mailer"
)

const serviceName = "user-service"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()

	cfg := config.NewUserServiceConfig(&logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongodb")
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping mongodb")
	}

	db := client.Database(cfg.Mongo.Database)

	profileRepo := repository.NewProfileMongoRepository(ctx, &logger, db)
	roleRepo := repository.NewRoleMongoRepository(ctx, &logger, db)

	identityProvider, err := provider.New(ctx, cfg, &logger, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build identity provider")
	}

	var m *mailer.Mailer
	if mailer.Configured() {
		m = mailer.NewMailer(&logger)
	} else {
		logger.Warn().Msg("SMTP not configured, welcome emails disabled")
	}

	userUsecase := usecase.NewUserUsecase(identityProvider, profileRepo, roleRepo, m, &logger)
	userHandler := handler.NewUserHTTPHandler(userUsecase, cfg, &logger)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           userHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer, err := discovery.ServeHealth(cfg.HealthAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start health server")
	}
	defer healthServer.GracefulStop()

	if cfg.Consul.Addr != "" {
		deregister, err := discovery.Register(cfg.Consul.Addr, discovery.Registration{
			Name:     serviceName,
			ID:       serviceName + "-" + uuid.NewString(),
			Address:  cfg.Consul.ServiceAddress,
			Port:     cfg.Consul.ServicePort,
			GRPCPort: cfg.Consul.HealthPort,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to register with consul")
		}
		defer func() {
			if err := deregister(); err != nil {
				logger.Error().Err(err).Msg("failed to deregister from consul")
			}
		}()
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("user-service started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("user-service stopped cleanly")
}
