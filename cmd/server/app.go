package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/storefront-api/internal/api"
	apiMiddleware "github.com/phrazzld/storefront-api/internal/api/middleware"
	"github.com/phrazzld/storefront-api/internal/config"
	"github.com/phrazzld/storefront-api/internal/events"
	"github.com/phrazzld/storefront-api/internal/identity"
	"github.com/phrazzld/storefront-api/internal/platform/postgres"
	"github.com/phrazzld/storefront-api/internal/service"
	"github.com/phrazzld/storefront-api/internal/service/auth"
)

// application holds the shared dependencies of the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	events       *events.InMemoryEventEmitter
	loginLimiter *apiMiddleware.RateLimiter
	router       http.Handler
}

// newApplication builds stores, the credential gateway, the services and the
// router on top of an open database.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
		events: events.NewInMemoryEventEmitter(logger),
	}
	app.events.On(events.TypeProvisioningInconsistency, newReconciliationHandler(logger))

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	games := postgres.NewPostgresGameStore(db, logger)
	promotions := postgres.NewPostgresPromotionStore(db, logger)
	profiles := postgres.NewPostgresUserStore(db, logger)
	library := postgres.NewPostgresLibraryStore(db, logger)
	credentials := postgres.NewPostgresCredentialStore(db, logger)
	units := postgres.NewUnitOfWorkFactory(db, logger)

	gateway, err := identity.NewService(credentials, auth.NewBcryptHasher(cfg.Auth.BCryptCost), jwtService, cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential gateway: %w", err)
	}

	engine, err := service.NewPricingEngine(games, promotions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pricing engine: %w", err)
	}
	coordinator, err := service.NewCoordinator(profiles, units, gateway, app.events, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create provisioning coordinator: %w", err)
	}
	gameService, err := service.NewGameService(engine, games, units, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create game service: %w", err)
	}
	promotionService, err := service.NewPromotionService(engine, promotions, units, app.events, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create promotion service: %w", err)
	}
	userService, err := service.NewUserService(engine, profiles, library, games, promotions, units, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service: %w", err)
	}

	app.loginLimiter = apiMiddleware.NewRateLimiter(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst)
	app.router = api.NewRouter(api.RouterDeps{
		Auth:         api.NewAuthHandler(gateway, coordinator, logger),
		Users:        api.NewUserHandler(userService, coordinator, logger),
		Games:        api.NewGameHandler(gameService, logger),
		Promotions:   api.NewPromotionHandler(promotionService),
		JWTService:   jwtService,
		LoginLimiter: app.loginLimiter,
		Ping:         db.PingContext,
		Logger:       logger,
	})

	logger.Info("application initialized successfully")
	return app, nil
}

// newReconciliationHandler logs provisioning inconsistencies so an operator
// can repair the affected account.
func newReconciliationHandler(logger *slog.Logger) events.EventHandler {
	log := logger.With(slog.String("component", "reconciliation"))
	return events.HandlerFunc(func(ctx context.Context, event *events.Event) error {
		var payload events.InconsistencyPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			log.Error("failed to decode inconsistency event",
				slog.String("event_id", event.ID.String()),
				slog.String("error", err.Error()))
			return err
		}
		log.Error("account requires manual reconciliation",
			slog.String("event_id", event.ID.String()),
			slog.String("operation", payload.Operation),
			slog.String("email", payload.Email),
			slog.String("user_id", payload.UserID.String()),
			slog.String("cause", payload.Cause))
		return nil
	})
}
