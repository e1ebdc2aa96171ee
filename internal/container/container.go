package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/patrickmn/go-cache"

	database "github.com/FACorreiaa/wealthflow/app/db"
	"github.com/FACorreiaa/wealthflow/config"
	"github.com/FACorreiaa/wealthflow/internal/api/asset"
	"github.com/FACorreiaa/wealthflow/internal/api/auth"
	"github.com/FACorreiaa/wealthflow/internal/api/favourite"
	"github.com/FACorreiaa/wealthflow/internal/api/notificationrule"
	"github.com/FACorreiaa/wealthflow/internal/api/pricehistory"
	"github.com/FACorreiaa/wealthflow/internal/api/user"
	"github.com/FACorreiaa/wealthflow/internal/router"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Tokens *auth.TokenService

	AuthService *auth.AuthServiceImpl

	AuthHandler      *auth.AuthHandler
	UserHandler      *user.UserHandler
	AssetHandler     *asset.AssetHandler
	FavouriteHandler *favourite.FavouriteHandler
	PriceHandler     *pricehistory.PriceHandler
	RuleHandler      *notificationrule.RuleHandler
}

// NewContainer opens the pool and wires repositories, services and handlers.
// It fails when the JWT secret is unusable so the process never serves without a key.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	tokens, err := auth.NewTokenService(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
	if err != nil {
		return nil, err
	}

	assetCache := cache.New(cfg.Cache.DefaultTTL, cfg.Cache.CleanupInterval)

	// repositories
	userRepo := auth.NewPostgresUserRepo(pool, logger)
	assetRepo := asset.NewPostgresAssetRepo(pool, logger)
	favouriteRepo := favourite.NewPostgresFavouriteRepo(pool, logger)
	priceRepo := pricehistory.NewPostgresPriceRepo(pool, logger)
	ruleRepo := notificationrule.NewPostgresRuleRepo(pool, logger)

	// services
	authService := auth.NewAuthService(userRepo, pool, auth.NewPasswordService(), tokens, logger)
	authService.OnUserRegistered(func(ctx context.Context, evt types.UserRegistered) {
		logger.InfoContext(ctx, "User registered",
			slog.String("userID", evt.UserID.String()),
			slog.String("login", evt.Login),
			slog.String("role", string(evt.Role)))
	})
	userService := user.NewUserService(userRepo, logger)
	assetService := asset.NewAssetService(assetRepo, assetCache, logger)
	favouriteService := favourite.NewFavouriteService(favouriteRepo, userRepo, assetRepo, logger)
	priceService := pricehistory.NewPriceService(priceRepo, assetRepo, assetService, pool, logger)
	ruleService := notificationrule.NewRuleService(ruleRepo, assetRepo, pool, logger)

	return &Container{
		Config:           cfg,
		Logger:           logger,
		Pool:             pool,
		Tokens:           tokens,
		AuthService:      authService,
		AuthHandler:      auth.NewAuthHandler(authService, logger),
		UserHandler:      user.NewUserHandler(userService, logger),
		AssetHandler:     asset.NewAssetHandler(assetService, logger),
		FavouriteHandler: favourite.NewFavouriteHandler(favouriteService, logger),
		PriceHandler:     pricehistory.NewPriceHandler(priceService, logger),
		RuleHandler:      notificationrule.NewRuleHandler(ruleService, logger),
	}, nil
}

// RouterConfig bundles the handlers for router.SetupRouter.
func (c *Container) RouterConfig() *router.Config {
	return &router.Config{
		AuthHandler:      c.AuthHandler,
		UserHandler:      c.UserHandler,
		AssetHandler:     c.AssetHandler,
		FavouriteHandler: c.FavouriteHandler,
		PriceHandler:     c.PriceHandler,
		RuleHandler:      c.RuleHandler,
		Tokens:           c.Tokens,
		AllowedOrigins:   c.Config.Server.AllowedOrigins,
		AuthRateLimit:    c.Config.Server.AuthRateLimit,
		Logger:           c.Logger,
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations() error {
	dbConfig, err := database.NewDatabaseConfig(c.Config, c.Logger)
	if err != nil {
		return err
	}
	return database.RunMigrations(dbConfig.ConnectionURL, c.Logger)
}
