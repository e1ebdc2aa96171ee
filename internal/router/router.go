package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	appMiddleware "github.com/FACorreiaa/wealthflow/app/middleware"
	"github.com/FACorreiaa/wealthflow/internal/api/asset"
	"github.com/FACorreiaa/wealthflow/internal/api/auth"
	"github.com/FACorreiaa/wealthflow/internal/api/favourite"
	"github.com/FACorreiaa/wealthflow/internal/api/notificationrule"
	"github.com/FACorreiaa/wealthflow/internal/api/pricehistory"
	"github.com/FACorreiaa/wealthflow/internal/api/user"
	"github.com/FACorreiaa/wealthflow/internal/types"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler      *auth.AuthHandler
	UserHandler      *user.UserHandler
	AssetHandler     *asset.AssetHandler
	FavouriteHandler *favourite.FavouriteHandler
	PriceHandler     *pricehistory.PriceHandler
	RuleHandler      *notificationrule.RuleHandler
	Tokens           auth.TokenParser
	AllowedOrigins   []string
	AuthRateLimit    int
	Logger           *slog.Logger
}

// SetupRouter initializes and configures the main application router.
// Server-wide middleware (request id, logging, recoverer) is applied by the caller.
//
// Every /api/v1 request passes the authentication gate: a valid bearer token
// installs the principal, a bad one is rejected, and no token leaves the
// request anonymous for the public routes.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()
	r.Use(appMiddleware.CORS(cfg.AllowedOrigins))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Authenticate(cfg.Logger, cfg.Tokens))

		// public
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AuthRateLimit(cfg.AuthRateLimit, cfg.Logger))
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		})

		// authenticated
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuthentication(cfg.Logger))

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", cfg.AuthHandler.Me)
				r.Patch("/", cfg.UserHandler.UpdateMyProfile)
				r.Put("/login", cfg.AuthHandler.ChangeLogin)
				r.Put("/password", cfg.AuthHandler.ChangePassword)
			})

			r.Route("/assets", func(r chi.Router) {
				r.Get("/", cfg.AssetHandler.SearchAssets)
				r.Get("/ticker/{ticker}", cfg.AssetHandler.GetAssetByTicker)
				r.Route("/{assetID}", func(r chi.Router) {
					r.Get("/", cfg.AssetHandler.GetAsset)
					r.Get("/prices", cfg.PriceHandler.ListPrices)
					r.Get("/prices/latest", cfg.PriceHandler.LatestPrice)
				})
			})

			r.Route("/favourites", func(r chi.Router) {
				r.Get("/", cfg.FavouriteHandler.ListFavourites)
				r.Post("/", cfg.FavouriteHandler.AddFavourite)
				r.Get("/{assetID}", cfg.FavouriteHandler.FavouriteStatus)
				r.Delete("/{assetID}", cfg.FavouriteHandler.RemoveFavourite)
			})

			r.Route("/rules", func(r chi.Router) {
				r.Get("/", cfg.RuleHandler.ListRules)
				r.Post("/", cfg.RuleHandler.CreateRule)
				r.Get("/{ruleID}", cfg.RuleHandler.GetRule)
				r.Patch("/{ruleID}", cfg.RuleHandler.UpdateRule)
				r.Delete("/{ruleID}", cfg.RuleHandler.DeleteRule)
			})
		})

		// admin
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAuthentication(cfg.Logger))
			r.Use(auth.RequireRole(cfg.Logger, types.RoleAdmin))

			r.Post("/auth/register", cfg.AuthHandler.RegisterAdmin)

			r.Route("/users", func(r chi.Router) {
				r.Get("/", cfg.UserHandler.ListUsers)
				r.Get("/{userID}", cfg.UserHandler.GetUser)
				r.Patch("/{userID}", cfg.UserHandler.UpdateUser)
				r.Delete("/{userID}", cfg.UserHandler.SoftDeleteUser)
				r.Post("/{userID}/restore", cfg.UserHandler.RestoreUser)
				r.Delete("/{userID}/purge", cfg.UserHandler.HardDeleteUser)
			})

			r.Route("/assets", func(r chi.Router) {
				r.Post("/", cfg.AssetHandler.CreateAsset)
				r.Put("/{assetID}", cfg.AssetHandler.UpdateAsset)
				r.Delete("/{assetID}", cfg.AssetHandler.DeleteAsset)
				r.Get("/{assetID}/rules", cfg.RuleHandler.EnabledRulesForAsset)
			})

			r.Route("/prices", func(r chi.Router) {
				r.Post("/", cfg.PriceHandler.RecordPrice)
				r.Delete("/{priceID}", cfg.PriceHandler.DeletePrice)
			})
		})
	})

	return r
}
