package server

import (
	"context"
	"errors"

	"github.com/Prapti-XR/Prapti-sub000/internal/admin"
	"github.com/Prapti-XR/Prapti-sub000/internal/asset"
	"github.com/Prapti-XR/Prapti-sub000/internal/auth"
	"github.com/Prapti-XR/Prapti-sub000/internal/background"
	"github.com/Prapti-XR/Prapti-sub000/internal/cache"
	"github.com/Prapti-XR/Prapti-sub000/internal/config"
	"github.com/Prapti-XR/Prapti-sub000/internal/contribution"
	"github.com/Prapti-XR/Prapti-sub000/internal/db"
	"github.com/Prapti-XR/Prapti-sub000/internal/feed"
	"github.com/Prapti-XR/Prapti-sub000/internal/health"
	"github.com/Prapti-XR/Prapti-sub000/internal/metrics"
	"github.com/Prapti-XR/Prapti-sub000/internal/site"
	"github.com/Prapti-XR/Prapti-sub000/internal/trivia"
	"github.com/Prapti-XR/Prapti-sub000/internal/upload"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// uploads carry 3D models and panoramas.
const bodyLimit = 200 << 20

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Log    *zap.Logger
	Runner *background.Runner
	Cache  cache.Cache
	Feed   *feed.Hub
	Store  upload.ObjectStore
}

// Options carries dependencies built outside the server. A nil Store leaves
// uploads disabled.
type Options struct {
	Logger *zap.Logger
	Store  upload.ObjectStore
}

func NewServer(cfg config.Config, pool *pgxpool.Pool, redisClient *redis.Client, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "prapti-api",
		BodyLimit:    bodyLimit,
		ErrorHandler: errorHandler(log),
	})
	app.Use(requestid.New())
	app.Use(requestLogger(log))
	app.Use(recover.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pool,
		Redis:  redisClient,
		Log:    log,
		Runner: background.NewRunner(log.Named("background"), cfg.BackgroundConcurrency),
		Cache:  cache.New(redisClient),
		Feed:   feed.NewHub(redisClient, log.Named("feed")),
		Store:  opts.Store,
	}

	registerRoutes(s)
	return s
}

// Close drains background tasks and stops the feed hub.
func (s *Server) Close(ctx context.Context) error {
	err := s.Runner.Wait(ctx)
	s.Feed.Close()
	return err
}

func registerRoutes(s *Server) {
	var q db.Querier
	if s.DB != nil {
		q = s.DB
	}
	rt := cache.NewReadThrough(s.Cache, s.Runner, s.Log.Named("cache"))

	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", metrics.Handler())
	s.App.Get("/api/config/public", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"mapsApiKey": s.Cfg.MapsAPIKey})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	assets := asset.NewService(q)
	sites := site.NewService(q, site.Options{
		Assets:    assets,
		Cache:     rt,
		Runner:    s.Runner,
		NearbyTTL: s.Cfg.NearbyCacheTTL(),
		Logger:    s.Log.Named("site"),
	})
	contributions := contribution.NewService(q, s.Feed, s.Runner, s.Log.Named("contribution"))

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, q), jwtMiddleware)
	site.RegisterRoutes(s.App.Group("/api/sites"), sites, jwtMiddleware)
	asset.RegisterRoutes(s.App.Group("/api"), assets, rt)
	trivia.RegisterRoutes(s.App.Group("/api/trivia"), trivia.NewService(q, rt), jwtMiddleware)
	contribution.RegisterRoutes(s.App.Group("/api/contributions"), contributions, jwtMiddleware)
	upload.RegisterRoutes(s.App.Group("/api/upload"), upload.NewService(s.Store, assets, sites, rt), jwtMiddleware)
	admin.RegisterRoutes(s.App.Group("/api/admin"), admin.Deps{
		Admin:         admin.NewService(q),
		Sites:         sites,
		Contributions: contributions,
	}, jwtMiddleware)
	admin.RegisterCacheRoutes(s.App.Group("/api/cache"), s.Cache, jwtMiddleware)
	health.RegisterRoutes(s.App.Group("/api/health"), q, s.Log)
	feed.RegisterRoutes(s.App.Group("/api/feed"), s.Feed)
}

// errorHandler renders every error as {success:false, error}. Errors that are
// not *fiber.Error are logged and hidden behind a generic 500.
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"success": false, "error": fe.Message})
		}
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Any("request_id", c.Locals(requestid.ConfigDefault.ContextKey)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "internal server error"})
	}
}
