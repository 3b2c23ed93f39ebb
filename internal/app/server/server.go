package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fraglink-io/fraglink/config"
	"github.com/fraglink-io/fraglink/internal/app/resolver"
	"github.com/fraglink-io/fraglink/internal/app/service"
	"github.com/fraglink-io/fraglink/internal/app/store"
	"github.com/fraglink-io/fraglink/internal/http/handler"
	"github.com/fraglink-io/fraglink/internal/http/middleware"
	"github.com/fraglink-io/fraglink/internal/infra/prometheus"
)

// Dependencies carries everything the HTTP server needs. Redis and
// Metrics are optional; the matching middleware is skipped when nil.
type Dependencies struct {
	Logger   *zap.Logger
	Config   *config.Config
	Store    *store.Store
	Links    service.LinkService
	Resolver *resolver.Resolver
	Redis    *redis.Client
	Metrics  *prometheus.Metrics
}

type Server struct {
	app  *fiber.App
	deps Dependencies
}

func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "fraglink",
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))

	if s.deps.Metrics != nil {
		s.app.Use(middleware.Metrics(s.deps.Metrics))
	}

	s.app.Use(middleware.CORS())

	rl := s.deps.Config.RateLimit
	if rl.Enabled && s.deps.Redis != nil {
		limits := middleware.DefaultRateLimitConfig()
		if rl.MaxRequests > 0 {
			limits.MaxRequests = rl.MaxRequests
		}
		if rl.WindowSeconds > 0 {
			limits.Window = time.Duration(rl.WindowSeconds) * time.Second
		}
		s.app.Use(middleware.RateLimit(s.deps.Redis, limits, s.deps.Logger))
	}
}

func (s *Server) registerRoutes() {
	// The API router is registered first so /api/* never falls
	// through to the catch-all redirect routes.
	api := handler.NewAPIHandler(handler.APIDeps{
		Logger:      s.deps.Logger,
		LinkService: s.deps.Links,
		Redis:       s.deps.Redis,
		BaseURL:     s.deps.Config.Server.BaseURL,
	})
	api.Register(s.app)

	redirect := handler.NewRedirectHandler(handler.RedirectDeps{
		Logger:    s.deps.Logger,
		Resolver:  s.deps.Resolver,
		PageTitle: s.deps.Config.Server.PageTitle,
	})
	redirect.Register(s.app)
}

func (s *Server) Listen(addr string) error {
	s.deps.Logger.Info("http server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
