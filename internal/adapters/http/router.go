package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/siteboundary/internal/pkg/metrics"
)

// RouterConfig tunes per-request limits.
type RouterConfig struct {
	RequestTimeout time.Duration
	RateLimit      int // requests per minute per IP; 0 disables
}

var deprecatedRoutes = []DeprecatedRoute{
	{
		Path:        "/v1/sessions/:id/boundary/wkt",
		SunsetDate:  time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC),
		Alternative: "/v1/sessions/:id/boundary/import?format=wkt",
	},
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, cfg RouterConfig) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, 429, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware(deprecatedRoutes))

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	withTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, cfg.RequestTimeout)
	}

	v1 := app.Group("/v1")
	v1.Get("/formats", ListFormatsHandler(deps))
	v1.Get("/sessions", withTimeout(ListSessionsHandler(deps)))
	v1.Post("/boundary/validate", withTimeout(ValidatePolygonHandler(deps)))

	v1.Get("/sessions/:id/boundary", withTimeout(GetBoundaryHandler(deps)))
	v1.Put("/sessions/:id/boundary", withTimeout(PutBoundaryHandler(deps)))
	v1.Delete("/sessions/:id/boundary", withTimeout(DeleteBoundaryHandler(deps)))
	v1.Post("/sessions/:id/boundary/import", withTimeout(ImportBoundaryHandler(deps)))
	v1.Post("/sessions/:id/boundary/wkt", withTimeout(ImportWKTHandler(deps)))
	v1.Post("/sessions/:id/boundary/imports", withTimeout(StartImportHandler(deps)))
	v1.Get("/sessions/:id/boundary/export", withTimeout(ExportBoundaryHandler(deps)))
	v1.Get("/sessions/:id/boundary/validation", withTimeout(ValidateBoundaryHandler(deps)))
	v1.Get("/sessions/:id/boundary/history", withTimeout(HistoryHandler(deps)))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}
