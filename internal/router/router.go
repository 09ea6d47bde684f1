package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	jsoniter "github.com/json-iterator/go"

	"github.com/quantlake/ohlcv-gateway/internal/config"
	"github.com/quantlake/ohlcv-gateway/internal/handlers"
	"github.com/quantlake/ohlcv-gateway/internal/logging"
	"github.com/quantlake/ohlcv-gateway/internal/mediator"
	"github.com/quantlake/ohlcv-gateway/internal/middleware"
	"github.com/quantlake/ohlcv-gateway/internal/partindex"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, template *pathcodec.Template,
	index *partindex.Index, med *mediator.Mediator, cfg config.Config,
) *handlers.Handler {
	// Create handler instance
	h := handlers.New(logger, template, index, med, cfg.Layout)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	// API key authentication middleware
	authMiddleware := middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled)

	// API v1 routes (protected by API key)
	v1 := app.Group("/v1", authMiddleware)

	// Symbol and partition discovery
	v1.Get("/symbols", h.ListSymbols)
	v1.Get("/symbols/:symbol/partitions", h.ListPartitions)

	// Object delivery
	v1.Get("/object", h.GetObject)
	v1.Get("/object/preview", h.PreviewObject)

	// Upload paths
	v1.Post("/presign/upload", h.PresignUpload)
	v1.Post("/upload", h.Upload)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, template *pathcodec.Template, index *partindex.Index,
	med *mediator.Mediator, cfg config.Config,
) *fiber.App {
	json := jsoniter.ConfigCompatibleWithStandardLibrary

	app := fiber.New(fiber.Config{
		AppName:               "OHLCV Partition Gateway",
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit(cfg),
		ErrorHandler:          middleware.ErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	Setup(app, logger, template, index, med, cfg)

	return app
}

// bodyLimit sizes the request body cap to the configured direct-upload
// limit, with headroom for the multipart envelope.
func bodyLimit(cfg config.Config) int {
	const defaultLimit = 512 * 1024 * 1024

	if cfg.Store.MaxUploadBytes <= 0 {
		return defaultLimit
	}
	return int(cfg.Store.MaxUploadBytes) + 1024*1024
}
