package httpapi

import (
	"errors"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "joana-weather"

// ServerOptions configures NewServer.
type ServerOptions struct {
	Service WeatherService
	Names   CityResolver
	Logger  *slog.Logger

	// Providers is reported by /health.
	Providers []string

	// AccessLog enables the fiber request logger.
	AccessLog bool
	// Metrics exposes the default Prometheus registry on /metrics.
	Metrics bool
}

// NewServer builds the Fiber app with middleware, health, metrics and the
// API routes.
func NewServer(opts ServerOptions) *fiber.App {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler(log),
	})

	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   serviceName,
			"providers": opts.Providers,
		})
	})

	if opts.Metrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	RegisterRoutes(app, opts.Service, opts.Names)
	return app
}

// errorHandler renders errors as {"error": true, "message": ...}.
// Non-fiber errors are logged and reported as a generic 500.
func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			log.Error("unhandled request error", "path", c.Path(), "error", err)
		}

		if code >= fiber.StatusInternalServerError {
			log.Warn("request failed",
				"path", c.Path(),
				"status", code,
				"request_id", c.Locals("requestid"),
			)
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}
