package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/mathrag/client/internal/api/client"
	"github.com/mathrag/client/internal/api/handlers"
	"github.com/mathrag/client/internal/metrics"
	"github.com/mathrag/client/internal/middleware/ratelimit"
	"github.com/mathrag/client/internal/middleware/security"
	"github.com/mathrag/client/internal/middleware/validation"
	"github.com/mathrag/client/internal/session"
	"github.com/mathrag/client/pkg/config"
	appLogger "github.com/mathrag/client/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting math solver session server", zap.String("solving_service", cfg.API.BaseURL))

	metrics.Init()

	apiClient := client.FromConfig(cfg)
	coord := session.NewCoordinator(apiClient, apiClient, session.Config{
		Level:           cfg.API.Level,
		UserID:          cfg.API.UserID,
		DefaultQuestion: cfg.Session.DefaultQuestion,
		NoticeDuration:  cfg.Feedback.NoticeDuration(),
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxEventsPerMinute: cfg.Server.MaxEventsPerMinute,
		Logger:             appLogger.Named("ratelimit"),
	})
	limiter.StartSweeper(5 * time.Minute)
	defer limiter.Stop()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	limits := validation.Limits{
		MaxQuestionLength:   cfg.Server.MaxQuestionLength,
		MaxCorrectionLength: cfg.Server.MaxCorrectionLength,
	}
	api.Use(validation.Middleware(validation.Config{
		MaxQuestionLength:   limits.MaxQuestionLength,
		MaxCorrectionLength: limits.MaxCorrectionLength,
		Logger:              appLogger.Named("validation"),
	}))

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":     "healthy",
			"session_id": coord.ID(),
			"time":       time.Now().Unix(),
		})
	})

	handlers.RegisterRoutes(api, coord, handlers.RouteConfig{Limiter: limiter, Limits: limits})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	coord.Wait()
	appLogger.Info("Server stopped")
}
