package main

import (
	"context"
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

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/api/handlers"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/bootstrap"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/metrics"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/middleware/ratelimit"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/middleware/security"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/middleware/validation"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/config"
	appLogger "github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath, appLogger.Rotation{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting documentation chatbot API server")

	metrics.Init()

	services, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		appLogger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	headers := security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}

	allowOrigins := "*"
	if len(cfg.Server.AllowedOrigins) > 0 {
		allowOrigins = strings.Join(cfg.Server.AllowedOrigins, ", ")
	}

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + ratelimit.UserHeader,
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(headers))

	app.Get("/metrics", metrics.MetricsHandler())

	var middleware []fiber.Handler
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
			Logger:            appLogger.GetLogger(),
		})
		defer limiter.Stop()
		middleware = append(middleware, limiter.Middleware())
	}
	middleware = append(middleware, validation.Middleware(validation.Config{
		MaxMessageLength: cfg.Server.MaxMessageLength,
		MaxDocumentSize:  cfg.Server.BodyLimit,
		Logger:           appLogger.GetLogger(),
	}))

	checks := map[string]handlers.Check{
		"sqlite": services.Store.Ping,
		"vector": func(ctx context.Context) error {
			_, err := services.Index.Stats(ctx)
			return err
		},
	}
	if services.Cache != nil {
		checks["redis"] = services.Cache.Ping
	}

	router := handlers.Router{
		Chat:      handlers.NewChatHandler(services.Orchestrator),
		Documents: handlers.NewDocumentHandler(services.Pipeline, services.Store, services.Retriever),
		WebSocket: handlers.NewWebSocketHandler(services.Orchestrator, func(origin string) bool {
			return security.OriginAllowed(headers, origin)
		}),
		Health: handlers.NewHealthHandler(checks),
	}
	router.Register(app, middleware...)

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
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
