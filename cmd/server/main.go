package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Baby-jesuset/FBGENERALHW-sj/config"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/controller"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/repository"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/app/service"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/cache"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/db"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/events"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/middleware"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/router"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/scheduler"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/storage"
	"github.com/Baby-jesuset/FBGENERALHW-sj/internal/websocket"
	"github.com/Baby-jesuset/FBGENERALHW-sj/pkg/logger"
	redispkg "github.com/Baby-jesuset/FBGENERALHW-sj/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: logFormat == "console",
	})

	logger.Info("Starting FB Hardware API", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Redis is optional: without it carts are read from the database on
	// every request and logout only clears the client's tokens.
	var (
		revoker   service.TokenRevoker
		revoked   middleware.RevocationChecker
		cartCache cache.CartCache
	)
	if err := redispkg.Init(&cfg.Redis); err != nil {
		logger.Warn("Redis unavailable, continuing without cart cache and token revocation", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		defer redispkg.Close()
		blacklist := redispkg.NewTokenBlacklist(redispkg.GetClient())
		revoker = blacklist
		revoked = blacklist
		cartCache = cache.NewRedisCartCache(redispkg.GetClient(), cfg.Cart.CacheTTL)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
		logger.Info("Publishing order events to Kafka", map[string]interface{}{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.OrderTopic,
		})
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", err)
		}
	}()

	var presigner controller.ImagePresigner
	if cfg.S3.Bucket != "" {
		s3Storage, err := storage.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			logger.Warn("S3 unavailable, image uploads disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			presigner = s3Storage
		}
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Initialize repositories
	conn := db.GetDB()
	userRepo := repository.NewUserRepository(conn)
	categoryRepo := repository.NewCategoryRepository(conn)
	productRepo := repository.NewProductRepository(conn)
	cartRepo := repository.NewCartRepository(conn)
	orderRepo := repository.NewOrderRepository(conn)

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		revoker,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	cartService := service.NewCartService(cartRepo, productRepo, cartCache, hub)
	productService := service.NewProductService(productRepo, categoryRepo, orderRepo, cartRepo, cartService)
	categoryService := service.NewCategoryService(categoryRepo)
	orderService := service.NewOrderService(orderRepo, cartService, publisher, cfg.Checkout, conn)

	pruner := scheduler.NewCartPruner(cartRepo, cartService, cfg.Cart.PruneSchedule, cfg.Cart.AbandonedAfter)
	if err := pruner.Start(); err != nil {
		logger.Fatal("Failed to start cart pruner", err)
	}
	defer pruner.Stop()

	r := router.NewRouter(
		controller.NewAuthController(authService),
		controller.NewProductController(productService),
		controller.NewCategoryController(categoryService),
		controller.NewCartController(cartService, hub, cfg.CORS.AllowedOrigins),
		controller.NewOrderController(orderService),
		controller.NewUploadController(presigner),
		middleware.NewAuthMiddleware(cfg.JWT.Secret, revoked),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	// closes websocket sessions
	stop()

	logger.Info("Server stopped successfully")
}
