// Package main provides the main entry point for the Linktum link shortener service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/linktum-io/linktum/app/handlers"
	"github.com/linktum-io/linktum/app/middleware"
	"github.com/linktum-io/linktum/app/router"
	"github.com/linktum-io/linktum/app/scheduler"
	"github.com/linktum-io/linktum/app/services"
	businessflow "github.com/linktum-io/linktum/business_flow"
	"github.com/linktum-io/linktum/config"
	"github.com/linktum-io/linktum/models"
	"github.com/linktum-io/linktum/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Linktum application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeLogger builds the application logger according to configuration,
// rotating the log file with lumberjack when file output is enabled
func initializeLogger(cfg config.LoggingConfig) *log.Logger {
	var out io.Writer = os.Stdout
	if cfg.Output == "file" || cfg.Output == "both" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		if cfg.Output == "both" {
			out = io.MultiWriter(os.Stdout, rotated)
		} else {
			out = rotated
		}
	}
	return log.New(out, "", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	// TranslateError turns driver duplicate-key failures into
	// gorm.ErrDuplicatedKey, which code reservation relies on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s", cfg.RedisURL)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	logger := initializeLogger(cfg.Logging)

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.Coupon{},
		&models.Link{},
		&models.LinkClick{},
		&models.Admin{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	linkClickRepo := repository.NewLinkClickRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Per-account rate limiter, shared across instances when Redis is up
	var limiter businessflow.RateLimiter
	if rc != nil {
		limiter = services.NewRedisRateLimiter(rc, cfg.Security.RateLimitWindow, int64(cfg.Security.RateLimitMax))
	} else {
		memLimiter := services.NewMemoryRateLimiter(cfg.Security.RateLimitWindow, int64(cfg.Security.RateLimitMax))
		stopFuncs = append(stopFuncs, memLimiter.Stop)
		limiter = memLimiter
	}

	// Outbound WhatsApp messaging and the batch notifier behind it
	var sender services.WhatsAppSender
	if cfg.WhatsApp.APIURL != "" {
		sender = services.NewWhatsAppClient(cfg.WhatsApp)
	} else {
		log.Println("WhatsApp API not configured, notifications are dropped")
		sender = services.NoopWhatsAppSender{}
	}
	notifier := services.NewBatchNotifier(sender, cfg.Notify, logger)
	stopFuncs = append(stopFuncs, notifier.Stop)

	// Fiat payment gateway
	gateway := services.NewGatewayClient(cfg.Gateway, cfg.Security.CallbackSecret)

	// Initialize flows
	walletFlow := businessflow.NewWalletFlow(accountRepo, transactionRepo, cfg, logger)
	couponFlow := businessflow.NewCouponFlow(couponRepo, accountRepo, walletFlow, limiter, logger)
	paymentFlow := businessflow.NewPaymentFlow(accountRepo, transactionRepo, walletFlow, gateway, limiter, cfg, logger)
	linkFlow := businessflow.NewLinkFlow(linkRepo, linkClickRepo, walletFlow, limiter, cfg, logger)
	adminFlow := businessflow.NewAdminFlow(adminRepo, tokenService)

	// Initialize handlers
	redirectHandler := handlers.NewRedirectHandler(linkFlow)
	chatHandler := handlers.NewChatHandler(walletFlow, couponFlow, paymentFlow, linkFlow, cfg)
	webhookHandler := handlers.NewPaymentWebhookHandler(paymentFlow, gateway)
	adminHandler := handlers.NewAdminHandler(adminFlow, couponFlow)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, redirectHandler, chatHandler, webhookHandler, adminHandler, authMiddleware)

	// Start the billing sweep
	sched := scheduler.NewBillingScheduler(linkRepo, linkClickRepo, walletFlow, paymentFlow, notifier, rc, cfg.Billing, cfg.Billing.SweepInterval)
	stopScheduler := sched.Start(context.Background())
	stopFuncs = append(stopFuncs, stopScheduler, sched.Close)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
