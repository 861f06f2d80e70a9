// Package main provides the main entry point for the Heimdall dispatch engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tmcarr/heimdall/app/consumer"
	"github.com/tmcarr/heimdall/app/handlers"
	"github.com/tmcarr/heimdall/app/router"
	"github.com/tmcarr/heimdall/app/services"
	businessflow "github.com/tmcarr/heimdall/business_flow"
	"github.com/tmcarr/heimdall/config"
	"github.com/tmcarr/heimdall/models"
	"github.com/tmcarr/heimdall/repository"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Heimdall dispatch engine...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.AutoMigrate(&models.Member{}, &models.MessageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client used for consumer dedup.
// Returning a nil client disables dedup; the engine stays correct without it.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// initializeProvider selects the messaging provider based on configuration
func initializeProvider(cfg *config.ProductionConfig) services.MessagingProvider {
	if cfg.Provider.Mock {
		log.Println("Using mock messaging provider")
		return services.NewMockMessagingProvider()
	}
	return services.NewTwilioProvider(&cfg.Provider, cfg.Server.CallbackAuthCode)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	secretSource, err := services.NewSecretSource(cfg.Secrets)
	if err != nil {
		return nil, err
	}
	directory := services.NewDirectory(secretSource, cfg.Paging.DefaultIdentity)

	nc, js, err := services.ConnectQueue(cfg.Queue)
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, func() { _ = nc.Drain() })

	publisher := services.NewNATSPublisher(js, cfg.Queue.Subject)
	provider := initializeProvider(cfg)

	// Initialize repositories
	memberRepo := repository.NewMemberRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Initialize the dispatch machinery
	workerLogger := consumer.NewWorkerLogger(cfg.Logging)
	selector := businessflow.NewIdentitySelector(directory)
	dispatcher := businessflow.NewDispatcher(provider, selector, cfg.Dispatch.WorkerPoolSize, workerLogger)
	resolver := businessflow.NewRecipientResolver(memberRepo)
	recorder := businessflow.NewAuditRecorder(messageRepo)

	// Initialize flows
	activationFlow := businessflow.NewActivationFlow(memberRepo, directory, recorder, dispatcher, workerLogger)
	inboundFlow := businessflow.NewInboundFlow(memberRepo, directory, resolver, recorder, dispatcher, provider, cfg.Paging.MaxInboundBodyLen, workerLogger)
	statusFlow := businessflow.NewStatusFlow(memberRepo, messageRepo, recorder, dispatcher, cfg.Dispatch.EscalationEvery, workerLogger)
	announceFlow := businessflow.NewAnnounceFlow(memberRepo, directory, resolver, recorder, dispatcher, workerLogger)
	pageFlow := businessflow.NewPageFlow(resolver, directory, recorder, dispatcher, cfg.Paging.LinkDomain, workerLogger)
	loginFlow := businessflow.NewLoginFlow(memberRepo, recorder, dispatcher, workerLogger)
	transcriptionFlow := businessflow.NewTranscriptionFlow(messageRepo, directory, resolver, recorder, dispatcher, cfg.Paging.LinkDomain, workerLogger)

	eventRouter := businessflow.NewEventRouter(
		activationFlow,
		inboundFlow,
		statusFlow,
		announceFlow,
		pageFlow,
		loginFlow,
		transcriptionFlow,
		workerLogger,
	)

	// Start the queue consumer
	cons := consumer.NewConsumer(js, cfg.Queue, eventRouter, rc, cfg.Cache.DedupTTL, workerLogger)
	stop, err := cons.Start(context.Background())
	if err != nil {
		return nil, err
	}
	stopFuncs = append(stopFuncs, stop)

	// Initialize HTTP surface
	callbackHandler := handlers.NewCallbackHandler(publisher, cfg.Server.CallbackAuthCode)
	fiberRouter := router.NewFiberRouter(callbackHandler, cfg.Server)

	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
