package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridebroker/internal/app"
	"ridebroker/internal/audit"
	"ridebroker/internal/bus"
	"ridebroker/internal/config"
	"ridebroker/internal/dispatch"
	"ridebroker/internal/geo"
	"ridebroker/internal/handler"
	"ridebroker/internal/logging"
	internalRedis "ridebroker/internal/redis"
	"ridebroker/internal/repository/postgres"
	"ridebroker/internal/service"
	"ridebroker/internal/token"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", logging.Err(err))
		} else {
			logger.Info("New Relic enabled", logging.String("app", cfg.NewRelic.AppName))
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", logging.Err(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", logging.Err(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Audit stream mirror, disabled without brokers.
	var auditPub audit.Publisher = audit.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := audit.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		auditPub = kp
		logger.Info("audit stream enabled", logging.String("topic", cfg.Kafka.Topic))
	}

	// Wire dependencies.
	server, sweeper := wireServer(db, redisClient, nrApp, auditPub, cfg, logger)

	// Background sweep until shutdown.
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	go sweeper.Run(sweepCtx)

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", logging.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", logging.Err(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")
	sweepCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", logging.Err(err))
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and
// the background sweeper.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	auditPub audit.Publisher,
	cfg *config.Config,
	logger *logging.Logger,
) (*http.Server, *service.Sweeper) {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	notifiedStore := internalRedis.NewNotifiedStore(redisClient)

	// Initialize repositories.
	sessionRepo := postgres.NewSessionRepository(db)
	offerRepo := postgres.NewOfferRepository(db)
	eventRepo := postgres.NewEventRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	driverRepo := postgres.NewDriverRepository(db)
	txStore := postgres.NewTxStore(db)

	// Push delivery, disabled without an endpoint.
	var pusher dispatch.Pusher = dispatch.NopPusher{}
	if cfg.Push.Endpoint != "" {
		pusher = dispatch.NewFCMPusher(cfg.Push.Endpoint, cfg.Push.Key)
	}

	eventBus := bus.NewHub(logger)
	zones := geo.NewStaticResolver(cfg.Zones)
	tokens := token.NewService(cfg.Token.TTL)

	// Initialize services.
	notifier := service.NewNotifier(notificationRepo, pusher, eventBus, auditPub, logger)
	sessionService := service.NewSessionService(sessionRepo, offerRepo, eventRepo, txStore, tokens, cacheStore, notifier, logger)
	discoveryService := service.NewDiscoveryService(sessionRepo, eventRepo, driverRepo, txStore, locationStore, notifiedStore, zones, notifier, logger, cfg.Discovery.RadiiKm)
	offerService := service.NewOfferService(sessionRepo, offerRepo, eventRepo, notifier, logger, cfg.Offers.TTL)
	selectionService := service.NewSelectionService(txStore, notifier, logger)
	sweeper := service.NewSweeper(sessionRepo, offerRepo, txStore, discoveryService, lockStore, notifier, logger, service.SweeperConfig{
		Interval:        cfg.Discovery.SweepInterval,
		WaveInterval:    cfg.Discovery.WaveInterval,
		DiscoveryWindow: cfg.Discovery.Window,
		HoldTimeout:     cfg.Discovery.HoldTimeout,
	})

	// Initialize handlers.
	sessionHandler := handler.NewSessionHandler(sessionService)
	discoveryHandler := handler.NewDiscoveryHandler(discoveryService)
	offerHandler := handler.NewOfferHandler(offerService, selectionService)
	tokenHandler := handler.NewTokenHandler(sessionService)
	driverHandler := handler.NewDriverHandler(locationStore, notificationRepo)
	streamHandler := handler.NewStreamHandler(sessionService, eventBus, logger)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		SessionHandler:   sessionHandler,
		DiscoveryHandler: discoveryHandler,
		OfferHandler:     offerHandler,
		TokenHandler:     tokenHandler,
		DriverHandler:    driverHandler,
		StreamHandler:    streamHandler,
		RedisClient:      redisClient,
		NewRelicApp:      nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, sweeper
}
