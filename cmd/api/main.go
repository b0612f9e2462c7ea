package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront-insights/internal/application"
	"storefront-insights/internal/config"
	"storefront-insights/internal/domain"
	apiinfra "storefront-insights/internal/infrastructure/api"
	"storefront-insights/internal/infrastructure/cache"
	"storefront-insights/internal/infrastructure/metrics"
	"storefront-insights/internal/infrastructure/pubsub"
	"storefront-insights/internal/infrastructure/repository"
	shopifyinfra "storefront-insights/internal/infrastructure/shopify"
	"storefront-insights/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// Initialize logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger = logger.Level(cfg.LogLevel)

	ctx := context.Background()

	// Connect to the entity store
	dialect, err := repository.ParseDialect(cfg.DatabaseDriver)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid DATABASE_DRIVER")
	}
	store, err := repository.Open(ctx, dialect, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", string(dialect)).Msg("Failed to connect to database")
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database schema")
	}

	// Optional webhook delivery log
	var webhookLog ports.WebhookLog
	if cfg.MongoURI != "" {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer client.Disconnect(context.Background())

		mongoLog := repository.NewMongoWebhookLog(client.Database(cfg.MongoDatabase))
		if err := mongoLog.EnsureIndexes(ctx); err != nil {
			logger.Warn().Err(err).Msg("Failed to create webhook delivery indexes")
		}
		webhookLog = mongoLog
		logger.Info().Str("database", cfg.MongoDatabase).Msg("Webhook delivery log enabled")
	}

	// Optional insight cache
	var insightCache ports.InsightCache
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid REDIS_URL")
		}
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unreachable, insight cache disabled")
		} else {
			insightCache = cache.NewRedisInsightCache(redisClient, cfg.InsightCacheTTL)
			logger.Info().Dur("ttl", cfg.InsightCacheTTL).Msg("Insight cache enabled")
		}
	}

	if cfg.APISecret == "" {
		logger.Warn().Msg("⚠️  SHOPIFY_API_SECRET_KEY not set, webhooks will be refused")
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serviceMetrics := metrics.New(registry)

	// Tenant change feed
	changeFeed := pubsub.NewChangeFeed(logger)

	// Shopify collaborators
	fetcher := shopifyinfra.NewClient(
		cfg.APIKey,
		cfg.APISecret,
		cfg.AccessToken,
		cfg.APIVersion,
		&http.Client{Timeout: cfg.SyncTimeout},
		logger,
	)
	verifier := shopifyinfra.NewWebhookVerifier()

	// Initialize application services
	reconciler := application.NewReconciler(store, logger)
	syncService := application.NewSyncService(
		store,
		fetcher,
		reconciler,
		changeFeed,
		serviceMetrics,
		application.SyncOptions{
			Shop:     cfg.ShopName,
			PageSize: cfg.SyncPageSize,
			Timeout:  cfg.SyncTimeout,
		},
		logger,
	)
	recorder := application.NewEventRecorder(store, webhookLog, changeFeed, serviceMetrics, logger)
	insights := application.NewInsightService(store, insightCache, logger)

	if insightCache != nil {
		changeFeed.Subscribe(&pubsub.ChangeFilter{
			Sources: []domain.ChangeSource{domain.ChangeSourceSync, domain.ChangeSourceWebhook},
		}, insights.HandleTenantChange)
	}

	handlers := apiinfra.NewHandlers(syncService, recorder, insights, verifier, cfg.APISecret, cfg.ShopName, logger)
	router := apiinfra.NewRouter(handlers, apiinfra.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins,
		Gatherer:       registry,
		SwaggerFile:    "./docs/swagger.json",
		Health:         changeFeed.Stats,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("shop", cfg.ShopName).Msg("Starting API server")
		logger.Info().Msg("Swagger documentation available at http://localhost:" + cfg.Port + "/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to shut down server gracefully")
	}
}
