package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/RelistGo/internal/config"
	"github.com/utafrali/RelistGo/internal/content"
	"github.com/utafrali/RelistGo/internal/event"
	handler "github.com/utafrali/RelistGo/internal/handler/http"
	"github.com/utafrali/RelistGo/internal/harvester"
	"github.com/utafrali/RelistGo/internal/imaging"
	"github.com/utafrali/RelistGo/internal/rakuten"
	"github.com/utafrali/RelistGo/internal/repository/postgres"
	"github.com/utafrali/RelistGo/internal/service"
	"github.com/utafrali/RelistGo/internal/storage"
	"github.com/utafrali/RelistGo/internal/storage/memory"
	"github.com/utafrali/RelistGo/internal/storage/s3"
	"github.com/utafrali/RelistGo/internal/translator"
	"github.com/utafrali/RelistGo/migrations"
	"github.com/utafrali/RelistGo/pkg/database"
	"github.com/utafrali/RelistGo/pkg/health"
	pkgkafka "github.com/utafrali/RelistGo/pkg/kafka"
	"github.com/utafrali/RelistGo/pkg/tracing"
)

// App wires together all dependencies and runs the relist service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	refresher      *service.AutoRefresher
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "relist-service",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "relist")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Initialize the optional Redis client backing the second
	// translation-cache layer.
	var rdb *redis.Client
	if cfg.RedisEnabled {
		rdb, err = database.NewRedisClient(ctx, database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("connected to Redis",
			slog.String("host", cfg.RedisHost),
			slog.Int("db", cfg.RedisDB),
		)
	}

	// Initialize the optional Kafka producer. An unreachable broker is
	// a warning, not a startup failure: publishes are logged and
	// dropped until the broker recovers.
	var kafkaProducer *pkgkafka.Producer
	if cfg.KafkaEnabled {
		kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		kafkaProducer = pkgkafka.NewProducer(kafkaCfg, logger)

		pingErr := pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		for attempt := 2; pingErr != nil && attempt <= 3; attempt++ {
			time.Sleep(time.Duration(attempt) * time.Second)
			pingErr = pkgkafka.PingBrokers(ctx, cfg.KafkaBrokers)
		}
		if pingErr != nil {
			logger.Warn("kafka brokers unreachable",
				slog.Any("brokers", cfg.KafkaBrokers),
				slog.Any("error", pingErr),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		}
	}
	eventProducer := event.NewProducer(kafkaProducer, logger)

	// Initialize the object store. An empty bucket selects the
	// in-process store, which only makes sense for local runs.
	var store storage.Storage
	var s3Store *s3.Storage
	if cfg.S3Bucket != "" {
		s3Store, err = s3.New(ctx, s3.Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			PublicBaseURL: cfg.S3PublicURL,
		})
		if err != nil {
			closeQuietly(rdb, logger)
			pool.Close()
			return nil, fmt.Errorf("init object store: %w", err)
		}
		store = s3Store
		logger.Info("object store initialized",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	} else {
		baseURL := cfg.S3PublicURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost:%d", cfg.HTTPPort)
		}
		store = memory.New(baseURL)
		logger.Warn("S3_BUCKET not set, using in-process object store")
	}

	// Typed upstream clients.
	harvestClient := harvester.NewHTTPClient(harvester.Config{
		BaseURL:   cfg.RakumartBaseURL,
		AppKey:    cfg.RakumartAppKey,
		AppSecret: cfg.RakumartAppSecret,
		Timeout:   time.Duration(cfg.ProductAPITimeoutSecs) * time.Second,
	}, logger)

	creds, err := config.LoadRakutenCredentials(cfg.RakutenCredentialsFile)
	if err != nil {
		closeQuietly(rdb, logger)
		pool.Close()
		return nil, fmt.Errorf("load rakuten credentials: %w", err)
	}
	if creds.ServiceSecret == "" || creds.LicenseKey == "" {
		logger.Warn("rakuten credentials not configured, registration calls will fail")
	}
	rakutenClient := rakuten.NewClient(rakuten.Config{
		BaseURL:        cfg.RakutenBaseURL,
		ServiceSecret:  creds.ServiceSecret,
		LicenseKey:     creds.LicenseKey,
		Timeout:        time.Duration(cfg.ProductAPITimeoutSecs) * time.Second,
		CabinetTimeout: time.Duration(cfg.CabinetUploadTimeoutSecs) * time.Second,
	}, logger)

	// Machine translation. Materialization depends on it, so a missing
	// key fails startup instead of the first materialize call.
	mt, err := translator.NewGoogleMT(ctx, cfg.TranslatorAPIKey, logger)
	if err != nil {
		closeQuietly(rdb, logger)
		pool.Close()
		return nil, fmt.Errorf("init translator: %w", err)
	}
	translationService := translator.NewService(translator.NewCachingEngine(mt, rdb, logger), logger)

	// Listing copy generation falls back to the deterministic
	// generator when no API key is configured or the model errors.
	var primaryGenerator content.Generator
	if cfg.GenAIAPIKey != "" {
		genai, err := content.NewGenAI(ctx, cfg.GenAIAPIKey, cfg.GenAIModel, logger)
		if err != nil {
			closeQuietly(rdb, logger)
			pool.Close()
			return nil, fmt.Errorf("init content generator: %w", err)
		}
		primaryGenerator = genai
	}
	generator := content.NewWithFallback(primaryGenerator, logger)

	// Image pipeline. A nil transformer skips inpainting.
	var transformer imaging.Transformer
	if cfg.ImageTransformEndpoint != "" {
		transformer = imaging.NewHTTPTransformer(
			cfg.ImageTransformEndpoint,
			time.Duration(cfg.ImageFetchTimeoutSecs)*time.Second,
			logger,
		)
	}
	quota := imaging.NewQuotaFlag()
	pipeline := imaging.NewPipeline(store, transformer, quota,
		time.Duration(cfg.ImageFetchTimeoutSecs)*time.Second, logger)

	// Build the dependency graph.
	canonicalRepo := postgres.NewCanonicalProductRepository(pool)
	originRepo := postgres.NewOriginProductRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)

	productService := service.NewProductService(canonicalRepo, originRepo, logger)
	harvestService := service.NewHarvestService(harvestClient, originRepo, categoryRepo, eventProducer, logger)
	materializerService := service.NewMaterializerService(
		originRepo, canonicalRepo, categoryRepo, settingsRepo,
		translationService, generator, pipeline, eventProducer,
		cfg.MaterializeConcurrency, logger,
	)
	registrationService := service.NewRegistrationService(
		canonicalRepo, originRepo, rakutenClient, store, eventProducer, logger,
	)
	categoryService := service.NewCategoryService(categoryRepo, originRepo, eventProducer, logger)
	settingsService := service.NewSettingsService(settingsRepo, logger)
	exportService := service.NewExportService(canonicalRepo, logger)

	// Scheduled keyword re-harvesting.
	var refresher *service.AutoRefresher
	if cfg.AutoRefreshEnabled {
		refresher = service.NewAutoRefresher(
			harvestService,
			service.StaticKeywords(cfg.AutoRefreshKeywords),
			time.Duration(cfg.AutoRefreshIntervalMins)*time.Minute,
			cfg.AutoRefreshPageSize,
			logger,
		)
	}

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if kafkaProducer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return kafkaProducer.Ping(ctx)
		})
	}
	if rdb != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	if s3Store != nil {
		healthHandler.RegisterNonCritical("object_store", s3Store.Ping)
	}

	// HTTP router.
	router := handler.NewRouter(
		productService,
		harvestService,
		materializerService,
		registrationService,
		categoryService,
		settingsService,
		exportService,
		quota,
		healthHandler,
		handler.RouterConfig{
			Environment:       cfg.Environment,
			AllowedOrigins:    cfg.CORSAllowedOrigins,
			PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		},
		logger,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       kafkaProducer,
		refresher:      refresher,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the scheduler and the HTTP server, blocking until the
// context is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.refresher != nil {
		if err := a.refresher.Start(); err != nil {
			return fmt.Errorf("start auto refresher: %w", err)
		}
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. Auto refresher (no new harvest runs)
// 2. HTTP server (drain in-flight requests)
// 3. Kafka producer
// 4. Redis client
// 5. PostgreSQL pool
// 6. Tracer (flush pending spans)
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	if a.refresher != nil {
		a.refresher.Stop()
	}

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.pool.Close()

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func closeQuietly(rdb *redis.Client, logger *slog.Logger) {
	if rdb == nil {
		return
	}
	if err := rdb.Close(); err != nil {
		logger.Error("redis close error", slog.String("error", err.Error()))
	}
}
