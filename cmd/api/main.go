package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/farhanyousaf786/fans-munch-sub000/internal/handlers"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/payments"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/config"
	pfirestore "github.com/farhanyousaf786/fans-munch-sub000/internal/platform/firestore"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/idempotency"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/jobs"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/observability"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/platform/secrets"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/repositories"
	firestoreRepo "github.com/farhanyousaf786/fans-munch-sub000/internal/repositories/firestore"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/services"
	"github.com/farhanyousaf786/fans-munch-sub000/internal/splits"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["MUNCH_LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("api")

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Fatal("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firebase, cfg.Firestore)
	if _, err := firestoreProvider.Client(ctx); err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, projectID(cfg), clientOptions(cfg)...)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	settlementTopic := pubsubClient.Topic(cfg.Events.SettlementTopic)
	settlementPublisher, err := jobs.NewPubSubSettlementPublisher(settlementTopic)
	if err != nil {
		logger.Fatal("failed to initialise settlement publisher", zap.Error(err))
	}
	defer settlementPublisher.Stop()

	configRepo, err := firestoreRepo.NewShopPaymentConfigRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise shop payment config repository", zap.Error(err))
	}
	paymentRepo, err := firestoreRepo.NewPaymentRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise payment repository", zap.Error(err))
	}

	if strings.TrimSpace(cfg.Payments.StripeAPIKey) == "" {
		logger.Fatal("stripe api key is required to create payment intents")
	}
	paymentsLogger := logger.Named("payments")
	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey:    cfg.Payments.StripeAPIKey,
		AccountID: cfg.Payments.StripeAccountID,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			paymentsLogger.Debug("stripe log", zFields...)
		},
		Clock: time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
	}
	paymentManager, err := payments.NewManager(map[string]payments.Provider{
		"stripe": stripeProvider,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}

	splitMetrics, err := observability.NewSplitMetrics(nil)
	if err != nil {
		logger.Fatal("failed to register split metrics", zap.Error(err))
	}

	eventLogger := observability.NewEventLogger(paymentsLogger)
	calculator := splits.NewCalculator(splits.NewFeeSchedule(cfg.Payments.FeePercent, cfg.Payments.FixedFees, cfg.Payments.FallbackCurrency))
	feeSchedule := calculator.FeeSchedule()
	paymentsLogger.Info("processing fee schedule",
		zap.Float64("percent", feeSchedule.Percent),
		zap.Any("fixedFees", feeSchedule.Currencies()),
		zap.String("fallbackCurrency", feeSchedule.FallbackCurrency),
	)

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Configs:         configRepo,
		Payments:        paymentRepo,
		Provider:        paymentManager,
		Publisher:       settlementPublisher,
		Calculator:      calculator,
		Metrics:         splitMetrics,
		DefaultCurrency: cfg.Payments.DefaultCurrency,
		AmountTolerance: cfg.Payments.AmountTolerance,
		Clock:           time.Now,
		Logger:          eventLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}
	shopConfigService, err := services.NewShopPaymentConfigService(services.ShopPaymentConfigServiceDeps{
		Configs: configRepo,
		Clock:   time.Now,
		Logger:  observability.NewEventLogger(logger.Named("shops")),
	})
	if err != nil {
		logger.Fatal("failed to initialise shop payment config service", zap.Error(err))
	}

	systemService, err := newSystemService(configRepo, settlementTopic, cfg, startedAt)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	var idempotencyStore idempotency.Store = idempotency.NewFirestoreStore(firestoreProvider, "")
	if cfg.Idempotency.Store == "memory" {
		idempotencyStore = idempotency.NewMemoryStore()
	}
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithBodyLimit(cfg.Server.MaxBodyBytes),
	)

	paymentHandlers := handlers.NewPaymentHandlers(paymentService,
		handlers.WithIntentIdempotency(cfg.Idempotency.Header, idempotencyMiddleware),
		handlers.WithPreviewRateLimit(cfg.Server.PreviewRateLimit, cfg.Server.PreviewRateWindow),
	)
	shopHandlers := handlers.NewShopHandlers(shopConfigService, paymentHandlers)

	healthOpts := []handlers.HealthOption{
		handlers.WithHealthInfo(handlers.HealthInfo{Environment: cfg.Environment, StartedAt: startedAt}),
	}
	if systemService != nil {
		healthOpts = append(healthOpts, handlers.WithHealthSystemService(systemService))
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(),
		observability.RequestLoggerMiddleware(),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithPaymentRoutes(paymentHandlers.Routes),
		handlers.WithShopRoutes(shopHandlers.Routes),
	)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("fans munch payments api listening", zap.String("environment", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func projectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firestore.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firebase.ProjectID)
}

func clientOptions(cfg config.Config) []option.ClientOption {
	if file := strings.TrimSpace(cfg.Firebase.CredentialsFile); file != "" {
		return []option.ClientOption{option.WithCredentialsFile(file)}
	}
	return nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	project := lookup("MUNCH_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("MUNCH_FIREBASE_PROJECT_ID")
	}
	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithProject(project),
	}
	if path := lookup("MUNCH_SECRET_FALLBACK_FILE"); path != "" {
		opts = append(opts, secrets.WithFallbackFile(path))
	}
	if file := lookup("MUNCH_FIREBASE_CREDENTIALS_FILE"); file != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(file)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

func newSystemService(configs *firestoreRepo.ShopPaymentConfigRepository, topic *pubsub.Topic, cfg config.Config, startedAt time.Time) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if configs != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:  "firestore",
			Check: configs.Ping,
		})
	}
	if topic != nil {
		t := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:     "pubsub",
			Optional: true,
			Check: func(ctx context.Context) error {
				ok, err := t.Exists(ctx)
				if err != nil {
					if status.Code(err) == codes.PermissionDenied {
						return nil
					}
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", t.ID())
				}
				return nil
			},
		})
	}
	if len(checks) == 0 {
		return nil, errors.New("health: no dependency checks configured")
	}
	repo, err := repositories.NewDependencyHealthRepository(checks,
		repositories.WithDependencyTimeout(cfg.Server.ReadinessTimeout),
	)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Environment:      cfg.Environment,
		StartedAt:        startedAt,
	})
}
