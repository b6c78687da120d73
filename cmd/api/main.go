package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"translink/internal/api"
	"translink/internal/auth"
	"translink/internal/config"
	"translink/internal/database"
	"translink/internal/domain"
	"translink/internal/events"
	"translink/internal/google"
	"translink/internal/logging"
	"translink/internal/metrics"
	"translink/internal/models"
	"translink/internal/notify"
	"translink/internal/repository"
	"translink/internal/service"
	"translink/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	go database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup")).Start(ctx)

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	router := initNotifications(ctx, cfg, db, logger)
	notifications := worker.NewNotificationWorker(db, router, redisClient, cfg.Worker, logging.Component(logger, "notifications"))
	go notifications.Start(ctx)

	bus := events.NewEventBus()
	auditEvents(bus, logging.Component(logger, "events"))

	issuer := auth.NewIssuer(cfg.API.Auth)
	deps := service.Deps{
		Store:    db,
		Events:   bus,
		Outbox:   notifications,
		Location: cfg.Location(),
		Logger:   logger,
	}
	bookings := service.NewBookingService(deps)
	services := api.Services{
		Users:       service.NewUserService(deps, issuer),
		Translators: service.NewTranslatorService(deps),
		Catalog:     service.NewCatalogService(deps),
		Bookings:    bookings,
		Payments:    service.NewPaymentService(deps, bookings),
		Reviews:     service.NewReviewService(deps),
		Coupons:     service.NewCouponService(deps),
		References:  service.NewReferenceService(deps),
	}

	handler := api.NewHandler(services, api.Options{
		Issuer:    issuer,
		RateLimit: cfg.API.RateLimit,
		Actions:   actionLimiter(redisClient, logger),
		Ready:     readiness(db, redisClient),
		Location:  cfg.Location(),
		ExportDir: cfg.Exports.Path,
		Logger:    logger,
	})
	httpServer := api.NewHTTPServer(cfg.API.HTTP, handler.Routes(), logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, api.NewQueryService(bookings), issuer, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, logging.Component(baseLogger, "api-main"), closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.Open(ctx, cfg.Database, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Database.Driver).Msg("init database")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initNotifications registers one notifier per enabled channel. Email falls
// back to the log when SMTP is off.
func initNotifications(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) *notify.Router {
	router := notify.NewRouter(db, logging.Component(logger, "notify"))

	if cfg.SMTP.Enabled {
		router.Register(models.ChannelEmail, notify.NewMailer(cfg.SMTP))
	} else {
		router.Register(models.ChannelEmail, notify.LogNotifier{Logger: logging.Component(logger, "mail")})
	}

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		} else {
			router.Register(models.ChannelTelegram, tg)
		}
	}

	if cfg.Google.Enabled {
		cal, err := google.NewCalendarService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.CalendarID, cfg.Location())
		if err != nil {
			logger.Warn().Err(err).Msg("google calendar init failed, continuing without calendar")
		} else {
			router.Register(models.ChannelCalendar, cal)
			logger.Info().Msg("google calendar connected")
		}
	}

	return router
}

// actionLimiter shares per-user action counters through Redis and keeps a
// local window while Redis is unreachable.
func actionLimiter(redisClient *redis.Client, logger *zerolog.Logger) domain.RateLimitRepository {
	local := repository.NewMemoryRateLimitRepository()
	if redisClient == nil {
		return local
	}
	return repository.NewFailoverRateLimitRepository(
		repository.NewRedisRateLimitRepository(redisClient),
		local,
		logging.Component(logger, "rate-limit"),
	)
}

func readiness(db *database.DB, redisClient *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if redisClient != nil {
			if err := repository.Ping(ctx, redisClient); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
}

func auditEvents(bus *events.EventBus, logger *zerolog.Logger) {
	bus.Subscribe(events.All, func(e *events.Event) error {
		logger.Debug().Int64("event_id", e.ID).Str("event", e.Type).RawJSON("payload", e.Payload).Msg("domain event")
		return nil
	})
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Start(); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	ev := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		ev = ev.Str("grpc_addr", grpcServer.Addr())
	}
	ev.Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
