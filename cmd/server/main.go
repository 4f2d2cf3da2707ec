package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"slotbook/internal/admin"
	"slotbook/internal/api"
	"slotbook/internal/audit"
	"slotbook/internal/booking"
	"slotbook/internal/catalog"
	"slotbook/internal/config"
	"slotbook/internal/events"
	"slotbook/internal/metrics"
	"slotbook/internal/sheets"
)

func main() {
	_ = godotenv.Load()

	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SLOTBOOK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Admin.PasswordHash == "" {
		logger.Fatal().Msg("set admin.password_hash in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sheets.NewSheetsService(ctx, sheets.Config{
		SpreadsheetID:   cfg.Sheets.SpreadsheetID,
		CredentialsFile: cfg.Sheets.CredentialsFile,
		SlotsSheet:      cfg.Sheets.SlotsSheet,
		SignupsSheet:    cfg.Sheets.SignupsSheet,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to spreadsheet error")
	}

	bus := events.NewEventBus()

	catalogSvc := catalog.NewService(store, cfg.CatalogCacheTTL(), &logger)
	catalogSvc.SubscribeInvalidation(bus)

	bookingSvc := booking.NewService(store, bus, booking.Config{
		MaxSlotsPerRequest: cfg.Booking.MaxSlotsPerRequest,
		MinNameLength:      cfg.Booking.MinNameLength,
		RatePerMinute:      cfg.Booking.RatePerMinute,
		RateBurst:          cfg.Booking.RateBurst,
	}, &logger)

	adminSvc := admin.NewService(store, bus, &logger)

	var rdb *redis.Client
	sessionStore := admin.SessionStore(admin.NewMemorySessionStore())
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		sessionStore = admin.NewFailoverSessionStore(
			admin.NewRedisSessionStore(rdb),
			admin.NewMemorySessionStore(),
			&logger,
		)
	}
	sessions := admin.NewSessionManager(sessionStore, cfg.Admin.PasswordHash, cfg.SessionTTL(), &logger)

	exporter := audit.NewExporter(store)

	backup := audit.NewBackupService(exporter, audit.BackupConfig{
		Enabled:       cfg.Backup.Enabled,
		IntervalHours: cfg.Backup.IntervalHours,
		Path:          cfg.Backup.Path,
		RetentionDays: cfg.Backup.RetentionDays,
	}, &logger)
	go backup.Start(ctx)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	handler := api.NewRouter(api.RouterConfig{
		Booking:  bookingSvc,
		Catalog:  catalogSvc,
		Admin:    adminSvc,
		Sessions: sessions,
		Exporter: exporter,
		Ready: func(ctx context.Context) error {
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
		Logger: &logger,
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("addr", cfg.Server.Addr).Msg("slotbook server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
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
