package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/dentistez/clinic-api/internal/api/router"
	"github.com/dentistez/clinic-api/internal/appointment"
	"github.com/dentistez/clinic-api/internal/booking"
	appconfig "github.com/dentistez/clinic-api/internal/config"
	"github.com/dentistez/clinic-api/internal/db"
	"github.com/dentistez/clinic-api/internal/notify"
	"github.com/dentistez/clinic-api/internal/observability/metrics"
	"github.com/dentistez/clinic-api/internal/payment"
	"github.com/dentistez/clinic-api/internal/payos"
	"github.com/dentistez/clinic-api/internal/redislock"
	"github.com/dentistez/clinic-api/internal/timeslot"
	"github.com/dentistez/clinic-api/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-api server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Database
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis slot lock. The conditional UPDATE on time_slots is the real
	// guard; the lock only serializes concurrent deposit callbacks.
	var locker redislock.SlotLocker = redislock.NoopLocker{}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		locker = redislock.New(rdb, cfg.SlotLockTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, slot locking disabled")
	}

	// Repositories
	slotRepo := timeslot.NewPostgresRepository(pool)
	apptRepo := appointment.NewPostgresRepository(pool)
	payRepo := payment.NewPostgresRepository(pool)

	// PayOS gateway. Without credentials the API still runs; payment links
	// come from a stub so local development needs no merchant account.
	var gateway payos.LinkCreator
	var verifier booking.WebhookVerifier
	if cfg.PayOSClientID != "" && cfg.PayOSAPIKey != "" {
		client := payos.NewClient(payos.Config{
			BaseURL:     cfg.PayOSBaseURL,
			ClientID:    cfg.PayOSClientID,
			APIKey:      cfg.PayOSAPIKey,
			ChecksumKey: cfg.PayOSChecksumKey,
			ReturnURL:   cfg.PayOSReturnURL,
			CancelURL:   cfg.PayOSCancelURL,
		}, logger)
		gateway = client
		verifier = client
	} else {
		logger.Warn("PayOS credentials not set, using stub payment links")
		gateway = &payos.StubLinkCreator{}
	}

	// Email
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Warn("SENDGRID_API_KEY not set, emails will be logged only")
	}
	notifier := notify.NewService(sender, logger)

	// Metrics
	registry := prometheus.NewRegistry()
	bookingMetrics := metrics.NewBookingMetrics(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Services
	apptSvc := appointment.NewService(apptRepo, slotRepo, appointment.Rules{
		EditLeadTime:             cfg.EditLeadTime,
		ReExamMinLead:            cfg.ReExamMinLead,
		NoteMaxLen:               cfg.NoteMaxLen,
		ReleaseSlotOnStaffCancel: cfg.ReleaseSlotOnStaffCancel,
	}, logger)
	paySvc := payment.NewService(payRepo, slotRepo, apptRepo,
		payment.NewPgFinalizer(pool), gateway, payment.Rules{
			BookingLeadTime: cfg.EditLeadTime,
			NoteMaxLen:      cfg.NoteMaxLen,
		}, logger)
	bookingSvc := booking.NewService(payRepo, slotRepo, booking.NewPgStore(pool),
		locker, notifier, bookingMetrics, logger)

	// Handlers
	slotHandler := timeslot.NewHandler(slotRepo, logger)
	apptHandler := appointment.NewHandler(apptSvc, logger)
	payHandler := payment.NewHandler(paySvc, logger)
	webhookHandler := booking.NewWebhookHandler(bookingSvc, verifier, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		TimeSlotHandler:    slotHandler,
		AppointmentHandler: apptHandler,
		PaymentHandler:     payHandler,
		PayOSWebhook:       webhookHandler,
		MetricsHandler:     metricsHandler,
		JWTSecret:          cfg.JWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
