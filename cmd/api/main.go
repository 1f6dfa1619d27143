// Command api serves the attendance, presence and capacity HTTP API for one facility.
//
// @title Gym Check-in API
// @version 1.0
// @description Attendance, presence and capacity tracking for a single facility.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymcheckin/config"
	_ "gymcheckin/docs"
	"gymcheckin/internal/adapters/auth"
	"gymcheckin/internal/adapters/camera"
	"gymcheckin/internal/adapters/decoder"
	"gymcheckin/internal/adapters/directory"
	"gymcheckin/internal/adapters/email"
	"gymcheckin/internal/adapters/idgen"
	httpdelivery "gymcheckin/internal/delivery/http"
	"gymcheckin/internal/delivery/http/controllers"
	"gymcheckin/internal/delivery/http/middleware"
	"gymcheckin/internal/domain"
	"gymcheckin/internal/repository/postgres"
	"gymcheckin/internal/services"
)

const (
	devJWTSecret    = "development-only-secret"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logger := config.NewLogger()
	if err := run(logger); err != nil {
		logger.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DBUrl)
	if err != nil {
		return err
	}
	defer db.Close()

	facility := cfg.Facility
	logger = logger.With("facility", facility.ID)

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		return err
	}

	attendance, err := services.NewAttendanceService(
		services.AttendanceConfig{
			FacilityID:      facility.ID,
			Location:        facility.Location,
			DefaultCapacity: domain.CapacityConfig{Limit: facility.CapacityLimit, WarnAt: facility.WarnAt},
			MemberIDPattern: cfg.MemberIDPattern,
		},
		postgres.NewAttendanceEventRepository(db, facility.ID),
		postgres.NewFacilitySettingsRepository(db),
		newDirectory(cfg, db),
		idgen.NewULID(),
		services.SystemClock{},
		notifier,
		logger,
	)
	if err != nil {
		return err
	}
	if err := attendance.Start(ctx); err != nil {
		return err
	}

	feed := camera.NewFeed()
	detection := services.NewDetectionManager(
		feed,
		decoder.Probes(cfg.Decoders, cfg.ZbarPath),
		services.DetectionOptions{Interval: cfg.ScanInterval, OpenTimeout: cfg.CameraOpenTimeout, Clock: services.SystemClock{}},
		attendance,
		logger,
	)
	defer func() {
		if err := detection.Stop(); err != nil {
			logger.Warn("camera release failed", "err", err)
		}
	}()

	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET is not set; using the development secret")
		secret = devJWTSecret
	}

	mux := httpdelivery.NewRouter(
		controllers.NewAttendanceController(logger, attendance, facility.Location),
		controllers.NewDetectionController(logger, detection, feed),
		middleware.RequireAuth(auth.NewJWTVerifier(secret), logger),
		db.PingContext,
	)
	handler := middleware.LoggingMiddleware(logger, middleware.CORS(cfg.CORSOrigins, mux))

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", server.Addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
		return server.Close()
	}
	logger.Info("api stopped")
	return nil
}

func newDirectory(cfg *config.Config, db *sql.DB) domain.MemberDirectory {
	if cfg.DirectorySource == "http" {
		client := &http.Client{Timeout: 5 * time.Second}
		return directory.NewHTTPDirectory(client, cfg.DirectoryURL, cfg.DirectoryCacheTTL)
	}
	return postgres.NewMemberRepository(db)
}

func newNotifier(cfg *config.Config, logger *slog.Logger) (domain.CapacityNotifier, error) {
	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.EmailProvider,
		FromAddress: cfg.EmailFromAddress,
		FromName:    cfg.EmailFromName,
		SES: email.SESConfig{
			Region:             cfg.AWSRegion,
			AccessKeyID:        cfg.AWSAccessKeyID,
			SecretAccessKey:    cfg.AWSSecretAccessKey,
			InsecureSkipVerify: cfg.SESInsecureSkipVerify,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create mailer: %w", err)
	}
	return services.NewCapacityMailNotifier(mailer, email.NewTemplateRenderer(), cfg.Facility.AlertTo, logger), nil
}
