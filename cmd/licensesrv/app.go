package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/covalidate/licensesrv/internal/db"
	"github.com/covalidate/licensesrv/internal/handlers"
	"github.com/covalidate/licensesrv/internal/logger"
	"github.com/covalidate/licensesrv/internal/repository"
	"github.com/covalidate/licensesrv/internal/repository/postgres"
	"github.com/covalidate/licensesrv/internal/service/backup"
	"github.com/covalidate/licensesrv/internal/service/expiry"
	"github.com/covalidate/licensesrv/internal/service/license"
	"github.com/covalidate/licensesrv/internal/service/notification"
	"github.com/covalidate/licensesrv/internal/service/token"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger    logger.Logger
	cron      *cron.Cron
	backupJob *backup.Job
	runBackup bool
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := newLogger(c)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	licenseRepo := &postgres.LicenseRepo{DB: pool}

	// Initialize services
	tokenService, err := token.New(token.Config{
		SecretKey: c.SecretKey,
		Issuer:    c.TokenIssuer,
		TTL:       c.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token service. Err: %w", err)
	}

	sink, err := newSink(c, log)
	if err != nil {
		return nil, fmt.Errorf("error while creating notification sink. Err: %w", err)
	}

	licenseService := license.NewService(licenseRepo, sink, log)

	mux := handlers.NewRouter(tokenService, licenseService, log)

	app := &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		logger:     log,
		cron:       cron.New(),
	}

	if err := app.scheduleJobs(c, licenseRepo, sink, log); err != nil {
		return nil, fmt.Errorf("error while scheduling jobs. Err: %w", err)
	}

	return app, nil
}

func newLogger(c *Config) (logger.Logger, error) {
	if c.Environment == EnvDev {
		return logger.NewTextLogger(c.LogLevel)
	}
	return logger.NewJSONLogger(c.LogLevel)
}

func newSink(c *Config, log logger.Logger) (notification.Sink, error) {
	if !c.EmailEnabled {
		log.Info("Outgoing mail disabled, notifications will be dropped")
		return notification.NoopSink{}, nil
	}

	return notification.NewSMTPSink(notification.SMTPConfig{
		Addr:     c.SMTPAddr,
		From:     c.SMTPFrom,
		Hello:    c.SMTPHello,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
	})
}

func (s *ServerApp) scheduleJobs(c *Config, licenses repository.LicenseRepo, sink notification.Sink, log logger.Logger) error {
	expiryJob := expiry.NewJob(licenses, sink, log)
	_, err := s.cron.AddFunc(c.ExpirySchedule, func() {
		expiryJob.Run(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule expiration sweep: %w", err)
	}

	if !c.BackupEnabled {
		log.Info("License backups disabled")
		return nil
	}

	endpoint := c.BackupEndpoint
	if endpoint == "" && c.R2AccountID != "" {
		endpoint = backup.R2Endpoint(c.R2AccountID)
	}

	store, err := backup.NewS3Store(backup.S3Config{
		Endpoint:        endpoint,
		Bucket:          c.BackupBucket,
		AccessKeyID:     c.BackupAccessKey,
		SecretAccessKey: c.BackupSecretKey,
	})
	if err != nil {
		return fmt.Errorf("create backup store: %w", err)
	}

	s.backupJob = backup.NewJob(licenses, store, log, c.BackupMaxFiles)
	s.runBackup = c.BackupOnStartup

	_, err = s.cron.AddFunc(c.BackupSchedule, func() {
		if err := s.backupJob.Run(context.Background()); err != nil {
			log.Error("License backup failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule backup: %w", err)
	}

	return nil
}

// Run starts background jobs and the http server, closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	s.cron.Start()
	defer s.cron.Stop()

	if s.backupJob != nil && s.runBackup {
		go func() {
			if err := s.backupJob.Run(ctx); err != nil {
				s.logger.Error("Startup license backup failed", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err != nil {
			s.logger.Error("HTTP server shutdown failed, forcing close", "error", err)
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
