package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/classtrackapp/classtrack/internal/db"
	"github.com/classtrackapp/classtrack/internal/handlers"
	"github.com/classtrackapp/classtrack/internal/handlers/middleware"
	"github.com/classtrackapp/classtrack/internal/logger"
	"github.com/classtrackapp/classtrack/internal/repository/postgres"
	"github.com/classtrackapp/classtrack/internal/service/account"
	"github.com/classtrackapp/classtrack/internal/service/calauth"
	"github.com/classtrackapp/classtrack/internal/service/calendar"
	"github.com/classtrackapp/classtrack/internal/service/gpa"
	"github.com/classtrackapp/classtrack/internal/service/schedule"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("error while loading timezone %q: %w", c.Timezone, err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	accountService, err := account.NewService(account.Config{SecretKey: c.SecretKey}, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating account service. Err: %w", err)
	}

	calAuthService, err := calauth.NewService(calauth.Config{
		ClientID:     c.CalendarClientID,
		ClientSecret: c.CalendarClientSecret,
		AuthURL:      c.CalendarAuthURL,
		TokenURL:     c.CalendarTokenURL,
		RedirectURL:  c.CalendarRedirectURL,
		Scopes:       c.Scopes(),
	}, storage.Token(), logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating calendar auth service. Err: %w", err)
	}

	fetcher := calendar.NewClient(c.CalendarAPIURL, logger)

	scheduleService, err := schedule.NewService(loc, calAuthService, fetcher, storage.Token(), storage.Schedule(), logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating schedule service. Err: %w", err)
	}

	gpaService := gpa.NewService(storage.Grade())

	// Initialize handlers
	mux := handlers.NewRouter(
		handlers.NewAuth(accountService),
		handlers.NewCalendar(calAuthService),
		handlers.NewSchedule(scheduleService),
		handlers.NewGrades(gpaService),
		middleware.AuthMiddleware(accountService),
		middleware.LoggerMiddleware(logger),
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
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

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "addr", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
