package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nkiryanov/cardservice/internal/cardnumber"
	"github.com/nkiryanov/cardservice/internal/db"
	"github.com/nkiryanov/cardservice/internal/handlers"
	"github.com/nkiryanov/cardservice/internal/logger"
	"github.com/nkiryanov/cardservice/internal/repository/postgres"
	"github.com/nkiryanov/cardservice/internal/service/auth"
	"github.com/nkiryanov/cardservice/internal/service/card"
	"github.com/nkiryanov/cardservice/internal/service/transfer"
	"github.com/nkiryanov/cardservice/internal/service/user"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
	Logger     logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	log, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	encoder, err := cardnumber.NewEncoder(c.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("error while creating card number encoder. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{SecretKey: c.SecretKey}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	cardService := card.NewService(encoder, storage)
	transferService := transfer.NewService(encoder, storage, log)
	userService := user.NewService(storage)

	// Make sure the admin account exists
	created, err := authService.EnsureAdmin(ctx, c.AdminUsername, c.AdminPassword, c.AdminFullName)
	if err != nil {
		return nil, fmt.Errorf("error while creating admin account. Err: %w", err)
	}
	if created {
		log.Info("Admin account created", "username", c.AdminUsername)
	}
	if c.AdminDefaultsInUse() {
		log.Warn("Admin account uses default credentials, change them")
	}

	mux := handlers.NewRouter(authService, cardService, transferService, userService, log)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
		Logger:     log,
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
			s.Logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.Logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.Logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
