// Package server initializes and runs the claimgate HTTP server: it opens
// the database, applies migrations, builds the SMS driver and services, and
// serves the API until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/claimgate/internal/dbx"
	"github.com/dmitrijs2005/claimgate/internal/logging"
	"github.com/dmitrijs2005/claimgate/internal/server/config"
	"github.com/dmitrijs2005/claimgate/internal/server/httpapi"
	"github.com/dmitrijs2005/claimgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/claimgate/internal/server/services"
	"github.com/dmitrijs2005/claimgate/internal/server/sms"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	sender  sms.Sender
	handler http.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := dbx.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	sender, err := sms.New(c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sms init error: %w", err)
	}

	otps := services.NewOTPService(db, rm, sender, logger, c)
	claims := services.NewClaimService(db, rm, logger, c)

	handler := httpapi.NewRouter(otps, claims, logger, httpapi.Options{
		SecretKey:      []byte(c.SecretKey),
		AllowedOrigins: c.CORSAllowedOrigins,
	})

	return &App{config: c, logger: logger, db: db, sender: sender, handler: handler}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown error", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close(ctx context.Context) {
	if c, ok := app.sender.(sms.Closer); ok {
		if err := c.Close(); err != nil {
			app.logger.Warn(ctx, "sms driver close error", "error", err.Error())
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err.Error())
	}
}
