// Package server initializes and runs the authentication service: it opens
// the database and session store connections, applies migrations, wires the
// services together and serves the HTTP API until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/avolkov/authgate/internal/logging"
	"github.com/avolkov/authgate/internal/server/auth"
	"github.com/avolkov/authgate/internal/server/config"
	"github.com/avolkov/authgate/internal/server/httpapi"
	"github.com/avolkov/authgate/internal/server/repositories/repomanager"
	"github.com/avolkov/authgate/internal/server/services"
	"github.com/avolkov/authgate/internal/server/sessions"
)

type App struct {
	config *config.Config
	logger logging.Logger
	server *httpapi.Server

	db          *sql.DB
	redisClient *redis.Client
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	tokens, err := auth.NewManager(c)
	if err != nil {
		return nil, fmt.Errorf("token manager init error: %w", err)
	}

	store := sessions.NewRedisStore(redisClient)
	authService := services.NewAuthService(db, rm, store, tokens, logger)
	adminService := services.NewAdminService(db, rm, logger)

	server := httpapi.NewServer(c.EndpointAddr, logger, authService, adminService)

	return &App{
		config:      c,
		logger:      logger,
		server:      server,
		db:          db,
		redisClient: redisClient,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
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

	if err := app.redisClient.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
