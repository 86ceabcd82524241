// Package server wires the rentdesk backend together: configuration,
// database, object storage, notification dispatch and the HTTP API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/rentdesk/internal/dbx"
	"github.com/dmitrijs2005/rentdesk/internal/logging"
	"github.com/dmitrijs2005/rentdesk/internal/server/config"
	"github.com/dmitrijs2005/rentdesk/internal/server/httpserver"
	"github.com/dmitrijs2005/rentdesk/internal/server/metrics"
	"github.com/dmitrijs2005/rentdesk/internal/server/notify"
	"github.com/dmitrijs2005/rentdesk/internal/server/ratelimit"
	"github.com/dmitrijs2005/rentdesk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/rentdesk/internal/server/services"
	"github.com/dmitrijs2005/rentdesk/internal/server/storage"
	"github.com/redis/go-redis/v9"
)

// shutdownGrace is added to the send timeout when draining notifications.
const shutdownGrace = 5 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	redis      *redis.Client
	dispatcher *notify.Dispatcher
	users      *services.UserService
	server     *httpserver.Server
}

// NewApp connects to the database and object store, applies migrations and
// builds the services. The caller must call Run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db connect error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("object store init error: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("object store bucket error: %w", err)
	}

	m := metrics.New()

	transport, err := notify.NewTransport(c, logger.With("module", "mail"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mail transport error: %w", err)
	}
	dispatcher := notify.NewDispatcher(transport, c.NotificationWorkers, c.NotificationQueueSize,
		c.NotificationSendTimeout, m, logger.With("module", "notifications"))
	notifier := notify.NewMailNotifier(dispatcher, c.BaseURL, c.DefaultLanguage, logger.With("module", "notifier"))

	app := &App{config: c, logger: logger, db: db, dispatcher: dispatcher}

	var limiter services.Limiter
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		limiter = ratelimit.NewRedisLimiter(app.redis, c.ResendLimit, c.ResendWindow)
	}

	tx := dbx.NewSQLTransactor(db, nil)
	app.users = services.NewUserService(tx, rm, store, notifier, limiter, c, logger.With("module", "users"))
	licenses := services.NewLicenseService(tx, rm, store, notifier, m, c, logger.With("module", "licenses"))

	app.server = httpserver.NewServer(c.HTTPAddr, logger, app.users, licenses, m.Handler(), c.SecretKey)

	return app, nil
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

// bootstrapAdmin creates the configured administrator account if missing.
func (app *App) bootstrapAdmin(ctx context.Context) {
	if app.config.AdminEmail == "" || app.config.AdminPassword == "" {
		return
	}

	created, err := app.users.EnsureAdmin(ctx, app.config.AdminEmail, app.config.AdminPassword)
	switch {
	case err != nil:
		app.logger.Error(ctx, "admin bootstrap failed", "email", app.config.AdminEmail, "error", err)
	case created:
		app.logger.Info(ctx, "admin account created", "email", app.config.AdminEmail)
	default:
		app.logger.Info(ctx, "admin account already exists", "email", app.config.AdminEmail)
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves requests until a termination signal arrives, then drains
// pending notifications and releases connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	app.bootstrapAdmin(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.shutdown()
}

func (app *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.NotificationSendTimeout+shutdownGrace)
	defer cancel()

	if err := app.dispatcher.Close(ctx); err != nil {
		app.logger.Warn(ctx, "notifications not drained", "error", err)
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
