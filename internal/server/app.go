// Package server initializes and runs the authentication server.
// It connects the database, runs migrations, wires the cache and rate-limit
// backends, seeds the bootstrap admin account, and starts the HTTP API with
// graceful shutdown.
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

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/server/auth"
	"github.com/nexuskit/authkeeper/internal/server/cache"
	"github.com/nexuskit/authkeeper/internal/server/config"
	"github.com/nexuskit/authkeeper/internal/server/httpapi"
	"github.com/nexuskit/authkeeper/internal/server/migrations"
	"github.com/nexuskit/authkeeper/internal/server/permissions"
	"github.com/nexuskit/authkeeper/internal/server/ratelimit"
	usersrepo "github.com/nexuskit/authkeeper/internal/server/repositories/users"
	"github.com/nexuskit/authkeeper/internal/server/tokens"
	"github.com/nexuskit/authkeeper/internal/server/users"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	tokenService *tokens.Service
	userService  *users.Service
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, limiter := newBackends(cfg)

	repo := usersrepo.NewPostgresRepository(db)
	resolver := permissions.NewResolver(repo, store, cfg.PermissionCacheTTL, logger)
	manager := auth.NewJWTManager([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration)
	revoked := tokens.NewRevocationSet(store)

	ts := tokens.NewService(repo, resolver, manager, revoked, limiter, cfg.RotateRefreshTokens, logger)
	us := users.NewService(repo, resolver, logger)

	return &App{config: cfg, logger: logger, db: db, tokenService: ts, userService: us}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

// newBackends selects the shared cache and login limiter. With no Redis
// address configured both run in process memory; that is fine for a single
// instance but multi-instance deployments need Redis so revocations and
// throttle counters are shared.
func newBackends(cfg *config.Config) (cache.Store, ratelimit.Limiter) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), ratelimit.NewSlidingWindow(cfg.LoginRateLimit, cfg.LoginRateWindow)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return cache.NewRedis(client), ratelimit.NewRedisSlidingWindow(client, cfg.LoginRateLimit, cfg.LoginRateWindow)
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

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.tokenService, app.config.CORSAllowedOrigins, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if _, err := app.userService.EnsureAdmin(ctx, app.config.AdminUsername, app.config.AdminEmail, app.config.AdminPassword); err != nil {
		app.logger.Error(ctx, "admin bootstrap failed", "error", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing database", "error", err)
	}
}
