package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"

	"github.com/nexuskit/authkeeper/internal/client/api"
	"github.com/nexuskit/authkeeper/internal/client/config"
	"github.com/nexuskit/authkeeper/internal/client/services"
	"github.com/nexuskit/authkeeper/internal/client/session"
	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/shared"
)

// sessionCoordinator is the slice of the coordinator the commands use.
type sessionCoordinator interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	Restore(ctx context.Context) error
	Activity()
	State() services.State
	CurrentUser() *shared.UserSnapshot
	HasPermission(permission string) bool
	OnChange(fn func(services.State))
	Close()
}

// snapshotFetcher fetches a fresh user snapshot from the server.
type snapshotFetcher interface {
	Me(ctx context.Context) (*shared.UserSnapshot, error)
}

type App struct {
	config      *config.Config
	coordinator sessionCoordinator
	api         snapshotFetcher
	handle      *session.Handle
	db          *sql.DB
	log         logging.Logger
	reader      *bufio.Reader

	stateMu   sync.Mutex
	lastState services.State
}

// NewApp wires the session store, API client and coordinator. With no
// database path configured the session lives in process memory and is gone
// when the CLI exits.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	var (
		backend session.Backend
		db      *sql.DB
	)
	if cfg.DatabasePath == "" {
		backend = session.NewMemoryBackend()
	} else {
		var err error
		db, err = session.Open(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		backend = session.NewSQLiteBackend(db)
	}

	handle := session.NewStore(backend).NewHandle()
	client := api.NewClient(cfg.ServerAddr, handle, cfg.RequestTimeout, logger)
	coordinator := services.NewCoordinator(client, handle, cfg.InactivityTimeout, cfg.IdleCountdown, logger)

	return &App{
		config:      cfg,
		coordinator: coordinator,
		api:         client,
		handle:      handle,
		db:          db,
		log:         logger.With("module", "cli"),
		reader:      bufio.NewReader(os.Stdin),
		lastState:   services.StateUnauthenticated,
	}, nil
}

// Run restores any persisted session and blocks in the REPL until the user
// exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	printlnFn("authkeeper CLI (type 'help' for commands)")

	if err := a.coordinator.Restore(ctx); err != nil {
		a.log.Warn(ctx, "failed to restore session", "error", err)
	}
	if user := a.coordinator.CurrentUser(); user != nil {
		a.setLastState(services.StateAuthenticated)
		printlnFn(fmt.Sprintf("Welcome back, %s", user.Username))
	}

	a.coordinator.OnChange(a.renderTransition)

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

// Close releases the coordinator, the store handle and the database.
func (a *App) Close() {
	a.coordinator.Close()
	a.handle.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}

// Activity forwards a sign of life to the coordinator, resetting the
// inactivity timer.
func (a *App) Activity() {
	a.coordinator.Activity()
}

func (a *App) isLoggedIn() bool {
	switch a.coordinator.State() {
	case services.StateAuthenticated, services.StateIdleWarning:
		return true
	default:
		return false
	}
}

func (a *App) getStatus() string {
	s := ""
	if user := a.coordinator.CurrentUser(); user != nil {
		s = user.Username
	}
	if a.coordinator.State() == services.StateIdleWarning {
		s += " idle"
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) setLastState(s services.State) {
	a.stateMu.Lock()
	a.lastState = s
	a.stateMu.Unlock()
}

// renderTransition prints the transitions the user cannot otherwise see:
// the idle warning appears asynchronously, and so does the forced logout.
func (a *App) renderTransition(s services.State) {
	a.stateMu.Lock()
	prev := a.lastState
	a.lastState = s
	a.stateMu.Unlock()

	switch {
	case s == services.StateIdleWarning:
		printlnFn(fmt.Sprintf("Session idle. You will be logged out in %s unless you type 'continue'.", a.config.IdleCountdown))
	case s == services.StateUnauthenticated && prev == services.StateIdleWarning:
		printlnFn("Logged out due to inactivity.")
	}
}
