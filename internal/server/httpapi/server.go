// Package httpapi exposes the authentication service over HTTP: login,
// refresh, logout, token verification, and the current-user snapshot.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/server/auth"
	"github.com/nexuskit/authkeeper/internal/server/tokens"
	"github.com/nexuskit/authkeeper/internal/shared"
)

// AuthService is the slice of the token service the HTTP layer consumes.
type AuthService interface {
	Authenticate(ctx context.Context, username, password, clientKey string) (*tokens.Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (*tokens.RefreshResult, error)
	Revoke(ctx context.Context, refreshToken string) error
	VerifyAccess(ctx context.Context, accessToken string) (*auth.Claims, error)
	Me(ctx context.Context, userID string) (*shared.UserSnapshot, error)
}

type Server struct {
	address        string
	auth           AuthService
	logger         logging.Logger
	allowedOrigins []string
}

func NewServer(address string, svc AuthService, allowedOrigins []string, l logging.Logger) *Server {
	return &Server{
		address:        address,
		auth:           svc,
		allowedOrigins: allowedOrigins,
		logger:         l.With("module", "http_server"),
	}
}

// Routes constructs the chi router containing all endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowed := s.allowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))

	r.Use(httprate.Limit(100, time.Minute))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
		r.Post("/verify", s.handleVerify)
		r.With(s.requireAccessToken).Get("/me", s.handleMe)
	})

	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.address, Handler: s.Routes()}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "error stopping HTTP server", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
