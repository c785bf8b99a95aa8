// Package tokens implements the token issuer: credential authentication,
// pair minting, refresh with rotation, revocation and access verification.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nexuskit/authkeeper/internal/common"
	"github.com/nexuskit/authkeeper/internal/logging"
	"github.com/nexuskit/authkeeper/internal/server/auth"
	"github.com/nexuskit/authkeeper/internal/server/metrics"
	"github.com/nexuskit/authkeeper/internal/server/models"
	"github.com/nexuskit/authkeeper/internal/server/ratelimit"
	"github.com/nexuskit/authkeeper/internal/shared"
)

// UserStore is the slice of user storage the issuer needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	RolesOf(ctx context.Context, userID string) ([]string, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// PermissionResolver supplies effective permission sets for snapshots.
type PermissionResolver interface {
	GetEffectivePermissions(ctx context.Context, userID string) ([]string, error)
}

// Credentials is the result of a successful authentication.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	User         *shared.UserSnapshot
}

// RefreshResult carries the outcome of a refresh. RefreshToken is empty when
// rotation is disabled.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// RateLimitError tells the caller when the attempt quota frees up.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", common.ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return common.ErrRateLimited }

// dummyHash keeps the bcrypt cost of an unknown-username attempt in line
// with a wrong-password attempt.
var dummyHash, _ = auth.HashPassword("authkeeper.dummy.credential")

// Service is the token issuer.
type Service struct {
	users    UserStore
	resolver PermissionResolver
	jwt      *auth.JWTManager
	revoked  *RevocationSet
	attempts ratelimit.Limiter
	rotate   bool
	log      logging.Logger

	// now is a test seam for last_login stamps.
	now func() time.Time
}

func NewService(
	users UserStore,
	resolver PermissionResolver,
	jwt *auth.JWTManager,
	revoked *RevocationSet,
	attempts ratelimit.Limiter,
	rotate bool,
	log logging.Logger,
) *Service {
	return &Service{
		users:    users,
		resolver: resolver,
		jwt:      jwt,
		revoked:  revoked,
		attempts: attempts,
		rotate:   rotate,
		log:      log,
		now:      time.Now,
	}
}

// Authenticate validates credentials and mints a token pair plus a snapshot.
// An unknown username, a wrong password and a disabled account all fail with
// the same ErrInvalidCredentials. clientKey identifies the caller for the
// attempt quota.
func (s *Service) Authenticate(ctx context.Context, username, password, clientKey string) (*Credentials, error) {
	ok, retryAfter, err := s.attempts.Allow(ctx, clientKey)
	if err != nil {
		// A broken limiter must not lock everyone out.
		s.log.Warn(ctx, "login rate limiter unavailable", "error", err)
		ok = true
	}
	if !ok {
		metrics.Logins.WithLabelValues("rate_limited").Inc()
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Burn the same bcrypt work as the wrong-password path.
			auth.CheckPassword(dummyHash, password)
			metrics.Logins.WithLabelValues("invalid_credentials").Inc()
			return nil, common.ErrInvalidCredentials
		}
		metrics.Logins.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("loading user %q: %w", username, err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) || !user.IsActive {
		metrics.Logins.WithLabelValues("invalid_credentials").Inc()
		return nil, common.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn(ctx, "updating last_login failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = &now
	}

	access, _, err := s.jwt.MintAccess(user.ID)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		return nil, err
	}
	refresh, _, err := s.jwt.MintRefresh(user.ID)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		return nil, err
	}

	snapshot, err := s.snapshot(ctx, user)
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.Logins.WithLabelValues("ok").Inc()
	return &Credentials{AccessToken: access, RefreshToken: refresh, User: snapshot}, nil
}

// Refresh validates the presented refresh token and mints a new access
// token. With rotation enabled the presented token's jti is revoked for its
// remaining lifetime and a new refresh token is returned alongside.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		metrics.Refreshes.WithLabelValues("invalid").Inc()
		return nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Fail closed: honoring a possibly revoked token is worse than a 500.
		metrics.Refreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("checking revocation for %s: %w", claims.ID, err)
	}
	if revoked {
		metrics.Refreshes.WithLabelValues("revoked").Inc()
		return nil, common.ErrRevoked
	}

	result := &RefreshResult{}

	if s.rotate {
		if err := s.revoked.Revoke(ctx, claims.ID, s.jwt.Remaining(claims)); err != nil {
			metrics.Refreshes.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("rotating refresh token %s: %w", claims.ID, err)
		}
		metrics.Revocations.Inc()

		rotated, _, err := s.jwt.MintRefresh(claims.UserID)
		if err != nil {
			metrics.Refreshes.WithLabelValues("error").Inc()
			return nil, err
		}
		result.RefreshToken = rotated
	}

	access, _, err := s.jwt.MintAccess(claims.UserID)
	if err != nil {
		metrics.Refreshes.WithLabelValues("error").Inc()
		return nil, err
	}
	result.AccessToken = access

	metrics.Refreshes.WithLabelValues("ok").Inc()
	return result, nil
}

// Revoke adds the token's jti to the revocation set for its remaining
// lifetime. Revoking an expired or already revoked token is a no-op success.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil
		}
		return err
	}

	ttl := s.jwt.Remaining(claims)
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoking %s: %w", claims.ID, err)
	}
	metrics.Revocations.Inc()
	return nil
}

// VerifyAccess checks signature, expiry and kind of an access token. The
// revocation set is deliberately not consulted: access tokens are not
// individually revocable, their short lifetime is the mitigation.
func (s *Service) VerifyAccess(_ context.Context, accessToken string) (*auth.Claims, error) {
	return s.jwt.ParseAccess(accessToken)
}

// Me rebuilds the snapshot for an authenticated user from current data.
func (s *Service) Me(ctx context.Context, userID string) (*shared.UserSnapshot, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}
	if !user.IsActive {
		return nil, common.ErrUnauthenticated
	}
	return s.snapshot(ctx, user)
}

func (s *Service) snapshot(ctx context.Context, user *models.User) (*shared.UserSnapshot, error) {
	perms, err := s.resolver.GetEffectivePermissions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("resolving permissions: %w", err)
	}
	roles, err := s.users.RolesOf(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}
	if roles == nil {
		roles = []string{}
	}

	return &shared.UserSnapshot{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		FullName:    user.FullName,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		Roles:       roles,
		Permissions: perms,
		LastLogin:   user.LastLogin,
	}, nil
}
