// Package common defines shared constants and sentinel errors used across
// client and server layers of authkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Credential errors. ErrInvalidCredentials is deliberately identical for
	// an unknown username, a wrong password, and a disabled account.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrRateLimited        = errors.New("too many login attempts")

	// Token lifecycle errors (bad signature, malformed, expired, wrong kind).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrRevoked      = errors.New("token revoked")

	// Session errors.
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")

	// Transport errors. A network timeout is not an auth failure and must
	// never trigger a token refresh.
	ErrNetworkTimeout = errors.New("network timeout")
)
