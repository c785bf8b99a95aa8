// Package api is the HTTP client for the authkeeper server.
//
// # Overview
//
// The package provides:
//  1. Endpoint methods for the authentication API: Login, Refresh, Logout,
//     Verify and Me, plus a generic Get for any authenticated resource.
//  2. A 401 interceptor. Authenticated calls attach the access token from
//     the session store; when the server rejects it, the client refreshes
//     the token pair through a single-flight gate and replays the original
//     request exactly once with the fresh token.
//  3. Transport error classification, folding the various timeout shapes
//     into common.ErrNetworkTimeout so callers can tell "the network is
//     slow" apart from "the session is dead".
//
// # Error Handling
//
// Auth conditions surface as sentinel errors matchable with errors.Is:
// common.ErrInvalidCredentials, common.ErrRateLimited,
// common.ErrUnauthenticated, common.ErrPermissionDenied,
// common.ErrNetworkTimeout.
//
// Concurrency & Contexts
//
// A Client is safe for concurrent use. However many requests observe an
// expired token at once, exactly one /auth/refresh round trip is made; the
// refresh itself is not cancellable once started, so a completed refresh is
// always persisted even if every waiting caller has given up.
package api
