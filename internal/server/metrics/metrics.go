// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Logins counts login attempts by result: ok, invalid_credentials,
	// rate_limited, error.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authkeeper_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	// Refreshes counts refresh attempts by result: ok, invalid, revoked, error.
	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authkeeper_refreshes_total",
		Help: "Token refresh attempts by result.",
	}, []string{"result"})

	// Revocations counts refresh tokens added to the revocation set.
	Revocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authkeeper_revocations_total",
		Help: "Refresh tokens revoked.",
	})

	// PermissionCache counts permission lookups by outcome: hit, miss.
	PermissionCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authkeeper_permission_cache_total",
		Help: "Permission cache lookups by outcome.",
	}, []string{"outcome"})
)
