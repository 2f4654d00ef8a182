// Package metrics holds the portal's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "login_portal"

var (
	// LoginAttempts counts login operations by method (password, google) and outcome.
	LoginAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts by method and outcome.",
	}, []string{"method", "outcome"})

	// Logouts counts local logouts, labelled by whether the server call succeeded.
	Logouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logouts_total",
		Help:      "Logouts by server acknowledgement.",
	}, []string{"server"})

	// ForcedLogouts counts sessions invalidated by an unauthorized API response.
	ForcedLogouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_logouts_total",
		Help:      "Sessions cleared after a 401 from the auth API.",
	})

	// StorageErrors counts failed slot reads and writes.
	StorageErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "storage_errors_total",
		Help:      "Durable storage failures by operation.",
	}, []string{"op"})

	// CachedSessions is the number of browser sessions held in memory after the last sweep.
	CachedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cached_sessions",
		Help:      "Browser sessions held in memory.",
	})

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(LoginAttempts, Logouts, ForcedLogouts, StorageErrors, CachedSessions)
}

// Registry exposes the portal registry, mainly for tests.
func Registry() *prometheus.Registry {
	return registry
}

// Handler serves the portal metrics in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
