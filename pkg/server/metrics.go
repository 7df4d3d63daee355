// Copyright 2025 Hyli
//
// Prometheus collectors for the wallet node, served on the metrics
// listener.

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransitionsHandled counts handled wallet blobs by action and
	// outcome.
	TransitionsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_transitions_total",
		Help: "Number of handled wallet transitions",
	}, []string{"action", "success"})

	// AccountsLive tracks the number of registered accounts.
	AccountsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wallet_accounts_live",
		Help: "Number of live account records",
	})

	invitesConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_invites_consumed_total",
		Help: "Number of invite codes consumed",
	})
)

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
