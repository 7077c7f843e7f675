// Package metrics provides Prometheus metrics for the console.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "console"

var (
	// GatewayRequestsTotal counts REST calls by method and outcome status.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of REST requests issued by the gateway.",
		},
		[]string{"method", "status"}, // status: HTTP code or "network"
	)

	// GatewayRequestDuration measures REST call latency in seconds.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "REST request duration in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)

	// ReportsTotal counts diagnostic reports by delivery result.
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Total diagnostic reports by result.",
		},
		[]string{"result"}, // "sent", "failed", "dropped", "rejected"
	)

	// ReportQueueDepth tracks reports waiting for delivery.
	ReportQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_queue_depth",
			Help:      "Diagnostic reports waiting for delivery.",
		},
	)

	// ReportSinkState is the breaker state of each diagnostic sink:
	// 0 closed, 1 half-open, 2 open.
	ReportSinkState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_sink_state",
			Help:      "Circuit breaker state of the diagnostic sink.",
		},
		[]string{"sink"},
	)

	// ReportSinkTripsTotal counts how often a sink was cut off.
	ReportSinkTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_sink_trips_total",
			Help:      "Total times the diagnostic sink breaker opened.",
		},
		[]string{"sink"},
	)

	// PageLoadsTotal counts user-list page fetches.
	PageLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_loads_total",
			Help:      "Total user list page loads by result.",
		},
		[]string{"result"}, // "ok", "error", "skipped"
	)

	// ProfileRefreshesTotal counts profile fetch cycles by trigger.
	ProfileRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_refreshes_total",
			Help:      "Total profile refreshes by trigger.",
		},
		[]string{"trigger"}, // "initial", "manual", "interval", "visible", "recharge", "export"
	)
)
