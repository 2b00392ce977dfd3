package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersPresented = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tow_dispatch", Name: "offers_presented_total", Help: "Total offers presented to the driver"})
	OfferOutcomes   = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tow_dispatch", Name: "offer_outcomes_total", Help: "Resolved offers by final state and reason"},
		[]string{"state", "reason"},
	)
	NegotiationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tow_dispatch", Name: "negotiation_outcomes_total", Help: "Counter-offers by customer answer"},
		[]string{"outcome"},
	)
	OfferDecisionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tow_dispatch",
		Name:      "offer_decision_seconds",
		Help:      "Time from presenting an offer to its resolution",
		Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 45, 60},
	})

	EarningsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "tow_dispatch", Name: "earnings", Help: "Running earnings per period"},
		[]string{"period"},
	)
	ActiveTrips = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "tow_dispatch", Name: "active_trips", Help: "1 while the driver has an active trip"})
	DriverOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "tow_dispatch", Name: "driver_online", Help: "1 while the driver is online"})

	TelemetryPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tow_dispatch", Name: "telemetry_published_total", Help: "Location telemetry publish attempts by result"},
		[]string{"sink", "result"},
	)
	AlertFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "tow_dispatch", Name: "alert_failures_total", Help: "Failed alert play/stop calls"})
	WSSessions    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "tow_dispatch", Name: "ws_sessions", Help: "Connected websocket sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "tow_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tow_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
