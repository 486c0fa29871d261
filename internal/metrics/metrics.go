// Package metrics holds the Prometheus collectors of the storefront services.
// Collectors are registered on the default registry and served by
// promhttp.Handler on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal labels: method, path, status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parfum_http_requests_total",
			Help: "HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parfum_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)

	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parfum_orders_created_total",
			Help: "Orders created",
		},
	)

	// OrdersRejectedTotal labels: reason (insufficient_stock, promo_invalid, invalid, error)
	OrdersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parfum_orders_rejected_total",
			Help: "Checkouts that did not produce an order",
		},
		[]string{"reason"},
	)

	OrderCreationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "parfum_order_creation_duration_seconds",
			Help:    "Checkout latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	// EmailsSentTotal labels: template, result (success/failure)
	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parfum_emails_sent_total",
			Help: "Outgoing mails by template",
		},
		[]string{"template", "result"},
	)

	// EventsPublishedTotal labels: transport, result (success/failure)
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parfum_events_published_total",
			Help: "Domain events handed to a transport",
		},
		[]string{"transport", "result"},
	)

	// MessagesConsumedTotal labels: consumer, result (success/failure)
	MessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parfum_messages_consumed_total",
			Help: "Broker messages handled by consumers",
		},
		[]string{"consumer", "result"},
	)

	RealtimeClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parfum_realtime_clients",
			Help: "Connected admin push clients",
		},
	)
)

// Result maps an error to the result label
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
