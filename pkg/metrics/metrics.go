package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the checkout and payment instrumentation.
type Metrics struct {
	OrdersCreated    prometheus.Counter
	CheckoutFailures *prometheus.CounterVec
	PaymentCallbacks *prometheus.CounterVec
	CheckoutDuration prometheus.Histogram
}

// New registers and returns the marketplace metrics.
func New() *Metrics {
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pasar",
		Subsystem: "checkout",
		Name:      "orders_created_total",
		Help:      "Total number of merchant orders created by checkouts.",
	})
	checkoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pasar",
		Subsystem: "checkout",
		Name:      "failures_total",
		Help:      "Total number of rejected or aborted checkouts.",
	}, []string{"reason"})
	paymentCallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pasar",
		Subsystem: "payment",
		Name:      "callbacks_total",
		Help:      "Total number of payment webhook deliveries by outcome.",
	}, []string{"outcome"})
	checkoutDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pasar",
		Subsystem: "checkout",
		Name:      "duration_seconds",
		Help:      "Checkout latency in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	prometheus.MustRegister(ordersCreated, checkoutFailures, paymentCallbacks, checkoutDuration)
	return &Metrics{
		OrdersCreated:    ordersCreated,
		CheckoutFailures: checkoutFailures,
		PaymentCallbacks: paymentCallbacks,
		CheckoutDuration: checkoutDuration,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
