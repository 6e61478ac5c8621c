package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records outcomes of the order placement and cancellation flows.
type OrderMetrics struct {
	checkoutDuration *prometheus.HistogramVec
	ordersCreated    prometheus.Counter
	ordersCancelled  prometheus.Counter
	checkoutFailures *prometheus.CounterVec
	stockReleased    prometheus.Counter
}

// NewOrderMetrics registers the order flow metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	checkoutDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of order creation transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders successfully created from carts.",
	})
	ordersCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Orders cancelled with stock restored.",
	})
	checkoutFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Failed order creation attempts by error code.",
	}, []string{"code"})
	stockReleased := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stock_units_released_total",
		Help: "Stock units returned to products by cancellations.",
	})
	reg.MustRegister(checkoutDuration, ordersCreated, ordersCancelled, checkoutFailures, stockReleased)
	return &OrderMetrics{
		checkoutDuration: checkoutDuration,
		ordersCreated:    ordersCreated,
		ordersCancelled:  ordersCancelled,
		checkoutFailures: checkoutFailures,
		stockReleased:    stockReleased,
	}
}

// ObserveCheckout records the duration of a checkout attempt.
func (m *OrderMetrics) ObserveCheckout(outcome string, duration time.Duration) {
	if m == nil || m.checkoutDuration == nil {
		return
	}
	m.checkoutDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCreated increments the created-orders counter.
func (m *OrderMetrics) IncCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// IncCancelled increments the cancelled-orders counter.
func (m *OrderMetrics) IncCancelled() {
	if m == nil || m.ordersCancelled == nil {
		return
	}
	m.ordersCancelled.Inc()
}

// IncFailure increments the failure counter for the given error code.
func (m *OrderMetrics) IncFailure(code string) {
	if m == nil || m.checkoutFailures == nil {
		return
	}
	m.checkoutFailures.WithLabelValues(normalizeLabel(code)).Inc()
}

// AddStockReleased records units returned to inventory.
func (m *OrderMetrics) AddStockReleased(units int) {
	if m == nil || m.stockReleased == nil || units <= 0 {
		return
	}
	m.stockReleased.Add(float64(units))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
