package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart engine and checkout activity.
type CartMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	attempts prometheus.Counter
	orders   *prometheus.CounterVec
	lines    prometheus.Gauge
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_operation_duration_seconds",
		Help:    "Duration of cart operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_success_total",
		Help: "Cart operations that completed successfully.",
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_operation_failures_total",
		Help: "Cart operations that returned an error.",
	}, []string{"operation", "code"})
	attempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_submit_attempts_total",
		Help: "Order submission attempts, retries included.",
	})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_total",
		Help: "Checkout results by outcome.",
	}, []string{"outcome"})
	lines := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_lines",
		Help: "Number of lines currently held in the cart.",
	})
	reg.MustRegister(duration, success, failure, attempts, orders, lines)
	return &CartMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		attempts: attempts,
		orders:   orders,
		lines:    lines,
	}
}

// ObserveOperation records the duration and outcome of a cart operation.
// code is the error code for failures and ignored on success.
func (c *CartMetrics) ObserveOperation(op string, duration time.Duration, code string, failed bool) {
	if c == nil || c.duration == nil {
		return
	}
	op = normalizeLabel(op)
	c.duration.WithLabelValues(op).Observe(duration.Seconds())
	if failed {
		c.failure.WithLabelValues(op, normalizeLabel(code)).Inc()
		return
	}
	c.success.WithLabelValues(op).Inc()
}

// IncSubmitAttempt counts one order submission attempt.
func (c *CartMetrics) IncSubmitAttempt() {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.Inc()
}

// IncOrder counts one finished checkout by outcome (submitted, rejected, failed).
func (c *CartMetrics) IncOrder(outcome string) {
	if c == nil || c.orders == nil {
		return
	}
	c.orders.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// SetLines publishes the current cart line count.
func (c *CartMetrics) SetLines(n int) {
	if c == nil || c.lines == nil {
		return
	}
	c.lines.Set(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
