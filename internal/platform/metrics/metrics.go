package metrics

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BookingMetrics exposes counters/histograms for slot writes and publishing.
type BookingMetrics struct {
	operations     *prometheus.CounterVec
	writeLatency   *prometheus.HistogramVec
	slotsPublished prometheus.Counter
	slotsCompleted prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beedical",
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking coordinator operations by outcome",
		}, []string{"operation", "outcome"}),
		writeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "beedical",
			Subsystem: "booking",
			Name:      "write_seconds",
			Help:      "Latency of conditional slot writes",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		slotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beedical",
			Name:      "slots_published_total",
			Help:      "Open slots created by the availability publisher",
		}),
		slotsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beedical",
			Name:      "slots_completed_total",
			Help:      "Reserved slots moved to completed by the sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operations, m.writeLatency, m.slotsPublished, m.slotsCompleted)
	return m
}

func (m *BookingMetrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *BookingMetrics) ObserveWrite(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.writeLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *BookingMetrics) AddPublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsPublished.Add(float64(n))
}

func (m *BookingMetrics) AddCompleted(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsCompleted.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) echo.HandlerFunc {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
