package store

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	cascaded   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groundtruth",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations by name and outcome kind.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "groundtruth",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		cascaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groundtruth",
			Subsystem: "store",
			Name:      "cascade_items_total",
			Help:      "Documents visited by cascading deletes by mode and result.",
		}, []string{"mode", "result"}),
	}
	m.operations = register(reg, m.operations)
	m.duration = register(reg, m.duration)
	m.cascaded = register(reg, m.cascaded)
	return m
}

// register adds c to reg, reusing an identical collector that is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// observe records one operation. Call it deferred with a pointer to the named error result.
func (m *metrics) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = KindOf(*errp).String()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metrics) cascade(mode string, report *CascadeReport) {
	m.cascaded.WithLabelValues(mode, "processed").Add(float64(report.Processed))
	m.cascaded.WithLabelValues(mode, "failed").Add(float64(report.Failed))
}
