package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics счетчики и датчики диспетчеризации
type Metrics struct {
	ReportsCreated     prometheus.Counter
	Assignments        prometheus.Counter
	NoTruckRetries     prometheus.Counter
	QueueEvictions     prometheus.Counter
	PersistFailures    prometheus.Counter
	ReportsResolved    prometheus.Counter
	QueueDepth         prometheus.Gauge
	HeldReports        prometheus.Gauge
	AvailableTrucks    prometheus.Gauge
	AssignmentDistance prometheus.Histogram
}

// New регистрирует метрики в переданном registerer.
// Если reg равен nil, используется регистратор по умолчанию. Уже
// зарегистрированные коллекторы переиспользуются.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ReportsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_reports_created_total",
			Help: "Total number of incident reports accepted",
		}),
		Assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Total number of truck assignments made",
		}),
		NoTruckRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_no_truck_retries_total",
			Help: "Reports held for retry because no truck was available",
		}),
		QueueEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_queue_evictions_total",
			Help: "Reports evicted from a full incident queue",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_persist_failures_total",
			Help: "Assignments whose persistence exhausted all retries",
		}),
		ReportsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_reports_resolved_total",
			Help: "Total number of reports resolved",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Reports currently waiting in the incident queue",
		}),
		HeldReports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_held_reports",
			Help: "Reports waiting for a retry after no truck was available",
		}),
		AvailableTrucks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_available_trucks",
			Help: "Trucks currently available for assignment",
		}),
		AssignmentDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_assignment_distance_km",
			Help:    "Distance between the assigned truck and the incident",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100},
		}),
	}

	r := &registrar{reg: reg}
	m.ReportsCreated = registerAs(r, m.ReportsCreated)
	m.Assignments = registerAs(r, m.Assignments)
	m.NoTruckRetries = registerAs(r, m.NoTruckRetries)
	m.QueueEvictions = registerAs(r, m.QueueEvictions)
	m.PersistFailures = registerAs(r, m.PersistFailures)
	m.ReportsResolved = registerAs(r, m.ReportsResolved)
	m.QueueDepth = registerAs(r, m.QueueDepth)
	m.HeldReports = registerAs(r, m.HeldReports)
	m.AvailableTrucks = registerAs(r, m.AvailableTrucks)
	m.AssignmentDistance = registerAs(r, m.AssignmentDistance)
	if r.err != nil {
		return nil, r.err
	}

	return m, nil
}

// NewNop создает метрики, не привязанные ни к одному регистратору (для тестов)
func NewNop() *Metrics {
	m, _ := New(prometheus.NewRegistry())
	return m
}

type registrar struct {
	reg prometheus.Registerer
	err error
}

func registerAs[T prometheus.Collector](r *registrar, c T) T {
	if r.err != nil {
		return c
	}
	if err := r.reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		r.err = err
	}
	return c
}
