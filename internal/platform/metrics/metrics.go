// Package metrics holds the Prometheus collectors for the scoring engine.
// Every recording method is safe to call on a nil *Collectors, so callers
// that run without metrics need no guards.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "vitalscores"
	subsystem = "engine"
)

var durationBuckets = []float64{0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.005}

// Collectors groups the engine's metrics.
type Collectors struct {
	recalculations *prometheus.CounterVec
	notifications  prometheus.Counter
	subscribers    prometheus.Gauge
	duration       prometheus.Histogram
	validations    *prometheus.CounterVec
}

// New builds the collectors and registers them with reg. A collector that is
// already registered is reused, so New may be called more than once against
// the same registry.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "recalculations_total",
			Help:      "Score calculations by scoring system and completeness",
		}, []string{"system", "complete"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_total",
			Help:      "Result deliveries to subscribers",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscribers",
			Help:      "Currently registered result subscribers",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "calculation_duration_seconds",
			Help:      "Time to compute both scores for one snapshot",
			Buckets:   durationBuckets,
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "validations_total",
			Help:      "Field validation outcomes by field and severity",
		}, []string{"field", "severity"}),
	}

	if reg == nil {
		return c, nil
	}

	collectors := []prometheus.Collector{c.recalculations, c.notifications, c.subscribers, c.duration, c.validations}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
			switch existing := are.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				if collector == c.recalculations {
					c.recalculations = existing
				} else {
					c.validations = existing
				}
			case prometheus.Gauge:
				c.subscribers = existing
			case prometheus.Counter:
				c.notifications = existing
			case prometheus.Histogram:
				c.duration = existing
			}
		}
	}
	return c, nil
}

// ObserveCalculation records one scoring pass for system.
func (c *Collectors) ObserveCalculation(system string, complete bool) {
	if c == nil {
		return
	}
	c.recalculations.With(prometheus.Labels{
		"system":   system,
		"complete": strconv.FormatBool(complete),
	}).Inc()
}

// ObserveDuration records how long computing both scores took.
func (c *Collectors) ObserveDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.duration.Observe(d.Seconds())
}

// AddNotifications counts n deliveries to subscribers.
func (c *Collectors) AddNotifications(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.notifications.Add(float64(n))
}

// SetSubscribers sets the current subscriber count.
func (c *Collectors) SetSubscribers(n int) {
	if c == nil {
		return
	}
	c.subscribers.Set(float64(n))
}

// ObserveValidation records one validation outcome.
func (c *Collectors) ObserveValidation(field, severity string) {
	if c == nil {
		return
	}
	c.validations.With(prometheus.Labels{"field": field, "severity": severity}).Inc()
}

// WriteTextfile writes everything gathered by g to path in the Prometheus
// text exposition format, for pickup by a node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
