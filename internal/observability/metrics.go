package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Unit outcomes used as the "outcome" label on soilcn_units_total.
const (
	OutcomeConverged    = "converged"
	OutcomeNotConverged = "not_converged"
	OutcomeFailed       = "failed"
)

// SimCollector bundles Prometheus metrics for simulation runs and exposes a
// /metrics handler.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Units                 *prometheus.CounterVec
	UnitDurations         *prometheus.HistogramVec
	SteadyStateIterations prometheus.Histogram
	Timesteps             *prometheus.CounterVec
	UnitsInFlight         prometheus.Gauge
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soilcn_units_total",
		Help: "Total number of simulated spatial units, labeled by outcome.",
	}, []string{"outcome"})
	units, err := registerCounterVec(reg, units, "soilcn_units_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "soilcn_unit_duration_seconds",
		Help:    "Wall time spent per simulation phase of a unit.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"phase"})
	durations, err = registerHistogramVec(reg, durations, "soilcn_unit_duration_seconds")
	if err != nil {
		return nil, err
	}

	iterations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "soilcn_steady_state_iterations",
		Help:    "Number of calibration iterations needed to reach steady state.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}), "soilcn_steady_state_iterations")
	if err != nil {
		return nil, err
	}

	timesteps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "soilcn_timesteps_total",
		Help: "Monthly timesteps simulated, labeled by phase.",
	}, []string{"phase"})
	timesteps, err = registerCounterVec(reg, timesteps, "soilcn_timesteps_total")
	if err != nil {
		return nil, err
	}

	inFlight, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "soilcn_units_in_flight",
		Help: "Units currently being simulated.",
	}), "soilcn_units_in_flight")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:              gatherer,
		Units:                 units,
		UnitDurations:         durations,
		SteadyStateIterations: iterations,
		Timesteps:             timesteps,
		UnitsInFlight:         inFlight,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// UnitStarted increments the in-flight gauge.
func (c *SimCollector) UnitStarted() {
	if c == nil || c.UnitsInFlight == nil {
		return
	}
	c.UnitsInFlight.Inc()
}

// UnitFinished records the outcome of a unit and decrements the in-flight
// gauge.
func (c *SimCollector) UnitFinished(outcome string) {
	if c == nil {
		return
	}
	if c.UnitsInFlight != nil {
		c.UnitsInFlight.Dec()
	}
	if c.Units != nil {
		c.Units.WithLabelValues(outcome).Inc()
	}
}

// ObservePhase records the wall time of a simulation phase.
func (c *SimCollector) ObservePhase(phase string, d time.Duration) {
	if c == nil || c.UnitDurations == nil {
		return
	}
	c.UnitDurations.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveIterations records the iteration count of a steady-state run.
func (c *SimCollector) ObserveIterations(n int) {
	if c == nil || c.SteadyStateIterations == nil {
		return
	}
	c.SteadyStateIterations.Observe(float64(n))
}

// AddTimesteps counts simulated months for a phase.
func (c *SimCollector) AddTimesteps(phase string, n int) {
	if c == nil || c.Timesteps == nil || n <= 0 {
		return
	}
	c.Timesteps.WithLabelValues(phase).Add(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
