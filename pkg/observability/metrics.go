package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects experiment counters on its own registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	trainingsTotal     *prometheus.CounterVec
	trainingDuration   *prometheus.HistogramVec
	iterationsTotal    prometheus.Counter
	selectedCasesTotal prometheus.Counter
	trialsTotal        prometheus.Counter
	baselineRunsTotal  prometheus.Counter
	runsTotal          *prometheus.CounterVec
	cacheLookupsTotal  *prometheus.CounterVec
	activeMetric       *prometheus.GaugeVec
}

// NewMetrics registers all experiment metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// trainingsTotal counts model fits by phase
		trainingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activelearn_trainings_total",
			Help: "Total model fits by experiment phase",
		}, []string{"phase"}),

		trainingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "activelearn_training_duration_seconds",
			Help:    "Model fit duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"phase"}),

		iterationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "activelearn_iterations_total",
			Help: "Total completed active-learning rounds",
		}),

		selectedCasesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "activelearn_selected_cases_total",
			Help: "Total cases selected for labeling",
		}),

		trialsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "activelearn_monte_carlo_trials_total",
			Help: "Total Monte Carlo significance trials",
		}),

		baselineRunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "activelearn_baseline_runs_total",
			Help: "Total passive baseline groups completed",
		}),

		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activelearn_runs_total",
			Help: "Total experiment runs by final status",
		}, []string{"status"}),

		cacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activelearn_cache_lookups_total",
			Help: "Result cache lookups by artifact and outcome",
		}, []string{"artifact", "result"}),

		activeMetric: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activelearn_active_metric",
			Help: "Latest metric value of the active-learning model",
		}, []string{"metric"}),
	}
}

// ObserveTraining records one model fit
func (m *Metrics) ObserveTraining(phase string, seconds float64) {
	if m == nil {
		return
	}
	m.trainingsTotal.WithLabelValues(phase).Inc()
	m.trainingDuration.WithLabelValues(phase).Observe(seconds)
}

// ObserveIteration records a completed round and the size of its batch
func (m *Metrics) ObserveIteration(selected int, metrics map[string]float64) {
	if m == nil {
		return
	}
	m.iterationsTotal.Inc()
	m.selectedCasesTotal.Add(float64(selected))
	for name, v := range metrics {
		m.activeMetric.WithLabelValues(name).Set(v)
	}
}

// ObserveTrial records one Monte Carlo trial
func (m *Metrics) ObserveTrial() {
	if m == nil {
		return
	}
	m.trialsTotal.Inc()
}

// ObserveBaselineRun records one completed baseline group
func (m *Metrics) ObserveBaselineRun() {
	if m == nil {
		return
	}
	m.baselineRunsTotal.Inc()
}

// ObserveRun records a finished experiment
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
}

// ObserveCacheLookup records a result cache hit or miss
func (m *Metrics) ObserveCacheLookup(artifact string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(artifact, result).Inc()
}
