package metrics

// #region imports
import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// #endregion

// #region recorder

// Recorder counts what the decision core does. Implementations must be safe
// for concurrent use.
type Recorder interface {
	ObserveGuard(action, band string)
	ObserveRoute(mode string, score float64)
	ObserveModelCall(status string, elapsed time.Duration)
	IncSwitchBusy()
	IncRestoreFailure()
}

// #endregion recorder

// #region prometheus

// PrometheusRecorder exports counters and histograms for scraping.
type PrometheusRecorder struct {
	guardDecisions  *prometheus.CounterVec
	routeDecisions  *prometheus.CounterVec
	routeScore      prometheus.Histogram
	modelCalls      *prometheus.CounterVec
	modelSeconds    prometheus.Histogram
	switchBusy      prometheus.Counter
	restoreFailures prometheus.Counter
}

// NewPrometheusRecorder registers the stepassist metrics on the default
// registry. Call once per process.
func NewPrometheusRecorder() *PrometheusRecorder {
	return NewPrometheusRecorderWith(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWith registers on a caller-supplied registry.
func NewPrometheusRecorderWith(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepassist_guard_decisions_total",
			Help: "Guard decisions by action and confidence band.",
		}, []string{"action", "band"}),
		routeDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepassist_route_decisions_total",
			Help: "Query routing decisions by mode.",
		}, []string{"mode"}),
		routeScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stepassist_route_score",
			Help:    "Routing scores before thresholding.",
			Buckets: prometheus.LinearBuckets(0, 0.2, 15),
		}),
		modelCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stepassist_model_calls_total",
			Help: "Direct model calls by outcome.",
		}, []string{"status"}),
		modelSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stepassist_model_call_seconds",
			Help:    "Direct model call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		switchBusy: factory.NewCounter(prometheus.CounterOpts{
			Name: "stepassist_switch_busy_total",
			Help: "Context switches refused because the slot was held.",
		}),
		restoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "stepassist_restore_failures_total",
			Help: "Context restores that failed and poisoned the manager.",
		}),
	}
}

// ObserveGuard counts one guard decision.
func (r *PrometheusRecorder) ObserveGuard(action, band string) {
	r.guardDecisions.WithLabelValues(action, band).Inc()
}

// ObserveRoute counts one routing decision and samples its score.
func (r *PrometheusRecorder) ObserveRoute(mode string, score float64) {
	r.routeDecisions.WithLabelValues(mode).Inc()
	r.routeScore.Observe(score)
}

// ObserveModelCall counts one direct model call with its latency.
func (r *PrometheusRecorder) ObserveModelCall(status string, elapsed time.Duration) {
	r.modelCalls.WithLabelValues(status).Inc()
	r.modelSeconds.Observe(elapsed.Seconds())
}

// IncSwitchBusy counts one busy rejection.
func (r *PrometheusRecorder) IncSwitchBusy() {
	r.switchBusy.Inc()
}

// IncRestoreFailure counts one failed restore.
func (r *PrometheusRecorder) IncRestoreFailure() {
	r.restoreFailures.Inc()
}

// #endregion prometheus

// #region nop

// NopRecorder drops every observation. Tests use it so nothing registers on
// the global registry.
type NopRecorder struct{}

func (NopRecorder) ObserveGuard(action, band string)                {}
func (NopRecorder) ObserveRoute(mode string, score float64)         {}
func (NopRecorder) ObserveModelCall(status string, d time.Duration) {}
func (NopRecorder) IncSwitchBusy()                                  {}
func (NopRecorder) IncRestoreFailure()                              {}

// #endregion nop
