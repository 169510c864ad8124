package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashboard"

// Recorder holds the dashboard's Prometheus collectors. A nil *Recorder is a
// valid no-op recorder.
type Recorder struct {
	dispatches       *prom.CounterVec
	dispatchDuration *prom.HistogramVec
	rejected         *prom.CounterVec
	storeVersion     prom.Gauge
	workflows        *prom.CounterVec
	sweeps           prom.Counter
	mirrorFailures   prom.Counter
}

// NewRegistry returns a registry with the process and Go runtime collectors.
func NewRegistry() *prom.Registry {
	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return reg
}

func NewRecorder(reg prom.Registerer) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		dispatches: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commands_applied_total",
			Help:      "Commands applied by the store, by partition and command type.",
		}, []string{"partition", "command"}),
		dispatchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "command_apply_seconds",
			Help:      "Time spent applying a command including subscriber delivery.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
		}, []string{"partition"}),
		rejected: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commands_rejected_total",
			Help:      "Commands rejected before reaching a partition, by error category.",
		}, []string{"category"}),
		storeVersion: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "store_version",
			Help:      "Version of the latest aggregate snapshot.",
		}),
		workflows: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_outcomes_total",
			Help:      "Workflow runs by workflow and outcome.",
		}, []string{"workflow", "outcome"}),
		sweeps: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Overdue-task sweeps dispatched.",
		}),
		mirrorFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_publish_failures_total",
			Help:      "Applied commands that could not be mirrored to the message bus.",
		}),
	}
	reg.MustRegister(r.dispatches, r.dispatchDuration, r.rejected, r.storeVersion, r.workflows, r.sweeps, r.mirrorFailures)
	return r
}

func (r *Recorder) CommandApplied(partition, command string, version uint64, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.dispatches.WithLabelValues(partition, command).Inc()
	r.dispatchDuration.WithLabelValues(partition).Observe(elapsed.Seconds())
	r.storeVersion.Set(float64(version))
}

func (r *Recorder) CommandRejected(category string) {
	if r == nil {
		return
	}
	r.rejected.WithLabelValues(category).Inc()
}

func (r *Recorder) WorkflowOutcome(workflow, outcome string) {
	if r == nil {
		return
	}
	r.workflows.WithLabelValues(workflow, outcome).Inc()
}

func (r *Recorder) SweepRun() {
	if r == nil {
		return
	}
	r.sweeps.Inc()
}

func (r *Recorder) MirrorFailed() {
	if r == nil {
		return
	}
	r.mirrorFailures.Inc()
}

// Handler exposes the registry in the Prometheus text format.
func Handler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
