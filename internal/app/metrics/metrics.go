package metrics

import (
	"context"
	"sync"
	"time"

	core "github.com/flowlayer/enginecore/internal/app/core/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	workflowStepExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enginecore",
			Subsystem: "workflow",
			Name:      "step_executions_total",
			Help:      "Total number of workflow step dispatches, by step kind and outcome.",
		},
		[]string{"step_kind", "status"},
	)

	workflowStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enginecore",
			Subsystem: "workflow",
			Name:      "step_duration_seconds",
			Help:      "Duration of workflow step dispatches.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"step_kind"},
	)

	transformStepExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enginecore",
			Subsystem: "transform",
			Name:      "step_executions_total",
			Help:      "Total number of transform step operator invocations.",
		},
		[]string{"operator", "status"},
	)

	transformStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enginecore",
			Subsystem: "transform",
			Name:      "step_duration_seconds",
			Help:      "Duration of transform step operator invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operator"},
	)

	pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enginecore",
			Subsystem: "transform",
			Name:      "pipeline_runs_total",
			Help:      "Total number of transform pipeline runs, by terminal status.",
		},
		[]string{"pipeline_id", "status"},
	)

	discountEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "enginecore",
			Subsystem: "discount",
			Name:      "evaluations_total",
			Help:      "Total number of discount evaluation requests, by stacking strategy.",
		},
		[]string{"strategy"},
	)

	discountEvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "enginecore",
			Subsystem: "discount",
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of discount evaluation requests.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"strategy"},
	)

	observationCollectors sync.Map
)

func init() {
	Registry.MustRegister(
		workflowStepExecutions,
		workflowStepDuration,
		transformStepExecutions,
		transformStepDuration,
		pipelineRuns,
		discountEvaluations,
		discountEvaluationDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// RecordWorkflowStep records one workflow step dispatch.
func RecordWorkflowStep(stepKind, status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Microsecond
	}
	workflowStepExecutions.WithLabelValues(stepKind, status).Inc()
	workflowStepDuration.WithLabelValues(stepKind).Observe(duration.Seconds())
}

// RecordTransformStep records one transform step operator invocation.
func RecordTransformStep(operator, status string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Microsecond
	}
	transformStepExecutions.WithLabelValues(operator, status).Inc()
	transformStepDuration.WithLabelValues(operator).Observe(duration.Seconds())
}

// RecordPipelineRun records the terminal status of one transform pipeline run.
func RecordPipelineRun(pipelineID, status string) {
	if pipelineID == "" {
		pipelineID = "unknown"
	}
	pipelineRuns.WithLabelValues(pipelineID, status).Inc()
}

// RecordDiscountEvaluation records one discount evaluation request.
func RecordDiscountEvaluation(strategy string, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	if duration <= 0 {
		duration = time.Microsecond
	}
	discountEvaluations.WithLabelValues(strategy).Inc()
	discountEvaluationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

type observationCollector struct {
	gauge *prometheus.GaugeVec
	hist  *prometheus.HistogramVec
}

// ObservationHooks creates core observation hooks backed by Prometheus metrics.
// Services wire this into core.Base/RetryPolicy call sites the same way the
// teacher's function/automation services do.
func ObservationHooks(namespace, subsystem, name string) core.ObservationHooks {
	key := namespace + ":" + subsystem + ":" + name
	var collector observationCollector
	if entry, ok := observationCollectors.Load(key); ok {
		collector = entry.(observationCollector)
	} else {
		collector = createObservationCollector(namespace, subsystem, name)
		observationCollectors.Store(key, collector)
	}
	return core.ObservationHooks{
		OnStart: func(ctx context.Context, meta map[string]string) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Inc()
		},
		OnComplete: func(ctx context.Context, meta map[string]string, err error, duration time.Duration) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Dec()
			status := "success"
			if err != nil {
				status = "error"
			}
			collector.hist.WithLabelValues(label, status).Observe(duration.Seconds())
		},
	}
}

func createObservationCollector(namespace, subsystem, name string) observationCollector {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_in_flight",
			Help:      "Current operations in flight for " + subsystem,
		},
		[]string{"resource"},
	)
	hist := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_duration_seconds",
			Help:      "Duration of operations for " + subsystem,
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"resource", "status"},
	)
	Registry.MustRegister(gauge, hist)
	return observationCollector{gauge: gauge, hist: hist}
}

func metaLabel(meta map[string]string) string {
	if meta == nil {
		return "unknown"
	}
	if id, ok := meta["workflow_id"]; ok && id != "" {
		return id
	}
	if id, ok := meta["pipeline_id"]; ok && id != "" {
		return id
	}
	if id, ok := meta["discount_id"]; ok && id != "" {
		return id
	}
	if id, ok := meta["resource"]; ok && id != "" {
		return id
	}
	return "unknown"
}

// WorkflowExecutionHooks captures per-execution run observation.
func WorkflowExecutionHooks() core.ObservationHooks {
	return ObservationHooks("enginecore", "workflow", "executions")
}

// PipelineRunHooks captures per-run pipeline observation.
func PipelineRunHooks() core.ObservationHooks {
	return ObservationHooks("enginecore", "transform", "runs")
}

// DiscountEvaluationHooks captures per-request discount evaluation observation.
func DiscountEvaluationHooks() core.ObservationHooks {
	return ObservationHooks("enginecore", "discount", "evaluations")
}
