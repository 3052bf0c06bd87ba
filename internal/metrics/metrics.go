// Package metrics exposes engine and event loop counters as Prometheus
// collectors on a private registry.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/runner"
)

const namespace = "opera"

// Metrics holds every collector the engine reports to.
type Metrics struct {
	registry *prometheus.Registry

	State           prometheus.Gauge
	Transitions     *prometheus.CounterVec
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	Searches        *prometheus.CounterVec
	SearchDuration  prometheus.Histogram
	SearchDepth     prometheus.Histogram
	SearchNodes     prometheus.Counter
	Errors          *prometheus.CounterVec

	LoopCommands  prometheus.Gauge
	LoopResponses prometheus.Gauge
	LoopTimeouts  prometheus.Gauge
	LoopRejected  prometheus.Gauge
	LoopLagged    prometheus.Gauge
	LoopAvgCmd    prometheus.Gauge
	LoopPeakHeap  prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_state",
			Help:      "Current lifecycle state (0=initializing, 1=ready, 2=searching, 3=pondering, 4=stopping, 5=error)",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Accepted lifecycle transitions",
		}, []string{"from", "to"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Protocol commands handled",
		}, []string{"command", "status"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent dispatching a protocol command",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"command"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches started and finished",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Wall time of finished searches",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		SearchDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_depth",
			Help:      "Completed depth of finished searches",
			Buckets:   prometheus.LinearBuckets(1, 2, 16),
		}),
		SearchNodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_nodes_total",
			Help:      "Nodes visited by finished searches",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Reported errors by kind and recovery action",
		}, []string{"kind", "recovery"}),

		LoopCommands:  loopGauge("commands_processed", "Commands dispatched by the event loop"),
		LoopResponses: loopGauge("responses_sent", "Responses written to the output"),
		LoopTimeouts:  loopGauge("timeouts", "Dispatch and write timeouts"),
		LoopRejected:  loopGauge("rejected_lines", "Input lines refused before dispatch"),
		LoopLagged:    loopGauge("lagged_responses", "Responses dropped because the writer fell behind"),
		LoopAvgCmd:    loopGauge("avg_command_seconds", "Rolling average dispatch time"),
		LoopPeakHeap:  loopGauge("peak_heap_bytes", "Highest sampled heap size"),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.State, m.Transitions, m.Commands, m.CommandDuration,
		m.Searches, m.SearchDuration, m.SearchDepth, m.SearchNodes, m.Errors,
		m.LoopCommands, m.LoopResponses, m.LoopTimeouts, m.LoopRejected,
		m.LoopLagged, m.LoopAvgCmd, m.LoopPeakHeap,
	)
	return m
}

func loopGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      name,
		Help:      help,
	})
}

// Registry returns the private registry for exposition.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Hooks records every lifecycle event and then forwards it to next.
func (m *Metrics) Hooks(next domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStateChange: func(ctx context.Context, e *domain.StateChangeEvent) {
			m.State.Set(float64(e.To))
			m.Transitions.WithLabelValues(e.From.String(), e.To.String()).Inc()
			if next.OnStateChange != nil {
				next.OnStateChange(ctx, e)
			}
		},
		OnSearchStart: func(ctx context.Context, e *domain.SearchEvent) {
			m.Searches.WithLabelValues("started").Inc()
			if next.OnSearchStart != nil {
				next.OnSearchStart(ctx, e)
			}
		},
		OnSearchComplete: func(ctx context.Context, e *domain.SearchEvent) {
			outcome := "completed"
			if e.Stopped {
				outcome = "stopped"
			}
			m.Searches.WithLabelValues(outcome).Inc()
			m.SearchDuration.Observe(e.Elapsed.Seconds())
			m.SearchDepth.Observe(float64(e.Depth))
			m.SearchNodes.Add(float64(e.Nodes))
			if next.OnSearchComplete != nil {
				next.OnSearchComplete(ctx, e)
			}
		},
		OnCommand: func(ctx context.Context, e *domain.CommandEvent) {
			status := "ok"
			if e.Err != nil {
				status = "error"
			}
			m.Commands.WithLabelValues(e.Command, status).Inc()
			m.CommandDuration.WithLabelValues(e.Command).Observe(e.Duration.Seconds())
			if next.OnCommand != nil {
				next.OnCommand(ctx, e)
			}
		},
		OnError: func(ctx context.Context, e *domain.Error) {
			m.Errors.WithLabelValues(e.Kind.String(), e.Recovery().String()).Inc()
			if next.OnError != nil {
				next.OnError(ctx, e)
			}
		},
	}
}

// ObserveLoop copies a loop statistics snapshot into the gauges. It is
// meant to be installed as the runner's tick hook.
func (m *Metrics) ObserveLoop(s runner.Stats) {
	m.LoopCommands.Set(float64(s.CommandsProcessed))
	m.LoopResponses.Set(float64(s.ResponsesSent))
	m.LoopTimeouts.Set(float64(s.Timeouts))
	m.LoopRejected.Set(float64(s.RejectedLines))
	m.LoopLagged.Set(float64(s.LaggedResponses))
	m.LoopAvgCmd.Set(s.AvgCommandTime.Seconds())
	m.LoopPeakHeap.Set(float64(s.PeakMemory))
}
