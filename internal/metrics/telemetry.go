package metrics

import "github.com/prometheus/client_golang/prometheus"

// Telemetry Prometheus metrics.
var (
	DiscoveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotawatch",
			Name:      "discovery_attempts_total",
			Help:      "Process discovery attempts by phase and tool",
		},
		[]string{"phase", "tool", "result"}, // phase: name / keyword; result: found / empty / error
	)

	DiscoveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "quotawatch",
			Name:      "discovery_duration_seconds",
			Help:      "Full discovery run duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ToolSwitchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotawatch",
			Name:      "tool_switches_total",
			Help:      "Switches to an alternate process-listing tool",
		},
		[]string{"to"},
	)

	ProbeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotawatch",
			Name:      "probe_total",
			Help:      "Liveness probes against candidate ports",
		},
		[]string{"result"}, // "ok" / "fail"
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotawatch",
			Name:      "rpc_requests_total",
			Help:      "Language server RPC requests",
		},
		[]string{"method", "status"},
	)

	RPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quotawatch",
			Name:      "rpc_request_duration_seconds",
			Help:      "Language server RPC duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method"},
	)

	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotawatch",
			Name:      "polls_total",
			Help:      "Telemetry poll cycles by outcome",
		},
		[]string{"result"}, // "ok" / "error" / "skipped"
	)

	MalfunctionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotawatch",
			Name:      "malfunctions_total",
			Help:      "Malfunctions by kind",
		},
		[]string{"kind"},
	)

	ModelRemainingRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "quotawatch",
			Name:      "model_remaining_ratio",
			Help:      "Remaining quota fraction per model",
		},
		[]string{"model"},
	)

	Connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quotawatch",
			Name:      "connected",
			Help:      "1 when the last poll reached the language server",
		},
	)

	EventClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "quotawatch",
			Name:      "event_clients",
			Help:      "Connected websocket event clients",
		},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quotawatch",
			Name:      "events_dropped_total",
			Help:      "Events not delivered to websocket clients",
		},
		[]string{"reason"}, // "queue_full" / "slow_client"
	)
)

var telemetryMetricsRegistered bool

// RegisterTelemetryMetrics registers telemetry metrics. Must be called once from main.
func RegisterTelemetryMetrics() {
	if telemetryMetricsRegistered {
		return
	}
	prometheus.MustRegister(DiscoveryAttemptsTotal)
	prometheus.MustRegister(DiscoveryDuration)
	prometheus.MustRegister(ToolSwitchesTotal)
	prometheus.MustRegister(ProbeTotal)
	prometheus.MustRegister(RPCRequestsTotal)
	prometheus.MustRegister(RPCRequestDuration)
	prometheus.MustRegister(PollsTotal)
	prometheus.MustRegister(MalfunctionsTotal)
	prometheus.MustRegister(ModelRemainingRatio)
	prometheus.MustRegister(Connected)
	prometheus.MustRegister(EventClients)
	prometheus.MustRegister(EventsDroppedTotal)
	telemetryMetricsRegistered = true
}
