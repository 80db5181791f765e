package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	warnings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proclet",
		Name:      "warnings_total",
		Help:      "Total process warnings emitted, by warning name.",
	}, []string{"name"})

	signalsRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proclet",
		Name:      "signals_relayed_total",
		Help:      "Total signal deliveries relayed to listeners, by signal name.",
	}, []string{"signal"})

	failures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "proclet",
		Name:      "failures_total",
		Help:      "Total uncaught failures observed by the host.",
	})

	rejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proclet",
		Name:      "rejections_total",
		Help:      "Total rejection notices, by outcome (unhandled or handled).",
	}, []string{"outcome"})

	channelMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proclet",
		Name:      "channel_messages_total",
		Help:      "Total control-channel messages, by direction.",
	}, []string{"direction"})

	guestExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proclet",
		Name:      "guest_exits_total",
		Help:      "Total guest process exits, by outcome class.",
	}, []string{"class"})

	guestRestarts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "proclet",
		Name:      "guest_restarts_total",
		Help:      "Total guest restarts initiated by the restart policy.",
	})

	phase = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "proclet",
		Name:      "phase",
		Help:      "Host lifecycle phase (1 for the active phase, 0 otherwise).",
	}, []string{"phase"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "proclet",
		Name:      "build_info",
		Help:      "Build metadata for the running proclet binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

var phaseNames = []string{"running", "draining", "exited"}

func init() {
	registry.MustRegister(warnings, signalsRelayed, failures, rejections, channelMessages, guestExits, guestRestarts, phase, buildInfo)
}

// Registry returns the Prometheus registry containing all proclet metrics.
func Registry() *prometheus.Registry {
	return registry
}

// AddWarning increments the warning counter for the provided name.
func AddWarning(name string) {
	if name == "" {
		name = "Warning"
	}
	warnings.WithLabelValues(name).Inc()
}

// AddSignalRelayed increments the relay counter for a signal name.
func AddSignalRelayed(signal string) {
	if signal == "" {
		return
	}
	signalsRelayed.WithLabelValues(signal).Inc()
}

// IncrementFailure records one uncaught failure.
func IncrementFailure() {
	failures.Inc()
}

// IncrementUnhandledRejection records a rejection that had no reader at
// the end of its turn.
func IncrementUnhandledRejection() {
	rejections.WithLabelValues("unhandled").Inc()
}

// IncrementRejectionHandled records a late reader retracting an earlier
// unhandled notice.
func IncrementRejectionHandled() {
	rejections.WithLabelValues("handled").Inc()
}

// IncrementMessageSent records an outbound control-channel message.
func IncrementMessageSent() {
	channelMessages.WithLabelValues("sent").Inc()
}

// IncrementMessageReceived records an inbound control-channel message.
func IncrementMessageReceived() {
	channelMessages.WithLabelValues("received").Inc()
}

// ObserveGuestExit classifies and records a finished guest process.
func ObserveGuestExit(code int, signal string) {
	class := "error"
	switch {
	case signal != "":
		class = "signal"
	case code == 0:
		class = "ok"
	}
	guestExits.WithLabelValues(class).Inc()
}

// IncrementGuestRestart records one restart decision.
func IncrementGuestRestart() {
	guestRestarts.Inc()
}

// SetPhase publishes the active lifecycle phase as a one-hot gauge.
func SetPhase(active string) {
	for _, name := range phaseNames {
		value := 0.0
		if name == active {
			value = 1.0
		}
		phase.WithLabelValues(name).Set(value)
	}
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
