package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rpggio/qms/internal/workflow"
)

// Recorder counts document commands and status transitions.
type Recorder struct {
	registry *prometheus.Registry

	// commands counts commands by outcome.
	// Labels: command, kind ("ok" or an error kind such as permission_denied)
	commands *prometheus.CounterVec

	// transitions counts committed status changes.
	// Labels: type (document type), from, to
	transitions *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qms",
			Subsystem: "document",
			Name:      "commands_total",
			Help:      "Document commands by outcome kind",
		}, []string{"command", "kind"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qms",
			Subsystem: "document",
			Name:      "transitions_total",
			Help:      "Committed document status transitions",
		}, []string{"type", "from", "to"}),
	}
}

// ObserveCommand records one finished command.
func (r *Recorder) ObserveCommand(command, kind string) {
	r.commands.WithLabelValues(command, kind).Inc()
}

// ObserveTransition records one status change.
func (r *Recorder) ObserveTransition(docType string, from, to workflow.Status) {
	r.transitions.WithLabelValues(docType, string(from), string(to)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
