package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "talos"

// Metrics records what the reporting pipeline sent where.
// Each instance has its own registry so that runs (and tests) don't share counters.
type Metrics struct {
	Registry *prometheus.Registry
	// Attempts to deliver a payload to an http(s) destination, by outcome ("success" or "failure").
	PostAttempts *prometheus.CounterVec
	// Payloads delivered, by output format and sink ("file" or "http").
	PayloadsSent *prometheus.CounterVec
	// Payloads not sent, by reason (e.g., "no_samples").
	PayloadsSkipped *prometheus.CounterVec
	// Payload bytes delivered.
	BytesSent prometheus.Counter
	// Log messages, by level.
	LogMessages *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		Registry: registry,
		PostAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "post_attempts_total",
				Help:      "Number of attempts to post a payload to a results server, split by outcome.",
			},
			[]string{"outcome"},
		),
		PayloadsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payloads_sent_total",
				Help:      "Number of result payloads delivered, split by output format and sink.",
			},
			[]string{"format", "sink"},
		),
		PayloadsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payloads_skipped_total",
				Help:      "Number of result payloads that were not generated or not sent, split by reason.",
			},
			[]string{"reason"},
		),
		BytesSent: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payload_bytes_sent_total",
				Help:      "Number of payload bytes delivered.",
			},
		),
		LogMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_messages_total",
				Help:      "Number of log lines logged, split by level.",
			},
			[]string{"level"},
		),
	}
}

// WriteToTextfile writes the current metric values in the text exposition format,
// for pickup by the node exporter textfile collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return errors.Wrapf(err, "metrics: writing %s", path)
	}
	return nil
}
