package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// PrometheusHook implements logrus.Hook by counting log messages per level.
type PrometheusHook struct {
	counters *prometheus.CounterVec
}

// NewPrometheusHook returns a hook incrementing counters, which must have a single "level" label.
func NewPrometheusHook(counters *prometheus.CounterVec) *PrometheusHook {
	return &PrometheusHook{counters: counters}
}

func (h *PrometheusHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *PrometheusHook) Fire(entry *logrus.Entry) error {
	h.counters.WithLabelValues(entry.Level.String()).Inc()
	return nil
}

// WithHook adds hook to logger. The returned function restores the hooks logger had before.
func WithHook(logger *logrus.Logger, hook logrus.Hook) func() {
	previous := make(logrus.LevelHooks, len(logger.Hooks))
	for level, hooks := range logger.Hooks {
		previous[level] = append([]logrus.Hook(nil), hooks...)
	}
	logger.AddHook(hook)
	return func() {
		logger.ReplaceHooks(previous)
	}
}
