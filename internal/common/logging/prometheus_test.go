package logging

import (
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusHook(t *testing.T) {
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "log_messages_total"}, []string{"level"})
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	restore := WithHook(logger, NewPrometheusHook(counters))
	logger.Warn("first")
	logger.Warn("second")
	logger.Error("third")
	logger.Debug("not logged at the default level")
	restore()
	logger.Error("after the hook was removed")

	assert.Equal(t, 2.0, testutil.ToFloat64(counters.WithLabelValues("warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(counters.WithLabelValues("error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(counters.WithLabelValues("debug")))
	assert.Empty(t, logger.Hooks)
}
