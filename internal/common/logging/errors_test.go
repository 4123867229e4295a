package logging

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/talos-perf/talos/internal/common/taloserrors"
)

func TestWithError(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	entry := logrus.NewEntry(logger)

	tests := map[string]struct {
		err       error
		fields    logrus.Fields
		withStack bool
	}{
		"configuration": {
			err: errors.WithStack(&taloserrors.ErrConfiguration{
				Subsystem: "output",
				Reason:    "missing keys",
				Keys:      []string{"sourcestamp", "buildid"},
			}),
			fields:    logrus.Fields{Subsystem: "output", Keys: []string{"sourcestamp", "buildid"}, ExitCode: 2},
			withStack: true,
		},
		"retries exhausted": {
			err:       errors.WithStack(&taloserrors.ErrRetriesExhausted{Attempts: 5, Err: io.ErrUnexpectedEOF}),
			fields:    logrus.Fields{Subsystem: "transport", Attempts: uint(5), ExitCode: 1},
			withStack: true,
		},
		"invalid argument": {
			err:    &taloserrors.ErrInvalidArgument{Subsystem: "filter", Name: "filters"},
			fields: logrus.Fields{Subsystem: "filter", ExitCode: 2},
		},
		"plain error": {
			err:    io.EOF,
			fields: logrus.Fields{ExitCode: 1},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			e := WithError(entry, tc.err)
			assert.Equal(t, tc.err, e.Data[logrus.ErrorKey])
			for k, v := range tc.fields {
				assert.Equal(t, v, e.Data[k], k)
			}
			if tc.withStack {
				assert.NotNil(t, e.Data[Stacktrace])
			} else {
				assert.NotContains(t, e.Data, Stacktrace)
			}
		})
	}
}

func TestExtractStack_ThroughMessages(t *testing.T) {
	err := errors.WithMessage(errors.New("graph server unreachable"), "output")
	assert.NotNil(t, ExtractStack(err))
	assert.Nil(t, ExtractStack(io.EOF))
}
