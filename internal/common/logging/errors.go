package logging

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/talos-perf/talos/internal/common/taloserrors"
)

// Field names added by WithError.
const (
	Stacktrace = "stacktrace"
	Subsystem  = "subsystem"
	Keys       = "keys"
	Attempts   = "attempts"
	ExitCode   = "exit_code"
)

// Unexported but considered part of the stable interface of pkg/errors.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// WithError returns a new logrus.Entry with err and the details of the talos errors it wraps
// (subsystem, offending keys, attempts made) as fields, together with the exit code the CLI
// will use for it and, if available, a stack trace.
func WithError(logger *logrus.Entry, err error) *logrus.Entry {
	fields := logrus.Fields{ExitCode: taloserrors.ExitCode(err)}
	var configErr *taloserrors.ErrConfiguration
	var destinationErr *taloserrors.ErrUnsupportedDestination
	var argumentErr *taloserrors.ErrInvalidArgument
	var retriesErr *taloserrors.ErrRetriesExhausted
	switch {
	case errors.As(err, &configErr):
		fields[Subsystem] = configErr.Subsystem
		fields[Keys] = configErr.Keys
	case errors.As(err, &destinationErr):
		fields[Subsystem] = destinationErr.Subsystem
	case errors.As(err, &argumentErr):
		fields[Subsystem] = argumentErr.Subsystem
	case errors.As(err, &retriesErr):
		fields[Subsystem] = "transport"
		fields[Attempts] = retriesErr.Attempts
	}
	if stack := ExtractStack(err); stack != nil {
		fields[Stacktrace] = stack
	}
	return logger.WithError(err).WithFields(fields)
}

// ExtractStack returns the outermost errors.StackTrace in the chain of err, or nil if there is none.
func ExtractStack(err error) errors.StackTrace {
	var st stackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return nil
}
