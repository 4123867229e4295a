// Package taloserrors contains the typed errors returned by the reporting pipeline.
// The CLI looks for the error types defined in this file to pick an exit code,
// so code should wrap them (e.g., with errors.WithStack) rather than flatten them into strings.
//
// If several problems are found at once (e.g., several unknown filter names), they should be
// reported together in a single ErrConfiguration instead of failing on the first one.
package taloserrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrConfiguration is returned when the run configuration can't be used, e.g., because required
// metadata is missing or a filter name is unknown. Every offending key is listed in Keys.
type ErrConfiguration struct {
	// Subsystem that detected the problem, e.g., "output" or "filter".
	Subsystem string
	// What was wrong with the keys, e.g., "missing keys" or "unknown filters".
	Reason string
	// The offending keys or names, in the order they were found.
	Keys []string
}

func (err *ErrConfiguration) Error() string {
	s := err.Reason
	if len(err.Keys) > 0 {
		s = fmt.Sprintf("%s: [%s]", err.Reason, strings.Join(err.Keys, ", "))
	}
	if err.Subsystem != "" {
		s = err.Subsystem + ": " + s
	}
	return s
}

// ErrUnsupportedDestination is returned for results urls with a scheme other than file, http, or https.
type ErrUnsupportedDestination struct {
	Subsystem string
	Url       string
}

func (err *ErrUnsupportedDestination) Error() string {
	return fmt.Sprintf("%s: %s - only http://, https://, and file:// supported", err.Subsystem, err.Url)
}

// ErrRetriesExhausted is returned when a payload could not be delivered within the retry budget.
// Err is the error returned by the last attempt.
type ErrRetriesExhausted struct {
	Attempts uint
	Err      error
}

func (err *ErrRetriesExhausted) Error() string {
	return fmt.Sprintf("transport: graph server unreachable (%d attempts)\n%s", err.Attempts, err.Err)
}

func (err *ErrRetriesExhausted) Unwrap() error {
	return err.Err
}

// ErrServerRejected is returned when the results server answered without acknowledging anything.
// Response holds the raw server text for diagnosis.
type ErrServerRejected struct {
	Response string
}

func (err *ErrServerRejected) Error() string {
	return fmt.Sprintf("output: send failed, graph server says:\n%s", err.Response)
}

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Subsystem string      // Subsystem that rejected the value, e.g., "filter"
	Name      string      // Name of the field referred to, e.g., "date"
	Value     interface{} // The invalid value that was provided
	Message   string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	s := fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	if err.Message != "" {
		s = fmt.Sprintf("%s; %s", s, err.Message)
	}
	if err.Subsystem != "" {
		s = err.Subsystem + ": " + s
	}
	return s
}

// IsConfiguration returns true if err was caused by a problem with the configuration rather than the environment.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
func IsConfiguration(err error) bool {
	{
		var e *ErrConfiguration
		if errors.As(err, &e) {
			return true
		}
	}
	{
		var e *ErrUnsupportedDestination
		if errors.As(err, &e) {
			return true
		}
	}
	{
		var e *ErrInvalidArgument
		if errors.As(err, &e) {
			return true
		}
	}
	return false
}

// ExitCode maps an error to the exit code of the talos CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsConfiguration(err):
		return 2
	default:
		return 1
	}
}
