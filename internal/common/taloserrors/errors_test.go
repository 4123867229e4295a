package taloserrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"nil":                               {nil, 0},
		"ErrConfiguration":                  {&ErrConfiguration{}, 2},
		"ErrUnsupportedDestination":         {&ErrUnsupportedDestination{}, 2},
		"ErrInvalidArgument":                {&ErrInvalidArgument{}, 2},
		"pkg.Error => ErrConfiguration":     {errors.WithMessage(&ErrConfiguration{}, "foo"), 2},
		"pkg.Error => ErrRetriesExhausted":  {errors.WithStack(&ErrRetriesExhausted{Attempts: 5, Err: errors.New("foo")}), 1},
		"ErrServerRejected":                 {&ErrServerRejected{}, 1},
		"pkg.Error":                         {errors.New("foo"), 1},
		"pkg.Error => ErrInvalidArgument":   {errors.WithStack(&ErrInvalidArgument{}), 2},
		"pkg.Error => pkg.Error => ErrConf": {errors.WithStack(errors.WithMessage(&ErrConfiguration{}, "bar")), 2},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCode(tc.err))
		})
	}
}

func TestErrConfiguration_ListsEveryKey(t *testing.T) {
	err := &ErrConfiguration{Subsystem: "output", Reason: "missing keys", Keys: []string{"sourcestamp", "buildid"}}
	assert.Equal(t, "output: missing keys: [sourcestamp, buildid]", err.Error())
}

func TestErrRetriesExhausted(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ErrRetriesExhausted{Attempts: 5, Err: cause}
	assert.Contains(t, err.Error(), "(5 attempts)")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestErrServerRejected_QuotesResponse(t *testing.T) {
	err := &ErrServerRejected{Response: "Internal Server Error"}
	assert.Contains(t, err.Error(), "Internal Server Error")
}

func TestErrInvalidArgument(t *testing.T) {
	tests := map[string]struct {
		err  *ErrInvalidArgument
		want string
	}{
		"no message": {
			err:  &ErrInvalidArgument{Name: "date", Value: "yesterday"},
			want: `value "yesterday" is invalid for field "date"`,
		},
		"message": {
			err:  &ErrInvalidArgument{Name: "date", Value: "yesterday", Message: "not a unix time"},
			want: `value "yesterday" is invalid for field "date"; not a unix time`,
		},
		"subsystem prefix": {
			err:  &ErrInvalidArgument{Subsystem: "filter", Name: "filters", Value: "ignore_first:x", Message: "bad argument"},
			want: `filter: value "ignore_first:x" is invalid for field "filters"; bad argument`,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}
