// Package filter implements the numeric transforms applied to raw per-page values before reporting.
//
// A Pipeline is an ordered list of stages. Each stage consumes the output of the previous one.
// Stages are either series filters (e.g., ignore_first), which return a shorter series,
// or reducers (e.g., median), which return a single value.
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/talos-perf/talos/internal/common/taloserrors"
)

// Func transforms a series. Implementations must not modify their input.
type Func func(series []float64, args []float64) ([]float64, error)

type definition struct {
	fn Func
	// Maximum number of arguments accepted.
	maxArgs int
	// Optional argument check run at parse time.
	check func(args []float64) error
}

var registry = map[string]definition{
	"mean":           {fn: reducer(mean), maxArgs: 0},
	"median":         {fn: reducer(median), maxArgs: 0},
	"geometric_mean": {fn: reducer(geometricMean), maxArgs: 0},
	"variance":       {fn: reducer(variance), maxArgs: 0},
	"stddev":         {fn: reducer(stddev), maxArgs: 0},
	"ignore_first":   {fn: ignoreFirst, maxArgs: 1, check: checkCount},
	"ignore_max":     {fn: ignoreExtreme(floats.Max), maxArgs: 0},
	"ignore_min":     {fn: ignoreExtreme(floats.Min), maxArgs: 0},
}

// Names returns the names of all registered filters, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Stage is a single named filter together with its arguments.
type Stage struct {
	Name string
	Args []float64
	fn   Func
}

func (s Stage) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = strconv.FormatFloat(a, 'f', -1, 64)
	}
	return s.Name + ":" + strings.Join(args, ",")
}

// Pipeline is an ordered sequence of stages. The zero value is a pipeline that returns its input unchanged.
type Pipeline []Stage

// Apply runs the series through every stage in order. The input slice is never modified.
// An empty series yields an empty result.
func (p Pipeline) Apply(series []float64) ([]float64, error) {
	data := slices.Clone(series)
	for _, stage := range p {
		if len(data) == 0 {
			return []float64{}, nil
		}
		var err error
		data, err = stage.fn(data, stage.Args)
		if err != nil {
			return nil, errors.WithMessagef(err, "filter: stage %s", stage)
		}
	}
	if data == nil {
		data = []float64{}
	}
	return data, nil
}

func (p Pipeline) String() string {
	specs := make([]string, len(p))
	for i, s := range p {
		specs[i] = s.String()
	}
	return strings.Join(specs, " ")
}

// Specs returns the pipeline as filter spec strings accepted by Parse.
func (p Pipeline) Specs() []string {
	specs := make([]string, len(p))
	for i, s := range p {
		specs[i] = s.String()
	}
	return specs
}

// Parse builds a pipeline from filter specs of the form "name" or "name:arg1,arg2".
// Unknown names and malformed arguments are all reported in one configuration error.
func Parse(specs ...string) (Pipeline, error) {
	var unknown []string
	var result *multierror.Error
	pipeline := make(Pipeline, 0, len(specs))
	for _, spec := range specs {
		name, rawArgs, _ := strings.Cut(strings.TrimSpace(spec), ":")
		def, ok := registry[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		args, err := parseArgs(rawArgs)
		if err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "filter %s", name))
			continue
		}
		if len(args) > def.maxArgs {
			result = multierror.Append(result, errors.Errorf("filter %s takes at most %d argument(s), got %d", name, def.maxArgs, len(args)))
			continue
		}
		if def.check != nil {
			if err := def.check(args); err != nil {
				result = multierror.Append(result, errors.WithMessagef(err, "filter %s", name))
				continue
			}
		}
		pipeline = append(pipeline, Stage{Name: name, Args: args, fn: def.fn})
	}
	if len(unknown) > 0 {
		return nil, errors.WithStack(&taloserrors.ErrConfiguration{
			Subsystem: "filter",
			Reason:    "unknown filters",
			Keys:      unknown,
		})
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.WithStack(&taloserrors.ErrInvalidArgument{
			Subsystem: "filter",
			Name:      "filters",
			Value:     strings.Join(specs, " "),
			Message:   err.Error(),
		})
	}
	return pipeline, nil
}

// MustParse is like Parse but panics on error. Intended for defaults and tests.
func MustParse(specs ...string) Pipeline {
	p, err := Parse(specs...)
	if err != nil {
		panic(err)
	}
	return p
}

func parseArgs(raw string) ([]float64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	args := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		args = append(args, v)
	}
	return args, nil
}

func reducer(f func([]float64) float64) Func {
	return func(series []float64, _ []float64) ([]float64, error) {
		return []float64{f(series)}, nil
	}
}

func mean(series []float64) float64 {
	return stat.Mean(series, nil)
}

// variance and stddev are population statistics so that a single run has zero spread.
func variance(series []float64) float64 {
	return stat.PopVariance(series, nil)
}

func stddev(series []float64) float64 {
	return math.Sqrt(stat.PopVariance(series, nil))
}

func median(series []float64) float64 {
	sorted := slices.Clone(series)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func geometricMean(series []float64) float64 {
	for _, v := range series {
		if v <= 0 {
			// Undefined for non-positive values. NaN is dropped by Result.Values.
			return math.NaN()
		}
	}
	return stat.GeometricMean(series, nil)
}

func checkCount(args []float64) error {
	if len(args) > 0 && (args[0] < 0 || args[0] != math.Trunc(args[0])) {
		return fmt.Errorf("needs a non-negative integer, got %v", args[0])
	}
	return nil
}

func ignoreFirst(series []float64, args []float64) ([]float64, error) {
	n := 1
	if len(args) > 0 {
		n = int(args[0])
	}
	if len(series) <= n {
		return slices.Clone(series), nil
	}
	return slices.Clone(series[n:]), nil
}

// ignoreExtreme removes every occurrence of the value picked by extreme.
func ignoreExtreme(extreme func([]float64) float64) Func {
	return func(series []float64, _ []float64) ([]float64, error) {
		x := extreme(series)
		out := make([]float64, 0, len(series))
		for _, v := range series {
			if v != x {
				out = append(out, v)
			}
		}
		return out, nil
	}
}
