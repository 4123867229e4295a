// Package summary computes and prints statistics over the filtered values of a talos run.
package summary

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/talos-perf/talos/internal/talos/output"
	"github.com/talos-perf/talos/internal/talos/results"
)

// New summarizes rs. Each test's values are filtered the same way they're reported.
func New(rs *results.ResultSet) (*Report, error) {
	report := &Report{Title: rs.Title, Date: rs.Date}
	for _, test := range rs.Tests {
		values, err := test.Values(rs.Filters)
		if err != nil {
			return nil, errors.WithMessage(err, "summary")
		}
		raw := make([]float64, len(values))
		for i, v := range values {
			raw[i] = v.Value
		}
		s := &TestSummary{
			Name:       rs.ReportName(test),
			Format:     test.Format,
			Values:     raw,
			Statistics: statistics(raw),
		}
		samples := map[string][]float64{}
		for _, counters := range test.Counters {
			for name, values := range counters {
				short := output.ShortName(name)
				samples[short] = append(samples[short], values...)
			}
		}
		for name, values := range samples {
			if len(values) == 0 {
				continue
			}
			if s.Counters == nil {
				s.Counters = map[string]*Statistics{}
			}
			s.Counters[name] = statistics(values)
		}
		report.Tests = append(report.Tests, s)
	}
	return report, nil
}

func statistics(values []float64) *Statistics {
	s := &Statistics{Count: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Average = stat.Mean(values, nil)
	if len(values) > 1 {
		s.Variance = stat.Variance(values, nil)
		s.StandardDeviation = math.Sqrt(s.Variance)
	}
	return s
}
