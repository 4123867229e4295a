package summary

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"sigs.k8s.io/yaml"
)

// Formatter serializes a report.
type Formatter func(r *Report) ([]byte, error)

func YamlFormatter(r *Report) ([]byte, error) {
	data, err := yaml.Marshal(r)
	return data, errors.WithStack(err)
}

func JsonFormatter(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	return data, errors.WithStack(err)
}

// Formatters maps the names accepted by --summaryFormat to formatters.
var Formatters = map[string]Formatter{
	"yaml": YamlFormatter,
	"json": JsonFormatter,
}

func (r *Report) Print(out io.Writer) {
	_, _ = fmt.Fprintf(out, "\nSummary of %s:\n", r.Title)
	for _, t := range r.Tests {
		_, _ = fmt.Fprintf(out, "\t* %s (%s, %d values)\n", t.Name, t.Format, t.Statistics.Count)
		printStatistics(out, t.Statistics)
		names := maps.Keys(t.Counters)
		slices.Sort(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(out, "\t\t* %s\n", name)
			printStatistics(out, t.Counters[name])
		}
	}
}

func printStatistics(out io.Writer, s *Statistics) {
	if s.Count == 0 {
		_, _ = fmt.Fprintf(out, "\t\t - no values\n")
		return
	}
	_, _ = fmt.Fprintf(out, "\t\t - min: %g\n", s.Min)
	_, _ = fmt.Fprintf(out, "\t\t - max: %g\n", s.Max)
	_, _ = fmt.Fprintf(out, "\t\t - avg: %f\n", s.Average)
	_, _ = fmt.Fprintf(out, "\t\t - variance: %f\n", s.Variance)
	_, _ = fmt.Fprintf(out, "\t\t - standard deviation: %f\n", s.StandardDeviation)
}

// Generate serializes the report, as yaml if formatter is nil.
func (r *Report) Generate(formatter Formatter) ([]byte, error) {
	if formatter == nil {
		formatter = YamlFormatter
	}
	return formatter(r)
}
