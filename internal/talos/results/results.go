// Package results holds the in-memory representation of a talos run: the tests that were run,
// the values recorded for every cycle, and the counters sampled alongside them.
// See https://wiki.mozilla.org/Buildbot/Talos/DataFormat
//
// The reporting code only reads these types. Filtering never modifies them.
package results

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/talos-perf/talos/internal/common/taloserrors"
	"github.com/talos-perf/talos/internal/talos/filter"
)

// Format is the wire-format kind of a test.
type Format string

const (
	// TsFormat tests record one scalar series per cycle (e.g., startup time).
	TsFormat Format = "tsformat"
	// TpFormat tests record one series per page (e.g., page load).
	TpFormat Format = "tpformat"
)

// Page holds the runs recorded for a single page during one cycle.
type Page struct {
	Index int       `json:"index"`
	Name  string    `json:"page"`
	Runs  []float64 `json:"runs"`
}

// Value is a filtered value together with the page it was recorded for.
type Value struct {
	Value float64
	Page  string
}

// Result is one cycle of a test.
type Result struct {
	Format Format
	Pages  []Page
}

// Values returns a (value, page) pair for each page, after running the page's runs through the pipeline.
// Pages for which the pipeline returns nothing are omitted, as are values that aren't greater than -1
// (talos uses -1 to mark a failed measurement).
// If the pipeline doesn't reduce a page to a single value, each remaining value is returned.
func (r *Result) Values(pipeline filter.Pipeline) ([]Value, error) {
	var values []Value
	for _, page := range r.Pages {
		filtered, err := pipeline.Apply(page.Runs)
		if err != nil {
			return nil, errors.WithMessagef(err, "page %s", page.Name)
		}
		for _, v := range filtered {
			if math.IsNaN(v) || v <= -1 {
				continue
			}
			values = append(values, Value{Value: v, Page: page.Name})
		}
	}
	return values, nil
}

// RawValues returns the unfiltered runs, grouped by page.
func (r *Result) RawValues() []Page {
	pages := make([]Page, len(r.Pages))
	for i, p := range r.Pages {
		pages[i] = Page{Index: p.Index, Name: p.Name, Runs: append([]float64(nil), p.Runs...)}
	}
	return pages
}

// CounterResults maps a counter name (e.g., "Main_RSS") to the samples collected during one sampling session.
type CounterResults map[string][]float64

// TestConfig is the per-test configuration relevant to reporting.
type TestConfig struct {
	Name string `mapstructure:"name"`
	// Filters replace the run-level filters when non-empty.
	Filters []string `mapstructure:"filters"`
	// Options are the remaining test settings (e.g., tpcycles), reported to datazilla.
	Options map[string]interface{} `mapstructure:",remain"`
}

// Test accumulates the results of all cycles of a single test.
type Test struct {
	Config TestConfig
	// Format of the results; set by the first call to Add.
	Format  Format
	Results []*Result
	// One entry per sampling session.
	Counters []CounterResults
	// Extensions installed for this test, reported to datazilla. Nil if none were configured.
	Extensions []string
}

func NewTest(config TestConfig) *Test {
	return &Test{Config: config}
}

func (t *Test) Name() string {
	return t.Config.Name
}

// Add records one cycle of results, together with the counters sampled during that cycle (may be nil).
// All results of a test must have the same format.
func (t *Test) Add(result *Result, counters CounterResults) error {
	if result == nil {
		return errors.WithStack(&taloserrors.ErrInvalidArgument{Subsystem: "results", Name: "result", Value: result, Message: "not provided"})
	}
	if len(t.Results) > 0 {
		if result.Format != t.Format {
			return errors.Errorf("results: conflicting formats for results of test %s: %s and %s", t.Name(), t.Format, result.Format)
		}
	} else {
		t.Format = result.Format
	}
	t.Results = append(t.Results, result)
	if counters != nil {
		t.Counters = append(t.Counters, counters)
	}
	return nil
}

// Pipeline returns the filters to apply to this test: its own filters if it has any, otherwise the run-level ones.
func (t *Test) Pipeline(runLevel filter.Pipeline) (filter.Pipeline, error) {
	if len(t.Config.Filters) == 0 {
		return runLevel, nil
	}
	p, err := filter.Parse(t.Config.Filters...)
	if err != nil {
		return nil, errors.WithMessagef(err, "test %s", t.Name())
	}
	return p, nil
}

// Values returns the filtered values of every cycle, in cycle order.
func (t *Test) Values(runLevel filter.Pipeline) ([]Value, error) {
	pipeline, err := t.Pipeline(runLevel)
	if err != nil {
		return nil, err
	}
	var values []Value
	for _, r := range t.Results {
		v, err := r.Values(pipeline)
		if err != nil {
			return nil, errors.WithMessagef(err, "test %s", t.Name())
		}
		values = append(values, v...)
	}
	return values, nil
}

// BrowserConfig describes the browser build under test.
// A nil field is missing; an empty string is a present but empty value.
type BrowserConfig struct {
	BrowserName    *string `mapstructure:"browser_name"`
	BrowserVersion *string `mapstructure:"browser_version"`
	BuildID        *string `mapstructure:"buildid"`
	BranchName     *string `mapstructure:"branch_name"`
	SourceStamp    *string `mapstructure:"sourcestamp"`
	AddonID        *string `mapstructure:"addon_id"`
	Process        *string `mapstructure:"process"`
}

// Lookup returns the value of a browser config key, using the keys of the talos configuration file.
func (c BrowserConfig) Lookup(key string) (string, bool) {
	var field *string
	switch key {
	case "browser_name":
		field = c.BrowserName
	case "browser_version":
		field = c.BrowserVersion
	case "buildid":
		field = c.BuildID
	case "branch_name":
		field = c.BranchName
	case "sourcestamp":
		field = c.SourceStamp
	case "addon_id":
		field = c.AddonID
	case "process":
		field = c.Process
	}
	if field == nil {
		return "", false
	}
	return *field, true
}

// Missing returns the keys, out of the given ones, that aren't set. Order follows keys.
func (c BrowserConfig) Missing(keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if _, ok := c.Lookup(key); !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// ResultSet is everything produced by one talos run.
type ResultSet struct {
	Title string
	// Unix time (seconds) at which the run started.
	Date    int64
	Browser BrowserConfig
	// Filters applied to every test that doesn't configure its own.
	Filters filter.Pipeline
	// Appended to the name of tpformat tests, e.g., "_nochrome".
	TestNameExtension string
	// Report add-on install results only.
	AMO bool
	// Set when the browser ran on a remote (mobile) device.
	Remote bool
	Tests  []*Test
}

func (rs *ResultSet) Add(test *Test) {
	rs.Tests = append(rs.Tests, test)
}

// DateString returns the run date as reported to results servers.
func (rs *ResultSet) DateString() string {
	return strconv.FormatInt(rs.Date, 10)
}

// ReportName returns the name under which a test (or one of its counters) is reported.
// The test name extension is only appended for tpformat tests.
func (rs *ResultSet) ReportName(test *Test, suffix ...string) string {
	name := strings.Join(append([]string{test.Name()}, suffix...), "_")
	if test.Format == TpFormat {
		name += rs.TestNameExtension
	}
	return name
}
