package talos

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"k8s.io/utils/clock"

	"github.com/talos-perf/talos/internal/common/logging"
	"github.com/talos-perf/talos/internal/common/taloserrors"
	"github.com/talos-perf/talos/internal/talos/browserlog"
	"github.com/talos-perf/talos/internal/talos/build"
	"github.com/talos-perf/talos/internal/talos/configuration"
	"github.com/talos-perf/talos/internal/talos/filter"
	"github.com/talos-perf/talos/internal/talos/metrics"
	"github.com/talos-perf/talos/internal/talos/output"
	"github.com/talos-perf/talos/internal/talos/results"
	"github.com/talos-perf/talos/internal/talos/summary"
	"github.com/talos-perf/talos/internal/talos/transport"
)

type App struct {
	// Parameters passed to the CLI by the user.
	Params *Params
	// Out is used to write the output. Defaults to standard out,
	// but can be overridden in tests to make assertions on the applications's output.
	Out io.Writer
	// Source of the run date when none is configured.
	Clock clock.Clock
	// Machine description for datazilla documents. Nil means the host running the command.
	Machine func() output.MachineInfo
}

// Params struct holds all user-customizable parameters.
// Every parameter can be set in the --config file, and some also with command line flags.
type Params struct {
	Config configuration.TalosConfig
}

// New instantiates an App with default parameters, including standard output and the real clock.
func New() *App {
	return &App{
		Params: &Params{},
		Out:    os.Stdout,
		Clock:  clock.RealClock{},
	}
}

// Version prints build information (e.g., current git commit) to the app output.
func (a *App) Version() error {
	w := tabwriter.NewWriter(a.Out, 1, 1, 1, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "Version:\t%s\n", build.ReleaseVersion)
	fmt.Fprintf(w, "Commit:\t%s\n", build.GitCommit)
	fmt.Fprintf(w, "Go version:\t%s\n", build.GoVersion)
	fmt.Fprintf(w, "Built:\t%s\n", build.BuildTime)
	return nil
}

// Destinations returns the configured urls per output format.
// If no url is configured at all, results are written to results.out in the working directory.
func (a *App) Destinations() output.Destinations {
	config := &a.Params.Config
	if len(config.ResultsURLs) == 0 && len(config.DatazillaURLs) == 0 {
		return output.Destinations{output.ResultsURLs: {"file://" + configuration.DefaultFallbackFile}}
	}
	destinations := output.Destinations{}
	if len(config.ResultsURLs) > 0 {
		destinations[output.ResultsURLs] = config.ResultsURLs
	}
	if len(config.DatazillaURLs) > 0 {
		destinations[output.DatazillaURLs] = config.DatazillaURLs
	}
	return destinations
}

// Check validates the configured filters and destinations without reading any log or contacting any server.
// If a filter is invalid, the names of the available filters are printed.
func (a *App) Check() error {
	var result *multierror.Error
	for _, test := range a.Params.Config.Tests {
		if _, err := filter.Parse(test.Filters...); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "test %s", test.Name))
		}
	}
	if result.ErrorOrNil() != nil {
		fmt.Fprintf(a.Out, "available filters: %s\n", strings.Join(filter.Names(), ", "))
	}
	if err := a.dispatcher(metrics.New()).Check(a.Destinations()); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "configuration ok: %v\n", a.Destinations())
	return nil
}

// Report reads the given browser logs, sends the results to every configured destination,
// and prints a summary of the reported values.
//
// Logs are grouped into tests by test name; each log of a test is one cycle.
func (a *App) Report(ctx context.Context, logs ...string) error {
	if len(logs) == 0 {
		return errors.WithStack(&taloserrors.ErrInvalidArgument{
			Subsystem: "report",
			Name:      "logs",
			Value:     logs,
			Message:   "no browser logs provided",
		})
	}
	rs, err := a.ResultSet(logs...)
	if err != nil {
		return err
	}

	m := metrics.New()
	restoreHooks := logging.WithHook(log.StandardLogger(), logging.NewPrometheusHook(m.LogMessages))
	err = a.dispatcher(m).Output(ctx, rs, a.Destinations())
	restoreHooks()
	if metricsErr := a.writeMetrics(m); metricsErr != nil {
		log.WithError(metricsErr).Warn("unable to write metrics file")
	}
	if err != nil {
		return err
	}
	return a.summarize(rs)
}

// ResultSet builds the result set of the run from the given browser logs.
func (a *App) ResultSet(logs ...string) (*results.ResultSet, error) {
	config := &a.Params.Config
	rs := &results.ResultSet{
		Title:             config.Title,
		Date:              config.Date,
		Browser:           config.BrowserConfig,
		Filters:           config.Filters,
		TestNameExtension: config.TestNameExtension,
		AMO:               config.AMO,
		Remote:            config.Remote,
	}
	if rs.Date == 0 {
		rs.Date = a.Clock.Now().Unix()
	}

	tests := make(map[string]*results.Test)
	for _, path := range logs {
		name := config.TestName
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		test, ok := tests[name]
		if !ok {
			test = newTest(config.TestConfig(name))
			tests[name] = test
			rs.Add(test)
		}
		if err := addLog(test, path); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// newTest creates a test from its config. Test options used when reading logs:
// counters (names of the per-process counters to record, e.g., Main_RSS),
// shutdown and responsiveness (record these global counters), and
// extensions (ids of the extensions installed for the test).
func newTest(config results.TestConfig) *results.Test {
	test := results.NewTest(config)
	if extensions, ok := config.Options["extensions"]; ok {
		test.Extensions = cast.ToStringSlice(extensions)
	}
	return test
}

func addLog(test *results.Test, path string) error {
	l, err := browserlog.ReadFile(path)
	if err != nil {
		return err
	}
	result, err := l.Result()
	if err != nil {
		return err
	}

	counters := results.CounterResults{}
	for _, name := range cast.ToStringSlice(test.Config.Options["counters"]) {
		counters[name] = nil
	}
	globals := results.CounterResults{}
	for _, name := range []string{"shutdown", "responsiveness"} {
		if cast.ToBool(test.Config.Options[name]) {
			globals[name] = nil
		}
	}
	l.Counters(counters, globals)
	for name, samples := range globals {
		counters[name] = samples
	}
	if len(counters) == 0 {
		counters = nil
	}

	log.WithField("test", test.Name()).Debugf("read %s results from %s", result.Format, path)
	return test.Add(result, counters)
}

func (a *App) dispatcher(m *metrics.Metrics) *output.Dispatcher {
	config := &a.Params.Config
	d := output.NewDispatcher(transport.NewClient(config.Transport, m), m, a.Out)
	d.Machine = a.Machine
	d.FallbackFile = config.FallbackFile
	return d
}

func (a *App) summarize(rs *results.ResultSet) error {
	config := &a.Params.Config
	report, err := summary.New(rs)
	if err != nil {
		return err
	}
	report.Print(a.Out)
	if config.SummaryFile == "" {
		return nil
	}
	data, err := report.Generate(summary.Formatters[config.SummaryFormat])
	if err != nil {
		return err
	}
	return errors.WithStack(os.WriteFile(config.SummaryFile, data, 0o644))
}

func (a *App) writeMetrics(m *metrics.Metrics) error {
	if a.Params.Config.MetricsFile == "" {
		return nil
	}
	return m.WriteToTextfile(a.Params.Config.MetricsFile)
}
