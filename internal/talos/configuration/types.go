package configuration

import (
	"github.com/talos-perf/talos/internal/talos/filter"
	"github.com/talos-perf/talos/internal/talos/results"
	"github.com/talos-perf/talos/internal/talos/transport"
)

// TalosConfig is the configuration of a reporting run, read from the --config file and command line flags.
type TalosConfig struct {
	// Name of the test machine, reported as the title of every result.
	Title string `validate:"required"`
	// Unix time of the run. Defaults to now.
	Date int64 `validate:"gte=0"`
	// Name of the test the browser logs belong to. Defaults to the name of each log file.
	TestName          string                `mapstructure:"testname"`
	BrowserConfig     results.BrowserConfig `mapstructure:"browser_config"`
	Filters           filter.Pipeline
	TestNameExtension string `mapstructure:"test_name_extension"`
	AMO               bool   `mapstructure:"amo"`
	Remote            bool
	// Per-test settings, matched by name.
	Tests         []results.TestConfig `validate:"dive"`
	ResultsURLs   []string             `mapstructure:"results_urls"`
	DatazillaURLs []string             `mapstructure:"datazilla_urls"`
	Transport     transport.Config
	// Graphserver payloads are written here if reporting fails.
	FallbackFile string `mapstructure:"fallbackFile"`
	// If set, post metrics are written here in the prometheus text format.
	MetricsFile string `mapstructure:"metricsFile"`
	// Format of the summary written to SummaryFile.
	SummaryFormat string `mapstructure:"summaryFormat" validate:"omitempty,oneof=yaml json"`
	SummaryFile   string `mapstructure:"summaryFile"`
}

// TestConfig returns the settings of the test with the given name, or a config with just the name.
func (c *TalosConfig) TestConfig(name string) results.TestConfig {
	for _, test := range c.Tests {
		if test.Name == name {
			return test
		}
	}
	return results.TestConfig{Name: name}
}
