package output

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"runtime"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/host"
	log "github.com/sirupsen/logrus"

	"github.com/talos-perf/talos/internal/common/taloserrors"
	"github.com/talos-perf/talos/internal/talos/metrics"
	"github.com/talos-perf/talos/internal/talos/results"
	"github.com/talos-perf/talos/internal/talos/transport"
)

// Test options reported in the testrun section.
var datazillaOptions = []string{
	"rss",
	"tpchrome",
	"tpmozafterpaint",
	"tpcycles",
	"tppagecycles",
	"tprender",
	"tpdelay",
	"responsiveness",
	"shutdown",
}

// DatazillaDocument is the JSON document posted for each test.
type DatazillaDocument struct {
	TestMachine Machine              `json:"test_machine"`
	TestBuild   Build                `json:"test_build"`
	TestRun     TestRun              `json:"testrun"`
	Results     map[string][]float64 `json:"results"`
	ResultsAux  map[string][]float64 `json:"results_aux"`
}

type Machine struct {
	Name      string `json:"name"`
	OS        string `json:"os"`
	OSVersion string `json:"osversion"`
	Platform  string `json:"platform"`
}

type Build struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Revision string `json:"revision"`
	Branch   string `json:"branch"`
	ID       string `json:"id"`
}

type TestRun struct {
	Date    int64                  `json:"date"`
	Suite   string                 `json:"suite"`
	Options map[string]interface{} `json:"options"`
}

// MachineInfo describes the machine the browser ran on.
type MachineInfo struct {
	OS        string
	OSVersion string
	Processor string
}

// Remote runs are reported as this device.
var remoteMachine = MachineInfo{OS: "Android", OSVersion: "4.0.3", Processor: "arm"}

// HostMachineInfo describes the machine talos is running on.
func HostMachineInfo() MachineInfo {
	info := MachineInfo{OS: runtime.GOOS, Processor: runtime.GOARCH}
	switch runtime.GOOS {
	case "windows":
		info.OS = "win"
	case "darwin":
		info.OS = "mac"
	}
	switch runtime.GOARCH {
	case "amd64":
		info.Processor = "x86_64"
	case "386":
		info.Processor = "x86"
	case "arm", "arm64":
		info.Processor = "arm"
	}
	platform, _, version, err := host.PlatformInformation()
	if err != nil {
		log.WithError(err).Warn("unable to determine os version")
		return info
	}
	switch info.OS {
	case "linux":
		info.OSVersion = platform + " " + version
	case "mac":
		info.OSVersion = "OS X " + version
	default:
		info.OSVersion = version
	}
	return info
}

// Datazilla reports the raw values of each test as a JSON document.
// Posting is best-effort: failures to reach an http(s) destination are logged and otherwise ignored.
type Datazilla struct {
	client  *transport.Client
	metrics *metrics.Metrics
	machine func() MachineInfo
}

// NewDatazilla returns the datazilla variant. machine is only called for runs that aren't remote;
// if nil, HostMachineInfo is used.
func NewDatazilla(client *transport.Client, m *metrics.Metrics, machine func() MachineInfo) *Datazilla {
	if machine == nil {
		machine = HostMachineInfo
	}
	return &Datazilla{client: client, metrics: m, machine: machine}
}

func (d *Datazilla) Encode(rs *results.ResultSet) ([]transport.Payload, error) {
	build, err := Metadata(rs, "", "browser_name", "browser_version", "sourcestamp", "branch_name", "buildid")
	if err != nil {
		return nil, err
	}
	info := remoteMachine
	if !rs.Remote {
		info = d.machine()
	}
	machine := Machine{Name: rs.Title, OS: info.OS, OSVersion: info.OSVersion, Platform: info.Processor}

	payloads := make([]transport.Payload, 0, len(rs.Tests))
	for _, test := range rs.Tests {
		doc := DatazillaDocument{
			TestMachine: machine,
			TestBuild:   Build{Name: build[0], Version: build[1], Revision: build[2], Branch: build[3], ID: build[4]},
			TestRun: TestRun{
				Date:    rs.Date,
				Suite:   "Talos " + test.Name(),
				Options: runOptions(test),
			},
			Results:    rawResults(test),
			ResultsAux: map[string][]float64{},
		}
		// A later sampling session replaces the samples of an earlier one.
		for _, counters := range test.Counters {
			for name, samples := range counters {
				doc.ResultsAux[ShortName(name)] = nonNil(samples)
			}
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "output: serializing %s", test.Name())
		}
		payloads = append(payloads, transport.Payload{Name: test.Name(), Data: data})
	}
	return payloads, nil
}

// rawResults returns the unfiltered values of a test: for tsformat tests, all runs under the test name;
// for tpformat tests, the runs of each page across all cycles.
func rawResults(test *results.Test) map[string][]float64 {
	raw := map[string][]float64{}
	if test.Format == results.TsFormat {
		values := []float64{}
		for _, result := range test.Results {
			for _, page := range result.RawValues() {
				values = append(values, page.Runs...)
			}
		}
		raw[test.Name()] = values
		return raw
	}
	for _, result := range test.Results {
		for _, page := range result.RawValues() {
			raw[page.Name] = append(nonNil(raw[page.Name]), page.Runs...)
		}
	}
	return raw
}

func runOptions(test *results.Test) map[string]interface{} {
	options := map[string]interface{}{}
	for _, option := range datazillaOptions {
		if v, ok := test.Config.Options[option]; ok {
			options[option] = v
		}
	}
	if test.Extensions != nil {
		extensions := make([]map[string]string, len(test.Extensions))
		for i, extension := range test.Extensions {
			extensions[i] = map[string]string{"name": extension}
		}
		options["extensions"] = extensions
	}
	return options
}

func nonNil(values []float64) []float64 {
	if values == nil {
		return []float64{}
	}
	return values
}

// Post writes the documents to file destinations or posts each as the urlencoded "data" field of a form.
func (d *Datazilla) Post(ctx context.Context, payloads []transport.Payload, destination string) (*Acknowledgement, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return nil, errors.WithStack(&taloserrors.ErrInvalidArgument{Subsystem: "output", Name: "destination", Value: destination, Message: err.Error()})
	}
	switch u.Scheme {
	case "file":
		if _, err := d.client.Send(ctx, payloads, destination); err != nil {
			return nil, err
		}
	case "http", "https":
		for _, payload := range payloads {
			if _, err := d.client.PostForm(ctx, destination, "data", payload.Data); err != nil {
				log.WithError(err).WithField("url", destination).Warn("was not able to post raw results to staging server")
				return &Acknowledgement{}, nil
			}
		}
		log.WithField("url", destination).Info("done posting raw results to staging server")
	default:
		return nil, errors.WithStack(&taloserrors.ErrUnsupportedDestination{Subsystem: "output", Url: destination})
	}
	d.metrics.PayloadsSent.WithLabelValues(DatazillaURLs, sinkOf(destination)).Add(float64(len(payloads)))
	return &Acknowledgement{}, nil
}

// Render is a no-op; datazilla replies aren't parsed.
func (d *Datazilla) Render(io.Writer, *Acknowledgement, string) error {
	return nil
}
