package talos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"
	"k8s.io/utils/pointer"
	"sigs.k8s.io/yaml"

	"github.com/talos-perf/talos/internal/common/taloserrors"
	"github.com/talos-perf/talos/internal/talos/configuration"
	"github.com/talos-perf/talos/internal/talos/filter"
	"github.com/talos-perf/talos/internal/talos/output"
	"github.com/talos-perf/talos/internal/talos/results"
	"github.com/talos-perf/talos/internal/talos/summary"
	"github.com/talos-perf/talos/internal/talos/transport"
)

const timestamps = `
__startTimestamp1333540000000__endTimestamp
__startBeforeLaunchTimestamp1333539990000__endBeforeLaunchTimestamp
__startAfterTerminationTimestamp1333540002500__endAfterTerminationTimestamp
`

const tsLog = `browser starting
RSS: Main: 1024
MOZ_EVENT_TRACE sample 1333540000100 45
__start_report562.0|510.0|498.0__end_report
RSS: Main: 4096
` + timestamps

const tpLog = `__start_tp_report
_x_x_mozilla_page_load
_x_x_mozilla_page_load_details
|i|pagename|runs|
|0;www.example.com/index.html;100;200;300
|1;www.mozilla.org/;50;60;70
__end_tp_report
` + timestamps

// The run date used when none is configured.
var now = time.Unix(1333540800, 0)

func writeLog(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func testApp(t *testing.T) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	app := &App{
		Params: &Params{Config: configuration.TalosConfig{
			Title: "qm-pxp02",
			BrowserConfig: results.BrowserConfig{
				BrowserName:    pointer.String("Firefox"),
				BrowserVersion: pointer.String("14.0a1"),
				BuildID:        pointer.String("20120404030502"),
				BranchName:     pointer.String("mozilla-central"),
				SourceStamp:    pointer.String("a1b2c3d4"),
			},
			Filters: filter.MustParse("ignore_max", "mean"),
			Tests: []results.TestConfig{
				{Name: "ts", Options: map[string]interface{}{"counters": []interface{}{"Main_RSS"}, "shutdown": true}},
			},
			Transport:    transport.Config{RetryAttempts: 2, RetryBackoff: time.Millisecond, Timeout: 5 * time.Second},
			FallbackFile: filepath.Join(t.TempDir(), "results.out"),
		}},
		Out:   &out,
		Clock: clocktesting.NewFakeClock(now),
		Machine: func() output.MachineInfo {
			return output.MachineInfo{OS: "linux", OSVersion: "Ubuntu 12.04", Processor: "x86_64"}
		},
	}
	return app, &out
}

func TestVersion(t *testing.T) {
	app, out := testApp(t)
	require.NoError(t, app.Version())
	assert.Contains(t, out.String(), "Version:")
	assert.Contains(t, out.String(), "Go version:")
}

func TestResultSet(t *testing.T) {
	app, _ := testApp(t)
	dir := t.TempDir()
	rs, err := app.ResultSet(writeLog(t, dir, "ts.log", tsLog), writeLog(t, dir, "tp5.log", tpLog))
	require.NoError(t, err)

	assert.Equal(t, "qm-pxp02", rs.Title)
	assert.Equal(t, now.Unix(), rs.Date)
	require.Len(t, rs.Tests, 2)

	ts := rs.Tests[0]
	assert.Equal(t, "ts", ts.Name())
	assert.Equal(t, results.TsFormat, ts.Format)
	assert.Equal(t, []results.CounterResults{{"Main_RSS": {1024, 4096}, "shutdown": {2500}}}, ts.Counters)

	tp5 := rs.Tests[1]
	assert.Equal(t, "tp5", tp5.Name())
	assert.Equal(t, results.TpFormat, tp5.Format)
	assert.Nil(t, tp5.Counters)
}

func TestResultSet_GroupsLogsByTestName(t *testing.T) {
	app, _ := testApp(t)
	app.Params.Config.TestName = "ts"
	app.Params.Config.Date = 1333000000
	dir := t.TempDir()
	rs, err := app.ResultSet(writeLog(t, dir, "cycle1.log", tsLog), writeLog(t, dir, "cycle2.log", tsLog))
	require.NoError(t, err)

	assert.Equal(t, int64(1333000000), rs.Date)
	require.Len(t, rs.Tests, 1)
	assert.Len(t, rs.Tests[0].Results, 2)
	assert.Len(t, rs.Tests[0].Counters, 2)
}

func TestResultSet_ConflictingFormats(t *testing.T) {
	app, _ := testApp(t)
	app.Params.Config.TestName = "ts"
	dir := t.TempDir()
	_, err := app.ResultSet(writeLog(t, dir, "ts.log", tsLog), writeLog(t, dir, "tp5.log", tpLog))
	assert.Error(t, err)
}

func TestResultSet_BrowserFailure(t *testing.T) {
	app, _ := testApp(t)
	path := writeLog(t, t.TempDir(), "ts.log", "__FAILbrowser crashed__FAIL\n"+tsLog)
	_, err := app.ResultSet(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser crashed")
	assert.Contains(t, err.Error(), path)
}

func TestReport_File(t *testing.T) {
	app, out := testApp(t)
	dir := t.TempDir()
	resultsFile := filepath.Join(dir, "graphserver.txt")
	app.Params.Config.ResultsURLs = []string{"file://" + resultsFile}
	app.Params.Config.SummaryFile = filepath.Join(dir, "summary.yaml")
	app.Params.Config.MetricsFile = filepath.Join(dir, "talos.prom")

	err := app.Report(context.Background(), writeLog(t, dir, "ts.log", tsLog))
	require.NoError(t, err)

	data, err := os.ReadFile(resultsFile)
	require.NoError(t, err)
	assert.Equal(t,
		"START\nVALUES\nqm-pxp02,ts,mozilla-central,a1b2c3d4,20120404030502,1333540800\n0,504.00,NULL\nEND\n"+
			"START\nVALUES\nqm-pxp02,ts_main_rss,mozilla-central,a1b2c3d4,20120404030502,1333540800\n0,1024.00,NULL\n1,4096.00,NULL\nEND\n"+
			"START\nVALUES\nqm-pxp02,ts_shutdown,mozilla-central,a1b2c3d4,20120404030502,1333540800\n0,2500.00,NULL\nEND\n",
		string(data))

	assert.Contains(t, out.String(), "Summary of qm-pxp02:")
	assert.NotContains(t, out.String(), "FAIL")

	data, err = os.ReadFile(app.Params.Config.SummaryFile)
	require.NoError(t, err)
	var report summary.Report
	require.NoError(t, yaml.Unmarshal(data, &report))
	require.Len(t, report.Tests, 1)
	assert.Equal(t, []float64{504}, report.Tests[0].Values)

	data, err = os.ReadFile(app.Params.Config.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `talos_payloads_sent_total{format="results_urls",sink="file"} 3`)
	assert.Contains(t, string(data), `talos_log_messages_total{level="info"}`)
}

func TestReport_Http(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("filename")
		if !assert.NoError(t, err) {
			return
		}
		data, err := io.ReadAll(file)
		assert.NoError(t, err)
		e, err := output.ParseEnvelope(data)
		if !assert.NoError(t, err) {
			return
		}
		fmt.Fprintf(w, "RETURN\t%s\tgraph.html#%s\n", e.Metadata[1], e.Metadata[1])
	}))
	defer server.Close()

	app, out := testApp(t)
	app.Params.Config.Tests = nil
	app.Params.Config.ResultsURLs = []string{server.URL + "/server/bulk.cgi"}
	dir := t.TempDir()

	err := app.Report(context.Background(), writeLog(t, dir, "ts.log", tsLog))
	require.NoError(t, err)

	host := strings.TrimPrefix(server.URL, "http://")
	assert.Contains(t, out.String(), fmt.Sprintf("| <a href='http://%s/graph.html#ts'>ts</a> ", host))
}

func TestReport_FailureWritesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	app, out := testApp(t)
	app.Params.Config.ResultsURLs = []string{server.URL}
	dir := t.TempDir()

	err := app.Report(context.Background(), writeLog(t, dir, "ts.log", tsLog))
	var e *taloserrors.ErrRetriesExhausted
	require.True(t, errors.As(err, &e), "%v", err)
	assert.Equal(t, 1, taloserrors.ExitCode(err))
	assert.Contains(t, out.String(), "\nFAIL: ")

	data, err := os.ReadFile(app.Params.Config.FallbackFile)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "START\nVALUES\nqm-pxp02,ts,"))
}

func TestReport_MissingMetadata(t *testing.T) {
	app, out := testApp(t)
	app.Params.Config.BrowserConfig.SourceStamp = nil
	app.Params.Config.BrowserConfig.BuildID = nil
	app.Params.Config.ResultsURLs = []string{"file://" + filepath.Join(t.TempDir(), "graphserver.txt")}

	err := app.Report(context.Background(), writeLog(t, t.TempDir(), "ts.log", tsLog))
	var e *taloserrors.ErrConfiguration
	require.True(t, errors.As(err, &e), "%v", err)
	assert.Equal(t, []string{"sourcestamp", "buildid"}, e.Keys)
	assert.Equal(t, 2, taloserrors.ExitCode(err))
	assert.Contains(t, out.String(), "FAIL: ")
}

func TestReport_NoLogs(t *testing.T) {
	app, _ := testApp(t)
	err := app.Report(context.Background())
	assert.Equal(t, 2, taloserrors.ExitCode(err))
}

func TestDestinations(t *testing.T) {
	app, _ := testApp(t)
	assert.Equal(t, output.Destinations{output.ResultsURLs: {"file://results.out"}}, app.Destinations())

	app.Params.Config.DatazillaURLs = []string{"https://datazilla.example.com/talos"}
	assert.Equal(t, output.Destinations{output.DatazillaURLs: {"https://datazilla.example.com/talos"}}, app.Destinations())
}

func TestCheck(t *testing.T) {
	app, out := testApp(t)
	app.Params.Config.ResultsURLs = []string{"http://graphs.example.com/server/collect.cgi"}
	require.NoError(t, app.Check())
	assert.Contains(t, out.String(), "configuration ok")
	assert.NotContains(t, out.String(), "available filters")

	app.Params.Config.Tests = append(app.Params.Config.Tests, results.TestConfig{Name: "tp5", Filters: []string{"trimmed_mean"}})
	app.Params.Config.ResultsURLs = []string{"gopher://graphs.example.com"}
	err := app.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tp5")
	assert.Contains(t, err.Error(), "gopher://graphs.example.com")
	assert.Equal(t, 2, taloserrors.ExitCode(err))
	assert.Contains(t, out.String(), "available filters: geometric_mean, ignore_first, ignore_max, ignore_min, mean, median, stddev, variance\n")
}
