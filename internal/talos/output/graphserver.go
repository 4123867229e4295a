package output

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/talos-perf/talos/internal/common/taloserrors"
	"github.com/talos-perf/talos/internal/talos/metrics"
	"github.com/talos-perf/talos/internal/talos/results"
	"github.com/talos-perf/talos/internal/talos/transport"
)

var (
	infoFields = []string{"title", "testname", "branch_name", "sourcestamp", "buildid", "date"}
	amoFields  = []string{"browser_name", "browser_version", "addon_id"}
	// Metadata keys that come from the run rather than the browser config.
	runKeys = []string{"title", "testname", "date"}
)

// Graphserver reports results in the graphserver text format: one payload per test and one per counter.
// Use NewLegacyText or NewAddonOnly to create one.
type Graphserver struct {
	client  *transport.Client
	metrics *metrics.Metrics
	// Kind and metadata of payloads other than responsiveness ones.
	kind   Kind
	fields []string
	render func(w io.Writer, ack *Acknowledgement, server string) error
}

// NewLegacyText returns the variant reporting VALUES payloads and rendering the links returned by the server.
func NewLegacyText(client *transport.Client, m *metrics.Metrics) *Graphserver {
	return &Graphserver{
		client:  client,
		metrics: m,
		kind:    Values,
		fields:  infoFields,
		render:  RenderLinks,
	}
}

// NewAddonOnly returns the variant reporting add-on install results as AMO payloads,
// described by the browser and add-on rather than the build.
func NewAddonOnly(client *transport.Client, m *metrics.Metrics) *Graphserver {
	return &Graphserver{
		client:  client,
		metrics: m,
		kind:    AMO,
		fields:  amoFields,
		render:  RenderAddon,
	}
}

func (g *Graphserver) Encode(rs *results.ResultSet) ([]transport.Payload, error) {
	var payloads []transport.Payload
	for _, test := range rs.Tests {
		testname := rs.ReportName(test)
		log.Infof("Generating results file: %s: Started", testname)
		values, err := test.Values(rs.Filters)
		if err != nil {
			return nil, errors.WithMessage(err, "output")
		}
		data, err := g.envelope(rs, testname, values)
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, transport.Payload{Name: testname, Data: data})

		for _, counters := range test.Counters {
			names := maps.Keys(counters)
			slices.Sort(names)
			for _, counter := range names {
				samples := counters[counter]
				countername := rs.ReportName(test, ShortName(counter))
				if len(samples) == 0 {
					log.WithField("counter", countername).Error("no results collected")
					g.metrics.PayloadsSkipped.WithLabelValues("no_samples").Inc()
					continue
				}
				values := make([]results.Value, len(samples))
				for i, sample := range samples {
					values[i] = results.Value{Value: sample, Page: "NULL"}
				}
				data, err := g.envelope(rs, countername, values)
				if err != nil {
					return nil, err
				}
				payloads = append(payloads, transport.Payload{Name: countername, Data: data})
			}
		}
		log.Infof("Generating results file: %s: Stopped", testname)
	}
	return payloads, nil
}

func (g *Graphserver) envelope(rs *results.ResultSet, testname string, values []results.Value) ([]byte, error) {
	kind, fields := g.kind, g.fields
	if IsResponsivenessTest(testname) {
		kind, fields = Average, infoFields
	}
	metadata, err := Metadata(rs, testname, fields...)
	if err != nil {
		return nil, err
	}
	e := Envelope{Kind: kind, Metadata: metadata}
	if kind == Average {
		raw := make([]float64, len(values))
		for i, v := range values {
			raw[i] = v.Value
		}
		e.Lines = []string{fmt.Sprint(ResponsivenessMetric(raw))}
	} else {
		for i, v := range values {
			e.Lines = append(e.Lines, fmt.Sprintf("%d,%.2f,%s", i, v.Value, v.Page))
		}
	}
	return e.Encode(), nil
}

// Post sends the payloads and parses the concatenated replies.
// An http(s) results server that acknowledges none of the payloads has rejected them.
func (g *Graphserver) Post(ctx context.Context, payloads []transport.Payload, destination string) (*Acknowledgement, error) {
	response, err := g.client.Send(ctx, payloads, destination)
	if err != nil {
		return nil, err
	}
	sink := sinkOf(destination)
	g.metrics.PayloadsSent.WithLabelValues(ResultsURLs, sink).Add(float64(len(payloads)))
	ack, err := ParseAcknowledgement(response)
	if err != nil {
		return nil, err
	}
	if sink == "http" && ack.Empty() {
		return nil, errors.WithStack(&taloserrors.ErrServerRejected{Response: response})
	}
	return ack, nil
}

func (g *Graphserver) Render(w io.Writer, ack *Acknowledgement, destination string) error {
	if ack.Empty() {
		return nil
	}
	u, err := url.Parse(destination)
	if err != nil {
		return errors.WithStack(err)
	}
	return g.render(w, ack, u.Host)
}

// Metadata returns the values of the given metadata keys, in order.
// Every key missing from the browser config is listed in the returned ErrConfiguration.
func Metadata(rs *results.ResultSet, testname string, keys ...string) ([]string, error) {
	var browserKeys []string
	for _, key := range keys {
		if !slices.Contains(runKeys, key) {
			browserKeys = append(browserKeys, key)
		}
	}
	if missing := rs.Browser.Missing(browserKeys...); len(missing) > 0 {
		return nil, errors.WithStack(&taloserrors.ErrConfiguration{
			Subsystem: "output",
			Reason:    "missing keys",
			Keys:      missing,
		})
	}
	values := make([]string, len(keys))
	for i, key := range keys {
		switch key {
		case "title":
			values[i] = rs.Title
		case "testname":
			values[i] = testname
		case "date":
			values[i] = rs.DateString()
		default:
			values[i], _ = rs.Browser.Lookup(key)
		}
	}
	return values, nil
}

// sinkOf returns the metrics label of the sink a destination refers to.
func sinkOf(destination string) string {
	u, err := url.Parse(destination)
	if err != nil {
		return "unknown"
	}
	switch u.Scheme {
	case "http", "https":
		return "http"
	default:
		return u.Scheme
	}
}
