// Package output turns a ResultSet into the payloads understood by results servers and delivers them.
//
// Two output formats are supported, named after the configuration key listing their destinations:
// results_urls (graphserver text, see Graphserver) and datazilla_urls (JSON documents, see Datazilla).
// The Dispatcher picks the variant to use for each format and reports where results went.
package output

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/talos-perf/talos/internal/common/logging"
	"github.com/talos-perf/talos/internal/common/taloserrors"
	"github.com/talos-perf/talos/internal/talos/metrics"
	"github.com/talos-perf/talos/internal/talos/results"
	"github.com/talos-perf/talos/internal/talos/transport"
)

const (
	ResultsURLs   = "results_urls"
	DatazillaURLs = "datazilla_urls"
)

// Formats lists the known output formats, in the order results are output.
var Formats = []string{ResultsURLs, DatazillaURLs}

// Variant is one way of reporting a ResultSet.
type Variant interface {
	// Encode returns the payloads to send for the ResultSet.
	Encode(rs *results.ResultSet) ([]transport.Payload, error)
	// Post delivers the payloads to a single destination.
	Post(ctx context.Context, payloads []transport.Payload, destination string) (*Acknowledgement, error)
	// Render prints the acknowledgement returned by Post.
	Render(w io.Writer, ack *Acknowledgement, destination string) error
}

// Destinations maps an output format to the urls results are sent to in that format.
type Destinations map[string][]string

type Dispatcher struct {
	client  *transport.Client
	metrics *metrics.Metrics
	out     io.Writer
	// Machine description for datazilla documents. Defaults to HostMachineInfo.
	Machine func() MachineInfo
	// If output fails, graphserver payloads are written to this file. Empty disables the fallback.
	FallbackFile string
}

func NewDispatcher(client *transport.Client, m *metrics.Metrics, out io.Writer) *Dispatcher {
	if m == nil {
		m = metrics.New()
	}
	return &Dispatcher{
		client:       client,
		metrics:      m,
		out:          out,
		FallbackFile: "results.out",
	}
}

// Variant returns the variant used to output rs in the given format.
func (d *Dispatcher) Variant(format string, rs *results.ResultSet) (Variant, error) {
	switch format {
	case ResultsURLs:
		if rs.AMO {
			return NewAddonOnly(d.client, d.metrics), nil
		}
		return NewLegacyText(d.client, d.metrics), nil
	case DatazillaURLs:
		return NewDatazilla(d.client, d.metrics, d.Machine), nil
	default:
		return nil, errors.WithStack(&taloserrors.ErrConfiguration{
			Subsystem: "output",
			Reason:    "unknown output formats",
			Keys:      []string{format},
		})
	}
}

// Check returns an error naming every unknown format, or if any graphserver destination is invalid.
// It doesn't contact any destination.
func (d *Dispatcher) Check(destinations Destinations) error {
	var unknown []string
	formats := maps.Keys(destinations)
	slices.Sort(formats)
	for _, format := range formats {
		if !slices.Contains(Formats, format) {
			unknown = append(unknown, format)
		}
	}
	if len(unknown) > 0 {
		return errors.WithStack(&taloserrors.ErrConfiguration{
			Subsystem: "output",
			Reason:    "unknown output formats",
			Keys:      unknown,
		})
	}
	return transport.CheckLinks(destinations[ResultsURLs]...)
}

// Output sends rs to every destination and prints the acknowledgements.
//
// On failure, the graphserver payloads are written to the fallback file on a best-effort basis
// and a FAIL line is printed before the error is returned.
func (d *Dispatcher) Output(ctx context.Context, rs *results.ResultSet, destinations Destinations) error {
	log.Debugf("outputting talos results => %v", destinations)
	err := d.output(ctx, rs, destinations)
	if err == nil {
		return nil
	}
	logging.WithError(log.NewEntry(log.StandardLogger()), err).Error("output failed")
	d.fallback(ctx, rs)
	fmt.Fprintf(d.out, "\nFAIL: %s\n", strings.ReplaceAll(err.Error(), "\n", "\nRETURN:"))
	return err
}

// encoded holds the payloads of one output format, ready to post.
type encoded struct {
	variant      Variant
	payloads     []transport.Payload
	destinations []string
}

// output encodes every format before posting anything,
// so that configuration errors are reported before any destination is contacted.
func (d *Dispatcher) output(ctx context.Context, rs *results.ResultSet, destinations Destinations) error {
	if err := d.Check(destinations); err != nil {
		return err
	}
	if err := checkFilters(rs); err != nil {
		return err
	}
	var batches []encoded
	for _, format := range Formats {
		urls := destinations[format]
		if len(urls) == 0 {
			continue
		}
		variant, err := d.Variant(format, rs)
		if err != nil {
			return err
		}
		payloads, err := variant.Encode(rs)
		if err != nil {
			return err
		}
		batches = append(batches, encoded{variant: variant, payloads: payloads, destinations: urls})
	}
	for _, batch := range batches {
		for _, destination := range batch.destinations {
			ack, err := batch.variant.Post(ctx, batch.payloads, destination)
			if err != nil {
				return err
			}
			if err := batch.variant.Render(d.out, ack, destination); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkFilters resolves the filters of every test. Unknown filters of all tests are named in one error.
func checkFilters(rs *results.ResultSet) error {
	var unknown []string
	var result *multierror.Error
	for _, test := range rs.Tests {
		_, err := test.Pipeline(rs.Filters)
		var e *taloserrors.ErrConfiguration
		switch {
		case err == nil:
		case errors.As(err, &e):
			for _, name := range e.Keys {
				unknown = append(unknown, fmt.Sprintf("%s (%s)", name, test.Name()))
			}
		default:
			result = multierror.Append(result, err)
		}
	}
	if len(unknown) > 0 {
		return errors.WithStack(&taloserrors.ErrConfiguration{
			Subsystem: "filter",
			Reason:    "unknown filters",
			Keys:      unknown,
		})
	}
	return result.ErrorOrNil()
}

func (d *Dispatcher) fallback(ctx context.Context, rs *results.ResultSet) {
	if d.FallbackFile == "" {
		return
	}
	path, err := filepath.Abs(d.FallbackFile)
	if err != nil {
		log.WithError(err).Warn("unable to resolve the fallback results file")
		return
	}
	variant, err := d.Variant(ResultsURLs, rs)
	if err != nil {
		return
	}
	payloads, err := variant.Encode(rs)
	if err != nil {
		log.WithError(err).Warn("unable to generate fallback results")
		return
	}
	if _, err := d.client.Send(ctx, payloads, "file://"+path); err != nil {
		log.WithError(err).WithField("path", path).Warn("unable to write fallback results")
		return
	}
	log.WithField("path", path).Info("wrote results to fallback file")
}
