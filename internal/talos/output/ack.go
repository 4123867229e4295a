package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Lines of a results server response starting with this marker acknowledge a payload.
const ackMarker = "RETURN\t"

// Link is one acknowledged metric.
type Link struct {
	Label string
	// Nil for detail-only links.
	Value  *float64
	Detail string
}

// Valued returns true for links to be rendered as headline metrics.
func (l Link) Valued() bool {
	return l.Value != nil && *l.Value > -1
}

// Acknowledgement is the parsed reply of a results server.
// An empty acknowledgement means the payloads were accepted without any links to show.
type Acknowledgement struct {
	Links []Link
}

func (a *Acknowledgement) Empty() bool {
	return a == nil || len(a.Links) == 0
}

// Success returns true if the server answered with a lone "success" token (case-insensitive),
// which is how add-on results are acknowledged.
func (a *Acknowledgement) Success() bool {
	if a == nil {
		return false
	}
	for _, link := range a.Links {
		if strings.EqualFold(link.Label, "success") && link.Value == nil && link.Detail == "" {
			return true
		}
	}
	return false
}

// ParseAcknowledgement extracts the acknowledged links from a results server response.
// Acknowledgement lines have the form "RETURN\t<label>\t<detail>" or "RETURN\t<label>\t<value>\t<detail>".
// All other lines are ignored.
func ParseAcknowledgement(response string) (*Acknowledgement, error) {
	ack := &Acknowledgement{}
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimRight(line, "\r")
		log.Debugf("response line: %s", line)
		if !strings.HasPrefix(line, ackMarker) {
			continue
		}
		fields := strings.Split(strings.TrimPrefix(line, ackMarker), "\t")
		link := Link{Label: fields[0]}
		switch len(fields) {
		case 1:
		case 2:
			link.Detail = fields[1]
		default:
			value, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "output: malformed acknowledgement %q", line)
			}
			link.Value = &value
			link.Detail = fields[2]
		}
		ack.Links = append(ack.Links, link)
	}
	return ack, nil
}

// RenderLinks prints the links of an acknowledgement: valued links first, in order, then detail-only links.
// Memory metrics are printed as file sizes.
func RenderLinks(w io.Writer, ack *Acknowledgement, server string) error {
	var valued, details strings.Builder
	valued.WriteString("RETURN:<br>")
	for _, link := range ack.Links {
		url := fmt.Sprintf("http://%s/%s", server, link.Detail)
		if link.Valued() {
			label := link.Label + ": " + formatValue(link.Label, *link.Value)
			fmt.Fprintf(&valued, "\nRETURN:<a href='%s'>%s</a><br>", url, label)
		} else {
			fmt.Fprintf(&details, "| <a href='%s'>%s</a> ", url, link.Label)
		}
	}
	_, err := fmt.Fprintf(w, "%s\nRETURN:<p style=\"font-size:smaller;\">Details:<br>%s|</p>\n", valued.String(), details.String())
	return errors.WithStack(err)
}

// RenderAddon prints the pass signal of an add-on results acknowledgement.
func RenderAddon(w io.Writer, ack *Acknowledgement, _ string) error {
	if !ack.Success() {
		return nil
	}
	_, err := fmt.Fprintln(w, "RETURN:addon results inserted successfully")
	return errors.WithStack(err)
}

func formatValue(label string, value float64) string {
	if IsMemoryMetric(label) {
		return FileSizeFormat(value)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
