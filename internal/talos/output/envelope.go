package output

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the TYPE line of a graphserver payload.
type Kind string

const (
	Values  Kind = "VALUES"
	Average Kind = "AVERAGE"
	AMO     Kind = "AMO"
)

// Envelope is the text format understood by the graphserver:
//
//	START
//	<kind>
//	<comma-joined metadata>
//	<data lines>
//	END
//
// Every line, including END, is terminated by a newline.
// See https://wiki.mozilla.org/Buildbot/Talos/DataFormat
type Envelope struct {
	Kind     Kind
	Metadata []string
	Lines    []string
}

func (e Envelope) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString("START\n")
	buf.WriteString(string(e.Kind) + "\n")
	buf.WriteString(strings.Join(e.Metadata, ",") + "\n")
	for _, line := range e.Lines {
		buf.WriteString(line + "\n")
	}
	buf.WriteString("END\n")
	return buf.Bytes()
}

// ParseEnvelope is the inverse of Envelope.Encode.
func ParseEnvelope(data []byte) (Envelope, error) {
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) < 4 || lines[0] != "START" || lines[len(lines)-1] != "END" {
		return Envelope{}, errors.Errorf("output: malformed payload %q", data)
	}
	var metadata []string
	if lines[2] != "" {
		metadata = strings.Split(lines[2], ",")
	}
	var body []string
	if len(lines) > 4 {
		body = lines[3 : len(lines)-1]
	}
	return Envelope{Kind: Kind(lines[1]), Metadata: metadata, Lines: body}, nil
}
