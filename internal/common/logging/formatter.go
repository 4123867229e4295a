package logging

import (
	"bytes"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// CommandLineFormatter writes entries for people reading a terminal: the message, followed by the error
// if the entry carries one. Warnings and errors are prefixed with their level, e.g., "error: output failed: ...".
// Other fields are dropped.
type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b bytes.Buffer
	if entry.Level <= log.WarnLevel {
		b.WriteString(entry.Level.String())
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	if err, ok := entry.Data[log.ErrorKey]; ok {
		fmt.Fprintf(&b, ": %v", err)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}
