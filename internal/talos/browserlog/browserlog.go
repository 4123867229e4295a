// Package browserlog reads the results a browser wrote to its log during a talos cycle.
//
// A browser log contains exactly one report, delimited by __start_report/__end_report (tsformat)
// or __start_tp_report/__end_tp_report (tpformat), followed by three timestamps. It may also contain
// counter samples (RSS lines and MOZ_EVENT_TRACE samples) and, if the test failed, a __FAIL...__FAIL block.
package browserlog

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/talos-perf/talos/internal/talos/results"
)

type tokens struct {
	start string
	end   string
}

var reportTokens = []struct {
	format results.Format
	tokens
}{
	{results.TsFormat, tokens{"__start_report", "__end_report"}},
	{results.TpFormat, tokens{"__start_tp_report", "__end_tp_report"}},
}

var (
	startTimeTokens        = tokens{"__startTimestamp", "__endTimestamp"}
	beforeLaunchTimeTokens = tokens{"__startBeforeLaunchTimestamp", "__endBeforeLaunchTimestamp"}
	endTimeTokens          = tokens{"__startAfterTerminationTimestamp", "__endAfterTerminationTimestamp"}
)

var (
	failRegex           = regexp.MustCompile(`(?s)__FAIL(.*?)__FAIL`)
	rssRegex            = regexp.MustCompile(`RSS:\s+([a-zA-Z0-9]+):\s+([0-9]+)$`)
	responsivenessRegex = regexp.MustCompile(`(?m)MOZ_EVENT_TRACE\ssample\s\d*?\s(\d*?)$`)
)

// Log is a parsed browser log.
type Log struct {
	// Empty if the log wasn't read from a file.
	Filename string
	Format   results.Format
	// The raw report, without its delimiting tokens.
	Report string
	// Timestamps (ms since the epoch) written by the browser.
	StartTime        int64
	BeforeLaunchTime int64
	EndTime          int64

	raw string
}

// ReadFile reads and parses the browser log at path.
func ReadFile(path string) (*Log, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "browserlog")
	}
	return parse(string(raw), path)
}

// Parse parses the contents of a browser log.
func Parse(raw string) (*Log, error) {
	return parse(raw, "")
}

func parse(raw, filename string) (*Log, error) {
	l := &Log{Filename: filename, raw: raw}
	if match := failRegex.FindStringSubmatch(raw); match != nil {
		return nil, l.error(match[1])
	}

	position := -1
	var previous tokens
	for _, report := range reportTokens {
		part, last, err := l.singleToken(report.tokens)
		if err != nil {
			return nil, err
		}
		if last < 0 {
			continue
		}
		l.Report, l.Format, position, previous = part, report.format, last, report.tokens
		break
	}
	if l.Format == "" {
		return nil, l.error("could not find report in browser output")
	}

	for _, timestamp := range []struct {
		name   string
		tokens tokens
		value  *int64
	}{
		{"startTime", startTimeTokens, &l.StartTime},
		{"beforeLaunchTime", beforeLaunchTimeTokens, &l.BeforeLaunchTime},
		{"endTime", endTimeTokens, &l.EndTime},
	} {
		part, last, err := l.singleToken(timestamp.tokens)
		if err != nil {
			return nil, err
		}
		if last < 0 || part == "" {
			return nil, l.error(fmt.Sprintf("could not find %s in browser output (tokens: %s, %s)", timestamp.name, timestamp.tokens.start, timestamp.tokens.end))
		}
		value, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, l.error(fmt.Sprintf("could not cast %s to an integer: %s", timestamp.name, part))
		}
		if last < position {
			return nil, l.error(fmt.Sprintf(
				"%s [character position: %d] found before %s [character position: %d]",
				timestamp.tokens.end, last, previous.end, position,
			))
		}
		*timestamp.value = value
		position, previous = last, timestamp.tokens
	}
	return l, nil
}

// singleToken returns the text between the only pair of t in the log, and the position of the end token.
// If t doesn't occur at all, the returned position is -1.
func (l *Log) singleToken(t tokens) (string, int, error) {
	parts, last, err := tokenize(l.raw, t.start, t.end)
	if err != nil {
		return "", -1, l.error(err.Error())
	}
	switch len(parts) {
	case 0:
		return "", -1, nil
	case 1:
		return parts[0], last, nil
	default:
		return "", -1, l.error(fmt.Sprintf("multiple matches for %s,%s", t.start, t.end))
	}
}

// tokenize returns the text between each pair of start and end tokens, and the position of the last end token.
func tokenize(s, start, end string) ([]string, int, error) {
	if starts, ends := strings.Count(s, start), strings.Count(s, end); starts != ends {
		return nil, -1, errors.Errorf("unmatched tokens: %d %s, %d %s", starts, start, ends, end)
	}
	var parts []string
	last := -1
	offset := 0
	for {
		i := strings.Index(s[offset:], start)
		if i < 0 {
			return parts, last, nil
		}
		contentStart := offset + i + len(start)
		j := strings.Index(s[contentStart:], end)
		if j < 0 {
			return nil, -1, errors.Errorf("%s without a following %s", start, end)
		}
		if k := strings.Index(s[contentStart:contentStart+j], start); k >= 0 {
			return nil, -1, errors.Errorf("nested %s", start)
		}
		parts = append(parts, s[contentStart:contentStart+j])
		last = contentStart + j
		offset = last + len(end)
	}
}

func (l *Log) error(message string) error {
	if l.Filename != "" {
		message += fmt.Sprintf(" [%s]", l.Filename)
	}
	return errors.Errorf("browserlog: %s", message)
}

// Result parses the report.
func (l *Log) Result() (*results.Result, error) {
	r, err := results.Parse(l.Format, l.Report)
	if err != nil {
		return nil, l.error(err.Error())
	}
	return r, nil
}

// Counters adds the counter samples found in the log to the counters that were requested.
// Main_RSS and Content_RSS samples are only recorded if counters has one of these keys;
// shutdown time and responsiveness samples only if globals has a "shutdown" or "responsiveness" key.
// Either map may be nil.
func (l *Log) Counters(counters, globals results.CounterResults) {
	if counters != nil {
		l.rss(counters)
	}
	if globals != nil {
		if _, ok := globals["shutdown"]; ok {
			globals["shutdown"] = append(globals["shutdown"], float64(l.EndTime-l.StartTime))
		}
		if _, ok := globals["responsiveness"]; ok {
			globals["responsiveness"] = append(globals["responsiveness"], l.Responsiveness()...)
		}
	}
}

func (l *Log) rss(counters results.CounterResults) {
	_, main := counters["Main_RSS"]
	_, content := counters["Content_RSS"]
	if !main && !content {
		return
	}
	for _, line := range strings.Split(l.raw, "\n") {
		match := rssRegex.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if match == nil {
			continue
		}
		name := match[1] + "_RSS"
		if _, ok := counters[name]; !ok {
			continue
		}
		value, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		counters[name] = append(counters[name], value)
	}
}

// Responsiveness returns the MOZ_EVENT_TRACE sample values in the log.
func (l *Log) Responsiveness() []float64 {
	var samples []float64
	for _, match := range responsivenessRegex.FindAllStringSubmatch(l.raw, -1) {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		samples = append(samples, value)
	}
	return samples
}
