package results

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseTsResults parses the report of a tsformat test.
//
// Two layouts are accepted: one "page,run,run,..." line per page, or a single "run|run|run" line
// without page names, in which case the page is reported as "NULL".
func ParseTsResults(report string) (*Result, error) {
	report = strings.TrimSpace(report)
	result := &Result{Format: TsFormat}
	for index, line := range strings.Split(report, "\n") {
		fields := strings.Split(strings.TrimSpace(line), ",")
		if len(fields) == 1 {
			break
		}
		runs, err := parseRuns(fields[1:])
		if err != nil {
			return nil, errors.WithMessagef(err, "results: tsformat line %d", index)
		}
		result.Pages = append(result.Pages, Page{Index: index, Name: fields[0], Runs: runs})
	}
	if len(result.Pages) > 0 {
		return result, nil
	}

	runs, err := parseRuns(strings.Split(report, "|"))
	if err != nil {
		return nil, errors.WithMessage(err, "results: tsformat")
	}
	result.Pages = []Page{{Index: 0, Name: "NULL", Runs: runs}}
	return result, nil
}

// ParsePageloaderResults parses the report of a tpformat test: one "|index;page;run;run;...|" line per page.
// Lines without a ';' (e.g., the _x_x_mozilla_page_load header) are ignored.
func ParsePageloaderResults(report string) (*Result, error) {
	result := &Result{Format: TpFormat}
	for _, line := range strings.Split(strings.TrimSpace(report), "\n") {
		if !strings.Contains(line, ";") {
			continue
		}
		fields := strings.Split(strings.Trim(strings.TrimSpace(line), "|"), ";")
		if len(fields) < 2 {
			return nil, errors.Errorf("results: malformed tpformat line %q", line)
		}
		index, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "results: tpformat line %q", line)
		}
		runs, err := parseRuns(fields[2:])
		if err != nil {
			return nil, errors.WithMessagef(err, "results: tpformat line %q", line)
		}
		result.Pages = append(result.Pages, Page{Index: index, Name: formatPageName(fields[1]), Runs: runs})
	}
	return result, nil
}

// Parse parses a report of the given format.
func Parse(format Format, report string) (*Result, error) {
	switch format {
	case TsFormat:
		return ParseTsResults(report)
	case TpFormat:
		return ParsePageloaderResults(report)
	default:
		return nil, errors.Errorf("results: unable to find a results parser for format %q", format)
	}
}

// formatPageName strips trailing slashes and keeps the part of the page up to the first remaining slash.
func formatPageName(page string) string {
	page = strings.TrimRight(page, "/")
	if i := strings.Index(page, "/"); i != -1 {
		page = page[:i]
	}
	return page
}

func parseRuns(fields []string) ([]float64, error) {
	runs := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		runs = append(runs, v)
	}
	return runs, nil
}
