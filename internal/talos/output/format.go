package output

import (
	"fmt"
	"math"
	"strings"
)

var shortNames = map[string]string{
	"Working Set":              "memset",
	"% Processor Time":         "%cpu",
	"Private Bytes":            "pbytes",
	"RSS":                      "rss",
	"XRes":                     "xres",
	"Modified Page List Bytes": "modlistbytes",
	"Main_RSS":                 "main_rss",
	"Content_RSS":              "content_rss",
}

// Metrics measured in bytes.
var memoryMetrics = []string{"memset", "rss", "pbytes", "xres", "modlistbytes", "main_rss", "content_rss"}

// ShortName returns the name under which a counter is reported, e.g., "memset" for "Working Set".
// Counters without a short name are reported under their own name.
func ShortName(counter string) string {
	if short, ok := shortNames[counter]; ok {
		return short
	}
	return counter
}

// IsMemoryMetric returns true if name contains the short name of a counter measured in bytes.
func IsMemoryMetric(name string) bool {
	for _, metric := range memoryMetrics {
		if strings.Contains(name, metric) {
			return true
		}
	}
	return false
}

// IsResponsivenessTest returns true for tests reported as a single responsiveness metric.
// Any test with "responsiveness" in its name qualifies.
func IsResponsivenessTest(testname string) bool {
	return strings.Contains(testname, "responsiveness")
}

// ResponsivenessMetric returns sum(v*v/1e6) over all values, rounded to the nearest integer.
func ResponsivenessMetric(values []float64) int64 {
	var sum float64
	for _, v := range values {
		sum += v * v / 1e6
	}
	return int64(math.Round(sum))
}

// FileSizeFormat formats a number of bytes with one decimal, e.g., 13312 is "13.0KB".
func FileSizeFormat(bytes float64) string {
	for _, unit := range []string{"B", "KB", "MB"} {
		if bytes < 1024 {
			return fmt.Sprintf("%.1f%s", bytes, unit)
		}
		bytes /= 1024
	}
	return fmt.Sprintf("%.1fGB", bytes)
}
