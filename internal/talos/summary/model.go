package summary

import "github.com/talos-perf/talos/internal/talos/results"

type Statistics struct {
	Count             int     `json:"count"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Average           float64 `json:"average"`
	Variance          float64 `json:"variance"`
	StandardDeviation float64 `json:"standardDeviation"`
}

type TestSummary struct {
	Name       string                 `json:"name"`
	Format     results.Format         `json:"format"`
	Values     []float64              `json:"values"`
	Statistics *Statistics            `json:"statistics"`
	Counters   map[string]*Statistics `json:"counters,omitempty"`
}

// Report summarizes the filtered values of every test of a run.
type Report struct {
	Title string         `json:"title"`
	Date  int64          `json:"date"`
	Tests []*TestSummary `json:"tests"`
}
