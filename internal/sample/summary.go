package sample

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// ParameterSummary holds marginal statistics for one parameter.
type ParameterSummary struct {
	Index  int     `json:"index"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Median float64 `json:"median"`
	Q05    float64 `json:"q05"`
	Q95    float64 `json:"q95"`
}

// Summarize computes per-parameter marginal statistics from chain samples.
func Summarize(samples [][]float64) ([]ParameterSummary, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("sample: no samples to summarize")
	}
	n := len(samples[0])
	out := make([]ParameterSummary, n)
	col := make(stats.Float64Data, len(samples))
	for i := 0; i < n; i++ {
		for j, s := range samples {
			col[j] = s[i]
		}
		mean, err := col.Mean()
		if err != nil {
			return nil, fmt.Errorf("sample: summarizing parameter %d: %w", i, err)
		}
		sd, err := col.StandardDeviationSample()
		if err != nil {
			return nil, fmt.Errorf("sample: summarizing parameter %d: %w", i, err)
		}
		median, err := col.Median()
		if err != nil {
			return nil, fmt.Errorf("sample: summarizing parameter %d: %w", i, err)
		}
		q05, err := col.Percentile(5)
		if err != nil {
			return nil, fmt.Errorf("sample: summarizing parameter %d: %w", i, err)
		}
		q95, err := col.Percentile(95)
		if err != nil {
			return nil, fmt.Errorf("sample: summarizing parameter %d: %w", i, err)
		}
		out[i] = ParameterSummary{Index: i, Mean: mean, StdDev: sd, Median: median, Q05: q05, Q95: q95}
	}
	return out, nil
}
