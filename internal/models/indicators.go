package models

import "time"

// Crossover is the short-vs-long moving-average ordering flip detected
// within the trailing lookback window.
type Crossover string

const (
	CrossoverGolden Crossover = "golden"
	CrossoverDead   Crossover = "dead"
	CrossoverNone   Crossover = ""
)

// SymbolIndicators is the derived indicator panel for one instrument.
// Every metric is a pointer: nil means the history requirement for that
// metric was not met, which is distinct from a zero value. Computed per run
// and discarded after the summary document is rendered; never persisted.
type SymbolIndicators struct {
	Symbol   string    `json:"symbol"`
	AsOf     time.Time `json:"as_of"`
	AdjClose float64   `json:"adjusted_close"`

	High52W     *float64 `json:"high_52w,omitempty"`
	Low52W      *float64 `json:"low_52w,omitempty"`
	Range52WPos *float64 `json:"range_52w_pos,omitempty"`

	SMA50         *float64 `json:"sma_50,omitempty"`
	SMA200        *float64 `json:"sma_200,omitempty"`
	Divergence50  *float64 `json:"divergence_50,omitempty"`
	Divergence200 *float64 `json:"divergence_200,omitempty"`

	Change5D  *float64 `json:"change_5d,omitempty"`
	Change30D *float64 `json:"change_30d,omitempty"`

	// RelativeToBenchmark30D is the arithmetic difference between this
	// symbol's 30-day change and the benchmark's; nil for the benchmark
	// itself.
	RelativeToBenchmark30D *float64 `json:"relative_benchmark_30d,omitempty"`

	VolumeRatio20 *float64 `json:"volume_ratio_20,omitempty"`
	Volatility60  *float64 `json:"volatility_60,omitempty"`

	Signal Crossover `json:"signal,omitempty"`
}
