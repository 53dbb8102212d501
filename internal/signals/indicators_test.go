package signals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stockwatch/internal/models"
)

// series builds an ascending daily series from close values, constant
// volume 1000.
func series(closes ...float64) []models.DailyPrice {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.DailyPrice, len(closes))
	for i, c := range closes {
		out[i] = models.DailyPrice{
			Symbol:   "TEST",
			Date:     start.AddDate(0, 0, i),
			Close:    c,
			AdjClose: c,
			Volume:   1000,
		}
	}
	return out
}

func flat(n int, value float64) []models.DailyPrice {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = value
	}
	return series(closes...)
}

func TestConstantSeriesPanel(t *testing.T) {
	prices := flat(210, 100)

	ind := Compute("TEST", prices, nil, true)

	assert.Equal(t, 100.0, ind.AdjClose)

	require.NotNil(t, ind.SMA50)
	assert.Equal(t, 100.0, *ind.SMA50)
	require.NotNil(t, ind.SMA200)
	assert.Equal(t, 100.0, *ind.SMA200)

	require.NotNil(t, ind.Volatility60)
	assert.Equal(t, 0.0, *ind.Volatility60)

	// Signal is defined for 210 points but no flip occurred.
	assert.Equal(t, models.CrossoverNone, ind.Signal)

	// Degenerate range: position is absent, not zero or NaN.
	assert.Nil(t, ind.Range52WPos)

	require.NotNil(t, ind.Change5D)
	assert.Equal(t, 0.0, *ind.Change5D)

	require.NotNil(t, ind.VolumeRatio20)
	assert.Equal(t, 1.0, *ind.VolumeRatio20)
}

func TestSMAInsufficientHistory(t *testing.T) {
	prices := flat(30, 100)

	assert.NotNil(t, SMA(prices, 30))
	assert.Nil(t, SMA(prices, 31))
	assert.Nil(t, SMA(nil, 1))
}

func TestSMAValues(t *testing.T) {
	prices := series(1, 2, 3, 4, 5)

	got := SMA(prices, 3)
	require.NotNil(t, got)
	assert.InDelta(t, 4.0, *got, 1e-12)
}

func TestDivergence(t *testing.T) {
	prices := series(90, 95, 100, 105, 110)

	got := Divergence(prices, 4)
	require.NotNil(t, got)
	assert.InDelta(t, (110.0-102.5)/102.5*100, *got, 1e-9)
}

func TestHighLow52W(t *testing.T) {
	prices := series(100, 150, 80, 120)

	high, low := HighLow52W(prices)
	require.NotNil(t, high)
	require.NotNil(t, low)
	assert.Equal(t, 150.0, *high)
	assert.Equal(t, 80.0, *low)

	pos := RangePosition(120, high, low)
	require.NotNil(t, pos)
	assert.InDelta(t, (120.0-80)/(150-80), *pos, 1e-12)
}

func TestHighLow52WUsesTrailingWindowOnly(t *testing.T) {
	// A spike older than the 52-week window must not count.
	closes := make([]float64, week52Window+10)
	closes[0] = 999
	for i := 1; i < len(closes); i++ {
		closes[i] = 100
	}

	high, _ := HighLow52W(series(closes...))
	require.NotNil(t, high)
	assert.Equal(t, 100.0, *high)
}

func TestPercentChange(t *testing.T) {
	prices := series(100, 101, 102, 103, 104, 110)

	got := PercentChange(prices, 5)
	require.NotNil(t, got)
	assert.InDelta(t, 10.0, *got, 1e-12)

	assert.Nil(t, PercentChange(prices, 6), "needs n+1 points")
}

func TestVolumeRatioExcludesCurrentDay(t *testing.T) {
	prices := flat(21, 100)
	for i := 0; i < 20; i++ {
		prices[i].Volume = 1000
	}
	prices[20].Volume = 3000

	got := VolumeRatio(prices, 20)
	require.NotNil(t, got)
	assert.InDelta(t, 3.0, *got, 1e-12, "spike day must not dilute its own average")

	assert.Nil(t, VolumeRatio(flat(20, 100), 20))
}

func TestVolatility(t *testing.T) {
	assert.Nil(t, Volatility(flat(60, 100), 60), "needs n+1 points")
	assert.Nil(t, Volatility(flat(100, 100), 1), "n must be at least 2")

	got := Volatility(flat(61, 100), 60)
	require.NotNil(t, got)
	assert.Equal(t, 0.0, *got)

	// Alternating +/-10% should produce a clearly positive figure.
	closes := make([]float64, 61)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 110
		}
	}
	got = Volatility(series(closes...), 60)
	require.NotNil(t, got)
	assert.Greater(t, *got, 100.0)
}

func TestDetectCrossoverGolden(t *testing.T) {
	closes := make([]float64, 260)
	for i := range closes {
		closes[i] = 100
	}
	for i := 250; i < 260; i++ {
		closes[i] = 200
	}

	assert.Equal(t, models.CrossoverGolden, DetectCrossover(series(closes...)))
}

func TestDetectCrossoverDead(t *testing.T) {
	closes := make([]float64, 260)
	for i := range closes {
		closes[i] = 100
	}
	for i := 250; i < 260; i++ {
		closes[i] = 50
	}

	assert.Equal(t, models.CrossoverDead, DetectCrossover(series(closes...)))
}

func TestDetectCrossoverOutsideLookback(t *testing.T) {
	// Flip happens 30 days back, beyond the trailing window.
	closes := make([]float64, 280)
	for i := range closes {
		closes[i] = 100
	}
	for i := 250; i < 280; i++ {
		closes[i] = 200
	}

	assert.Equal(t, models.CrossoverNone, DetectCrossover(series(closes...)))
}

func TestDetectCrossoverInsufficientHistory(t *testing.T) {
	assert.Equal(t, models.CrossoverNone, DetectCrossover(flat(200, 100)))
}

func TestCleanExcludesAnomalies(t *testing.T) {
	prices := series(100, 500, 101)
	prices[1].Anomaly = true

	clean := Clean(prices)
	require.Len(t, clean, 2)

	// The anomalous close must not contaminate the high.
	high, _ := HighLow52W(clean)
	require.NotNil(t, high)
	assert.Equal(t, 101.0, *high)
}

func TestComputeRelativeToBenchmark(t *testing.T) {
	symbol := make([]float64, 31)
	bench := make([]float64, 31)
	for i := range symbol {
		symbol[i] = 100
		bench[i] = 100
	}
	symbol[30] = 110 // +10% over 30 days
	bench[30] = 104  // +4%

	ind := Compute("TEST", series(symbol...), series(bench...), false)
	require.NotNil(t, ind.RelativeToBenchmark30D)
	assert.InDelta(t, 6.0, *ind.RelativeToBenchmark30D, 1e-9)

	// The benchmark never compares against itself.
	self := Compute("SPY", series(bench...), series(bench...), true)
	assert.Nil(t, self.RelativeToBenchmark30D)
}

func TestComputeEmptySeries(t *testing.T) {
	ind := Compute("TEST", nil, nil, false)
	assert.Equal(t, "TEST", ind.Symbol)
	assert.Nil(t, ind.SMA50)
	assert.Nil(t, ind.High52W)
	assert.Equal(t, models.CrossoverNone, ind.Signal)
}
