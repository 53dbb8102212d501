// Package signals computes technical indicators over daily price history.
//
// Every function operates on the non-anomalous subset of a series and
// returns nil when the required history length is not met, so callers can
// tell "insufficient data" from "no signal".
package signals

import (
	"math"

	"github.com/bobmcallan/stockwatch/internal/models"
)

const (
	tradingDaysPerYear = 252

	// week52Window approximates 52 calendar weeks in trading days.
	week52Window = 252

	// crossoverLookback is the trailing window, in trading days, scanned
	// for a moving-average ordering flip.
	crossoverLookback = 15

	volumeWindow     = 20
	volatilityWindow = 60
)

// Clean returns the non-anomalous bars of an ascending series. Anomalous
// points are excluded from every calculation, not just display.
func Clean(prices []models.DailyPrice) []models.DailyPrice {
	out := make([]models.DailyPrice, 0, len(prices))
	for _, p := range prices {
		if !p.Anomaly {
			out = append(out, p)
		}
	}
	return out
}

func ptr(v float64) *float64 {
	return &v
}

// SMA returns the simple moving average of the last n adjusted closes, or
// nil with fewer than n points.
func SMA(prices []models.DailyPrice, n int) *float64 {
	if n < 1 || len(prices) < n {
		return nil
	}
	sum := 0.0
	for _, p := range prices[len(prices)-n:] {
		sum += p.AdjClose
	}
	return ptr(sum / float64(n))
}

// Divergence returns the percentage distance of the current adjusted close
// from the n-day moving average.
func Divergence(prices []models.DailyPrice, n int) *float64 {
	ma := SMA(prices, n)
	if ma == nil || *ma == 0 {
		return nil
	}
	current := prices[len(prices)-1].AdjClose
	return ptr((current - *ma) / *ma * 100)
}

// HighLow52W returns the max and min adjusted close over the trailing
// 52-week window, or nils for an empty series.
func HighLow52W(prices []models.DailyPrice) (high, low *float64) {
	if len(prices) == 0 {
		return nil, nil
	}
	window := prices
	if len(window) > week52Window {
		window = window[len(window)-week52Window:]
	}
	hi, lo := window[0].AdjClose, window[0].AdjClose
	for _, p := range window[1:] {
		hi = math.Max(hi, p.AdjClose)
		lo = math.Min(lo, p.AdjClose)
	}
	return ptr(hi), ptr(lo)
}

// RangePosition returns where current sits in [low, high] as a 0..1
// fraction, or nil when the range is degenerate.
func RangePosition(current float64, high, low *float64) *float64 {
	if high == nil || low == nil || *high == *low {
		return nil
	}
	return ptr((current - *low) / (*high - *low))
}

// PercentChange returns the percentage change of the adjusted close over
// the last n trading days, or nil with fewer than n+1 points.
func PercentChange(prices []models.DailyPrice, n int) *float64 {
	if n < 1 || len(prices) < n+1 {
		return nil
	}
	past := prices[len(prices)-1-n].AdjClose
	if past == 0 {
		return nil
	}
	current := prices[len(prices)-1].AdjClose
	return ptr((current - past) / past * 100)
}

// VolumeRatio returns the most recent volume divided by the trailing n-day
// average volume, the current day excluded from the average.
func VolumeRatio(prices []models.DailyPrice, n int) *float64 {
	if n < 1 || len(prices) < n+1 {
		return nil
	}
	trailing := prices[len(prices)-1-n : len(prices)-1]
	sum := 0.0
	for _, p := range trailing {
		sum += float64(p.Volume)
	}
	avg := sum / float64(n)
	if avg == 0 {
		return nil
	}
	return ptr(float64(prices[len(prices)-1].Volume) / avg)
}

// Volatility returns the annualized historical volatility over the last n
// daily log returns as a percentage: the sample standard deviation (n−1
// denominator) scaled by the square root of the trading year. Requires
// n >= 2 and at least n+1 points.
func Volatility(prices []models.DailyPrice, n int) *float64 {
	if n < 2 || len(prices) < n+1 {
		return nil
	}

	window := prices[len(prices)-1-n:]
	returns := make([]float64, 0, n)
	for i := 1; i < len(window); i++ {
		prev, curr := window[i-1].AdjClose, window[i].AdjClose
		if prev <= 0 || curr <= 0 {
			return nil
		}
		returns = append(returns, math.Log(curr/prev))
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	return ptr(math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear) * 100)
}

// DetectCrossover scans the trailing lookback window for the 50-day average
// crossing the 200-day average: golden when the short average moves from at
// or below the long to above it, dead for the reverse. Returns
// CrossoverNone when no flip occurred; the signal is undefined (also None)
// without enough history for the long average at two consecutive points.
func DetectCrossover(prices []models.DailyPrice) models.Crossover {
	const short, long = 50, 200

	if len(prices) < long+1 {
		return models.CrossoverNone
	}

	start := len(prices) - crossoverLookback
	if start < long {
		start = long
	}

	signal := models.CrossoverNone
	for i := start; i < len(prices); i++ {
		prevShort, prevLong := *SMA(prices[:i], short), *SMA(prices[:i], long)
		currShort, currLong := *SMA(prices[:i+1], short), *SMA(prices[:i+1], long)

		if prevShort <= prevLong && currShort > currLong {
			signal = models.CrossoverGolden
		} else if prevShort >= prevLong && currShort < currLong {
			signal = models.CrossoverDead
		}
	}
	return signal
}

// Compute derives the full indicator panel for one symbol. benchmark is the
// benchmark's clean series, used for relative performance; pass nil (or the
// symbol's own series via isBenchmark) to leave the relative metric absent.
func Compute(symbol string, prices, benchmark []models.DailyPrice, isBenchmark bool) models.SymbolIndicators {
	prices = Clean(prices)
	benchmark = Clean(benchmark)

	ind := models.SymbolIndicators{Symbol: symbol}
	if len(prices) == 0 {
		return ind
	}

	last := prices[len(prices)-1]
	ind.AsOf = last.Day()
	ind.AdjClose = last.AdjClose

	ind.High52W, ind.Low52W = HighLow52W(prices)
	ind.Range52WPos = RangePosition(last.AdjClose, ind.High52W, ind.Low52W)

	ind.SMA50 = SMA(prices, 50)
	ind.SMA200 = SMA(prices, 200)
	ind.Divergence50 = Divergence(prices, 50)
	ind.Divergence200 = Divergence(prices, 200)

	ind.Change5D = PercentChange(prices, 5)
	ind.Change30D = PercentChange(prices, 30)

	if !isBenchmark {
		if own := ind.Change30D; own != nil {
			if bench := PercentChange(benchmark, 30); bench != nil {
				ind.RelativeToBenchmark30D = ptr(*own - *bench)
			}
		}
	}

	ind.VolumeRatio20 = VolumeRatio(prices, volumeWindow)
	ind.Volatility60 = Volatility(prices, volatilityWindow)
	ind.Signal = DetectCrossover(prices)

	return ind
}
