package collector

import (
	"math"

	"github.com/bobmcallan/stockwatch/internal/models"
)

// Day-over-day close-change thresholds above which a bar is flagged.
// Tokyo trades under an exchange-enforced daily price limit so its band is
// the tightest; diversified funds move less than single names.
const (
	thresholdTokyo  = 0.15
	thresholdFund   = 0.20
	thresholdEquity = 0.30
)

func anomalyThreshold(market models.Market, kind models.InstrumentKind) float64 {
	if market == models.MarketTokyo {
		return thresholdTokyo
	}
	if kind == models.KindFund {
		return thresholdFund
	}
	return thresholdEquity
}

// IsPriceAnomaly reports whether the move from previous to current exceeds
// the threshold for the instrument's market and kind. A zero previous means
// there is no prior reference, which is never an anomaly. The threshold
// itself is not an anomaly; only strictly larger moves are.
func IsPriceAnomaly(current, previous float64, market models.Market, kind models.InstrumentKind) bool {
	if previous == 0 {
		return false
	}
	change := math.Abs(current-previous) / previous
	return change > anomalyThreshold(market, kind)
}

// FlagAnomalies sets the Anomaly flag on each bar of an ascending series.
// prevClose seeds the comparison for the first bar; pass 0 when no earlier
// close is known. Bars carrying a split or dividend are never flagged since
// a corporate action explains the jump.
func FlagAnomalies(prices []models.DailyPrice, prevClose float64, market models.Market, kind models.InstrumentKind) {
	for i := range prices {
		if IsPriceAnomaly(prices[i].Close, prevClose, market, kind) && !prices[i].HasCorporateAction() {
			prices[i].Anomaly = true
		}
		prevClose = prices[i].Close
	}
}
