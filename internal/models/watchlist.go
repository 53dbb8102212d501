package models

// Market identifies the exchange a tracked instrument trades on.
type Market string

const (
	MarketTokyo  Market = "tokyo"
	MarketNYSE   Market = "nyse"
	MarketNasdaq Market = "nasdaq"
)

// Valid reports whether the market is one of the closed enum values.
func (m Market) Valid() bool {
	switch m {
	case MarketTokyo, MarketNYSE, MarketNasdaq:
		return true
	}
	return false
}

// InstrumentKind distinguishes single stocks from diversified fund trackers.
type InstrumentKind string

const (
	KindStock InstrumentKind = "stock"
	KindFund  InstrumentKind = "fund"
)

// Valid reports whether the kind is one of the closed enum values.
func (k InstrumentKind) Valid() bool {
	return k == KindStock || k == KindFund
}

// WatchlistEntry is one tracked instrument. Immutable reference data loaded
// once per run; the market decides which collector fetches it and, together
// with the kind, which anomaly threshold applies.
type WatchlistEntry struct {
	Symbol string         `yaml:"symbol" validate:"required"`
	Name   string         `yaml:"name" validate:"required"`
	Market Market         `yaml:"market" validate:"required"`
	Kind   InstrumentKind `yaml:"kind" validate:"required"`
}
