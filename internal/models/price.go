// Package models defines data structures for stockwatch
package models

import (
	"time"
)

// DailyPrice represents one trading day for one symbol.
// Natural key: (Symbol, Date). Date carries no time component.
type DailyPrice struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
	Source   string    `json:"source"`
	Anomaly  bool      `json:"anomaly"`

	// Corporate-action metadata, populated only by providers that expose it.
	// A split factor of 1 and a zero dividend mean "no action".
	SplitFactor float64 `json:"split_factor,omitempty"`
	DivCash     float64 `json:"div_cash,omitempty"`
}

// Day returns the date truncated to a UTC calendar day.
func (p DailyPrice) Day() time.Time {
	return time.Date(p.Date.Year(), p.Date.Month(), p.Date.Day(), 0, 0, 0, 0, time.UTC)
}

// HasCorporateAction reports whether the row carries a split or dividend
// that can explain a large day-over-day move.
func (p DailyPrice) HasCorporateAction() bool {
	return (p.SplitFactor != 0 && p.SplitFactor != 1) || p.DivCash > 0
}

// FXRate represents one trading day for one currency pair.
// Natural key: (Pair, Date).
type FXRate struct {
	Pair   string    `json:"pair"` // "USD/JPY"
	Date   time.Time `json:"date"`
	Rate   float64   `json:"rate"`
	Source string    `json:"source"`
}
