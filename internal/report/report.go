// Package report renders the run summary document consumed by the
// downstream advisory workflow.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobmcallan/stockwatch/internal/models"
)

var marketOrder = []models.Market{models.MarketTokyo, models.MarketNYSE, models.MarketNasdaq}

var marketTitles = map[models.Market]string{
	models.MarketTokyo:  "Tokyo",
	models.MarketNYSE:   "NYSE",
	models.MarketNasdaq: "Nasdaq",
}

const absent = "-"

// Render produces the markdown summary: one table per market in a fixed
// order, a latest-FX-rates line, and a Notes section for instruments whose
// history is too short for the 200-day average. Output is deterministic for
// a given input: markets in fixed order, instruments in watchlist order.
func Render(asOf time.Time, watchlist []models.WatchlistEntry, indicators map[string]models.SymbolIndicators, fxRates []models.FXRate) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Market Summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n", asOf.UTC().Format("2006-01-02"))

	for _, market := range marketOrder {
		var entries []models.WatchlistEntry
		for _, e := range watchlist {
			if e.Market == market {
				entries = append(entries, e)
			}
		}
		if len(entries) == 0 {
			continue
		}

		fmt.Fprintf(&b, "\n## %s\n\n", marketTitles[market])
		b.WriteString("| Symbol | Name | Close | 52W Pos | Div 50 | Div 200 | 5D % | 30D % | vs Bench 30D | Vol Ratio | Volatility | Signal |\n")
		b.WriteString("|--------|------|-------|---------|--------|---------|------|-------|--------------|-----------|------------|--------|\n")

		for _, e := range entries {
			ind := indicators[e.Symbol]
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				e.Symbol,
				e.Name,
				formatPrice(ind),
				formatPct01(ind.Range52WPos),
				formatSigned(ind.Divergence50),
				formatSigned(ind.Divergence200),
				formatSigned(ind.Change5D),
				formatSigned(ind.Change30D),
				formatSigned(ind.RelativeToBenchmark30D),
				formatRatio(ind.VolumeRatio20),
				formatPct(ind.Volatility60),
				formatSignal(ind.Signal),
			)
		}
	}

	if len(fxRates) > 0 {
		b.WriteString("\n## FX\n\n")
		parts := make([]string, len(fxRates))
		for i, r := range fxRates {
			parts[i] = fmt.Sprintf("%s %.4f (%s)", r.Pair, r.Rate, r.Date.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "Latest rates: %s\n", strings.Join(parts, ", "))
	}

	if notes := shortHistoryNotes(watchlist, indicators); len(notes) > 0 {
		b.WriteString("\n## Notes\n\n")
		for _, n := range notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}

	return b.String()
}

// shortHistoryNotes lists instruments lacking the history for the longest
// indicator window, in watchlist order.
func shortHistoryNotes(watchlist []models.WatchlistEntry, indicators map[string]models.SymbolIndicators) []string {
	var notes []string
	for _, e := range watchlist {
		if indicators[e.Symbol].SMA200 == nil {
			notes = append(notes, fmt.Sprintf("%s (%s): insufficient history for 200-day indicators", e.Symbol, e.Name))
		}
	}
	return notes
}

func formatPrice(ind models.SymbolIndicators) string {
	if ind.AsOf.IsZero() {
		return absent
	}
	return fmt.Sprintf("%.2f", ind.AdjClose)
}

// formatPct01 renders a 0..1 fraction as a percentage.
func formatPct01(v *float64) string {
	if v == nil {
		return absent
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

func formatPct(v *float64) string {
	if v == nil {
		return absent
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func formatSigned(v *float64) string {
	if v == nil {
		return absent
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

func formatRatio(v *float64) string {
	if v == nil {
		return absent
	}
	return fmt.Sprintf("%.2fx", *v)
}

func formatSignal(s models.Crossover) string {
	if s == models.CrossoverNone {
		return absent
	}
	return string(s)
}

// WriteAtomic writes content to path via a temp file and rename, so a
// concurrent reader never observes a partially written document.
func WriteAtomic(path, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	return nil
}
