package collector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stockwatch/internal/models"
)

func writeWatchlist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWatchlist(t *testing.T) {
	path := writeWatchlist(t, `
watchlist:
  - symbol: "7203"
    name: Toyota Motor
    market: tokyo
    kind: stock
  - symbol: VOO
    name: Vanguard S&P 500 ETF
    market: nyse
    kind: fund
`)

	entries, err := LoadWatchlist(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "7203", entries[0].Symbol)
	assert.Equal(t, models.MarketTokyo, entries[0].Market)
	assert.Equal(t, models.KindFund, entries[1].Kind)
}

func TestLoadWatchlistErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty list", "watchlist: []"},
		{"missing file section", "other: 1"},
		{"malformed yaml", "watchlist: ["},
		{"missing name", "watchlist:\n  - symbol: AAPL\n    market: nasdaq\n    kind: stock"},
		{"unknown market", "watchlist:\n  - symbol: AAPL\n    name: Apple\n    market: lse\n    kind: stock"},
		{"unknown kind", "watchlist:\n  - symbol: AAPL\n    name: Apple\n    market: nasdaq\n    kind: bond"},
		{"duplicate symbol", `
watchlist:
  - {symbol: AAPL, name: Apple, market: nasdaq, kind: stock}
  - {symbol: AAPL, name: Apple again, market: nyse, kind: stock}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWatchlist(writeWatchlist(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadWatchlistMissingFile(t *testing.T) {
	_, err := LoadWatchlist(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
