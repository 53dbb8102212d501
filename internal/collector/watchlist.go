// Package collector runs the per-source collection pipeline: it loads the
// watchlist, sizes incremental fetch windows from persisted coverage, pulls
// daily prices and FX rates through the provider clients, flags anomalous
// bars, and persists everything batch-wise.
package collector

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bobmcallan/stockwatch/internal/models"
)

type watchlistFile struct {
	Watchlist []models.WatchlistEntry `yaml:"watchlist" validate:"required,min=1,dive"`
}

// LoadWatchlist reads the tracked-instrument list from a YAML file.
// An empty or malformed list is an error; callers treat it as fatal.
func LoadWatchlist(path string) ([]models.WatchlistEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist %s: %w", path, err)
	}

	var file watchlistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist %s: %w", path, err)
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid watchlist %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Watchlist))
	for _, entry := range file.Watchlist {
		if !entry.Market.Valid() {
			return nil, fmt.Errorf("invalid watchlist %s: unknown market %q for %s", path, entry.Market, entry.Symbol)
		}
		if !entry.Kind.Valid() {
			return nil, fmt.Errorf("invalid watchlist %s: unknown kind %q for %s", path, entry.Kind, entry.Symbol)
		}
		if seen[entry.Symbol] {
			return nil, fmt.Errorf("invalid watchlist %s: duplicate symbol %s", path, entry.Symbol)
		}
		seen[entry.Symbol] = true
	}

	return file.Watchlist, nil
}
