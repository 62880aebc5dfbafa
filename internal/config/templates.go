package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Option Analysis Configuration

[pricing]
# Pricing method: "black-scholes" or "monte-carlo"
method = "black-scholes"
# Monte Carlo simulation count (bounds estimator noise)
simulations = 100000
# Monte Carlo seed, 0 seeds from the clock
seed = 42
# Continuous dividend yield (decimal)
dividend_yield = 0.0
# Implied volatility below this is treated as a stale quote
implied_vol_cutoff = 0.020
# Days of price history used for historical volatility
lookback_days = 365

[grid]
# Calendar days between value table columns
date_step_days = 1
# Spot rows above and below the center strike
half_rows = 20

[batch]
# Maximum concurrent strategy evaluations
max_workers = 8
# Persist batch results to the store
persist = false

[market_data]
# Directory holding <TICKER>.csv history and <TICKER>_<YYYY-MM-DD>.csv chains
data_dir = "~/.config/optionanalysis/data"
# Fallback risk-free rate when rates.csv is missing
risk_free_rate = 0.03
cache_ttl = "15m"
retry_attempts = 3
# Requests per second, 0 disables throttling
rate_limit = 0
circuit_failures = 5

[store]
path = "~/.config/optionanalysis/options.db"
# Cached price history older than this is refetched
freshness = "12h"

[logging]
level = "info"
console = true
file = false
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
