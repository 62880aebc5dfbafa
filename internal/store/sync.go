package store

import (
	"fmt"
	"time"
)

// SyncDataType represents the type of data being synced.
type SyncDataType string

const (
	SyncTypeCandles  SyncDataType = "candles"
	SyncTypeChains   SyncDataType = "chains"
	SyncTypeAnalyses SyncDataType = "analyses"
)

// SyncKey scopes a data type to one symbol, e.g. "candles:SPY".
func SyncKey(dataType SyncDataType, symbol string) string {
	if symbol == "" {
		return string(dataType)
	}
	return string(dataType) + ":" + symbol
}

// HistorySyncKey scopes candle syncs to a symbol and lookback window, so a
// short window synced first never satisfies a longer request.
func HistorySyncKey(symbol string, lookbackDays int) string {
	return SyncKey(SyncTypeCandles, fmt.Sprintf("%s:%d", symbol, lookbackDays))
}

// DataFreshness represents the freshness of cached data.
type DataFreshness struct {
	Key         string
	LastUpdated time.Time
	IsFresh     bool
	Age         time.Duration
}

// GetDataFreshness reports whether key was synced within threshold.
func GetDataFreshness(s DataStore, key string, threshold time.Duration, now time.Time) *DataFreshness {
	lastSync := s.GetLastSync(key)
	age := now.Sub(lastSync)

	return &DataFreshness{
		Key:         key,
		LastUpdated: lastSync,
		IsFresh:     !lastSync.IsZero() && age < threshold,
		Age:         age,
	}
}

// MarkSynced records now as the last sync time of key.
func MarkSynced(s DataStore, key string, now time.Time) error {
	if err := s.SetLastSync(key, now); err != nil {
		return fmt.Errorf("failed to mark %s as synced: %w", key, err)
	}
	return nil
}

// FormatFreshness returns a human-readable freshness string.
func FormatFreshness(freshness *DataFreshness) string {
	if freshness.LastUpdated.IsZero() {
		return "Never synced"
	}

	age := freshness.Age
	var ageStr string

	switch {
	case age < time.Minute:
		ageStr = "just now"
	case age < time.Hour:
		ageStr = fmt.Sprintf("%d minutes ago", int(age.Minutes()))
	case age < 24*time.Hour:
		ageStr = fmt.Sprintf("%d hours ago", int(age.Hours()))
	default:
		ageStr = fmt.Sprintf("%d days ago", int(age.Hours()/24))
	}

	if freshness.IsFresh {
		return fmt.Sprintf("Updated %s", ageStr)
	}
	return fmt.Sprintf("Stale data - Updated %s", ageStr)
}
