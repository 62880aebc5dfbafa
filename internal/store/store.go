// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Candles
	SaveCandles(ctx context.Context, symbol string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol string) (time.Time, error)

	// Analyses
	SaveAnalyses(ctx context.Context, records []AnalysisRecord) error
	GetAnalyses(ctx context.Context, filter AnalysisFilter) ([]AnalysisRecord, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// AnalysisRecord is the persisted summary of one strategy analysis.
type AnalysisRecord struct {
	ID          string
	BatchID     string
	Ticker      string
	Strategy    string
	Direction   string
	CreditDebit string
	Amount      float64
	MaxGain     float64
	MaxLoss     float64
	Breakevens  []float64
	Sentiment   string
	Pop         float64
	Score       float64
	Legs        []LegRecord
	CreatedAt   time.Time
}

// LegRecord is the persisted state of one strategy leg.
type LegRecord struct {
	Product    string    `json:"product"`
	Direction  string    `json:"direction"`
	Strike     float64   `json:"strike"`
	Expiry     time.Time `json:"expiry"`
	Quantity   int       `json:"quantity"`
	Price      float64   `json:"price"`
	Volatility float64   `json:"volatility"`
}

// AnalysisFilter represents filters for querying analyses.
type AnalysisFilter struct {
	Ticker   string
	BatchID  string
	Strategy string
	Limit    int
}

// DateRange represents a date range.
type DateRange struct {
	Start time.Time
	End   time.Time
}
