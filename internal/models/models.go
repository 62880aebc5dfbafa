// Package models provides domain models for the option analysis engine.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Product represents the type of an option contract.
type Product string

const (
	ProductCall Product = "call"
	ProductPut  Product = "put"
)

// ParseProduct parses a product name. Accepts call/put and the CE/PE exchange aliases.
func ParseProduct(s string) (Product, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c", "ce":
		return ProductCall, nil
	case "put", "p", "pe":
		return ProductPut, nil
	default:
		return "", fmt.Errorf("unknown product %q", s)
	}
}

// Direction represents the side of a position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// ParseDirection parses a direction name.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return DirectionLong, nil
	case "short", "sell":
		return DirectionShort, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Sign returns +1 for long positions and -1 for short positions.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// Candle represents OHLCV data for one trading day.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// ChainQuote represents one contract row of an option chain.
type ChainQuote struct {
	ContractID        string
	Product           Product
	Strike            float64
	LastPrice         float64
	Bid               float64
	Ask               float64
	ImpliedVolatility float64
	InTheMoney        bool
	OpenInterest      int64
	Volume            int64
}

// Mid returns the bid/ask midpoint, or zero when either side is missing.
func (q ChainQuote) Mid() float64 {
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0
	}
	return (q.Bid + q.Ask) / 2
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}
