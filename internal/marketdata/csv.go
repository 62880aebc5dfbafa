package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// RatesFile is the treasury yield file name inside the data directory.
const RatesFile = "rates.csv"

// candleDTO is one row of <TICKER>.csv.
type candleDTO struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// chainDTO is one row of <TICKER>_<YYYY-MM-DD>.csv.
type chainDTO struct {
	ContractID        string  `csv:"contract_id"`
	Type              string  `csv:"type"`
	Strike            float64 `csv:"strike"`
	LastPrice         float64 `csv:"last_price"`
	Bid               float64 `csv:"bid"`
	Ask               float64 `csv:"ask"`
	ImpliedVolatility float64 `csv:"implied_volatility"`
	InTheMoney        bool    `csv:"in_the_money"`
	OpenInterest      int64   `csv:"open_interest"`
	Volume            int64   `csv:"volume"`
}

// rateDTO is one row of rates.csv. Rate is in percent.
type rateDTO struct {
	Date string  `csv:"date"`
	Rate float64 `csv:"rate"`
}

// CSVProvider reads market data from CSV files in a directory:
// <TICKER>.csv for daily history, <TICKER>_<YYYY-MM-DD>.csv for the chain
// of each expiry and rates.csv for the treasury yield.
type CSVProvider struct {
	dir          string
	fallbackRate float64
	now          func() time.Time
}

// NewCSVProvider creates a provider over dir. fallbackRate is used when
// rates.csv does not exist.
func NewCSVProvider(dir string, fallbackRate float64) *CSVProvider {
	return &CSVProvider{dir: dir, fallbackRate: fallbackRate, now: time.Now}
}

// WithClock sets the clock used to evaluate lookback windows.
func (p *CSVProvider) WithClock(now func() time.Time) *CSVProvider {
	p.now = now
	return p
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func (p *CSVProvider) historyPath(ticker string) string {
	return filepath.Join(p.dir, normalizeTicker(ticker)+".csv")
}

func (p *CSVProvider) chainPath(ticker string, expiry time.Time) string {
	return filepath.Join(p.dir, normalizeTicker(ticker)+"_"+utils.FormatDate(expiry)+".csv")
}

// IsValidTicker reports whether a history file exists for ticker.
func (p *CSVProvider) IsValidTicker(ctx context.Context, ticker string) (bool, error) {
	if normalizeTicker(ticker) == "" {
		return false, nil
	}
	_, err := os.Stat(p.historyPath(ticker))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperrors.NewDataError("history", ticker, "stat failed", err)
}

// GetPriceHistory implements Provider.
func (p *CSVProvider) GetPriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]models.Candle, error) {
	var rows []candleDTO
	if err := readCSV(p.historyPath(ticker), &rows); err != nil {
		return nil, apperrors.NewDataError("history", ticker, "reading history", err)
	}

	cutoff := models.Date(p.now()).AddDate(0, 0, -lookbackDays)
	candles := make([]models.Candle, 0, len(rows))
	for i, row := range rows {
		ts, err := utils.ParseDate(row.Date)
		if err != nil {
			return nil, apperrors.NewDataError("history", ticker, fmt.Sprintf("row %d", i+2), err)
		}
		if lookbackDays > 0 && ts.Before(cutoff) {
			continue
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp.Before(candles[j].Timestamp) })
	return candles, nil
}

// GetRiskFreeRate returns the latest yield in rates.csv, or the fallback.
func (p *CSVProvider) GetRiskFreeRate(ctx context.Context) (float64, error) {
	path := filepath.Join(p.dir, RatesFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return p.fallbackRate, nil
	}

	var rows []rateDTO
	if err := readCSV(path, &rows); err != nil {
		return 0, apperrors.NewDataError("rate", "", "reading rates", err)
	}
	if len(rows) == 0 {
		return p.fallbackRate, nil
	}

	latest := rows[0]
	for _, r := range rows[1:] {
		if r.Date > latest.Date {
			latest = r
		}
	}
	return latest.Rate / 100, nil
}

// GetOptionChain implements Provider. Rows are sorted by product then strike.
func (p *CSVProvider) GetOptionChain(ctx context.Context, ticker string, expiry time.Time) ([]models.ChainQuote, error) {
	var rows []chainDTO
	if err := readCSV(p.chainPath(ticker, expiry), &rows); err != nil {
		return nil, apperrors.NewDataError("chain", ticker, "reading chain for "+utils.FormatDate(expiry), err)
	}

	quotes := make([]models.ChainQuote, 0, len(rows))
	for _, row := range rows {
		product, err := models.ParseProduct(row.Type)
		if err != nil {
			return nil, apperrors.NewDataError("chain", ticker, "bad contract type", err)
		}
		quotes = append(quotes, models.ChainQuote{
			ContractID:        row.ContractID,
			Product:           product,
			Strike:            row.Strike,
			LastPrice:         row.LastPrice,
			Bid:               row.Bid,
			Ask:               row.Ask,
			ImpliedVolatility: row.ImpliedVolatility,
			InTheMoney:        row.InTheMoney,
			OpenInterest:      row.OpenInterest,
			Volume:            row.Volume,
		})
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		if quotes[i].Product != quotes[j].Product {
			return quotes[i].Product < quotes[j].Product
		}
		return quotes[i].Strike < quotes[j].Strike
	})
	return quotes, nil
}

// GetExpiryDates lists the expiries that have a chain file, ascending.
func (p *CSVProvider) GetExpiryDates(ctx context.Context, ticker string) ([]time.Time, error) {
	prefix := normalizeTicker(ticker) + "_"
	matches, err := filepath.Glob(filepath.Join(p.dir, prefix+"*.csv"))
	if err != nil {
		return nil, apperrors.NewDataError("expiries", ticker, "listing chains", err)
	}

	var dates []time.Time
	for _, m := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix), ".csv")
		d, err := utils.ParseDate(name)
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	if len(dates) == 0 {
		return nil, apperrors.NewDataError("expiries", ticker, "no option chains", apperrors.ErrDataNotFound)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func readCSV(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", filepath.Base(path), apperrors.ErrDataNotFound)
		}
		return err
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
