package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smq100/inish-optionanalysis-sub000/internal/config"
	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/marketdata"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/pricing"
	"github.com/smq100/inish-optionanalysis-sub000/internal/resilience"
	"github.com/smq100/inish-optionanalysis-sub000/internal/store"
	"github.com/smq100/inish-optionanalysis-sub000/internal/strategy"
)

var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

var staticMarket = []string{"--spot", "100", "--vol", "0.2", "--rate", "0.05"}

func testApp(t *testing.T) (*App, *marketdata.MemoryProvider) {
	t.Helper()

	mem := marketdata.NewMemoryProvider(0.05)
	closes := []float64{98, 99.5, 101, 100.2, 99.8, 100.6, 100}
	candles := make([]models.Candle, len(closes))
	for i, c := range closes {
		candles[i] = models.Candle{
			Timestamp: now.AddDate(0, 0, i-len(closes)+1),
			Open:      c - 0.5, High: c + 1, Low: c - 1, Close: c,
			Volume: 1000,
		}
	}
	mem.SetHistory("SPY", candles)
	mem.SetChain("SPY", now.AddDate(0, 0, 30), []models.ChainQuote{
		{ContractID: "SPY260401C00100000", Product: models.ProductCall, Strike: 100, LastPrice: 3.25, Bid: 3.10, Ask: 3.30, ImpliedVolatility: 0.22},
		{ContractID: "SPY260401P00100000", Product: models.ProductPut, Strike: 100, LastPrice: 2.80, ImpliedVolatility: 0.24},
	})

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "options.db")

	return &App{
		Config:   cfg,
		Logger:   zerolog.Nop(),
		Provider: mem,
		Clock:    func() time.Time { return now },
	}, mem
}

func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCmd(app)
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestPriceCommandJSON(t *testing.T) {
	app, _ := testApp(t)

	args := append([]string{"price", "test", "--strike", "100", "--days", "91", "--json"}, staticMarket...)
	out, err := run(t, app, args...)
	require.NoError(t, err)

	var q Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, "TEST", q.Contract.Ticker)
	assert.Equal(t, pricing.MethodBlackScholes, q.Method)
	assert.InDelta(t, 4.61, q.Price, 0.01)
	assert.Equal(t, 0.2, q.Volatility)
	require.NotNil(t, q.Greeks)
	assert.Greater(t, q.Greeks.Delta, 0.5)
	assert.Less(t, q.Greeks.Delta, 0.7)
	assert.Less(t, q.Greeks.Theta, 0.0)
}

func TestGreeksAliasMonteCarloHasNoGreeks(t *testing.T) {
	app, _ := testApp(t)

	args := append([]string{"greeks", "TEST", "--product", "put", "--strike", "100", "--days", "30", "--method", "mc", "--json"}, staticMarket...)
	out, err := run(t, app, args...)
	require.NoError(t, err)

	var q Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, pricing.MethodMonteCarlo, q.Method)
	assert.Nil(t, q.Greeks)
	assert.Greater(t, q.Price, 0.0)
}

func TestPriceCommandUsesChain(t *testing.T) {
	app, mem := testApp(t)

	out, err := run(t, app, "price", "SPY", "--strike", "100", "--days", "30", "--chain", "--json")
	require.NoError(t, err)

	var q Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, 3.25, q.Price)
	assert.Equal(t, 0.22, q.Volatility)
	assert.Equal(t, "SPY260401C00100000", q.Contract.ContractID)
	assert.Equal(t, 1, mem.Calls("option_chain"))
}

func TestPriceCommandRejectsBadInput(t *testing.T) {
	app, _ := testApp(t)

	_, err := run(t, app, append([]string{"price", "TEST", "--product", "straddle"}, staticMarket...)...)
	assert.ErrorIs(t, err, apperrors.ErrUnknownEnum)

	_, err = run(t, app, append([]string{"price", "TEST", "--expiry", "2026-01-16"}, staticMarket...)...)
	assert.ErrorIs(t, err, apperrors.ErrExpiryInPast)

	_, err = run(t, app, "price", "NOPE")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTicker)
}

func TestTableCommand(t *testing.T) {
	app, _ := testApp(t)

	args := append([]string{"table", "TEST", "--strike", "100", "--days", "10", "--json"}, staticMarket...)
	out, err := run(t, app, args...)
	require.NoError(t, err)

	var table struct {
		Spots  []float64   `json:"spots"`
		Dates  []time.Time `json:"dates"`
		Values [][]float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.Len(t, table.Spots, 41)
	assert.Len(t, table.Dates, 11)
	require.Len(t, table.Values, 41)

	// Top row at expiry is deep in the money.
	last := len(table.Dates) - 1
	assert.InDelta(t, table.Spots[0]-100, table.Values[0][last], 0.01)

	text, err := run(t, app, append([]string{"table", "TEST", "--strike", "100", "--days", "10"}, staticMarket...)...)
	require.NoError(t, err)
	assert.Contains(t, text, "Spot")
	assert.Contains(t, text, "03-12")
}

func TestStrategyCommand(t *testing.T) {
	app, _ := testApp(t)

	args := append([]string{"strategy", "iron-condor", "TEST", "--direction", "short", "--strike", "100", "--widths", "5,5", "--quantity", "2", "--json"}, staticMarket...)
	out, err := run(t, app, args...)
	require.NoError(t, err)

	var a strategy.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Equal(t, strategy.KindIronCondor, a.Strategy)
	assert.Equal(t, strategy.Credit, a.CreditDebit)
	assert.Len(t, a.Positions, 4)
	assert.Len(t, a.Breakevens, 2)
	assert.Nil(t, a.ProfitTable)

	text, err := run(t, app, append([]string{"strategy", "vertical", "TEST", "--strike", "100", "--widths", "5", "--table"}, staticMarket...)...)
	require.NoError(t, err)
	assert.Contains(t, text, "+1 C100 -1 C105")
	assert.Contains(t, text, "Breakeven")
	assert.Contains(t, text, "Spot")
}

func TestStrategyCommandErrors(t *testing.T) {
	app, _ := testApp(t)

	_, err := run(t, app, append([]string{"strategy", "straddle", "TEST"}, staticMarket...)...)
	assert.ErrorIs(t, err, apperrors.ErrUnknownEnum)

	_, err = run(t, app, append([]string{"strategy", "vertical", "TEST", "--strike", "100"}, staticMarket...)...)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStrike)

	_, err = run(t, app, append([]string{"strategy", "ic", "TEST", "--strike", "100", "--widths", "0,5"}, staticMarket...)...)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStrategy)
}

const batchFile = `specs:
  - ticker: TEST
    type: call
    direction: long
    strike: 100
    expiry_days: 30
    market: {spot: 100, volatility: 0.2, rate: 0.05}
  - ticker: TEST
    type: iron-condor
    direction: short
    strike: 100
    widths: [0, 5]
    expiry_days: 30
    market: {spot: 100, volatility: 0.2, rate: 0.05}
  - ticker: SPY
    type: vertical
    product: put
    direction: short
    strike: 100
    widths: [5]
    expiry_days: 30
`

func TestBatchCommandPersistsAndLists(t *testing.T) {
	app, _ := testApp(t)
	st, err := store.NewSQLiteStore(app.Config.Store.Path)
	require.NoError(t, err)
	app.Store = st
	defer app.Close()

	path := filepath.Join(t.TempDir(), "specs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(batchFile), 0644))

	out, err := run(t, app, "batch", path, "--persist", "--workers", "2", "--json")
	require.NoError(t, err)

	var report reportView
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Len(t, report.Results, 2)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 1, report.Failures[0].Index)
	assert.Contains(t, report.Failures[0].Error, "iron-condor")
	for _, r := range report.Results {
		assert.Nil(t, r.Analysis.ProfitTable)
	}

	out, err = run(t, app, "results", "--batch", report.ID, "--json")
	require.NoError(t, err)

	var records []store.AnalysisRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.GreaterOrEqual(t, records[0].Score, records[1].Score)

	text, err := run(t, app, "results", "--ticker", "spy")
	require.NoError(t, err)
	assert.Contains(t, text, "short vertical")
	assert.Contains(t, text, "just now")
}

func TestBatchCommandWithoutStore(t *testing.T) {
	app, _ := testApp(t)

	path := filepath.Join(t.TempDir(), "specs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(batchFile), 0644))

	text, err := run(t, app, "batch", path, "--persist", "--top", "1")
	require.NoError(t, err)
	assert.Contains(t, text, "Store unavailable")
	assert.Contains(t, text, "Failed candidates")

	_, err = run(t, app, "results")
	assert.ErrorIs(t, err, apperrors.ErrDatabaseError)

	_, err = run(t, app, "batch", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestMarketDataCommands(t *testing.T) {
	app, _ := testApp(t)

	out, err := run(t, app, "history", "spy", "--json")
	require.NoError(t, err)
	var history struct {
		Ticker     string          `json:"ticker"`
		Volatility float64         `json:"volatility"`
		Candles    []models.Candle `json:"candles"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	assert.Equal(t, "SPY", history.Ticker)
	assert.Len(t, history.Candles, 7)
	assert.Greater(t, history.Volatility, 0.0)

	text, err := run(t, app, "history", "SPY", "--rows", "3")
	require.NoError(t, err)
	assert.Contains(t, text, "2026-03-02")
	assert.NotContains(t, text, "2026-02-24")

	out, err = run(t, app, "expiries", "SPY", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "2026-04-01")

	out, err = run(t, app, "chain", "SPY", "--expiry", "2026-04-01", "--product", "put", "--json")
	require.NoError(t, err)
	var quotes []models.ChainQuote
	require.NoError(t, json.Unmarshal([]byte(out), &quotes))
	require.Len(t, quotes, 1)
	assert.Equal(t, models.ProductPut, quotes[0].Product)

	text, err = run(t, app, "chain", "SPY", "--expiry", "2026-04-01")
	require.NoError(t, err)
	assert.Contains(t, text, "Mid")
	assert.Contains(t, text, "3.20")

	_, err = run(t, app, "chain", "SPY", "--expiry", "2026-05-01")
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestConfigCommands(t *testing.T) {
	app, _ := testApp(t)

	out, err := run(t, app, "config", "validate", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"valid": true`)

	text, err := run(t, app, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, text, "black-scholes")

	out, err = run(t, app, "config", "path", "--config", "/tmp/opts")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/opts\n", out)

	app.Config.Batch.MaxWorkers = 0
	_, err = run(t, app, "config", "validate")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	app, _ := testApp(t)
	out, err := run(t, app, "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestConfigDir(t *testing.T) {
	assert.Equal(t, "/etc/opts", ConfigDir([]string{"price", "SPY", "--config", "/etc/opts"}))
	assert.Equal(t, "/etc/opts", ConfigDir([]string{"--config=/etc/opts", "version"}))
	assert.Equal(t, "", ConfigDir([]string{"price", "--", "--config", "x"}))
	assert.Equal(t, "", ConfigDir(nil))
}

func TestLegConfigFromConfig(t *testing.T) {
	app, _ := testApp(t)
	app.Config.Pricing.Method = "monte-carlo"
	app.Config.Pricing.Simulations = 2000
	app.Config.Grid.HalfRows = 10

	cfg := app.LegConfig()
	assert.Equal(t, pricing.MethodMonteCarlo, cfg.Method)
	assert.Equal(t, 2000, cfg.MonteCarlo.Simulations)
	assert.Equal(t, 10, cfg.HalfRows)

	bcfg := app.BatchConfig()
	assert.Equal(t, app.Config.Batch.MaxWorkers, bcfg.MaxWorkers)
	assert.Equal(t, now, bcfg.Clock())
}

func TestStatusCommand(t *testing.T) {
	cfg := config.Default()
	cfg.MarketData.DataDir = t.TempDir()
	cfg.Store.Path = filepath.Join(t.TempDir(), "db", "options.db")

	app := NewApp(cfg, zerolog.Nop())
	defer app.Close()
	require.NotNil(t, app.Store)

	out, err := run(t, app, "status", "--json")
	require.NoError(t, err)

	var health resilience.SystemHealth
	require.NoError(t, json.Unmarshal([]byte(out), &health))
	assert.Equal(t, resilience.HealthStatusHealthy, health.Status)
	require.Len(t, health.Components, 3)
	assert.Equal(t, "data_dir", health.Components[0].Name)
	assert.Equal(t, "market_data", health.Components[1].Name)
	assert.Equal(t, "store", health.Components[2].Name)

	cfg.MarketData.DataDir = filepath.Join(t.TempDir(), "missing")
	text, err := run(t, app, "status")
	assert.Error(t, err)
	assert.Contains(t, text, "UNHEALTHY")
	assert.Contains(t, text, "Cache: 0 hits")
}

func TestProviderChainReadsCSV(t *testing.T) {
	dir := t.TempDir()
	today := models.Date(time.Now())
	csv := "date,open,high,low,close,volume\n"
	for i, c := range []float64{100, 101, 100.5} {
		day := today.AddDate(0, 0, i-2).Format("2006-01-02")
		csv += fmt.Sprintf("%s,%.2f,%.2f,%.2f,%.2f,1000\n", day, c-1, c+1, c-1.5, c)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SPY.csv"), []byte(csv), 0644))

	cfg := config.Default()
	cfg.MarketData.DataDir = dir
	cfg.Store.Path = filepath.Join(t.TempDir(), "options.db")

	app := NewApp(cfg, zerolog.Nop())
	defer app.Close()

	out, err := run(t, app, "price", "SPY", "--strike", "100", "--days", "30", "--json")
	require.NoError(t, err)

	var q Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	assert.Equal(t, 100.5, q.Spot)
	assert.Greater(t, q.Volatility, 0.0)
	assert.Greater(t, q.Price, 0.0)

	// A second run is served from the cache.
	_, err = run(t, app, "price", "SPY", "--strike", "100", "--days", "30", "--json")
	require.NoError(t, err)
	assert.Positive(t, app.cache.Stats().Hits)
}

func TestCommandLoggerCarriesOperation(t *testing.T) {
	app, _ := testApp(t)
	var logs bytes.Buffer
	app.Logger = zerolog.New(&logs)

	path := filepath.Join(t.TempDir(), "specs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(batchFile), 0644))

	_, err := run(t, app, "batch", path, "--json")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"operation":"batch"`)
	assert.Contains(t, logs.String(), "Candidate failed")
}
