// Package cli provides the command-line interface for the option analysis engine.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/smq100/inish-optionanalysis-sub000/internal/batch"
	"github.com/smq100/inish-optionanalysis-sub000/internal/config"
	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/marketdata"
	"github.com/smq100/inish-optionanalysis-sub000/internal/pricing"
	"github.com/smq100/inish-optionanalysis-sub000/internal/resilience"
	"github.com/smq100/inish-optionanalysis-sub000/internal/store"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// commandTimeout bounds market data loading for a single command.
const commandTimeout = 60 * time.Second

// App holds the application dependencies.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.DataStore
	Provider marketdata.Provider
	Clock    func() time.Time

	breakers func() []resilience.CircuitBreakerStats
	cache    *marketdata.Cache
}

// NewApp wires the store and the market data provider chain from cfg.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	app := &App{
		Config: cfg,
		Logger: logger,
		Clock:  time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		logger.Warn().Err(err).Msg("Failed to create store directory")
	}
	dataStore, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, results will not be saved")
	} else {
		app.Store = dataStore
		logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite store initialized")
	}

	app.wireProvider()
	return app
}

// wireProvider layers CSV files behind retries, a circuit breaker, a TTL
// cache and, when available, the SQLite history cache.
func (app *App) wireProvider() {
	cfg, logger := app.Config, app.Logger
	md := cfg.MarketData

	rcfg := marketdata.DefaultResilientConfig()
	rcfg.Retry.MaxAttempts = md.RetryAttempts
	rcfg.RateLimit = md.RateLimit
	if md.CircuitFailures > 0 {
		rcfg.Breaker.FailureThreshold = md.CircuitFailures
	}

	resilient := marketdata.NewResilientProvider(marketdata.NewCSVProvider(md.DataDir, md.RiskFreeRate), rcfg, logger)
	app.breakers = resilient.BreakerStats
	app.cache = marketdata.NewCache(md.CacheTTL)

	var p marketdata.Provider = marketdata.NewCachedProvider(resilient, app.cache)
	if app.Store != nil {
		p = marketdata.NewStoreProvider(p, app.Store, cfg.Store.Freshness, logger)
	}
	app.Provider = p
}

// Close releases the store.
func (app *App) Close() error {
	if app.Store == nil {
		return nil
	}
	return app.Store.Close()
}

// LegConfig derives leg settings from the configuration.
func (app *App) LegConfig() leg.Config {
	cfg := leg.DefaultConfig()
	p := app.Config.Pricing
	if method, err := pricing.ParseMethod(p.Method); err == nil {
		cfg.Method = method
	}
	cfg.MonteCarlo = pricing.MonteCarloConfig{Simulations: p.Simulations, Seed: p.Seed}
	cfg.ImpliedVolCutoff = p.ImpliedVolCutoff
	cfg.DateStepDays = app.Config.Grid.DateStepDays
	cfg.HalfRows = app.Config.Grid.HalfRows
	return cfg
}

// BatchConfig derives batch settings from the configuration.
func (app *App) BatchConfig() batch.Config {
	cfg := batch.DefaultConfig()
	cfg.MaxWorkers = app.Config.Batch.MaxWorkers
	cfg.Leg = app.LegConfig()
	cfg.LookbackDays = app.Config.Pricing.LookbackDays
	cfg.DividendYield = app.Config.Pricing.DividendYield
	cfg.Clock = app.Clock
	return cfg
}

// Market loads the market context for ticker. When m is set its inputs are
// used directly and no data is loaded.
func (app *App) Market(ctx context.Context, ticker string, m *batch.MarketSpec) (*market.Context, error) {
	if m != nil {
		return market.NewStatic(ticker, m.Spot, m.Volatility, m.Rate, m.Dividend, app.Clock)
	}
	return market.New(ctx, app.Provider, ticker,
		market.WithLookbackDays(app.Config.Pricing.LookbackDays),
		market.WithDividendYield(app.Config.Pricing.DividendYield),
		market.WithClock(app.Clock),
	)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "options",
		Short: "Option pricing and strategy analysis",
		Long: `Prices European options with Black-Scholes or Monte Carlo and analyzes
calls, puts, verticals, iron condors and iron butterflies.

Market data is read from CSV files in the configured data directory and
cached in a local SQLite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			logger := logging.WithOperation(app.Logger, cmd.Name())
			cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/optionanalysis)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addPricingCommands(rootCmd, app)
	addStrategyCommands(rootCmd, app)
	addMarketDataCommands(rootCmd, app)

	return rootCmd
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("options v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": dir})
			} else {
				output.Println(dir)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the store and market data sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			health := app.HealthChecker().Check(cmd.Context())
			if output.IsJSON() {
				if err := output.JSON(health); err != nil {
					return err
				}
			} else {
				displayHealth(output, app, health)
			}
			if health.Status == resilience.HealthStatusUnhealthy {
				return fmt.Errorf("market data status is %s", health.Status)
			}
			return nil
		},
	}
}

// HealthChecker registers the checks for the wired components.
func (app *App) HealthChecker() *resilience.HealthChecker {
	hc := resilience.NewHealthChecker(commandTimeout)

	dir := app.Config.MarketData.DataDir
	hc.RegisterComponent("data_dir", func(ctx context.Context) resilience.ComponentHealth {
		info, err := os.Stat(dir)
		switch {
		case err != nil:
			return resilience.ComponentHealth{Status: resilience.HealthStatusUnhealthy, Message: err.Error()}
		case !info.IsDir():
			return resilience.ComponentHealth{Status: resilience.HealthStatusUnhealthy, Message: dir + " is not a directory"}
		}
		return resilience.ComponentHealth{Status: resilience.HealthStatusHealthy, Message: dir}
	})

	if app.Store != nil {
		hc.RegisterComponent("store", resilience.DatabaseHealthCheck(func(ctx context.Context) error {
			_, err := app.Store.GetAnalyses(ctx, store.AnalysisFilter{Limit: 1})
			return err
		}))
	} else {
		hc.RegisterComponent("store", func(ctx context.Context) resilience.ComponentHealth {
			return resilience.ComponentHealth{Status: resilience.HealthStatusDegraded, Message: "Store unavailable, results will not be saved"}
		})
	}

	if app.breakers != nil {
		hc.RegisterComponent("market_data", resilience.BreakerHealthCheck(app.breakers))
	}
	return hc
}

func displayHealth(output *Output, app *App, health resilience.SystemHealth) {
	status := string(health.Status)
	switch health.Status {
	case resilience.HealthStatusHealthy:
		status = output.Green(status)
	case resilience.HealthStatusDegraded:
		status = output.Yellow(status)
	default:
		status = output.Red(status)
	}
	output.Printf("Status: %s\n\n", status)

	t := NewTable(output, "Component", "Status", "Message")
	for _, c := range health.Components {
		t.AddRow(c.Name, string(c.Status), c.Message)
	}
	t.Render()

	if app.cache != nil {
		stats := app.cache.Stats()
		output.Println()
		output.Dim("Cache: %d hits, %d misses", stats.Hits, stats.Misses)
	}
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Pricing")
	output.Printf("  Method:          %s\n", cfg.Pricing.Method)
	output.Printf("  Simulations:     %d\n", cfg.Pricing.Simulations)
	output.Printf("  Seed:            %d\n", cfg.Pricing.Seed)
	output.Printf("  Dividend yield:  %s\n", utils.FormatPercent(cfg.Pricing.DividendYield))
	output.Printf("  IV cutoff:       %s\n", utils.FormatPercent(cfg.Pricing.ImpliedVolCutoff))
	output.Printf("  Lookback:        %d days\n", cfg.Pricing.LookbackDays)
	output.Println()

	output.Bold("Grid")
	output.Printf("  Date step:       %d days\n", cfg.Grid.DateStepDays)
	output.Printf("  Half rows:       %d\n", cfg.Grid.HalfRows)
	output.Println()

	output.Bold("Batch")
	output.Printf("  Max workers:     %d\n", cfg.Batch.MaxWorkers)
	output.Printf("  Persist:         %v\n", cfg.Batch.Persist)
	output.Println()

	output.Bold("Market Data")
	output.Printf("  Data dir:        %s\n", cfg.MarketData.DataDir)
	output.Printf("  Risk-free rate:  %s\n", utils.FormatPercent(cfg.MarketData.RiskFreeRate))
	output.Printf("  Cache TTL:       %s\n", cfg.MarketData.CacheTTL)
	output.Printf("  Retry attempts:  %d\n", cfg.MarketData.RetryAttempts)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Printf("  Freshness:       %s\n", cfg.Store.Freshness)
}

// ConfigDir returns the --config value from raw arguments. The
// configuration is loaded before the command tree exists.
func ConfigDir(args []string) string {
	for i, arg := range args {
		switch {
		case arg == "--":
			return ""
		case arg == "--config" && i+1 < len(args):
			return args[i+1]
		case strings.HasPrefix(arg, "--config="):
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}
