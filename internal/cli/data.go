package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/store"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// addMarketDataCommands adds market data commands.
func addMarketDataCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newExpiriesCmd(app))
	rootCmd.AddCommand(newChainCmd(app))
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <ticker>",
		Short: "Show price history and historical volatility",
		Long: `Load daily price history for a ticker and report the annualized
historical volatility of its closes.

History is cached in the local store and refreshed once it is older than
the configured freshness window.`,
		Example: `  options history SPY
  options history AAPL --days 90 --rows 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			ticker := strings.ToUpper(args[0])
			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				days = app.Config.Pricing.LookbackDays
			}

			candles, err := app.Provider.GetPriceHistory(ctx, ticker, days)
			if err != nil {
				output.Error("Failed to load history: %v", err)
				return err
			}
			vol, err := market.HistoricalVolatility(candles)
			if err != nil {
				output.Error("Failed to compute volatility: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"ticker":     ticker,
					"volatility": vol,
					"candles":    candles,
				})
			}

			displayHistory(output, app, ticker, days, candles, vol, cmd)
			return nil
		},
	}

	cmd.Flags().Int("days", 0, "Lookback in calendar days (default: pricing.lookback_days)")
	cmd.Flags().Int("rows", 15, "Most recent candles to show; 0 shows all")

	return cmd
}

func displayHistory(output *Output, app *App, ticker string, days int, candles []models.Candle, vol float64, cmd *cobra.Command) {
	last := candles[len(candles)-1]
	output.Bold("%s", ticker)
	output.Printf("  Last close:  %s  (%s)\n", FormatPrice(last.Close), utils.FormatDate(last.Timestamp))
	output.Printf("  Candles:     %d\n", len(candles))
	output.Printf("  Volatility:  %s\n", utils.FormatPercent(vol))
	if app.Store != nil {
		freshness := store.GetDataFreshness(app.Store, store.HistorySyncKey(ticker, days), app.Config.Store.Freshness, app.Clock())
		output.Dim("  Synced:      %s", store.FormatFreshness(freshness))
	}
	output.Println()

	rows, _ := cmd.Flags().GetInt("rows")
	shown := candles
	if rows > 0 && rows < len(candles) {
		shown = candles[len(candles)-rows:]
	}

	t := NewTable(output, "Date", "Open", "High", "Low", "Close", "Volume")
	for i := len(shown) - 1; i >= 0; i-- {
		c := shown[i]
		t.AddRow(
			utils.FormatDate(c.Timestamp),
			FormatPrice(c.Open),
			FormatPrice(c.High),
			FormatPrice(c.Low),
			FormatPrice(c.Close),
			fmt.Sprintf("%d", c.Volume),
		)
	}
	t.Render()
}

func newExpiriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "expiries <ticker>",
		Short:   "List option expiry dates",
		Example: `  options expiries SPY`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			ticker := strings.ToUpper(args[0])
			dates, err := app.Provider.GetExpiryDates(ctx, ticker)
			if err != nil {
				output.Error("Failed to load expiries: %v", err)
				return err
			}

			if output.IsJSON() {
				out := make([]string, len(dates))
				for i, d := range dates {
					out[i] = utils.FormatDate(d)
				}
				return output.JSON(map[string]interface{}{"ticker": ticker, "expiries": out})
			}

			if len(dates) == 0 {
				output.Info("No expiries for %s", ticker)
				return nil
			}

			today := models.Date(app.Clock())
			t := NewTable(output, "Expiry", "Days")
			for _, d := range dates {
				t.AddRow(utils.FormatDate(d), fmt.Sprintf("%d", int(d.Sub(today).Hours()/24)))
			}
			t.Render()
			return nil
		},
	}
}

func newChainCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chain <ticker>",
		Short: "Show the option chain for one expiry",
		Example: `  options chain SPY --expiry 2026-12-18
  options chain SPY --expiry 2026-12-18 --product put`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			ticker := strings.ToUpper(args[0])
			raw, _ := cmd.Flags().GetString("expiry")
			expiry, err := utils.ParseDate(raw)
			if err != nil {
				output.Error("Invalid expiry: %v", err)
				return err
			}

			quotes, err := app.Provider.GetOptionChain(ctx, ticker, expiry)
			if err != nil {
				output.Error("Failed to load chain: %v", err)
				return err
			}

			if product, _ := cmd.Flags().GetString("product"); product != "" {
				p, err := models.ParseProduct(product)
				if err != nil {
					output.Error("Invalid product: %v", err)
					return err
				}
				filtered := quotes[:0]
				for _, q := range quotes {
					if q.Product == p {
						filtered = append(filtered, q)
					}
				}
				quotes = filtered
			}

			if output.IsJSON() {
				return output.JSON(quotes)
			}

			t := NewTable(output, "Contract", "Type", "Strike", "Last", "Bid", "Ask", "Mid", "IV", "OI", "Volume")
			for _, q := range quotes {
				contract := q.ContractID
				mid := "-"
				if m := q.Mid(); m > 0 {
					mid = FormatPrice(m)
				}
				if q.InTheMoney {
					contract = output.BoldText(contract)
				}
				t.AddRow(
					contract,
					string(q.Product),
					FormatStrike(q.Strike),
					FormatPrice(q.LastPrice),
					FormatPrice(q.Bid),
					FormatPrice(q.Ask),
					utils.FormatPercent(q.ImpliedVolatility),
					fmt.Sprintf("%d", q.OpenInterest),
					fmt.Sprintf("%d", q.Volume),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().String("expiry", "", "Expiry date (YYYY-MM-DD)")
	cmd.Flags().StringP("product", "p", "", "Only calls or puts")
	_ = cmd.MarkFlagRequired("expiry")

	return cmd
}
