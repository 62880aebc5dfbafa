package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smq100/inish-optionanalysis-sub000/internal/batch"
	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
	"github.com/smq100/inish-optionanalysis-sub000/internal/models"
	"github.com/smq100/inish-optionanalysis-sub000/internal/pricing"
	"github.com/smq100/inish-optionanalysis-sub000/internal/strategy"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// addPricingCommands adds single option pricing commands.
func addPricingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPriceCmd(app))
	rootCmd.AddCommand(newTableCmd(app))
}

// addPositionFlags registers the flags that describe a position and its
// market inputs.
func addPositionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("direction", "d", "long", "Direction (long, short)")
	cmd.Flags().Float64P("strike", "k", 0, "Strike price (default: spot rounded to the grid step)")
	cmd.Flags().String("expiry", "", "Expiry date (YYYY-MM-DD)")
	cmd.Flags().Int("days", 30, "Days to expiry when --expiry is not set")
	cmd.Flags().IntP("quantity", "q", 1, "Contracts per leg")
	cmd.Flags().StringP("method", "m", "", "Pricing method (black-scholes, monte-carlo)")
	cmd.Flags().Float64("volatility", 0, "Volatility override; 0 uses historical volatility")
	cmd.Flags().Bool("chain", false, "Match legs against the option chain")
	cmd.Flags().Float64("spot", 0, "Spot price; skips loading market data")
	cmd.Flags().Float64("vol", 0, "Historical volatility used with --spot")
	cmd.Flags().Float64("rate", 0, "Risk-free rate used with --spot")
	cmd.Flags().Float64("dividend", 0, "Dividend yield used with --spot")
}

// readSpec builds a candidate spec from the position flags.
func readSpec(cmd *cobra.Command, ticker, kind string) (batch.Spec, error) {
	flags := cmd.Flags()
	spec := batch.Spec{
		Ticker: strings.ToUpper(ticker),
		Type:   kind,
	}
	spec.Direction, _ = flags.GetString("direction")
	spec.Strike, _ = flags.GetFloat64("strike")
	spec.Expiry, _ = flags.GetString("expiry")
	spec.ExpiryDays, _ = flags.GetInt("days")
	spec.Quantity, _ = flags.GetInt("quantity")
	spec.Method, _ = flags.GetString("method")
	spec.Chain, _ = flags.GetBool("chain")

	if flags.Changed("volatility") {
		vol, _ := flags.GetFloat64("volatility")
		if vol < 0 {
			return spec, apperrors.NewValidationError("volatility", vol, "must not be negative", nil)
		}
		spec.Volatility = &vol
	}

	if flags.Changed("spot") {
		m := &batch.MarketSpec{}
		m.Spot, _ = flags.GetFloat64("spot")
		m.Volatility, _ = flags.GetFloat64("vol")
		m.Rate, _ = flags.GetFloat64("rate")
		m.Dividend, _ = flags.GetFloat64("dividend")
		spec.Market = m
	}
	return spec, nil
}

// buildStrategy loads the market for spec and constructs its strategy. A
// zero strike is replaced by the spot snapped to the grid step.
func (app *App) buildStrategy(ctx context.Context, spec batch.Spec) (strategy.Strategy, error) {
	mkt, err := app.Market(ctx, spec.Ticker, spec.Market)
	if err != nil {
		return nil, err
	}
	if spec.Strike == 0 {
		spec.Strike = leg.SharedGrid([]float64{mkt.SpotPrice()}, 0).Center
	}

	s, err := batch.Build(spec, mkt, app.LegConfig())
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	s.SetLogger(logging.WithSymbol(logger, s.Ticker()))

	if spec.Chain && len(spec.Quotes) == 0 {
		quotes, err := app.Provider.GetOptionChain(ctx, s.Ticker(), s.Legs()[0].Expiry())
		if err != nil {
			return nil, apperrors.Wrapf(err, "option chain for %s", s.Ticker())
		}
		if n := batch.MatchQuotes(s, quotes); n == 0 {
			logger.Warn().Str("ticker", s.Ticker()).Msg("No chain quotes matched")
		}
	}
	return s, nil
}

// buildLeg builds the single leg a pricing command works on.
func (app *App) buildLeg(cmd *cobra.Command, args []string) (*leg.Leg, error) {
	product, _ := cmd.Flags().GetString("product")
	if _, err := models.ParseProduct(product); err != nil {
		return nil, apperrors.NewValidationError("product", product, err.Error(), apperrors.ErrUnknownEnum)
	}
	spec, err := readSpec(cmd, args[0], product)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	s, err := app.buildStrategy(ctx, spec)
	if err != nil {
		return nil, err
	}
	return s.Legs()[0], nil
}

// Quote is the result of pricing one option.
type Quote struct {
	Contract   models.OptionContract `json:"contract"`
	Direction  models.Direction      `json:"direction"`
	Quantity   int                   `json:"quantity"`
	Method     pricing.Method        `json:"method"`
	Spot       float64               `json:"spot"`
	Volatility float64               `json:"volatility"`
	Price      float64               `json:"price"`
	Greeks     *models.Greeks        `json:"greeks,omitempty"`
}

func newPriceCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "price <ticker>",
		Aliases: []string{"greeks"},
		Short:   "Price a single option",
		Long: `Price a European call or put and report its Greeks.

Volatility is the --volatility override when given, otherwise the implied
volatility from the option chain (--chain) unless it is below the configured
cutoff, otherwise the historical volatility of the underlying.`,
		Example: `  options price SPY --strike 450 --days 30
  options price AAPL --product put --expiry 2026-12-18 --method monte-carlo
  options greeks TEST --spot 100 --vol 0.2 --rate 0.05 --strike 100 --days 91`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			l, err := app.buildLeg(cmd, args)
			if err != nil {
				output.Error("Failed to build option: %v", err)
				return err
			}

			price, greeks, err := l.Calculate(true)
			if err != nil {
				output.Error("Failed to price option: %v", err)
				return err
			}

			q := Quote{
				Contract:   *l.Contract(),
				Direction:  l.Direction(),
				Quantity:   l.Quantity(),
				Method:     l.Method(),
				Spot:       l.Market().SpotPrice(),
				Volatility: l.Volatility(),
				Price:      price,
			}
			if l.Method() == pricing.MethodBlackScholes {
				q.Greeks = &greeks
			}

			if output.IsJSON() {
				return output.JSON(q)
			}
			displayQuote(output, q)
			return nil
		},
	}

	cmd.Flags().StringP("product", "p", "call", "Product (call, put)")
	addPositionFlags(cmd)

	return cmd
}

func displayQuote(output *Output, q Quote) {
	c := q.Contract
	output.Bold("%s %s %s %s", c.Ticker, utils.FormatDate(c.Expiry), FormatStrike(c.Strike), strings.ToUpper(string(c.Product)))
	output.Println()

	output.Printf("  Spot:        %s\n", FormatPrice(q.Spot))
	output.Printf("  Method:      %s\n", q.Method)
	output.Printf("  Volatility:  %s\n", utils.FormatPercent(q.Volatility))
	output.Printf("  Calculated:  %s\n", FormatPrice(c.CalculatedPrice))
	if c.LastPrice > 0 {
		output.Printf("  Last:        %s  %s\n", FormatPrice(c.LastPrice), c.ContractID)
	}
	output.Printf("  Price:       %s\n", output.BoldText(FormatPrice(q.Price)))
	output.Println()

	if q.Greeks == nil {
		output.Dim("  Greeks are not available for %s", q.Method)
		return
	}

	t := NewTable(output, "Delta", "Gamma", "Theta", "Vega", "Rho")
	g := q.Greeks
	t.AddRow(
		fmt.Sprintf("%.4f", g.Delta),
		fmt.Sprintf("%.4f", g.Gamma),
		fmt.Sprintf("%.4f", g.Theta),
		fmt.Sprintf("%.4f", g.Vega),
		fmt.Sprintf("%.4f", g.Rho),
	)
	t.Render()
}

func newTableCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table <ticker>",
		Short: "Show an option's value across spot prices and dates",
		Long: `Price one option on a grid of spot prices around the strike and on every
date from today to expiry. The last column is the value at expiry.`,
		Example: `  options table SPY --strike 450 --days 14
  options table TEST --spot 100 --vol 0.25 --strike 100 --columns 6`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			l, err := app.buildLeg(cmd, args)
			if err != nil {
				output.Error("Failed to build option: %v", err)
				return err
			}
			if _, _, err := l.Calculate(false); err != nil {
				output.Error("Failed to price option: %v", err)
				return err
			}
			table, err := l.GenerateValueTable()
			if err != nil {
				output.Error("Failed to generate table: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(table)
			}

			output.Bold("%s", l.String())
			output.Dim("Price %s at spot %s", FormatPrice(l.Price()), FormatPrice(l.Market().SpotPrice()))
			output.Println()
			columns, _ := cmd.Flags().GetInt("columns")
			renderValueTable(output, table, columns, false)
			return nil
		},
	}

	cmd.Flags().StringP("product", "p", "call", "Product (call, put)")
	cmd.Flags().Int("columns", 8, "Maximum date columns to show; 0 shows all")
	addPositionFlags(cmd)

	return cmd
}
