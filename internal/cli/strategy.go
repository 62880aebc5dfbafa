package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smq100/inish-optionanalysis-sub000/internal/batch"
	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/store"
	"github.com/smq100/inish-optionanalysis-sub000/internal/strategy"
	"github.com/smq100/inish-optionanalysis-sub000/pkg/utils"
)

// addStrategyCommands adds strategy analysis commands.
func addStrategyCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStrategyCmd(app))
	rootCmd.AddCommand(newBatchCmd(app))
	rootCmd.AddCommand(newResultsCmd(app))
}

func newStrategyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "strategy <type> <ticker>",
		Aliases: []string{"analyze"},
		Short:   "Analyze an option strategy",
		Long: `Analyze a call, put, vertical, iron-condor or iron-butterfly.

Widths are strike offsets: a vertical takes one (distance to the second
strike), an iron condor two (center to short strikes, short to long
strikes) and an iron butterfly one (center to the wings).`,
		Example: `  options strategy call SPY --strike 450 --days 30
  options strategy vertical SPY --product put --direction short --strike 440 --widths 5
  options strategy iron-condor SPY --direction short --strike 450 --widths 10,5 --table
  options strategy ib TEST --spot 100 --vol 0.2 --rate 0.05 --widths 10`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			spec, err := readSpec(cmd, args[1], args[0])
			if err != nil {
				output.Error("Invalid arguments: %v", err)
				return err
			}
			spec.Product, _ = cmd.Flags().GetString("product")
			spec.Widths, _ = cmd.Flags().GetFloat64Slice("widths")

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			s, err := app.buildStrategy(ctx, spec)
			if err != nil {
				output.Error("Failed to build strategy: %v", err)
				return err
			}

			a, err := s.Analyze()
			if err != nil {
				output.Error("Analysis failed: %v", err)
				return err
			}

			showTable, _ := cmd.Flags().GetBool("table")
			if output.IsJSON() {
				if !showTable {
					trimmed := *a
					trimmed.ProfitTable = nil
					a = &trimmed
				}
				return output.JSON(a)
			}

			displayAnalysis(output, a)
			if showTable {
				output.Println()
				columns, _ := cmd.Flags().GetInt("columns")
				renderValueTable(output, a.ProfitTable, columns, true)
			}
			return nil
		},
	}

	cmd.Flags().StringP("product", "p", "call", "Product of a vertical (call, put)")
	cmd.Flags().Float64SliceP("widths", "w", nil, "Strike widths")
	cmd.Flags().Bool("table", false, "Show the profit table")
	cmd.Flags().Int("columns", 8, "Maximum date columns to show; 0 shows all")
	addPositionFlags(cmd)

	return cmd
}

func newBatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Analyze and rank many candidate strategies",
		Long: `Analyze every candidate in a YAML spec file concurrently and rank the
results by score. Candidates that fail are listed separately and never stop
the batch. Interrupting the run fails the candidates not yet started.

Example spec file:

  specs:
    - ticker: SPY
      type: iron-condor
      direction: short
      strike: 450
      widths: [10, 5]
      expiry_days: 30
    - ticker: AAPL
      type: vertical
      product: put
      direction: short
      strike: 180
      widths: [5]
      expiry: 2026-12-18
      chain: true`,
		Example: `  options batch candidates.yaml
  options batch candidates.yaml --workers 4 --persist --top 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			specs, err := batch.LoadSpecs(args[0])
			if err != nil {
				output.Error("Failed to load specs: %v", err)
				return err
			}

			cfg := app.BatchConfig()
			if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
				cfg.MaxWorkers = workers
			}

			var opts []batch.Option
			persist := app.Config.Batch.Persist
			if cmd.Flags().Changed("persist") {
				persist, _ = cmd.Flags().GetBool("persist")
			}
			if persist {
				if app.Store == nil {
					output.Warning("Store unavailable, results will not be saved")
				} else {
					opts = append(opts, batch.WithStore(app.Store))
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			report, err := batch.NewAnalyzer(app.Provider, cfg, opts...).Run(ctx, specs)
			if report == nil {
				output.Error("Batch failed: %v", err)
				return err
			}

			top, _ := cmd.Flags().GetInt("top")
			if output.IsJSON() {
				if jerr := output.JSON(newReportView(report, top)); jerr != nil {
					return jerr
				}
				return err
			}

			displayReport(output, report, top)
			if err != nil {
				output.Error("Batch incomplete: %v", err)
			}
			return err
		},
	}

	cmd.Flags().Int("workers", 0, "Maximum concurrent analyses (default: batch.max_workers)")
	cmd.Flags().Bool("persist", false, "Save results to the store")
	cmd.Flags().Int("top", 0, "Show only the best N results; 0 shows all")

	return cmd
}

// failureView is a Failure with its error rendered for JSON.
type failureView struct {
	Index int        `json:"index"`
	Spec  batch.Spec `json:"spec"`
	Error string     `json:"error"`
}

type reportView struct {
	ID       string         `json:"id"`
	Started  time.Time      `json:"started"`
	Duration string         `json:"duration"`
	Results  []batch.Result `json:"results"`
	Failures []failureView  `json:"failures"`
}

func newReportView(r *batch.Report, top int) reportView {
	v := reportView{
		ID:       r.ID,
		Started:  r.Started,
		Duration: r.Duration.String(),
		Results:  make([]batch.Result, 0, len(r.Results)),
		Failures: make([]failureView, len(r.Failures)),
	}
	for _, res := range limit(r.Results, top) {
		trimmed := *res.Analysis
		trimmed.ProfitTable = nil
		res.Analysis = &trimmed
		v.Results = append(v.Results, res)
	}
	for i, f := range r.Failures {
		v.Failures[i] = failureView{Index: f.Index, Spec: f.Spec, Error: f.Err.Error()}
	}
	return v
}

func limit[T any](items []T, n int) []T {
	if n > 0 && n < len(items) {
		return items[:n]
	}
	return items
}

func displayReport(output *Output, r *batch.Report, top int) {
	output.Bold("Batch %s", r.ID)
	output.Dim("%d analyzed, %d failed in %s", len(r.Results), len(r.Failures), r.Duration.Round(time.Millisecond))
	output.Println()

	if len(r.Results) > 0 {
		t := NewTable(output, "#", "Ticker", "Strategy", "Legs", "Amount", "Max Gain", "Max Loss", "POP", "Score")
		for i, res := range limit(r.Results, top) {
			a := res.Analysis
			t.AddRow(
				fmt.Sprintf("%d", i+1),
				a.Ticker,
				fmt.Sprintf("%s %s", a.Direction, a.Strategy),
				FormatLegs(a.Positions),
				fmt.Sprintf("%s %s", FormatPrice(a.Amount), a.CreditDebit),
				utils.FormatAmount(a.MaxGain),
				utils.FormatAmount(a.MaxLoss),
				utils.FormatPercent(a.Pop),
				output.PnL(a.Score),
			)
		}
		t.Render()
	}

	if len(r.Failures) > 0 {
		output.Println()
		output.Warning("Failed candidates")
		for _, f := range r.Failures {
			output.Printf("  %s\n", f.Error())
		}
	}
}

func newResultsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List saved batch results",
		Long:  "List strategy analyses saved by 'options batch --persist', best score first.",
		Example: `  options results
  options results --ticker SPY --strategy iron-condor --limit 5
  options results --batch 5f0c9a7e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store unavailable")
				return apperrors.ErrDatabaseError
			}

			filter := store.AnalysisFilter{}
			filter.BatchID, _ = cmd.Flags().GetString("batch")
			filter.Ticker, _ = cmd.Flags().GetString("ticker")
			filter.Ticker = strings.ToUpper(filter.Ticker)
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			if kind, _ := cmd.Flags().GetString("strategy"); kind != "" {
				k, err := strategy.ParseKind(kind)
				if err != nil {
					output.Error("Invalid strategy: %v", err)
					return err
				}
				filter.Strategy = string(k)
			}

			records, err := app.Store.GetAnalyses(cmd.Context(), filter)
			if err != nil {
				output.Error("Failed to load results: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(records)
			}

			freshness := store.GetDataFreshness(app.Store, store.SyncKey(store.SyncTypeAnalyses, ""), 24*time.Hour, app.Clock())
			output.Dim("Last batch saved: %s", store.FormatFreshness(freshness))
			output.Println()

			if len(records) == 0 {
				output.Info("No saved results")
				return nil
			}

			t := NewTable(output, "Created", "Ticker", "Strategy", "Amount", "Max Gain", "Max Loss", "Breakeven", "POP", "Score")
			for _, r := range records {
				t.AddRow(
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Ticker,
					fmt.Sprintf("%s %s", r.Direction, r.Strategy),
					fmt.Sprintf("%s %s", FormatPrice(r.Amount), r.CreditDebit),
					utils.FormatAmount(r.MaxGain),
					utils.FormatAmount(r.MaxLoss),
					FormatBreakevens(r.Breakevens),
					utils.FormatPercent(r.Pop),
					output.PnL(r.Score),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().String("batch", "", "Batch ID")
	cmd.Flags().String("ticker", "", "Ticker symbol")
	cmd.Flags().String("strategy", "", "Strategy type")
	cmd.Flags().Int("limit", 20, "Maximum results")

	return cmd
}
