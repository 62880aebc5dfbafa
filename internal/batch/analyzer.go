// Package batch evaluates many candidate strategies concurrently and ranks
// the results.
package batch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "github.com/smq100/inish-optionanalysis-sub000/internal/errors"
	"github.com/smq100/inish-optionanalysis-sub000/internal/leg"
	"github.com/smq100/inish-optionanalysis-sub000/internal/logging"
	"github.com/smq100/inish-optionanalysis-sub000/internal/market"
	"github.com/smq100/inish-optionanalysis-sub000/internal/marketdata"
	"github.com/smq100/inish-optionanalysis-sub000/internal/performance"
	"github.com/smq100/inish-optionanalysis-sub000/internal/store"
	"github.com/smq100/inish-optionanalysis-sub000/internal/strategy"
)

// persistBatchSize is the number of records written per store call.
const persistBatchSize = 50

// Config holds batch settings.
type Config struct {
	MaxWorkers    int
	Leg           leg.Config
	LookbackDays  int
	DividendYield float64
	Clock         func() time.Time
}

// DefaultConfig returns the default batch settings.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:   8,
		Leg:          leg.DefaultConfig(),
		LookbackDays: market.DefaultLookbackDays,
		Clock:        time.Now,
	}
}

// Result is one successfully analyzed candidate.
type Result struct {
	ID       string             `json:"id"`
	Index    int                `json:"index"`
	Spec     Spec               `json:"spec"`
	Analysis *strategy.Analysis `json:"analysis"`
}

// Failure is a candidate that could not be built or analyzed.
type Failure struct {
	Index int   `json:"index"`
	Spec  Spec  `json:"spec"`
	Err   error `json:"-"`
}

// Error returns the failure message.
func (f Failure) Error() string {
	return fmt.Sprintf("#%d %s: %v", f.Index, f.Spec.Label(), f.Err)
}

// Report is the outcome of one batch run.
type Report struct {
	ID       string        `json:"id"`
	Results  []Result      `json:"results"`
	Failures []Failure     `json:"failures"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// Analyzer runs candidate specs on a bounded worker pool.
type Analyzer struct {
	provider marketdata.Provider
	store    store.DataStore
	cfg      Config
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithStore persists every report to st.
func WithStore(st store.DataStore) Option {
	return func(a *Analyzer) { a.store = st }
}

// NewAnalyzer creates an analyzer. provider may be nil when every spec
// carries its own market inputs.
func NewAnalyzer(provider marketdata.Provider, cfg Config, opts ...Option) *Analyzer {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = market.DefaultLookbackDays
	}
	a := &Analyzer{
		provider: provider,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run analyzes every spec. A failing candidate never aborts the batch; it
// is recorded in Failures. Results are sorted by score, best first. If ctx
// is canceled, specs not yet started fail with the context error. The
// logger is taken from ctx.
func (a *Analyzer) Run(ctx context.Context, specs []Spec) (*Report, error) {
	report := &Report{ID: uuid.NewString(), Started: a.cfg.Clock()}
	logger := logging.WithBatch(logging.FromContext(ctx), report.ID)
	start := time.Now()

	if len(specs) == 0 {
		return report, nil
	}

	workers := len(specs)
	if a.cfg.MaxWorkers > 0 && a.cfg.MaxWorkers < workers {
		workers = a.cfg.MaxWorkers
	}
	pool := performance.NewWorkerPool(workers)
	pool.Start()
	logger.Debug().Int("workers", pool.Workers()).Int("candidates", len(specs)).Msg("Batch started")

	var mu sync.Mutex
	record := func(res *Result, fail *Failure) {
		mu.Lock()
		defer mu.Unlock()
		if fail != nil {
			report.Failures = append(report.Failures, *fail)
			return
		}
		report.Results = append(report.Results, *res)
	}

	for i, spec := range specs {
		task := func() {
			res, err := a.analyze(ctx, logger, i, spec)
			if err != nil {
				logger.Warn().Err(err).Int("index", i).Str("candidate", spec.Label()).Msg("Candidate failed")
				record(nil, &Failure{Index: i, Spec: spec, Err: err})
				return
			}
			record(res, nil)
		}
		if !pool.SubmitContext(ctx, task) {
			for j := i; j < len(specs); j++ {
				record(nil, &Failure{Index: j, Spec: specs[j], Err: ctx.Err()})
			}
			break
		}
	}
	pool.Stop()
	stats := pool.Stats()
	logger.Debug().Uint64("tasks_done", stats.TasksDone).Uint64("tasks_total", stats.TasksTotal).Msg("Worker pool drained")

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Analysis.Score > report.Results[j].Analysis.Score
	})
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Index < report.Failures[j].Index
	})
	report.Duration = time.Since(start)

	logging.LogBatch(logger, report.ID, len(specs), len(report.Results), len(report.Failures), report.Duration)

	if a.store != nil && len(report.Results) > 0 {
		if err := a.persist(ctx, report); err != nil {
			return report, err
		}
	}
	return report, ctx.Err()
}

// analyze builds and analyzes one candidate, converting panics to errors.
func (a *Analyzer) analyze(ctx context.Context, logger zerolog.Logger, index int, spec Spec) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic analyzing candidate %d: %v", index, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mkt, err := a.marketFor(ctx, spec)
	if err != nil {
		return nil, err
	}

	s, err := Build(spec, mkt, a.cfg.Leg)
	if err != nil {
		return nil, err
	}
	s.SetLogger(logging.WithSymbol(logger, spec.Ticker))

	if spec.Chain && len(spec.Quotes) == 0 && a.provider != nil {
		if err := a.matchChain(ctx, s); err != nil {
			return nil, err
		}
	}

	analysis, err := s.Analyze()
	if err != nil {
		return nil, err
	}
	return &Result{ID: uuid.NewString(), Index: index, Spec: spec, Analysis: analysis}, nil
}

func (a *Analyzer) marketFor(ctx context.Context, spec Spec) (*market.Context, error) {
	if m := spec.Market; m != nil {
		return market.NewStatic(spec.Ticker, m.Spot, m.Volatility, m.Rate, m.Dividend, a.cfg.Clock)
	}
	if a.provider == nil {
		return nil, apperrors.NewDataError("market", spec.Ticker, "no market inputs and no provider", apperrors.ErrDataNotFound)
	}
	return market.New(ctx, a.provider, spec.Ticker,
		market.WithLookbackDays(a.cfg.LookbackDays),
		market.WithDividendYield(a.cfg.DividendYield),
		market.WithClock(a.cfg.Clock),
	)
}

func (a *Analyzer) matchChain(ctx context.Context, s strategy.Strategy) error {
	expiry := s.Legs()[0].Expiry()
	quotes, err := a.provider.GetOptionChain(ctx, s.Ticker(), expiry)
	if err != nil {
		return apperrors.Wrapf(err, "option chain for %s", s.Ticker())
	}
	MatchQuotes(s, quotes)
	return nil
}

func (a *Analyzer) persist(ctx context.Context, report *Report) error {
	proc := performance.NewBatchProcessor(persistBatchSize, func(records []store.AnalysisRecord) error {
		return a.store.SaveAnalyses(ctx, records)
	})
	for _, r := range report.Results {
		if err := proc.Add(ToRecord(report.ID, r, report.Started)); err != nil {
			return apperrors.Wrap(err, "persisting batch")
		}
	}
	if err := proc.Flush(); err != nil {
		return apperrors.Wrap(err, "persisting batch")
	}
	return store.MarkSynced(a.store, store.SyncKey(store.SyncTypeAnalyses, ""), a.cfg.Clock())
}

// ToRecord converts a result into its persisted form.
func ToRecord(batchID string, r Result, createdAt time.Time) store.AnalysisRecord {
	an := r.Analysis
	legs := make([]store.LegRecord, len(an.Positions))
	for i, p := range an.Positions {
		legs[i] = store.LegRecord{
			Product:    string(p.Contract.Product),
			Direction:  string(p.Direction),
			Strike:     p.Contract.Strike,
			Expiry:     p.Contract.Expiry,
			Quantity:   p.Quantity,
			Price:      p.Price,
			Volatility: p.Volatility,
		}
	}
	return store.AnalysisRecord{
		ID:          r.ID,
		BatchID:     batchID,
		Ticker:      an.Ticker,
		Strategy:    string(an.Strategy),
		Direction:   string(an.Direction),
		CreditDebit: string(an.CreditDebit),
		Amount:      an.Amount,
		MaxGain:     an.MaxGain,
		MaxLoss:     an.MaxLoss,
		Breakevens:  an.Breakevens,
		Sentiment:   string(an.Sentiment),
		Pop:         an.Pop,
		Score:       an.Score,
		Legs:        legs,
		CreatedAt:   createdAt,
	}
}
