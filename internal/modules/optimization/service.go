package optimization

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SeriesProvider supplies per-asset daily close history. Implemented by the
// historical module's service (cache-through to the market data client).
type SeriesProvider interface {
	Series(ctx context.Context, symbols []string, start, end string) ([]AssetSeries, error)
}

// RunParams are the validated parameters of one optimization run. Handlers
// own validation policy (ticker parsing, rate bounds, scenario bounds); the
// service assumes the values are in range.
type RunParams struct {
	Symbols      []string `json:"symbols"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	RiskFreeRate float64  `json:"risk_free_rate"` // annualized fraction, e.g. 0.06
	Scenarios    int      `json:"scenarios"`
	Seed         int64    `json:"seed,omitempty"`
	Workers      int      `json:"workers,omitempty"`
}

// WeightEntry pairs a symbol with its optimal weight for the dashboard table.
type WeightEntry struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// RunSummary is the service-level result: the core's Result plus the
// identifiers and presentation extras the dashboard consumes.
type RunSummary struct {
	RunID      string        `json:"run_id"`
	Params     RunParams     `json:"params"`
	Symbols    []string      `json:"symbols"`
	Dates      int           `json:"aligned_rows"`
	Result     *Result       `json:"result"`
	Allocation []WeightEntry `json:"allocation"`
	Rating     string        `json:"rating"`
	Elapsed    time.Duration `json:"-"`
	ElapsedMS  int64         `json:"elapsed_ms"`
	RanAt      time.Time     `json:"ran_at"`
}

// Service orchestrates one optimization run: fetch series, align, build
// statistics, sample, summarize.
type Service struct {
	prices SeriesProvider
	log    zerolog.Logger
}

// NewService creates a new optimization service.
func NewService(prices SeriesProvider, log zerolog.Logger) *Service {
	return &Service{
		prices: prices,
		log:    log.With().Str("service", "optimization").Logger(),
	}
}

// AlignedTable fetches and aligns the price table for the given symbols and
// range. Shared with the charts module so both render from the same rows.
func (s *Service) AlignedTable(ctx context.Context, symbols []string, start, end string) (*PriceTable, error) {
	if len(symbols) < 2 {
		return nil, ErrInsufficientAssets
	}
	series, err := s.prices.Series(ctx, symbols, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price series: %w", err)
	}
	return Align(series)
}

// Prepare fetches, aligns, and reduces the price history for a run into
// annualization-ready statistics. Split from Run so the streaming endpoint
// can sample scenario-by-scenario over the same inputs.
func (s *Service) Prepare(ctx context.Context, params RunParams) (*PriceTable, *Statistics, error) {
	table, err := s.AlignedTable(ctx, params.Symbols, params.Start, params.End)
	if err != nil {
		return nil, nil, err
	}
	stats, err := BuildStatistics(table)
	if err != nil {
		return nil, nil, err
	}
	return table, stats, nil
}

// Run executes a full optimization run for the given parameters.
func (s *Service) Run(ctx context.Context, params RunParams) (*RunSummary, error) {
	started := time.Now()

	table, stats, err := s.Prepare(ctx, params)
	if err != nil {
		return nil, err
	}

	optimizer := NewMonteCarloOptimizer(Config{
		RiskFreeRate: params.RiskFreeRate,
		Scenarios:    params.Scenarios,
		Seed:         params.Seed,
		Workers:      params.Workers,
	})
	result, err := optimizer.Run(stats)
	if err != nil {
		return nil, err
	}

	return s.Summarize(params, table, result, started), nil
}

// Summarize assembles the service-level run summary from a core result.
func (s *Service) Summarize(params RunParams, table *PriceTable, result *Result, started time.Time) *RunSummary {
	allocation := make([]WeightEntry, len(table.Symbols))
	for i, sym := range table.Symbols {
		allocation[i] = WeightEntry{Symbol: sym, Weight: result.Best.Weights[i]}
	}

	elapsed := time.Since(started)
	summary := &RunSummary{
		RunID:      uuid.New().String(),
		Params:     params,
		Symbols:    table.Symbols,
		Dates:      table.Rows(),
		Result:     result,
		Allocation: allocation,
		Rating:     SharpeRating(result.Best.Sharpe),
		Elapsed:    elapsed,
		ElapsedMS:  elapsed.Milliseconds(),
		RanAt:      started.UTC(),
	}

	s.log.Info().
		Str("run_id", summary.RunID).
		Strs("symbols", table.Symbols).
		Int("scenarios", params.Scenarios).
		Int("aligned_rows", table.Rows()).
		Float64("best_sharpe", result.Best.Sharpe).
		Dur("elapsed", elapsed).
		Msg("Optimization run complete")

	return summary
}

// SharpeRating classifies a Sharpe ratio into the dashboard's rating bands.
func SharpeRating(sharpe float64) string {
	switch {
	case sharpe < 1:
		return "Poor"
	case sharpe < 2:
		return "Acceptable"
	case sharpe < 3:
		return "Good"
	default:
		return "Excellent"
	}
}
