package historical

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/abidamassi/frontier/internal/clients/yahoo"
	"github.com/abidamassi/frontier/internal/modules/optimization"
)

// maxConcurrentFetches bounds parallel upstream requests so Yahoo does
// not throttle the sync.
const maxConcurrentFetches = 4

// PriceFetcher is the upstream market data source. Implemented by the
// Yahoo Finance client.
type PriceFetcher interface {
	DailyHistory(ctx context.Context, symbol string, start, end time.Time) (*yahoo.History, error)
}

// Service is the cache-through price history layer: reads come from
// history.db, misses trigger an upstream sync for the missing symbol.
type Service struct {
	repo    *Repository
	fetcher PriceFetcher
	log     zerolog.Logger
}

// NewService creates a new historical price service.
func NewService(repo *Repository, fetcher PriceFetcher, log zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		log:     log.With().Str("service", "historical").Logger(),
	}
}

// Sync fetches daily history for all symbols concurrently and stores it.
// Per-symbol failures are recorded, not fatal; the sync fails only when
// every symbol fails.
func (s *Service) Sync(ctx context.Context, symbols []string, startDate, endDate string) (*SyncResult, error) {
	start, end, err := parseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result := &SyncResult{Symbols: make([]string, 0, len(symbols))}
	for _, sym := range symbols {
		result.Symbols = append(result.Symbols, NormalizeSymbol(sym))
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for _, symbol := range result.Symbols {
		symbol := symbol
		g.Go(func() error {
			inserted, err := s.syncOne(gctx, symbol, start, end)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Price sync failed for symbol")
				result.Failed = append(result.Failed, symbol)
				return nil // keep syncing the rest
			}
			result.Inserted += inserted
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(started)
	result.Duration = result.Elapsed.Round(time.Millisecond).String()

	if len(result.Failed) == len(result.Symbols) && len(result.Symbols) > 0 {
		return result, fmt.Errorf("price sync failed for all %d symbols", len(result.Symbols))
	}

	s.log.Info().
		Strs("symbols", result.Symbols).
		Int("inserted", result.Inserted).
		Int("failed", len(result.Failed)).
		Dur("elapsed", result.Elapsed).
		Msg("Price sync complete")

	return result, nil
}

// syncOne fetches and stores one symbol's history.
func (s *Service) syncOne(ctx context.Context, symbol string, start, end time.Time) (int, error) {
	history, err := s.fetcher.DailyHistory(ctx, symbol, start, end)
	if err != nil {
		return 0, err
	}

	prices := make([]DailyPrice, 0, len(history.Bars))
	for _, bar := range history.Bars {
		prices = append(prices, DailyPrice{
			Symbol:   symbol,
			Date:     bar.Date,
			Open:     bar.Open,
			High:     bar.High,
			Low:      bar.Low,
			Close:    bar.Close,
			AdjClose: bar.AdjClose,
			Volume:   bar.Volume,
		})
	}

	return s.repo.UpsertBatch(prices, time.Now().Unix())
}

// Series returns per-asset close series for the optimizer, reading from
// the local store and syncing any symbol with no cached rows in range.
// Adjusted closes are used so splits and dividends do not show up as
// returns.
func (s *Service) Series(ctx context.Context, symbols []string, startDate, endDate string) ([]optimization.AssetSeries, error) {
	if _, _, err := parseRange(startDate, endDate); err != nil {
		return nil, err
	}

	series := make([]optimization.AssetSeries, 0, len(symbols))
	for _, sym := range symbols {
		symbol := NormalizeSymbol(sym)

		prices, err := s.repo.GetRange(symbol, startDate, endDate)
		if err != nil {
			return nil, err
		}

		if len(prices) == 0 {
			s.log.Debug().Str("symbol", symbol).Msg("Cache miss, syncing symbol")
			start, end, _ := parseRange(startDate, endDate)
			if _, err := s.syncOne(ctx, symbol, start, end); err != nil {
				return nil, fmt.Errorf("no cached history and sync failed for %s: %w", symbol, err)
			}
			prices, err = s.repo.GetRange(symbol, startDate, endDate)
			if err != nil {
				return nil, err
			}
		}

		if len(prices) == 0 {
			return nil, fmt.Errorf("no price history for %s in [%s, %s]", symbol, startDate, endDate)
		}

		points := make([]optimization.PricePoint, len(prices))
		for i, p := range prices {
			close := p.AdjClose
			if close <= 0 {
				close = p.Close
			}
			points[i] = optimization.PricePoint{Date: p.Date, Close: close}
		}
		series = append(series, optimization.AssetSeries{Symbol: symbol, Points: points})
	}

	return series, nil
}

// Coverage reports the store's row count and date bounds per symbol.
func (s *Service) Coverage(symbols []string) ([]Coverage, error) {
	out := make([]Coverage, 0, len(symbols))
	for _, sym := range symbols {
		cov, err := s.repo.GetCoverage(NormalizeSymbol(sym))
		if err != nil {
			return nil, err
		}
		out = append(out, *cov)
	}
	return out, nil
}

// StoredSymbols lists every symbol present in the local store.
func (s *Service) StoredSymbols() ([]string, error) {
	return s.repo.ListSymbols()
}

// History returns raw cached bars for one symbol, used by the history
// endpoint and chart rendering.
func (s *Service) History(symbol, startDate, endDate string) ([]DailyPrice, error) {
	if _, _, err := parseRange(startDate, endDate); err != nil {
		return nil, err
	}
	return s.repo.GetRange(NormalizeSymbol(symbol), startDate, endDate)
}

// parseRange validates YYYY-MM-DD bounds and returns them as times,
// with the end made inclusive.
func parseRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q (expected YYYY-MM-DD): %w", startDate, err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q (expected YYYY-MM-DD): %w", endDate, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", endDate, startDate)
	}
	return start.UTC(), end.UTC().Add(24 * time.Hour), nil
}
