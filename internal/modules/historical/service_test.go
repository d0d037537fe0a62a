package historical

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abidamassi/frontier/internal/clients/yahoo"
)

// fakeFetcher serves canned bar series per symbol and counts calls.
// Sync fetches concurrently, so access is locked.
type fakeFetcher struct {
	mu        sync.Mutex
	histories map[string][]yahoo.Bar
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{histories: map[string][]yahoo.Bar{}, calls: map[string]int{}}
}

func (f *fakeFetcher) DailyHistory(_ context.Context, symbol string, _, _ time.Time) (*yahoo.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	bars, ok := f.histories[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return &yahoo.History{Symbol: symbol, Bars: bars}, nil
}

func bars(dates []string, closes []float64) []yahoo.Bar {
	out := make([]yahoo.Bar, len(dates))
	for i := range dates {
		out[i] = yahoo.Bar{Date: dates[i], Close: closes[i], AdjClose: closes[i]}
	}
	return out
}

func setupTestService(t *testing.T) (*Service, *fakeFetcher) {
	t.Helper()
	repo := setupTestRepo(t)
	fetcher := newFakeFetcher()
	svc := NewService(repo, fetcher, zerolog.New(nil).Level(zerolog.Disabled))
	return svc, fetcher
}

func TestService_SyncStoresAllSymbols(t *testing.T) {
	svc, fetcher := setupTestService(t)
	fetcher.histories["AAA"] = bars([]string{"2024-01-02", "2024-01-03"}, []float64{100, 101})
	fetcher.histories["BBB"] = bars([]string{"2024-01-02", "2024-01-03"}, []float64{50, 49})

	result, err := svc.Sync(context.Background(), []string{"aaa", "BBB"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 4, result.Inserted)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"AAA", "BBB"}, result.Symbols)
}

func TestService_SyncRecordsPartialFailures(t *testing.T) {
	svc, fetcher := setupTestService(t)
	fetcher.histories["AAA"] = bars([]string{"2024-01-02"}, []float64{100})
	// BBB is unknown to the fetcher

	result, err := svc.Sync(context.Background(), []string{"AAA", "BBB"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, []string{"BBB"}, result.Failed)
}

func TestService_SyncFailsWhenAllSymbolsFail(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Sync(context.Background(), []string{"AAA", "BBB"}, "2024-01-01", "2024-01-31")
	assert.Error(t, err)
}

func TestService_SyncRejectsBadDates(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.Sync(context.Background(), []string{"AAA"}, "01/02/2024", "2024-01-31")
	assert.Error(t, err)

	_, err = svc.Sync(context.Background(), []string{"AAA"}, "2024-02-01", "2024-01-01")
	assert.Error(t, err)
}

func TestService_SeriesReadsFromCacheAfterSync(t *testing.T) {
	svc, fetcher := setupTestService(t)
	fetcher.histories["AAA"] = bars([]string{"2024-01-02", "2024-01-03"}, []float64{100, 101})
	fetcher.histories["BBB"] = bars([]string{"2024-01-02", "2024-01-03"}, []float64{50, 49})

	_, err := svc.Sync(context.Background(), []string{"AAA", "BBB"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)

	series, err := svc.Series(context.Background(), []string{"AAA", "BBB"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "AAA", series[0].Symbol)
	require.Len(t, series[0].Points, 2)
	assert.Equal(t, 100.0, series[0].Points[0].Close)

	// Cached reads must not refetch
	assert.Equal(t, 1, fetcher.calls["AAA"])
	assert.Equal(t, 1, fetcher.calls["BBB"])
}

func TestService_SeriesSyncsOnCacheMiss(t *testing.T) {
	svc, fetcher := setupTestService(t)
	fetcher.histories["AAA"] = bars([]string{"2024-01-02"}, []float64{100})
	fetcher.histories["BBB"] = bars([]string{"2024-01-02"}, []float64{50})

	series, err := svc.Series(context.Background(), []string{"AAA", "BBB"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, 1, fetcher.calls["AAA"])
	assert.Equal(t, 1, fetcher.calls["BBB"])
}

func TestService_SeriesUsesAdjustedClose(t *testing.T) {
	svc, fetcher := setupTestService(t)
	raw := bars([]string{"2024-01-02"}, []float64{100})
	raw[0].AdjClose = 95
	fetcher.histories["AAA"] = raw
	fetcher.histories["BBB"] = bars([]string{"2024-01-02"}, []float64{50})

	series, err := svc.Series(context.Background(), []string{"AAA", "BBB"}, "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 95.0, series[0].Points[0].Close)
}

func TestService_SeriesErrorsOnUnknownSymbol(t *testing.T) {
	svc, fetcher := setupTestService(t)
	fetcher.histories["AAA"] = bars([]string{"2024-01-02"}, []float64{100})

	_, err := svc.Series(context.Background(), []string{"AAA", "NOPE"}, "2024-01-01", "2024-01-31")
	assert.Error(t, err)
}
