package charts

import (
	"context"
	"database/sql"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/abidamassi/frontier/internal/modules/optimization"
	"github.com/abidamassi/frontier/internal/modules/snapshots"
)

type stubProvider struct{}

func (stubProvider) Series(_ context.Context, symbols []string, _, _ string) ([]optimization.AssetSeries, error) {
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}
	series := make([]optimization.AssetSeries, len(symbols))
	for j, sym := range symbols {
		points := make([]optimization.PricePoint, len(dates))
		for i := range dates {
			points[i] = optimization.PricePoint{Date: dates[i], Close: 100 + float64(j*10) + float64(i)}
		}
		series[j] = optimization.AssetSeries{Symbol: sym, Points: points}
	}
	return series, nil
}

func setupSnapshots(t *testing.T) *snapshots.Repository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := snapshots.NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))
	require.NoError(t, repo.InitSchema())
	return repo
}

func setupService(t *testing.T) (*Service, *snapshots.Repository) {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	snaps := setupSnapshots(t)
	opt := optimization.NewService(stubProvider{}, log)
	return NewService(opt, snaps, log), snaps
}

func storedSummary(t *testing.T, snaps *snapshots.Repository) {
	t.Helper()
	summary := &optimization.RunSummary{
		RunID:   "run-1",
		Symbols: []string{"AAA", "BBB"},
		Result: &optimization.Result{
			Best: optimization.Scenario{
				Index:      0,
				Weights:    []float64{0.7, 0.3},
				Return:     0.11,
				Volatility: 0.2,
				Sharpe:     0.25,
			},
			Returns:   []float64{0.11, 0.09},
			Vols:      []float64{0.2, 0.0},
			Sharpes:   []float64{0.25, math.NaN()},
			Scenarios: 2,
		},
		Allocation: []optimization.WeightEntry{{Symbol: "AAA", Weight: 0.7}, {Symbol: "BBB", Weight: 0.3}},
		Rating:     "Poor",
	}
	require.NoError(t, snaps.SaveLatestRun(summary))
}

func TestService_PerformancePNG(t *testing.T) {
	svc, _ := setupService(t)

	png, err := svc.PerformancePNG(context.Background(), []string{"AAA", "BBB"}, "2024-01-01", "2024-01-31", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	// PNG magic bytes
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestService_PerformancePNGWithSMAOverlay(t *testing.T) {
	svc, _ := setupService(t)

	png, err := svc.PerformancePNG(context.Background(), []string{"AAA", "BBB"}, "2024-01-01", "2024-01-31", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestService_PerformancePNGRejectsSingleSymbol(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.PerformancePNG(context.Background(), []string{"AAA"}, "2024-01-01", "2024-01-31", 0)
	assert.ErrorIs(t, err, optimization.ErrInsufficientAssets)
}

func TestService_AllocationPNG(t *testing.T) {
	svc, snaps := setupService(t)
	storedSummary(t, snaps)

	png, err := svc.AllocationPNG()
	require.NoError(t, err)
	assert.NotEmpty(t, png)
}

func TestService_AllocationPNGWithoutRun(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.AllocationPNG()
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestService_Scatter(t *testing.T) {
	svc, snaps := setupService(t)
	storedSummary(t, snaps)

	data, err := svc.Scatter()
	require.NoError(t, err)
	assert.Equal(t, "run-1", data.RunID)
	require.Len(t, data.Points, 2)
	assert.Equal(t, 0.2, data.Points[0].Volatility)
	require.NotNil(t, data.Points[0].Sharpe)
	assert.Equal(t, 0.25, *data.Points[0].Sharpe)
	// Degenerate sample serializes with a null Sharpe
	assert.Nil(t, data.Points[1].Sharpe)
	assert.Equal(t, 0.25, data.Best.Sharpe)
}

func TestService_ScatterWithoutRun(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.Scatter()
	assert.ErrorIs(t, err, ErrNoRun)
}
