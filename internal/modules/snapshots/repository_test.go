package snapshots

import (
	"database/sql"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/abidamassi/frontier/internal/modules/optimization"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, zerolog.New(nil).Level(zerolog.Disabled))
	require.NoError(t, repo.InitSchema())
	return repo
}

func sampleSummary(runID string) *optimization.RunSummary {
	return &optimization.RunSummary{
		RunID:   runID,
		Symbols: []string{"AAA", "BBB"},
		Dates:   250,
		Result: &optimization.Result{
			Best: optimization.Scenario{
				Index:      7,
				Weights:    []float64{0.6, 0.4},
				Return:     0.12,
				Volatility: 0.18,
				Sharpe:     0.33,
			},
			Returns:   []float64{0.12, 0.10},
			Vols:      []float64{0.18, 0.0},
			Sharpes:   []float64{0.33, math.NaN()},
			Scenarios: 2,
		},
		Allocation: []optimization.WeightEntry{{Symbol: "AAA", Weight: 0.6}, {Symbol: "BBB", Weight: 0.4}},
		Rating:     "Poor",
		RanAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRepository_SaveAndLoadLatestRun(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SaveLatestRun(sampleSummary("run-1")))

	loaded, err := repo.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, []string{"AAA", "BBB"}, loaded.Symbols)
	assert.Equal(t, 0.6, loaded.Result.Best.Weights[0])
	assert.Equal(t, "Poor", loaded.Rating)
	// Degenerate scenarios round-trip with their NaN Sharpe intact
	assert.True(t, math.IsNaN(loaded.Result.Sharpes[1]))
}

func TestRepository_SaveReplacesPreviousRun(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SaveLatestRun(sampleSummary("run-1")))
	require.NoError(t, repo.SaveLatestRun(sampleSummary("run-2")))

	loaded, err := repo.LatestRun()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "run-2", loaded.RunID)
}

func TestRepository_LatestRunEmptyStore(t *testing.T) {
	repo := setupTestRepo(t)

	loaded, err := repo.LatestRun()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRepository_Clear(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SaveLatestRun(sampleSummary("run-1")))
	require.NoError(t, repo.Clear())

	loaded, err := repo.LatestRun()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
