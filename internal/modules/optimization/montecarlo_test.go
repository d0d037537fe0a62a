package optimization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func statsFromTable(t *testing.T, table *PriceTable) *Statistics {
	t.Helper()
	stats, err := BuildStatistics(table)
	require.NoError(t, err)
	return stats
}

// diagonalStats builds Statistics for uncorrelated assets with the given
// per-period variances and a common mean return.
func diagonalStats(mean float64, variances []float64) *Statistics {
	n := len(variances)
	means := make([]float64, n)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		means[i] = mean
		cov.SetSym(i, i, variances[i])
	}
	return &Statistics{MeanReturns: means, Covariance: cov}
}

func TestRun_WeightsStayOnSimplex(t *testing.T) {
	stats := statsFromTable(t, twoAssetTable(t))
	opt := NewMonteCarloOptimizer(Config{RiskFreeRate: 0.06, Scenarios: 500})

	result, err := opt.Run(stats)
	require.NoError(t, err)
	require.Len(t, result.Weights, 500)

	for _, w := range result.Weights {
		sum := 0.0
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestRun_BestDominatesPopulation(t *testing.T) {
	stats := statsFromTable(t, twoAssetTable(t))
	opt := NewMonteCarloOptimizer(Config{RiskFreeRate: 0.06, Scenarios: 2000})

	result, err := opt.Run(stats)
	require.NoError(t, err)

	for i, sharpe := range result.Sharpes {
		if math.IsNaN(sharpe) {
			continue
		}
		assert.GreaterOrEqual(t, result.Best.Sharpe, sharpe, "scenario %d beats the optimum", i)
	}
}

func TestRun_DeterministicForSameSeed(t *testing.T) {
	stats := statsFromTable(t, twoAssetTable(t))
	cfg := Config{RiskFreeRate: 0.06, Scenarios: 100, Seed: 42}

	first, err := NewMonteCarloOptimizer(cfg).Run(stats)
	require.NoError(t, err)
	second, err := NewMonteCarloOptimizer(cfg).Run(stats)
	require.NoError(t, err)

	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, first.Returns, second.Returns)
	assert.Equal(t, first.Vols, second.Vols)
	assert.Equal(t, first.Best, second.Best)
}

// Single-scenario run against the hand-checked fixture: replay the seeded
// draw to obtain the weight pair, then verify every metric against the raw
// formulas.
func TestRun_SingleScenarioFormulas(t *testing.T) {
	table := twoAssetTable(t)
	stats := statsFromTable(t, table)

	const seed, rf = 7, 0.06
	result, err := NewMonteCarloOptimizer(Config{RiskFreeRate: rf, Scenarios: 1, Seed: seed}).Run(stats)
	require.NoError(t, err)

	// Replay the same source to recover the expected normalized weights.
	rng := rand.New(rand.NewSource(seed))
	u0, u1 := rng.Float64(), rng.Float64()
	w0, w1 := u0/(u0+u1), u1/(u0+u1)

	require.Len(t, result.Best.Weights, 2)
	assert.InDelta(t, w0, result.Best.Weights[0], 1e-12)
	assert.InDelta(t, w1, result.Best.Weights[1], 1e-12)

	wantReturn := (w0*stats.MeanReturns[0] + w1*stats.MeanReturns[1]) * TradingDaysPerYear
	wantVariance := 252 * (w0*w0*stats.Covariance.At(0, 0) +
		2*w0*w1*stats.Covariance.At(0, 1) +
		w1*w1*stats.Covariance.At(1, 1))
	wantVol := math.Sqrt(wantVariance)

	assert.InDelta(t, wantReturn, result.Best.Return, 1e-12)
	assert.InDelta(t, wantVol, result.Best.Volatility, 1e-12)
	assert.InDelta(t, (wantReturn-rf)/wantVol, result.Best.Sharpe, 1e-12)
}

// Four uncorrelated assets with identical means and distinct variances: the
// selected optimum should carry less risk than the naive equal-weighted mix.
func TestRun_DiversificationBeatsEqualWeight(t *testing.T) {
	variances := []float64{0.0001, 0.0004, 0.0009, 0.0016}
	stats := diagonalStats(0.0005, variances)

	result, err := NewMonteCarloOptimizer(Config{Scenarios: 10000}).Run(stats)
	require.NoError(t, err)

	equalVariance := 0.0
	for _, v := range variances {
		equalVariance += 0.25 * 0.25 * v * TradingDaysPerYear
	}
	equalVol := math.Sqrt(equalVariance)

	assert.Less(t, result.Best.Volatility, equalVol)
}

func TestRun_ZeroVarianceAssetDoesNotCrash(t *testing.T) {
	table, err := Align([]AssetSeries{
		seriesFromCloses("FLAT", testDates, []float64{100, 100, 100}),
		seriesFromCloses("BBB", testDates, []float64{50, 49, 50}),
	})
	require.NoError(t, err)
	stats := statsFromTable(t, table)

	result, err := NewMonteCarloOptimizer(Config{RiskFreeRate: 0.06, Scenarios: 1000}).Run(stats)
	require.NoError(t, err)

	assert.False(t, result.Best.Degenerate())
	assert.False(t, math.IsNaN(result.Best.Sharpe))
}

func TestRun_AllDegenerateFails(t *testing.T) {
	// Zero covariance everywhere: every sampled portfolio has zero volatility.
	stats := diagonalStats(0.001, []float64{0, 0, 0})

	_, err := NewMonteCarloOptimizer(Config{Scenarios: 50}).Run(stats)
	assert.ErrorIs(t, err, ErrNoValidScenario)
}

func TestRun_InsufficientAssetsBeforeSampling(t *testing.T) {
	stats := &Statistics{MeanReturns: []float64{0.001}, Covariance: mat.NewSymDense(1, []float64{0.0001})}

	_, err := NewMonteCarloOptimizer(Config{Scenarios: 10}).Run(stats)
	assert.ErrorIs(t, err, ErrInsufficientAssets)
}

func TestRun_ParallelIsDeterministicPerWorkerCount(t *testing.T) {
	stats := statsFromTable(t, twoAssetTable(t))
	cfg := Config{RiskFreeRate: 0.06, Scenarios: 1000, Workers: 4}

	first, err := NewMonteCarloOptimizer(cfg).Run(stats)
	require.NoError(t, err)
	second, err := NewMonteCarloOptimizer(cfg).Run(stats)
	require.NoError(t, err)

	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, first.Best, second.Best)

	for _, w := range first.Weights {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestReduce_FirstSeenWinsTies(t *testing.T) {
	population := []Scenario{
		{Index: 0, Weights: []float64{0.5, 0.5}, Volatility: 0.1, Sharpe: 1.5},
		{Index: 1, Weights: []float64{0.6, 0.4}, Volatility: 0.1, Sharpe: 1.5},
		{Index: 2, Weights: []float64{0.7, 0.3}, Volatility: 0.1, Sharpe: 1.2},
	}

	result, err := Reduce(population)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Best.Index)
}

func TestStream_RestartableAndMatchesSequentialRun(t *testing.T) {
	stats := statsFromTable(t, twoAssetTable(t))
	cfg := Config{RiskFreeRate: 0.06, Scenarios: 50, Seed: 11}

	stream, err := NewStream(stats, cfg)
	require.NoError(t, err)

	var first []Scenario
	for {
		scenario, ok := stream.Next()
		if !ok {
			break
		}
		first = append(first, scenario)
	}
	require.Len(t, first, 50)
	assert.Zero(t, stream.Remaining())

	stream.Reset()
	for i := 0; i < 50; i++ {
		scenario, ok := stream.Next()
		require.True(t, ok)
		assert.Equal(t, first[i], scenario)
	}

	// The sequential run consumes the identical random stream.
	result, err := NewMonteCarloOptimizer(cfg).Run(stats)
	require.NoError(t, err)
	for i, s := range first {
		assert.Equal(t, result.Weights[i], s.Weights)
	}
}
