package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesFromCloses(symbol string, dates []string, closes []float64) AssetSeries {
	points := make([]PricePoint, len(closes))
	for i := range closes {
		points[i] = PricePoint{Date: dates[i], Close: closes[i]}
	}
	return AssetSeries{Symbol: symbol, Points: points}
}

var testDates = []string{"2024-01-02", "2024-01-03", "2024-01-04"}

// The hand-checked fixture used throughout: two assets, three aligned rows.
func twoAssetTable(t *testing.T) *PriceTable {
	t.Helper()
	table, err := Align([]AssetSeries{
		seriesFromCloses("AAA", testDates, []float64{100, 101, 102}),
		seriesFromCloses("BBB", testDates, []float64{50, 49, 50}),
	})
	require.NoError(t, err)
	return table
}

func TestAlign_RejectsSingleAsset(t *testing.T) {
	_, err := Align([]AssetSeries{
		seriesFromCloses("AAA", testDates, []float64{100, 101, 102}),
	})
	assert.ErrorIs(t, err, ErrInsufficientAssets)
}

func TestAlign_RejectsShortHistory(t *testing.T) {
	_, err := Align([]AssetSeries{
		seriesFromCloses("AAA", testDates[:1], []float64{100}),
		seriesFromCloses("BBB", testDates[:1], []float64{50}),
	})
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestAlign_RejectsUnorderedDates(t *testing.T) {
	_, err := Align([]AssetSeries{
		{Symbol: "AAA", Points: []PricePoint{
			{Date: "2024-01-03", Close: 101},
			{Date: "2024-01-02", Close: 100},
		}},
		seriesFromCloses("BBB", testDates[:2], []float64{50, 49}),
	})
	assert.ErrorIs(t, err, ErrMisalignedSeries)
}

func TestAlign_DropsIncompleteDates(t *testing.T) {
	// BBB is missing 2024-01-03; that row must be dropped for both assets.
	table, err := Align([]AssetSeries{
		seriesFromCloses("AAA", testDates, []float64{100, 101, 102}),
		{Symbol: "BBB", Points: []PricePoint{
			{Date: "2024-01-02", Close: 50},
			{Date: "2024-01-04", Close: 51},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-02", "2024-01-04"}, table.Dates)
	assert.Equal(t, []string{"AAA", "BBB"}, table.Symbols)
	assert.Equal(t, [][]float64{{100, 50}, {102, 51}}, table.Prices)
}

func TestReturnMatrix_SimpleReturns(t *testing.T) {
	returns := ReturnMatrix(twoAssetTable(t))

	rows, cols := returns.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 2, cols)

	assert.InDelta(t, 101.0/100.0-1, returns.At(0, 0), 1e-12)
	assert.InDelta(t, 102.0/101.0-1, returns.At(1, 0), 1e-12)
	assert.InDelta(t, 49.0/50.0-1, returns.At(0, 1), 1e-12)
	assert.InDelta(t, 50.0/49.0-1, returns.At(1, 1), 1e-12)
}

func TestBuildStatistics_HandComputed(t *testing.T) {
	stats, err := BuildStatistics(twoAssetTable(t))
	require.NoError(t, err)

	// Per-asset simple returns of the fixture.
	a1, a2 := 101.0/100.0-1, 102.0/101.0-1
	b1, b2 := 49.0/50.0-1, 50.0/49.0-1
	meanA, meanB := (a1+a2)/2, (b1+b2)/2

	require.Len(t, stats.MeanReturns, 2)
	assert.InDelta(t, meanA, stats.MeanReturns[0], 1e-12)
	assert.InDelta(t, meanB, stats.MeanReturns[1], 1e-12)

	// Unbiased sample covariance with n-1 = 1 denominator.
	covAA := (a1-meanA)*(a1-meanA) + (a2-meanA)*(a2-meanA)
	covBB := (b1-meanB)*(b1-meanB) + (b2-meanB)*(b2-meanB)
	covAB := (a1-meanA)*(b1-meanB) + (a2-meanA)*(b2-meanB)

	assert.InDelta(t, covAA, stats.Covariance.At(0, 0), 1e-12)
	assert.InDelta(t, covBB, stats.Covariance.At(1, 1), 1e-12)
	assert.InDelta(t, covAB, stats.Covariance.At(0, 1), 1e-12)
}

func TestBuildStatistics_CovarianceSymmetric(t *testing.T) {
	dates := []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08"}
	table, err := Align([]AssetSeries{
		seriesFromCloses("AAA", dates, []float64{100, 103, 99, 104, 101}),
		seriesFromCloses("BBB", dates, []float64{50, 49, 52, 51, 53}),
		seriesFromCloses("CCC", dates, []float64{200, 198, 205, 202, 207}),
	})
	require.NoError(t, err)

	stats, err := BuildStatistics(table)
	require.NoError(t, err)

	n := stats.Assets()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.Equal(t, stats.Covariance.At(i, j), stats.Covariance.At(j, i))
		}
	}
}

func TestBuildStatistics_ZeroVarianceAssetIsNotAnError(t *testing.T) {
	table, err := Align([]AssetSeries{
		seriesFromCloses("FLAT", testDates, []float64{100, 100, 100}),
		seriesFromCloses("BBB", testDates, []float64{50, 49, 50}),
	})
	require.NoError(t, err)

	stats, err := BuildStatistics(table)
	require.NoError(t, err)

	assert.Zero(t, stats.MeanReturns[0])
	assert.Zero(t, stats.Covariance.At(0, 0))
	assert.Zero(t, stats.Covariance.At(0, 1))
}
