package optimization

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	series []AssetSeries
	err    error
}

func (p *stubProvider) Series(_ context.Context, _ []string, _, _ string) ([]AssetSeries, error) {
	return p.series, p.err
}

func TestService_Run(t *testing.T) {
	provider := &stubProvider{series: []AssetSeries{
		seriesFromCloses("AAA", testDates, []float64{100, 101, 102}),
		seriesFromCloses("BBB", testDates, []float64{50, 49, 50}),
	}}
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewService(provider, log)

	summary, err := svc.Run(context.Background(), RunParams{
		Symbols:      []string{"AAA", "BBB"},
		RiskFreeRate: 0.06,
		Scenarios:    200,
		Seed:         5,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, []string{"AAA", "BBB"}, summary.Symbols)
	assert.Equal(t, 3, summary.Dates)
	assert.Equal(t, 200, summary.Result.Scenarios)
	assert.Equal(t, SharpeRating(summary.Result.Best.Sharpe), summary.Rating)

	require.Len(t, summary.Allocation, 2)
	sum := 0.0
	for i, entry := range summary.Allocation {
		assert.Equal(t, summary.Symbols[i], entry.Symbol)
		sum += entry.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestService_RunRejectsSingleSymbol(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewService(&stubProvider{}, log)

	_, err := svc.Run(context.Background(), RunParams{Symbols: []string{"AAA"}, Scenarios: 10})
	assert.ErrorIs(t, err, ErrInsufficientAssets)
}

func TestSharpeRating(t *testing.T) {
	tests := []struct {
		sharpe float64
		want   string
	}{
		{0.4, "Poor"},
		{1.0, "Acceptable"},
		{1.9, "Acceptable"},
		{2.5, "Good"},
		{3.0, "Excellent"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SharpeRating(tt.sharpe))
	}
}
