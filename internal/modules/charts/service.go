// Package charts renders dashboard visuals from aligned price history
// and the latest optimization run: an indexed performance line chart, an
// allocation pie, and the risk/return scatter data.
package charts

import (
	"context"
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	charts "github.com/vicanso/go-charts/v2"

	"github.com/abidamassi/frontier/internal/modules/optimization"
	"github.com/abidamassi/frontier/internal/modules/snapshots"
)

// Service renders chart PNGs and scatter payloads.
type Service struct {
	opt   *optimization.Service
	snaps *snapshots.Repository
	log   zerolog.Logger
}

// NewService creates a new charts service.
func NewService(opt *optimization.Service, snaps *snapshots.Repository, log zerolog.Logger) *Service {
	return &Service{
		opt:   opt,
		snaps: snaps,
		log:   log.With().Str("service", "charts").Logger(),
	}
}

// PerformancePNG renders the symbols' closes indexed to 100 at the first
// aligned date. A smaPeriod > 1 adds a simple moving average overlay per
// symbol; the warm-up span repeats the raw series so the y-range stays
// meaningful.
func (s *Service) PerformancePNG(ctx context.Context, symbols []string, start, end string, smaPeriod int) ([]byte, error) {
	table, err := s.opt.AlignedTable(ctx, symbols, start, end)
	if err != nil {
		return nil, err
	}

	values := make([][]float64, 0, table.Assets()*2)
	names := make([]string, 0, table.Assets()*2)
	var yMin, yMax float64
	first := true

	for j := 0; j < table.Assets(); j++ {
		col := table.Column(j)
		indexed := make([]float64, len(col))
		for i, v := range col {
			indexed[i] = v / col[0] * 100
			if first {
				yMin, yMax = indexed[i], indexed[i]
				first = false
			} else {
				yMin = math.Min(yMin, indexed[i])
				yMax = math.Max(yMax, indexed[i])
			}
		}
		values = append(values, indexed)
		names = append(names, table.Symbols[j])

		if smaPeriod > 1 && len(indexed) > smaPeriod {
			sma := talib.Sma(indexed, smaPeriod)
			for i := 0; i < smaPeriod-1; i++ {
				sma[i] = indexed[i] // warm-up
			}
			values = append(values, sma)
			names = append(names, fmt.Sprintf("%s SMA%d", table.Symbols[j], smaPeriod))
		}
	}

	// Equal-weight buy-and-hold portfolio over the same universe. Stays
	// inside the per-symbol envelope, so the y-range needs no update.
	eq := make([]float64, table.Rows())
	for j := 0; j < table.Assets(); j++ {
		col := table.Column(j)
		for i, v := range col {
			eq[i] += v / col[0] * 100 / float64(table.Assets())
		}
	}
	values = append(values, eq)
	names = append(names, "Equal Weight")

	pad := (yMax - yMin) * 0.05
	if pad < yMax*0.002 {
		pad = yMax * 0.002
	}
	lo, hi := yMin-pad, yMax+pad

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc("Performance", fmt.Sprintf("%s → %s • indexed to 100", start, end)),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: table.Dates, BoundaryGap: charts.FalseFlag(), SplitNumber: 10}),
		charts.YAxisOptionFunc(charts.YAxisOption{Min: &lo, Max: &hi, DivideCount: 5}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(500),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render performance chart: %w", err)
	}
	return painter.Bytes()
}

// AllocationPNG renders the latest run's optimal weights as a pie chart.
func (s *Service) AllocationPNG() ([]byte, error) {
	summary, err := s.latestRun()
	if err != nil {
		return nil, err
	}

	values := make([]float64, len(summary.Allocation))
	labels := make([]string, len(summary.Allocation))
	for i, entry := range summary.Allocation {
		values[i] = entry.Weight * 100
		labels[i] = fmt.Sprintf("%s (%.1f%%)", entry.Symbol, entry.Weight*100)
	}

	painter, err := charts.PieRender(values,
		charts.TitleTextOptionFunc("Optimal Allocation",
			fmt.Sprintf("Sharpe %.2f • %s", summary.Result.Best.Sharpe, summary.Rating)),
		charts.LegendOptionFunc(charts.LegendOption{Data: labels, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render allocation chart: %w", err)
	}
	return painter.Bytes()
}

// ScatterPoint is one sampled portfolio in risk/return space. Sharpe is
// nil for degenerate (zero-volatility) samples.
type ScatterPoint struct {
	Volatility float64  `json:"volatility"`
	Return     float64  `json:"return"`
	Sharpe     *float64 `json:"sharpe"`
}

// ScatterData is the risk/return cloud of the latest run, served as JSON
// for client-side plotting.
type ScatterData struct {
	RunID  string                `json:"run_id"`
	Points []ScatterPoint        `json:"points"`
	Best   optimization.Scenario `json:"best"`
}

// Scatter builds the scatter payload from the latest run snapshot.
func (s *Service) Scatter() (*ScatterData, error) {
	summary, err := s.latestRun()
	if err != nil {
		return nil, err
	}

	result := summary.Result
	points := make([]ScatterPoint, len(result.Returns))
	for i := range result.Returns {
		points[i] = ScatterPoint{
			Volatility: result.Vols[i],
			Return:     result.Returns[i],
		}
		if !math.IsNaN(result.Sharpes[i]) {
			v := result.Sharpes[i]
			points[i].Sharpe = &v
		}
	}

	return &ScatterData{RunID: summary.RunID, Points: points, Best: result.Best}, nil
}

// ErrNoRun is returned when chart data is requested before any
// optimization run has completed.
var ErrNoRun = fmt.Errorf("no optimization run available yet")

func (s *Service) latestRun() (*optimization.RunSummary, error) {
	if s.snaps == nil {
		return nil, ErrNoRun
	}
	summary, err := s.snaps.LatestRun()
	if err != nil {
		return nil, err
	}
	if summary == nil || summary.Result == nil {
		return nil, ErrNoRun
	}
	return summary, nil
}
