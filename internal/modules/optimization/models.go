// Package optimization implements the Monte Carlo portfolio optimizer:
// return statistics from aligned price history, random weight sampling, and
// max-Sharpe selection.
package optimization

import (
	"fmt"
	"math"
	"sort"
)

// TradingDaysPerYear is the annualization factor applied to daily statistics.
const TradingDaysPerYear = 252

// PricePoint is a single (date, close) observation. Dates use YYYY-MM-DD.
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// AssetSeries is the raw per-asset price history handed to the core by the
// price provider. Points must be strictly increasing by date with no
// duplicates; Align validates this.
type AssetSeries struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

// PriceTable is the aligned price matrix the core operates on: one column per
// asset, one row per date, no missing values. Built once at the core boundary
// by Align and immutable afterwards.
type PriceTable struct {
	Symbols []string
	Dates   []string
	// Prices is row-major: Prices[t][j] is the close of asset j on date t.
	Prices [][]float64
}

// Assets returns the number of asset columns.
func (pt *PriceTable) Assets() int { return len(pt.Symbols) }

// Rows returns the number of aligned date rows.
func (pt *PriceTable) Rows() int { return len(pt.Dates) }

// Column returns the price series of asset j.
func (pt *PriceTable) Column(j int) []float64 {
	out := make([]float64, len(pt.Prices))
	for t := range pt.Prices {
		out[t] = pt.Prices[t][j]
	}
	return out
}

// Align builds a PriceTable from per-asset series by intersecting their date
// indexes. Dates present in every series survive; any date missing from at
// least one series is dropped, mirroring a dropna over the joined frame.
// Fails fast with the core's typed errors before any computation.
func Align(series []AssetSeries) (*PriceTable, error) {
	if len(series) < 2 {
		return nil, ErrInsufficientAssets
	}

	for _, s := range series {
		for i := 1; i < len(s.Points); i++ {
			if s.Points[i].Date <= s.Points[i-1].Date {
				return nil, fmt.Errorf("%w: %s has out-of-order or duplicate date %q",
					ErrMisalignedSeries, s.Symbol, s.Points[i].Date)
			}
		}
	}

	// Count how many series carry each date; keep only fully-covered dates.
	counts := make(map[string]int)
	for _, s := range series {
		for _, p := range s.Points {
			if !math.IsNaN(p.Close) && p.Close > 0 {
				counts[p.Date]++
			}
		}
	}

	var dates []string
	for d, n := range counts {
		if n == len(series) {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	if len(dates) < 2 {
		return nil, ErrInsufficientHistory
	}

	index := make(map[string]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	symbols := make([]string, len(series))
	prices := make([][]float64, len(dates))
	for t := range prices {
		prices[t] = make([]float64, len(series))
	}
	for j, s := range series {
		symbols[j] = s.Symbol
		for _, p := range s.Points {
			if t, ok := index[p.Date]; ok {
				prices[t][j] = p.Close
			}
		}
	}

	return &PriceTable{Symbols: symbols, Dates: dates, Prices: prices}, nil
}

// Scenario is one Monte Carlo sample: a normalized weight vector and its
// derived annualized metrics. Immutable once computed. A zero-volatility
// sample carries a NaN Sharpe ratio and is excluded from optimum selection.
type Scenario struct {
	Index      int       `json:"index"`
	Weights    []float64 `json:"weights"`
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
	Sharpe     float64   `json:"sharpe"`
}

// Degenerate reports whether the scenario has zero volatility and therefore
// an undefined Sharpe ratio.
func (s Scenario) Degenerate() bool { return s.Volatility == 0 }

// Result aggregates a full optimizer run: the best scenario by Sharpe ratio
// and the per-scenario arrays in generation order, retained for downstream
// visualization (risk/return scatter). Owned by the caller after return.
type Result struct {
	Best      Scenario    `json:"best"`
	Weights   [][]float64 `json:"weights"`
	Returns   []float64   `json:"returns"`
	Vols      []float64   `json:"volatilities"`
	Sharpes   []float64   `json:"sharpes"`
	Scenarios int         `json:"scenarios"`
}
