package optimization

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Statistics holds the per-period mean-return vector and sample covariance
// matrix derived from an aligned price table. Values are in native per-period
// (daily) units; annualization by TradingDaysPerYear happens in the optimizer
// so it stays an explicit, test-visible step.
//
// Derived once per run, immutable afterwards. A constant-price asset yields a
// zero row/column in the covariance matrix; that is not an error here, the
// optimizer guards the resulting zero-volatility scenarios.
type Statistics struct {
	MeanReturns []float64
	Covariance  *mat.SymDense
}

// Assets returns the number of assets the statistics cover.
func (s *Statistics) Assets() int { return len(s.MeanReturns) }

// ReturnMatrix computes the simple period returns of an aligned price table:
// one row per date transition, one column per asset,
// returns[t][j] = prices[t+1][j]/prices[t][j] - 1.
func ReturnMatrix(table *PriceTable) *mat.Dense {
	rows := table.Rows() - 1
	cols := table.Assets()
	returns := mat.NewDense(rows, cols, nil)
	for t := 0; t < rows; t++ {
		for j := 0; j < cols; j++ {
			returns.Set(t, j, table.Prices[t+1][j]/table.Prices[t][j]-1)
		}
	}
	return returns
}

// BuildStatistics derives mean returns and the unbiased sample covariance
// matrix (n-1 denominator, n = return rows) from an aligned price table.
// Preconditions: at least 2 assets and at least 2 price rows.
func BuildStatistics(table *PriceTable) (*Statistics, error) {
	if table == nil || table.Assets() < 2 {
		return nil, ErrInsufficientAssets
	}
	if table.Rows() < 2 {
		return nil, ErrInsufficientHistory
	}

	returns := ReturnMatrix(table)
	rows, cols := returns.Dims()

	means := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, returns)
		means[j] = stat.Mean(col, nil)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, returns, nil)

	return &Statistics{MeanReturns: means, Covariance: &cov}, nil
}
