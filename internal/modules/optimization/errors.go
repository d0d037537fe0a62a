package optimization

import "errors"

// Typed failures for the optimization core. Callers (handlers, jobs) map these
// to HTTP status codes; the core itself never logs or retries.
var (
	// ErrInsufficientAssets is returned when fewer than 2 assets are supplied.
	ErrInsufficientAssets = errors.New("at least 2 assets are required")

	// ErrInsufficientHistory is returned when fewer than 2 aligned price rows
	// remain after alignment.
	ErrInsufficientHistory = errors.New("at least 2 aligned price rows are required")

	// ErrNoValidScenario is returned when every sampled scenario has zero
	// volatility, so no Sharpe ranking is possible.
	ErrNoValidScenario = errors.New("no valid scenario: all sampled portfolios have zero volatility")

	// ErrMisalignedSeries is returned when input price series have unequal
	// lengths or unordered dates and cannot form an aligned table.
	ErrMisalignedSeries = errors.New("price series are not aligned")
)
