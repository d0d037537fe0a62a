package optimization

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// DefaultSeed is the fixed seed applied when a run does not override it,
// so a default run is reproducible across restarts.
const DefaultSeed int64 = 3

// Config controls one Monte Carlo run.
type Config struct {
	// RiskFreeRate is the annualized risk-free rate as a fraction (0.06 = 6%).
	RiskFreeRate float64
	// Scenarios is the number of random portfolios to sample. Caller-validated,
	// must be >= 1.
	Scenarios int
	// Seed seeds the run-scoped random source. Zero means DefaultSeed.
	// Identical inputs and seed reproduce the run bit-for-bit.
	Seed int64
	// Workers > 1 partitions the scenario range across goroutines. Each worker
	// draws from its own source seeded with Seed+workerIndex, so a parallel
	// run is deterministic for a given worker count but its random stream
	// differs from the sequential one.
	Workers int
}

func (c Config) seed() int64 {
	if c.Seed == 0 {
		return DefaultSeed
	}
	return c.Seed
}

// MonteCarloOptimizer samples random fully-invested long-only portfolios and
// keeps the one with the highest Sharpe ratio.
type MonteCarloOptimizer struct {
	cfg Config
}

// NewMonteCarloOptimizer creates an optimizer for the given run configuration.
func NewMonteCarloOptimizer(cfg Config) *MonteCarloOptimizer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &MonteCarloOptimizer{cfg: cfg}
}

// evaluator holds the annualized statistics one run evaluates scenarios
// against. Read-only after construction, safe to share across workers.
type evaluator struct {
	mu     []float64     // annualized mean returns
	sigma  *mat.SymDense // annualized covariance
	rf     float64
	assets int
}

func newEvaluator(stats *Statistics, rf float64) *evaluator {
	n := stats.Assets()
	mu := make([]float64, n)
	for i, m := range stats.MeanReturns {
		mu[i] = m * TradingDaysPerYear
	}
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, stats.Covariance.At(i, j)*TradingDaysPerYear)
		}
	}
	return &evaluator{mu: mu, sigma: sigma, rf: rf, assets: n}
}

// sample draws one scenario. Weights are uniform draws normalized by their
// sum: non-negative, summing to 1. Note this is not uniform over the
// simplex in the Dirichlet(1,...,1) sense; it biases toward equal weights.
// The sampling scheme is part of the reproducibility contract, so changing
// it would change every seeded result.
func (e *evaluator) sample(rng *rand.Rand, index int) Scenario {
	w := make([]float64, e.assets)
	var sum float64
	for i := range w {
		w[i] = rng.Float64()
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}

	wVec := mat.NewVecDense(e.assets, w)
	ret := mat.Dot(wVec, mat.NewVecDense(e.assets, e.mu))

	// Quadratic form w' Sigma w. A weighted sum of per-asset volatilities
	// would ignore correlation, which is the entire point of the covariance
	// term.
	vol := math.Sqrt(mat.Inner(wVec, e.sigma, wVec))

	sharpe := math.NaN()
	if vol > 0 {
		sharpe = (ret - e.rf) / vol
	}

	return Scenario{Index: index, Weights: w, Return: ret, Volatility: vol, Sharpe: sharpe}
}

// Run executes the configured number of scenarios against the statistics and
// returns the best-scoring sample plus the full population in generation
// order. Degenerate (zero-volatility) scenarios stay in the population with a
// NaN Sharpe ratio but never become the optimum.
func (o *MonteCarloOptimizer) Run(stats *Statistics) (*Result, error) {
	if stats == nil || stats.Assets() < 2 {
		return nil, ErrInsufficientAssets
	}
	if o.cfg.Scenarios < 1 {
		return nil, fmt.Errorf("scenario count must be >= 1, got %d", o.cfg.Scenarios)
	}

	eval := newEvaluator(stats, o.cfg.RiskFreeRate)
	population := make([]Scenario, o.cfg.Scenarios)

	if o.cfg.Workers > 1 {
		o.runParallel(eval, population)
	} else {
		rng := rand.New(rand.NewSource(o.cfg.seed()))
		for i := range population {
			population[i] = eval.sample(rng, i)
		}
	}

	return Reduce(population)
}

// runParallel fills disjoint slices of the population from per-worker random
// sources. No locks are needed: workers never share an index.
func (o *MonteCarloOptimizer) runParallel(eval *evaluator, population []Scenario) {
	workers := o.cfg.Workers
	n := len(population)
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(worker, lo, hi int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(o.cfg.seed() + int64(worker)))
			for i := lo; i < hi; i++ {
				population[i] = eval.sample(rng, i)
			}
		}(w, lo, hi)
	}
	wg.Wait()
}

// Reduce selects the maximum-Sharpe scenario from a population. Iteration
// follows generation order with a strictly-greater-than comparison, so the
// earliest-generated maximal scenario wins ties regardless of how the
// population was produced. Consumers of Stream apply it to whatever they
// collected.
func Reduce(population []Scenario) (*Result, error) {
	res := &Result{
		Weights:   make([][]float64, len(population)),
		Returns:   make([]float64, len(population)),
		Vols:      make([]float64, len(population)),
		Sharpes:   make([]float64, len(population)),
		Scenarios: len(population),
	}

	bestIdx := -1
	for i, s := range population {
		res.Weights[i] = s.Weights
		res.Returns[i] = s.Return
		res.Vols[i] = s.Volatility
		res.Sharpes[i] = s.Sharpe
		if s.Degenerate() {
			continue
		}
		if bestIdx < 0 || s.Sharpe > population[bestIdx].Sharpe {
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return nil, ErrNoValidScenario
	}
	res.Best = population[bestIdx]
	return res, nil
}

// Stream yields the scenarios of a sequential run one at a time, in
// generation order, without materializing the population. Restarting from the
// same seed reproduces the exact sequence; callers that need the optimum
// still apply the same strictly-greater-than rule over what they consume.
type Stream struct {
	eval *evaluator
	cfg  Config
	rng  *rand.Rand
	next int
}

// NewStream creates a restartable scenario stream over the given statistics.
func NewStream(stats *Statistics, cfg Config) (*Stream, error) {
	if stats == nil || stats.Assets() < 2 {
		return nil, ErrInsufficientAssets
	}
	if cfg.Scenarios < 1 {
		return nil, fmt.Errorf("scenario count must be >= 1, got %d", cfg.Scenarios)
	}
	s := &Stream{eval: newEvaluator(stats, cfg.RiskFreeRate), cfg: cfg}
	s.Reset()
	return s, nil
}

// Reset rewinds the stream to scenario 0 with the original seed.
func (s *Stream) Reset() {
	s.rng = rand.New(rand.NewSource(s.cfg.seed()))
	s.next = 0
}

// Remaining reports how many scenarios the stream will still produce.
func (s *Stream) Remaining() int { return s.cfg.Scenarios - s.next }

// Next produces the next scenario. ok is false once the configured scenario
// count is exhausted.
func (s *Stream) Next() (scenario Scenario, ok bool) {
	if s.next >= s.cfg.Scenarios {
		return Scenario{}, false
	}
	scenario = s.eval.sample(s.rng, s.next)
	s.next++
	return scenario, true
}
