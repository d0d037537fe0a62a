// Package handlers provides HTTP handlers for optimization runs: the
// latest-result view, synchronous runs, and the websocket progress stream.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/abidamassi/frontier/internal/modules/optimization"
	"github.com/abidamassi/frontier/internal/modules/snapshots"
)

// Scenario count bounds accepted over the API. Larger populations buy
// almost no Sharpe improvement and make the scatter payload unwieldy.
const (
	MinScenarios = 5000
	MaxScenarios = 20000
)

// Defaults are the configured fallback run parameters.
type Defaults struct {
	Symbols      []string
	RiskFreePct  float64 // percent, e.g. 6.0
	Scenarios    int
	Seed         int64
	HistoryRange time.Duration
}

// Handler handles optimization HTTP requests
type Handler struct {
	service   *optimization.Service
	snapshots *snapshots.Repository
	defaults  Defaults
	log       zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(service *optimization.Service, snaps *snapshots.Repository, defaults Defaults, log zerolog.Logger) *Handler {
	return &Handler{
		service:   service,
		snapshots: snaps,
		defaults:  defaults,
		log:       log.With().Str("handler", "optimization").Logger(),
	}
}

// RegisterRoutes registers all optimization routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/optimizer", func(r chi.Router) {
		r.Get("/", h.HandleGetLatest)
		r.Post("/run", h.HandleRun)
		r.Get("/stream", h.HandleStream)
	})
}

// runRequest is the POST /api/optimizer/run body. Tickers are a
// comma-separated string, matching the dashboard's free-text input.
// Omitted fields fall back to configured defaults.
type runRequest struct {
	Tickers         string   `json:"tickers"`
	RiskFreeRatePct *float64 `json:"risk_free_rate_pct"`
	Scenarios       int      `json:"scenarios"`
	Seed            int64    `json:"seed"`
	Start           string   `json:"start"`
	End             string   `json:"end"`
	Workers         int      `json:"workers"`
}

// HandleGetLatest handles GET /api/optimizer. It returns the last
// persisted run (if any) together with the configured defaults the
// dashboard pre-fills the form with.
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	var latest *optimization.RunSummary
	if h.snapshots != nil {
		var err error
		latest, err = h.snapshots.LatestRun()
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to load latest run snapshot")
			http.Error(w, "Failed to load latest run", http.StatusInternalServerError)
			return
		}
	}

	data := map[string]interface{}{
		"defaults": map[string]interface{}{
			"tickers":            strings.Join(h.defaults.Symbols, ", "),
			"risk_free_rate_pct": h.defaults.RiskFreePct,
			"scenarios":          h.defaults.Scenarios,
			"seed":               h.defaults.Seed,
		},
		"latest_run": nil,
	}
	if latest != nil {
		data["latest_run"] = newRunView(latest)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleRun handles POST /api/optimizer/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	params, err := h.buildParams(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.service.Run(r.Context(), params)
	if err != nil {
		h.log.Error().Err(err).Strs("symbols", params.Symbols).Msg("Optimization run failed")
		http.Error(w, err.Error(), statusForRunError(err))
		return
	}

	h.persistSnapshot(summary)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": newRunView(summary),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// buildParams validates the request and fills defaults. The core only
// ever sees in-range values.
func (h *Handler) buildParams(req runRequest) (optimization.RunParams, error) {
	var params optimization.RunParams

	tickers := req.Tickers
	if strings.TrimSpace(tickers) == "" {
		tickers = strings.Join(h.defaults.Symbols, ",")
	}
	symbols, err := ParseTickers(tickers)
	if err != nil {
		return params, err
	}

	rfPct := h.defaults.RiskFreePct
	if req.RiskFreeRatePct != nil {
		rfPct = *req.RiskFreeRatePct
	}
	if rfPct < 0 || rfPct > 100 {
		return params, fmt.Errorf("risk-free rate must be between 0 and 100 percent, got %.2f", rfPct)
	}

	scenarios := req.Scenarios
	if scenarios == 0 {
		scenarios = h.defaults.Scenarios
	}
	if scenarios < MinScenarios || scenarios > MaxScenarios {
		return params, fmt.Errorf("scenarios must be between %d and %d, got %d", MinScenarios, MaxScenarios, scenarios)
	}

	seed := req.Seed
	if seed == 0 {
		seed = h.defaults.Seed
	}

	start, end := req.Start, req.End
	if end == "" {
		end = time.Now().UTC().Format("2006-01-02")
	}
	if start == "" {
		endTime, err := time.Parse("2006-01-02", end)
		if err != nil {
			return params, fmt.Errorf("invalid end date %q (expected YYYY-MM-DD)", end)
		}
		start = endTime.Add(-h.defaults.HistoryRange).Format("2006-01-02")
	}

	if req.Workers < 0 {
		return params, fmt.Errorf("workers must be >= 0, got %d", req.Workers)
	}

	params = optimization.RunParams{
		Symbols:      symbols,
		Start:        start,
		End:          end,
		RiskFreeRate: rfPct / 100.0,
		Scenarios:    scenarios,
		Seed:         seed,
		Workers:      req.Workers,
	}
	return params, nil
}

// ParseTickers splits a comma-separated ticker string into trimmed,
// upper-cased, de-duplicated symbols. At least two are required.
func ParseTickers(raw string) ([]string, error) {
	seen := make(map[string]bool)
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	if len(symbols) < 2 {
		return nil, fmt.Errorf("at least 2 distinct tickers are required, got %d", len(symbols))
	}
	return symbols, nil
}

// persistSnapshot stores the run for the dashboard's latest-run view.
// Failures are logged, not surfaced; the run itself succeeded.
func (h *Handler) persistSnapshot(summary *optimization.RunSummary) {
	if h.snapshots == nil {
		return
	}
	if err := h.snapshots.SaveLatestRun(summary); err != nil {
		h.log.Warn().Err(err).Str("run_id", summary.RunID).Msg("Failed to persist run snapshot")
	}
}

// statusForRunError maps the core's typed failures to client errors and
// everything else (price fetch, storage) to upstream failures.
func statusForRunError(err error) int {
	switch {
	case errors.Is(err, optimization.ErrInsufficientAssets),
		errors.Is(err, optimization.ErrInsufficientHistory),
		errors.Is(err, optimization.ErrMisalignedSeries),
		errors.Is(err, optimization.ErrNoValidScenario):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// runView is the JSON shape of a completed run. Sharpe ratios are
// pointers because degenerate scenarios carry NaN, which encoding/json
// cannot represent; they serialize as null.
type runView struct {
	RunID       string                     `json:"run_id"`
	Params      optimization.RunParams     `json:"params"`
	Symbols     []string                   `json:"symbols"`
	AlignedRows int                        `json:"aligned_rows"`
	Best        optimization.Scenario      `json:"best"`
	Allocation  []optimization.WeightEntry `json:"allocation"`
	Rating      string                     `json:"rating"`
	Scenarios   int                        `json:"scenarios"`
	Weights     [][]float64                `json:"weights"`
	Returns     []float64                  `json:"returns"`
	Vols        []float64                  `json:"volatilities"`
	Sharpes     []*float64                 `json:"sharpes"`
	ElapsedMS   int64                      `json:"elapsed_ms"`
	RanAt       time.Time                  `json:"ran_at"`
}

func newRunView(summary *optimization.RunSummary) *runView {
	view := &runView{
		RunID:       summary.RunID,
		Params:      summary.Params,
		Symbols:     summary.Symbols,
		AlignedRows: summary.Dates,
		Allocation:  summary.Allocation,
		Rating:      summary.Rating,
		ElapsedMS:   summary.ElapsedMS,
		RanAt:       summary.RanAt,
	}
	if summary.Result != nil {
		view.Best = summary.Result.Best
		view.Scenarios = summary.Result.Scenarios
		view.Weights = summary.Result.Weights
		view.Returns = summary.Result.Returns
		view.Vols = summary.Result.Vols
		view.Sharpes = SanitizeSharpes(summary.Result.Sharpes)
	}
	return view
}

// SanitizeSharpes replaces NaN entries with nil for JSON encoding.
func SanitizeSharpes(sharpes []float64) []*float64 {
	out := make([]*float64, len(sharpes))
	for i := range sharpes {
		if !math.IsNaN(sharpes[i]) {
			v := sharpes[i]
			out[i] = &v
		}
	}
	return out
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
