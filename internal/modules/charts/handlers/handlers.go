// Package handlers provides HTTP handlers for chart rendering.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/abidamassi/frontier/internal/modules/charts"
	opthandlers "github.com/abidamassi/frontier/internal/modules/optimization/handlers"
)

// defaultSMAPeriod is the moving average window applied when the sma
// query parameter is present without a value.
const defaultSMAPeriod = 20

// Handler handles chart HTTP requests
type Handler struct {
	service        *charts.Service
	defaultSymbols []string
	historyRange   time.Duration
	log            zerolog.Logger
}

// NewHandler creates a new charts handler
func NewHandler(service *charts.Service, defaultSymbols []string, historyRange time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		service:        service,
		defaultSymbols: defaultSymbols,
		historyRange:   historyRange,
		log:            log.With().Str("handler", "charts").Logger(),
	}
}

// RegisterRoutes registers all chart routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/charts", func(r chi.Router) {
		r.Get("/performance.png", h.HandlePerformance)
		r.Get("/allocation.png", h.HandleAllocation)
		r.Get("/scatter", h.HandleScatter)
	})
}

// HandlePerformance handles GET /api/charts/performance.png
func (h *Handler) HandlePerformance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	tickers := q.Get("tickers")
	symbols := h.defaultSymbols
	if tickers != "" {
		parsed, err := opthandlers.ParseTickers(tickers)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		symbols = parsed
	}

	end := q.Get("end")
	if end == "" {
		end = time.Now().UTC().Format("2006-01-02")
	}
	start := q.Get("start")
	if start == "" {
		endTime, err := time.Parse("2006-01-02", end)
		if err != nil {
			http.Error(w, "Invalid end date (expected YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		start = endTime.Add(-h.historyRange).Format("2006-01-02")
	}

	smaPeriod := 0
	if raw, ok := q["sma"]; ok {
		smaPeriod = defaultSMAPeriod
		if len(raw) > 0 && raw[0] != "" {
			n, err := strconv.Atoi(raw[0])
			if err != nil || n < 2 {
				http.Error(w, "Invalid sma period", http.StatusBadRequest)
				return
			}
			smaPeriod = n
		}
	}

	png, err := h.service.PerformancePNG(r.Context(), symbols, start, end, smaPeriod)
	if err != nil {
		h.log.Error().Err(err).Strs("symbols", symbols).Msg("Failed to render performance chart")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	h.writePNG(w, png)
}

// HandleAllocation handles GET /api/charts/allocation.png
func (h *Handler) HandleAllocation(w http.ResponseWriter, r *http.Request) {
	png, err := h.service.AllocationPNG()
	if err != nil {
		if errors.Is(err, charts.ErrNoRun) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to render allocation chart")
		http.Error(w, "Failed to render allocation chart", http.StatusInternalServerError)
		return
	}

	h.writePNG(w, png)
}

// HandleScatter handles GET /api/charts/scatter
func (h *Handler) HandleScatter(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Scatter()
	if err != nil {
		if errors.Is(err, charts.ErrNoRun) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to build scatter data")
		http.Error(w, "Failed to build scatter data", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.log.Debug().Err(err).Msg("Failed to write PNG response")
	}
}
