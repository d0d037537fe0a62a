// Package handlers provides HTTP handlers for price history operations.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/abidamassi/frontier/internal/modules/historical"
)

// Handler handles price history HTTP requests
type Handler struct {
	service        *historical.Service
	defaultSymbols []string
	defaultRange   string // e.g. "2y", "6mo", "90d"
	log            zerolog.Logger
}

// NewHandler creates a new price history handler
func NewHandler(service *historical.Service, defaultSymbols []string, defaultRange string, log zerolog.Logger) *Handler {
	return &Handler{
		service:        service,
		defaultSymbols: defaultSymbols,
		defaultRange:   defaultRange,
		log:            log.With().Str("handler", "historical").Logger(),
	}
}

// RegisterRoutes registers all price history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/history", func(r chi.Router) {
		r.Get("/", h.HandleGetCoverage)
		r.Get("/{symbol}", h.HandleGetHistory)
	})
	r.Post("/system/sync/prices", h.HandleSyncPrices)
}

// HandleGetCoverage handles GET /api/history
func (h *Handler) HandleGetCoverage(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.service.StoredSymbols()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list stored symbols")
		http.Error(w, "Failed to list stored symbols", http.StatusInternalServerError)
		return
	}
	if len(symbols) == 0 {
		symbols = h.defaultSymbols
	}

	coverage, err := h.service.Coverage(symbols)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get coverage")
		http.Error(w, "Failed to get coverage", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbols": coverage,
			"count":   len(coverage),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHistory handles GET /api/history/{symbol}
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		http.Error(w, "Symbol is required", http.StatusBadRequest)
		return
	}

	start, end := h.resolveRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))

	prices, err := h.service.History(symbol, start, end)
	if err != nil {
		h.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to get history")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"symbol": historical.NormalizeSymbol(symbol),
			"start":  start,
			"end":    end,
			"prices": prices,
			"count":  len(prices),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// syncRequest is the POST /api/system/sync/prices body. All fields are
// optional; missing ones fall back to configured defaults.
type syncRequest struct {
	Symbols []string `json:"symbols"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
}

// HandleSyncPrices handles POST /api/system/sync/prices
func (h *Handler) HandleSyncPrices(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = h.defaultSymbols
	}
	start, end := h.resolveRange(req.Start, req.End)

	result, err := h.service.Sync(r.Context(), symbols, start, end)
	if err != nil {
		h.log.Error().Err(err).Msg("Price sync failed")
		http.Error(w, fmt.Sprintf("Price sync failed: %v", err), http.StatusBadGateway)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// resolveRange fills missing bounds from the configured default range,
// anchored at today.
func (h *Handler) resolveRange(start, end string) (string, string) {
	if end == "" {
		end = time.Now().UTC().Format("2006-01-02")
	}
	if start == "" {
		endTime, err := time.Parse("2006-01-02", end)
		if err != nil {
			endTime = time.Now().UTC()
		}
		start = endTime.Add(-RangeDuration(h.defaultRange)).Format("2006-01-02")
	}
	return start, end
}

// RangeDuration parses a compact range spec ("2y", "6mo", "90d") into a
// duration. Unrecognized specs fall back to two years.
func RangeDuration(spec string) time.Duration {
	spec = strings.ToLower(strings.TrimSpace(spec))
	const day = 24 * time.Hour

	for suffix, unit := range map[string]time.Duration{"y": 365 * day, "mo": 30 * day, "d": day} {
		if strings.HasSuffix(spec, suffix) {
			if n, err := strconv.Atoi(strings.TrimSuffix(spec, suffix)); err == nil && n > 0 {
				return time.Duration(n) * unit
			}
		}
	}
	return 2 * 365 * day
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
