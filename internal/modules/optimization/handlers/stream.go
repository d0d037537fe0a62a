package handlers

import (
	"net/http"
	"strconv"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/abidamassi/frontier/internal/modules/optimization"
)

// progressInterval is how many scenarios are sampled between progress
// frames.
const progressInterval = 500

// progressFrame is one websocket message during a streamed run.
type progressFrame struct {
	Type      string                 `json:"type"` // "progress", "result", "error"
	Completed int                    `json:"completed,omitempty"`
	Total     int                    `json:"total,omitempty"`
	Best      *optimization.Scenario `json:"best,omitempty"`
	Result    *runView               `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// HandleStream handles GET /api/optimizer/stream. It upgrades to a
// websocket, runs the optimization scenario-by-scenario, and pushes
// progress frames with the best scenario found so far. Parameters come
// from query strings since websocket upgrades are GETs.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // same-origin dashboard plus local tooling
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()

	params, err := h.buildParams(requestFromQuery(r))
	if err != nil {
		_ = wsjson.Write(ctx, conn, progressFrame{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	started := time.Now()
	table, stats, err := h.service.Prepare(ctx, params)
	if err != nil {
		h.log.Error().Err(err).Strs("symbols", params.Symbols).Msg("Stream run preparation failed")
		_ = wsjson.Write(ctx, conn, progressFrame{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	stream, err := optimization.NewStream(stats, optimization.Config{
		RiskFreeRate: params.RiskFreeRate,
		Scenarios:    params.Scenarios,
		Seed:         params.Seed,
	})
	if err != nil {
		_ = wsjson.Write(ctx, conn, progressFrame{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	population := make([]optimization.Scenario, 0, params.Scenarios)
	var best *optimization.Scenario

	for {
		if ctx.Err() != nil {
			return // client went away
		}

		scenario, ok := stream.Next()
		if !ok {
			break
		}
		population = append(population, scenario)
		if !scenario.Degenerate() && (best == nil || scenario.Sharpe > best.Sharpe) {
			s := scenario
			best = &s
		}

		if len(population)%progressInterval == 0 {
			frame := progressFrame{
				Type:      "progress",
				Completed: len(population),
				Total:     params.Scenarios,
				Best:      best,
			}
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Debug().Err(err).Msg("Stream client disconnected")
				return
			}
		}
	}

	result, err := optimization.Reduce(population)
	if err != nil {
		_ = wsjson.Write(ctx, conn, progressFrame{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	summary := h.service.Summarize(params, table, result, started)
	h.persistSnapshot(summary)

	if err := wsjson.Write(ctx, conn, progressFrame{Type: "result", Result: newRunView(summary)}); err != nil {
		h.log.Debug().Err(err).Msg("Stream client disconnected before result")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// requestFromQuery maps stream query parameters onto the run request
// shape so both entry points share validation.
func requestFromQuery(r *http.Request) runRequest {
	q := r.URL.Query()
	req := runRequest{
		Tickers: q.Get("tickers"),
		Start:   q.Get("start"),
		End:     q.Get("end"),
	}
	if v, err := strconv.ParseFloat(q.Get("risk_free_rate_pct"), 64); err == nil {
		req.RiskFreeRatePct = &v
	}
	if v, err := strconv.Atoi(q.Get("scenarios")); err == nil {
		req.Scenarios = v
	}
	if v, err := strconv.ParseInt(q.Get("seed"), 10, 64); err == nil {
		req.Seed = v
	}
	return req
}
