package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abidamassi/frontier/internal/database"
)

func TestHandleSystemStatus(t *testing.T) {
	h := NewSystemHandlers(zerolog.New(nil).Level(zerolog.Disabled), t.TempDir(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	rec := httptest.NewRecorder()
	h.HandleSystemStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data["status"])
	assert.Contains(t, resp.Data, "cpu_percent")
	assert.Contains(t, resp.Data, "ram_percent")
	assert.Contains(t, resp.Data, "uptime_seconds")
}

func TestHandleDatabaseStats(t *testing.T) {
	dir := t.TempDir()
	historyDB, err := database.New(database.Config{Path: dir + "/history.db", Profile: database.ProfileStandard, Name: "history"})
	require.NoError(t, err)
	t.Cleanup(func() { historyDB.Close() })

	h := NewSystemHandlers(zerolog.New(nil).Level(zerolog.Disabled), dir, historyDB, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/system/database/stats", nil)
	rec := httptest.NewRecorder()
	h.HandleDatabaseStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Databases map[string]struct {
				Healthy bool `json:"healthy"`
			} `json:"databases"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Data.Databases, "history")
	assert.True(t, resp.Data.Databases["history"].Healthy)
}
