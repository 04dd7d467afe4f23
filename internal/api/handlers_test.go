// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoire-interactive/daybook/internal/engine"
	"github.com/grimoire-interactive/daybook/internal/savegame"
	"github.com/grimoire-interactive/daybook/internal/slots"
	"github.com/grimoire-interactive/daybook/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng, err := engine.OpenSQLite(filepath.Join(t.TempDir(), "daybook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	s, err := store.Open(context.Background(), eng)
	require.NoError(t, err)

	mgr := slots.NewManager(s, eng, nil)
	router := NewRouter(NewHandlers(mgr, nil), nil)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success)
	if dst != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, dst))
	}
}

func sampleDoc() *savegame.SaveGame {
	return &savegame.SaveGame{
		SaveFileInfo: savegame.SaveFileInfo{PlayerName: "John Miller", CampaignYear: 1925},
		CurrentState: savegame.CurrentState{TodayDate: "1925-01-03"},
	}
}

func TestSlotLifecycle(t *testing.T) {
	srv := newTestServer(t)

	// Create seeded with a save document.
	seed := sampleDoc()
	seed.SaveFileInfo.PlayerName = "Armitage"
	seed.SaveFileInfo.CampaignYear = 1926
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/slots", seed)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var meta savegame.SlotMeta
	decodeData(t, resp, &meta)
	require.NotEmpty(t, meta.SlotID)
	assert.Equal(t, "Armitage", meta.PlayerName)
	assert.Equal(t, 1926, meta.CampaignYear)

	// The seed document is loadable straight away.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/"+meta.SlotID+"/data", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc savegame.SaveGame
	decodeData(t, resp, &doc)
	assert.Equal(t, "Armitage", doc.SaveFileInfo.PlayerName)

	// Creating a slot must not activate it.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var active struct {
		SlotID string `json:"slotId"`
	}
	decodeData(t, resp, &active)
	assert.Empty(t, active.SlotID)

	// List
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var metas []savegame.SlotMeta
	decodeData(t, resp, &metas)
	require.Len(t, metas, 1)

	// Activate
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/slots/active", map[string]string{"slotId": meta.SlotID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/active", nil)
	decodeData(t, resp, &active)
	assert.Equal(t, meta.SlotID, active.SlotID)

	// Delete clears game data, metadata and the active pointer.
	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/slots/"+meta.SlotID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/"+meta.SlotID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/active", nil)
	decodeData(t, resp, &active)
	assert.Empty(t, active.SlotID)
}

func TestSaveAndLoadData(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/slots", map[string]interface{}{})
	var meta savegame.SlotMeta
	decodeData(t, resp, &meta)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/slots/"+meta.SlotID+"/data", sampleDoc())
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/"+meta.SlotID+"/data", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc savegame.SaveGame
	decodeData(t, resp, &doc)
	assert.Equal(t, "John Miller", doc.SaveFileInfo.PlayerName)
	assert.Equal(t, "1925-01-03", doc.CurrentState.TodayDate)
}

func TestLoadDataMissingSlot(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/slots/slot_missing/data", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSaveDataRejectsBadJSON(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/slots/slot_1/data", bytes.NewBufferString("{truncated"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAutoSaveWithoutSlotCreatesAndActivates(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/slots/autosave", sampleDoc())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved struct {
		SlotID string `json:"slotId"`
	}
	decodeData(t, resp, &saved)
	require.NotEmpty(t, saved.SlotID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/active", nil)
	var active struct {
		SlotID string `json:"slotId"`
	}
	decodeData(t, resp, &active)
	assert.Equal(t, saved.SlotID, active.SlotID)
}

func TestSaveErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"quota exceeded", fmt.Errorf("save slot: %w", engine.ErrQuotaExceeded), http.StatusInsufficientStorage, ErrCodeStorageFull},
		{"verification mismatch", fmt.Errorf("slot_1: %w", store.ErrIntegrity), http.StatusInternalServerError, ErrCodeStorageError},
		{"anything else", errors.New("disk fell off"), http.StatusInternalServerError, ErrCodeInternalError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/slots/slot_1/data", nil)
			writeSaveError(NewResponseWriter(rec, req), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var envelope struct {
				Success bool      `json:"success"`
				Error   *APIError `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.False(t, envelope.Success)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tc.code, envelope.Error.Code)
		})
	}
}

func TestDeselectActiveSlot(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/slots", map[string]interface{}{})
	var meta savegame.SlotMeta
	decodeData(t, resp, &meta)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/slots/active", map[string]string{"slotId": meta.SlotID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// An empty slotId clears the selection.
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/slots/active", map[string]string{"slotId": ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/active", nil)
	var active struct {
		SlotID string `json:"slotId"`
	}
	decodeData(t, resp, &active)
	assert.Empty(t, active.SlotID)
}

func TestExportAndImportRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/slots/autosave", sampleDoc())
	var saved struct {
		SlotID string `json:"slotId"`
	}
	decodeData(t, resp, &saved)

	// Export streams a download with the diary-date filename.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/"+saved.SlotID+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	var exported bytes.Buffer
	_, err := exported.ReadFrom(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, exported.String(), `"indexedDBVersion"`)

	// Import into a fresh slot.
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/slots/import", &exported)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var imported struct {
		SlotID string `json:"slotId"`
	}
	decodeData(t, resp, &imported)
	require.NotEmpty(t, imported.SlotID)
	assert.NotEqual(t, saved.SlotID, imported.SlotID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/slots/"+imported.SlotID+"/data", nil)
	var doc savegame.SaveGame
	decodeData(t, resp, &doc)
	assert.Equal(t, "John Miller", doc.SaveFileInfo.PlayerName)
}

func TestImportRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/slots/import", bytes.NewBufferString(`{"random":"stuff"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportMissingSlot(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/slots/slot_missing/export", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestSyncRejectsBadDirection(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/slots/slot_1/sync?direction=sideways", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestEncountersUnconfigured(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/encounters", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status map[string]string
	decodeData(t, resp, &status)
	assert.Equal(t, "ok", status["status"])
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/slots", nil)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestUpdateSlotPreservesPathID(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/slots", map[string]interface{}{})
	var meta savegame.SlotMeta
	decodeData(t, resp, &meta)

	body := meta
	body.SlotID = "slot_spoofed"
	body.PlayerName = "Carter"

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/slots/"+meta.SlotID, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated savegame.SlotMeta
	decodeData(t, resp, &updated)
	assert.Equal(t, meta.SlotID, updated.SlotID)
	assert.Equal(t, "Carter", updated.PlayerName)
}

func TestRateLimitKicksIn(t *testing.T) {
	// A tiny limit makes the limiter observable without hammering.
	eng, err := engine.OpenSQLite(filepath.Join(t.TempDir(), "daybook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	s, err := store.Open(context.Background(), eng)
	require.NoError(t, err)
	mgr := slots.NewManager(s, eng, nil)

	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	router := NewRouter(NewHandlers(mgr, nil), cfg)
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)

	var limited bool
	for i := 0; i < 5; i++ {
		resp := doJSON(t, http.MethodGet, srv.URL+"/api/slots", nil)
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
		}
		resp.Body.Close()
	}
	assert.True(t, limited, "expected 429 within 5 requests")
}
