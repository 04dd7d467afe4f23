// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/grimoire-interactive/daybook/internal/encounters"
	"github.com/grimoire-interactive/daybook/internal/engine"
	"github.com/grimoire-interactive/daybook/internal/logging"
	"github.com/grimoire-interactive/daybook/internal/savegame"
	"github.com/grimoire-interactive/daybook/internal/slots"
	"github.com/grimoire-interactive/daybook/internal/store"
)

// maxBodyBytes bounds request bodies. Save documents for a full campaign
// year stay well under this.
const maxBodyBytes = 16 << 20 // 16MB

// Handlers holds the HTTP handlers for the daybook API.
type Handlers struct {
	slots      *slots.Manager
	encounters *encounters.Service
	log        zerolog.Logger
}

// NewHandlers creates the handler set. The encounter service may be nil
// when no remote backend is configured.
func NewHandlers(mgr *slots.Manager, enc *encounters.Service) *Handlers {
	return &Handlers{
		slots:      mgr,
		encounters: enc,
		log:        logging.WithComponent("api"),
	}
}

// ListSlots handles GET /api/slots.
func (h *Handlers) ListSlots(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	metas, err := h.slots.List(r.Context())
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(metas)
}

// CreateSlot handles POST /api/slots. The body is an optional save document
// to seed the slot with; an empty body creates a blank slot. Either way the
// new slot is not activated; the UI switches to it explicitly.
func (h *Handlers) CreateSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var doc *savegame.SaveGame
	var seed savegame.SaveGame
	switch err := decodeBody(r, &seed); {
	case err == nil:
		doc = &seed
	case errors.Is(err, io.EOF):
		// No body: blank slot.
	default:
		rw.BadRequest(err.Error())
		return
	}

	meta, err := h.slots.Create(r.Context(), doc)
	if err != nil {
		writeSaveError(rw, err)
		return
	}
	rw.Created(meta)
}

// GetSlot handles GET /api/slots/{id}.
func (h *Handlers) GetSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := chi.URLParam(r, "id")

	meta, err := h.slots.Get(r.Context(), slotID)
	if err != nil {
		rw.InternalError(err)
		return
	}
	if meta == nil {
		rw.NotFound(fmt.Sprintf("slot %s not found", slotID))
		return
	}
	rw.Success(meta)
}

// UpdateSlot handles PUT /api/slots/{id}.
func (h *Handlers) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := chi.URLParam(r, "id")

	var meta savegame.SlotMeta
	if err := decodeBody(r, &meta); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	meta.SlotID = slotID

	if err := h.slots.Update(r.Context(), &meta); err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(&meta)
}

// DeleteSlot handles DELETE /api/slots/{id}. Removes the slot's save
// data, its metadata, and the active pointer when it points here.
func (h *Handlers) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := chi.URLParam(r, "id")

	if err := h.slots.Delete(r.Context(), slotID); err != nil {
		rw.InternalError(err)
		return
	}
	rw.NoContent()
}

// activeSlotResponse is the body for the active-slot endpoints.
type activeSlotResponse struct {
	SlotID string `json:"slotId"`
}

// GetActiveSlot handles GET /api/slots/active. An empty slotId means no
// slot is active.
func (h *Handlers) GetActiveSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	slotID, err := h.slots.ActiveSlot(r.Context())
	if err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(activeSlotResponse{SlotID: slotID})
}

// SetActiveSlot handles PUT /api/slots/active. An empty slotId deselects
// the current slot.
func (h *Handlers) SetActiveSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req activeSlotResponse
	if err := decodeBody(r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	if err := h.slots.SetActiveSlot(r.Context(), req.SlotID); err != nil {
		if errors.Is(err, slots.ErrSlotNotFound) {
			rw.NotFound(err.Error())
			return
		}
		rw.InternalError(err)
		return
	}
	rw.Success(req)
}

// LoadData handles GET /api/slots/{id}/data. Returns the reconstructed
// save document, or 404 when the slot has no save data.
func (h *Handlers) LoadData(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := chi.URLParam(r, "id")

	doc, err := h.slots.Load(r.Context(), slotID)
	if err != nil {
		rw.InternalError(err)
		return
	}
	if doc == nil {
		rw.NotFound(fmt.Sprintf("no save data for slot %s", slotID))
		return
	}
	rw.Success(doc)
}

// SaveData handles PUT /api/slots/{id}/data. Writes the document and
// refreshes the slot metadata.
func (h *Handlers) SaveData(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := chi.URLParam(r, "id")

	var doc savegame.SaveGame
	if err := decodeBody(r, &doc); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	if err := h.slots.Save(r.Context(), slotID, &doc); err != nil {
		writeSaveError(rw, err)
		return
	}
	rw.NoContent()
}

// writeSaveError maps a failed document write onto an API response. Quota
// exhaustion gets its own status so the UI can tell the player to free
// space instead of showing a generic failure.
func writeSaveError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrQuotaExceeded):
		rw.StorageFull(err)
	case errors.Is(err, store.ErrIntegrity):
		rw.Error(http.StatusInternalServerError, ErrCodeStorageError, "save verification failed")
	default:
		rw.InternalError(err)
	}
}

// autoSaveResponse is the body for POST autosave.
type autoSaveResponse struct {
	SlotID string `json:"slotId"`
}

// AutoSave handles POST /api/slots/{id}/autosave and POST
// /api/slots/autosave. The bare form creates and activates a fresh slot
// before saving. The remote upload happens in the background; the
// response only reflects the local write.
func (h *Handlers) AutoSave(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := chi.URLParam(r, "id")

	var doc savegame.SaveGame
	if err := decodeBody(r, &doc); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	savedTo, err := h.slots.AutoSave(r.Context(), slotID, &doc)
	if err != nil {
		writeSaveError(rw, err)
		return
	}
	rw.Success(autoSaveResponse{SlotID: savedTo})
}

// SyncSlot handles POST /api/slots/{id}/sync?direction=upload|download|both.
func (h *Handlers) SyncSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := chi.URLParam(r, "id")

	direction := r.URL.Query().Get("direction")
	if direction == "" {
		direction = slots.SyncBoth
	}

	if err := h.slots.SyncWithServer(r.Context(), slotID, direction); err != nil {
		switch {
		case errors.Is(err, slots.ErrSlotNotFound):
			rw.NotFound(err.Error())
		default:
			rw.InternalError(err)
		}
		return
	}
	rw.NoContent()
}

// ExportSlot handles GET /api/slots/{id}/export. Streams the export
// envelope as a download named after the latest diary date.
func (h *Handlers) ExportSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := chi.URLParam(r, "id")

	env, filename, err := h.slots.Export(r.Context(), slotID)
	if err != nil {
		if errors.Is(err, slots.ErrSlotNotFound) {
			rw.NotFound(err.Error())
			return
		}
		rw.InternalError(err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.log.Error().Err(err).Str("slot_id", slotID).Msg("failed to stream export")
	}
}

// ImportSlot handles POST /api/slots/import?slot=<id>. The body is the
// raw backup file; both export envelopes and flat save documents are
// accepted. Without a slot parameter a fresh slot is created.
func (h *Handlers) ImportSlot(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	slotID := r.URL.Query().Get("slot")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		rw.BadRequest("failed to read import payload")
		return
	}

	importedTo, err := h.slots.Import(r.Context(), slotID, payload)
	if err != nil {
		if errors.Is(err, slots.ErrBadImport) {
			rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
			return
		}
		writeSaveError(rw, err)
		return
	}
	rw.Success(autoSaveResponse{SlotID: importedTo})
}

// GetEncounters handles GET /api/encounters.
func (h *Handlers) GetEncounters(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.encounters == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no encounter data source configured")
		return
	}

	data, err := h.encounters.Load(r.Context())
	if err != nil {
		if errors.Is(err, encounters.ErrUnavailable) {
			rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, err.Error())
			return
		}
		rw.InternalError(err)
		return
	}
	rw.Success(data)
}

// ClearEncounterCache handles DELETE /api/encounters/cache. The next
// load refetches from the server.
func (h *Handlers) ClearEncounterCache(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.encounters == nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no encounter data source configured")
		return
	}

	if err := h.encounters.ClearCache(r.Context()); err != nil {
		rw.InternalError(err)
		return
	}
	rw.NoContent()
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// decodeBody decodes a JSON request body with a size cap and strict
// EOF handling.
func decodeBody(r *http.Request, dst interface{}) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
