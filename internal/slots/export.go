// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/grimoire-interactive/daybook/internal/savegame"
	"github.com/grimoire-interactive/daybook/internal/store"
)

// ErrBadImport is returned when an import payload matches neither the
// exported-envelope format nor a bare save document. Nothing is written in
// that case.
var ErrBadImport = errors.New("slots: unrecognized import format")

// ExportEnvelope is the backup file format. The version field keeps the
// literal indexedDBVersion name so files from the browser build of the game
// and files from this daemon import interchangeably.
type ExportEnvelope struct {
	SlotID        string        `json:"slotId"`
	ExportedAt    time.Time     `json:"exportedAt"`
	SchemaVersion int           `json:"indexedDBVersion"`
	Data          savegame.Rows `json:"data"`
}

// Export packages a slot's stored rows into a backup envelope and derives
// the download filename from the slot's newest diary date.
func (m *Manager) Export(ctx context.Context, slotID string) (*ExportEnvelope, string, error) {
	rows, err := m.store.RawRows(ctx, slotID)
	if err != nil {
		return nil, "", err
	}
	if rows.GameInfo == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
	}

	latest, err := m.store.LatestDiaryDate(ctx, slotID)
	if err != nil {
		return nil, "", err
	}

	env := &ExportEnvelope{
		SlotID:        slotID,
		ExportedAt:    m.now().UTC(),
		SchemaVersion: store.SchemaVersion,
		Data:          rows,
	}
	m.log.Info().Str("slot", slotID).Str("latest", latest).Msg("slot exported")
	return env, savegame.BackupFileName(latest), nil
}

// Import loads a backup payload into slotID, creating the slot if needed.
// Two formats are accepted: the envelope Export writes (replayed row for
// row) and a bare save document (saved through the normal path). The
// payload is fully validated before any write; a bad file cannot damage the
// existing slot. Returns the slot id the data landed in.
func (m *Manager) Import(ctx context.Context, slotID string, payload []byte) (string, error) {
	env, doc, err := sniffImport(payload)
	if err != nil {
		return "", err
	}

	if slotID == "" {
		meta, err := m.Create(ctx, nil)
		if err != nil {
			return "", err
		}
		slotID = meta.SlotID
	}

	if env != nil {
		if err := m.store.RestoreRows(ctx, slotID, env.Data); err != nil {
			return "", err
		}
		if err := m.refreshMeta(ctx, slotID); err != nil {
			return "", err
		}
		m.log.Info().Str("slot", slotID).Msg("slot imported from envelope")
		return slotID, nil
	}

	if err := m.Save(ctx, slotID, doc); err != nil {
		return "", err
	}
	m.log.Info().Str("slot", slotID).Msg("slot imported from flat document")
	return slotID, nil
}

// sniffImport classifies the payload. Exactly one of the returns is non-nil
// on success.
func sniffImport(payload []byte) (*ExportEnvelope, *savegame.SaveGame, error) {
	var probe struct {
		Data             json.RawMessage `json:"data"`
		IndexedDBVersion *int            `json:"indexedDBVersion"`
		SaveFileInfo     json.RawMessage `json:"save_file_info"`
		CurrentState     json.RawMessage `json:"current_state"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadImport, err)
	}

	// Envelope: data plus version marker.
	if len(probe.Data) > 0 && probe.IndexedDBVersion != nil {
		var env ExportEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrBadImport, err)
		}
		if env.Data.GameInfo == nil {
			return nil, nil, fmt.Errorf("%w: envelope has no game info", ErrBadImport)
		}
		return &env, nil, nil
	}

	// Bare document: must at least carry identity and the live cursor.
	if len(probe.SaveFileInfo) == 0 || len(probe.CurrentState) == 0 {
		return nil, nil, fmt.Errorf("%w: neither envelope nor save document", ErrBadImport)
	}
	var doc savegame.SaveGame
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadImport, err)
	}
	return nil, &doc, nil
}

// refreshMeta rebuilds a slot's index entry from its stored rows after a raw
// row replay.
func (m *Manager) refreshMeta(ctx context.Context, slotID string) error {
	doc, err := m.Load(ctx, slotID)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	meta := &savegame.SlotMeta{
		SlotID:          slotID,
		PlayerName:      doc.PlayerNameOrDefault(),
		CampaignYear:    doc.CampaignYearOrDefault(),
		LatestDiaryDate: doc.LatestDiaryDate(),
		SavedAt:         m.now(),
	}
	return m.Update(ctx, meta)
}
