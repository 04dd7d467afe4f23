// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package slots manages save slots: the slot index, the active-slot pointer,
// save/load of slot documents, export/import of backup files, autosave, and
// synchronization with the remote save API.
package slots

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/grimoire-interactive/daybook/internal/engine"
	"github.com/grimoire-interactive/daybook/internal/logging"
	"github.com/grimoire-interactive/daybook/internal/savegame"
	"github.com/grimoire-interactive/daybook/internal/store"
)

// Slot index keys. Each slot's metadata is its own key so the index never
// needs a read-modify-write cycle.
const (
	slotMetaKeyPrefix = "slots/meta/"
	activeSlotKey     = "slots/active"
)

// ErrSlotNotFound is returned by operations that require an existing slot.
var ErrSlotNotFound = errors.New("slots: slot not found")

// RemoteClient is the part of the save API the manager uses. A nil client
// disables remote sync entirely.
type RemoteClient interface {
	UploadSlot(ctx context.Context, slotID string, doc *savegame.SaveGame) error
	DownloadSlot(ctx context.Context, slotID string) (*savegame.SaveGame, error)
}

// Manager owns the slot lifecycle on top of the normalized store.
type Manager struct {
	store  *store.Store
	eng    engine.Engine
	remote RemoteClient
	log    zerolog.Logger

	now       func() time.Time
	newSlotID func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the manager's time source. Tests use it to pin
// timestamps and slot ids.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
		m.newSlotID = func() string {
			return "slot_" + strconv.FormatInt(now().UnixMilli(), 10)
		}
	}
}

// NewManager wires a slot manager. remote may be nil when the server sync is
// disabled.
func NewManager(s *store.Store, eng engine.Engine, remote RemoteClient, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		eng:    eng,
		remote: remote,
		log:    logging.WithComponent("slots"),
		now:    time.Now,
	}
	m.newSlotID = func() string {
		return "slot_" + strconv.FormatInt(m.now().UnixMilli(), 10)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new slot under a fresh id and, when a document is
// given, persists it. Identity fields missing from the document get the
// shipped defaults. The new slot does not become active; selection is the
// player's move, not a side effect of creation.
func (m *Manager) Create(ctx context.Context, doc *savegame.SaveGame) (*savegame.SlotMeta, error) {
	now := m.now()
	meta := &savegame.SlotMeta{
		SlotID:       m.newSlotID(),
		PlayerName:   savegame.DefaultPlayerName,
		CampaignYear: savegame.DefaultCampaignYear,
		SavedAt:      now,
		CreatedAt:    now,
	}

	if doc != nil {
		doc.SaveFileInfo.LastPlayed = now.UTC().Format(time.RFC3339)
		if err := m.store.SaveGameData(ctx, meta.SlotID, doc); err != nil {
			return nil, err
		}
		meta.PlayerName = doc.PlayerNameOrDefault()
		meta.CampaignYear = doc.CampaignYearOrDefault()
		meta.LatestDiaryDate = doc.LatestDiaryDate()
	}

	if err := m.putMeta(ctx, meta); err != nil {
		return nil, err
	}
	m.log.Info().Str("slot", meta.SlotID).Str("player", meta.PlayerName).Msg("slot created")
	return meta, nil
}

// Get returns a slot's metadata, or (nil, nil) when the slot does not exist.
func (m *Manager) Get(ctx context.Context, slotID string) (*savegame.SlotMeta, error) {
	data, err := m.eng.Get(ctx, slotMetaKeyPrefix+slotID)
	if errors.Is(err, engine.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %s: %w", slotID, err)
	}
	var meta savegame.SlotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode slot %s: %w", slotID, err)
	}
	return &meta, nil
}

// Update upserts slot metadata. An existing slot keeps its CreatedAt; an
// unknown slot is registered as-is.
func (m *Manager) Update(ctx context.Context, meta *savegame.SlotMeta) error {
	if meta == nil || meta.SlotID == "" {
		return errors.New("slots: metadata needs a slot id")
	}
	existing, err := m.Get(ctx, meta.SlotID)
	if err != nil {
		return err
	}
	if existing != nil {
		meta.CreatedAt = existing.CreatedAt
	} else if meta.CreatedAt.IsZero() {
		meta.CreatedAt = m.now()
	}
	return m.putMeta(ctx, meta)
}

// Delete removes a slot's metadata and all of its game data. If the deleted
// slot was active, the active pointer is cleared rather than reassigned.
func (m *Manager) Delete(ctx context.Context, slotID string) error {
	if err := m.store.DeleteGameData(ctx, slotID); err != nil {
		return err
	}
	if err := m.eng.Delete(ctx, slotMetaKeyPrefix+slotID); err != nil {
		return fmt.Errorf("delete slot meta %s: %w", slotID, err)
	}

	active, err := m.ActiveSlot(ctx)
	if err != nil {
		return err
	}
	if active == slotID {
		if err := m.eng.Delete(ctx, activeSlotKey); err != nil {
			return fmt.Errorf("clear active slot: %w", err)
		}
	}
	m.log.Info().Str("slot", slotID).Msg("slot deleted")
	return nil
}

// List returns all slots, most recently saved first. Slots that have game
// data but lost their index entry are rebuilt from the stored document, so
// the index never becomes the single point of failure for a save.
func (m *Manager) List(ctx context.Context) ([]savegame.SlotMeta, error) {
	entries, err := m.eng.List(ctx, slotMetaKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	metas := make([]savegame.SlotMeta, 0, len(entries))
	indexed := make(map[string]bool, len(entries))
	for _, e := range entries {
		var meta savegame.SlotMeta
		if err := json.Unmarshal(e.Value, &meta); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Key, err)
		}
		metas = append(metas, meta)
		indexed[meta.SlotID] = true
	}

	stored, err := m.store.SlotIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, slotID := range stored {
		if indexed[slotID] {
			continue
		}
		meta, err := m.rebuildMeta(ctx, slotID)
		if err != nil {
			return nil, err
		}
		metas = append(metas, *meta)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].SavedAt.After(metas[j].SavedAt)
	})
	return metas, nil
}

// rebuildMeta reconstructs and persists an index entry for a slot whose
// document rows survived but whose metadata key is gone.
func (m *Manager) rebuildMeta(ctx context.Context, slotID string) (*savegame.SlotMeta, error) {
	doc, err := m.store.LoadGameData(ctx, slotID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	meta := &savegame.SlotMeta{
		SlotID:       slotID,
		PlayerName:   savegame.DefaultPlayerName,
		CampaignYear: savegame.DefaultCampaignYear,
		SavedAt:      now,
		CreatedAt:    now,
	}
	if doc != nil {
		meta.PlayerName = doc.PlayerNameOrDefault()
		meta.CampaignYear = doc.CampaignYearOrDefault()
		meta.LatestDiaryDate = doc.LatestDiaryDate()
		if t, perr := time.Parse(time.RFC3339, doc.SaveFileInfo.LastPlayed); perr == nil {
			meta.SavedAt = t
			meta.CreatedAt = t
		}
	}
	if err := m.putMeta(ctx, meta); err != nil {
		return nil, err
	}
	m.log.Warn().Str("slot", slotID).Msg("slot index entry rebuilt from stored data")
	return meta, nil
}

// ActiveSlot returns the active slot id, or "" when none is selected.
func (m *Manager) ActiveSlot(ctx context.Context) (string, error) {
	data, err := m.eng.Get(ctx, activeSlotKey)
	if errors.Is(err, engine.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active slot: %w", err)
	}
	return string(data), nil
}

// SetActiveSlot points the active-slot marker at an existing slot. An empty
// slotID deselects: the marker is removed and no slot is active.
func (m *Manager) SetActiveSlot(ctx context.Context, slotID string) error {
	if slotID == "" {
		if err := m.eng.Delete(ctx, activeSlotKey); err != nil {
			return fmt.Errorf("clear active slot: %w", err)
		}
		return nil
	}
	meta, err := m.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if meta == nil {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, slotID)
	}
	if err := m.eng.Put(ctx, activeSlotKey, []byte(slotID)); err != nil {
		return fmt.Errorf("set active slot: %w", err)
	}
	return nil
}

// Save persists a slot's document and refreshes its index entry: SavedAt,
// LatestDiaryDate, and the identity fields are taken from the document,
// CreatedAt survives from the existing entry.
func (m *Manager) Save(ctx context.Context, slotID string, doc *savegame.SaveGame) error {
	doc.SaveFileInfo.LastPlayed = m.now().UTC().Format(time.RFC3339)
	if err := m.store.SaveGameData(ctx, slotID, doc); err != nil {
		return err
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

// Load returns a slot's document, (nil, nil) when the slot has no data.
func (m *Manager) Load(ctx context.Context, slotID string) (*savegame.SaveGame, error) {
	return m.store.LoadGameData(ctx, slotID)
}

// LoadActive loads the active slot's document. Returns the document and the
// active slot id; both zero when no slot is active.
func (m *Manager) LoadActive(ctx context.Context) (*savegame.SaveGame, string, error) {
	slotID, err := m.ActiveSlot(ctx)
	if err != nil || slotID == "" {
		return nil, "", err
	}
	doc, err := m.Load(ctx, slotID)
	if err != nil {
		return nil, slotID, err
	}
	return doc, slotID, nil
}

func (m *Manager) putMeta(ctx context.Context, meta *savegame.SlotMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode slot meta: %w", err)
	}
	if err := m.eng.Put(ctx, slotMetaKeyPrefix+meta.SlotID, data); err != nil {
		return fmt.Errorf("store slot meta %s: %w", meta.SlotID, err)
	}
	return nil
}
