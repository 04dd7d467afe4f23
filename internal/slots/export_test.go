// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package slots

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoire-interactive/daybook/internal/store"
)

func TestExportEnvelope(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	meta, err := m.Create(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, meta.SlotID, sampleDoc()))

	env, filename, err := m.Export(ctx, meta.SlotID)
	require.NoError(t, err)
	assert.Equal(t, meta.SlotID, env.SlotID)
	assert.Equal(t, store.SchemaVersion, env.SchemaVersion)
	assert.False(t, env.ExportedAt.IsZero())
	require.NotNil(t, env.Data.GameInfo)
	assert.Equal(t, "diary_until_1_3.json", filename)

	// The version field keeps its legacy wire name.
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"indexedDBVersion":2`)
}

func TestExportMissingSlot(t *testing.T) {
	m := newTestManager(t, nil)
	_, _, err := m.Export(context.Background(), "slot_ghost")
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestExportEmptySlotFilename(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	meta, err := m.Create(ctx, nil)
	require.NoError(t, err)
	doc := sampleDoc()
	doc.CampaignHistory.MonthlyChapters = nil
	require.NoError(t, m.Save(ctx, meta.SlotID, doc))

	_, filename, err := m.Export(ctx, meta.SlotID)
	require.NoError(t, err)
	assert.Equal(t, "diary_until_unknown.json", filename)
}

func TestImportEnvelopeRoundTrip(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	meta, err := m.Create(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, meta.SlotID, sampleDoc()))
	env, _, err := m.Export(ctx, meta.SlotID)
	require.NoError(t, err)
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	// Import into a fresh slot; rows must be retagged to the new owner.
	newID, err := m.Import(ctx, "", payload)
	require.NoError(t, err)
	assert.NotEqual(t, meta.SlotID, newID)

	doc, err := m.Load(ctx, newID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "John Miller", doc.SaveFileInfo.PlayerName)
	assert.Equal(t, "1925-01-03", doc.LatestDiaryDate())

	imported, err := m.Get(ctx, newID)
	require.NoError(t, err)
	require.NotNil(t, imported)
	assert.Equal(t, "1925-01-03", imported.LatestDiaryDate)
}

func TestImportIntoExistingSlotReplaces(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	meta, err := m.Create(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, meta.SlotID, sampleDoc()))
	env, _, err := m.Export(ctx, meta.SlotID)
	require.NoError(t, err)
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	target, err := m.Create(ctx, nil)
	require.NoError(t, err)
	got, err := m.Import(ctx, target.SlotID, payload)
	require.NoError(t, err)
	assert.Equal(t, target.SlotID, got)

	doc, err := m.Load(ctx, target.SlotID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "John Miller", doc.SaveFileInfo.PlayerName)
}

func TestImportFlatDocument(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	payload, err := json.Marshal(sampleDoc())
	require.NoError(t, err)

	slotID, err := m.Import(ctx, "", payload)
	require.NoError(t, err)

	doc, err := m.Load(ctx, slotID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 1925, doc.SaveFileInfo.CampaignYear)
}

func TestImportRejectsGarbage(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "definitely not json"},
		{"wrong shape", `{"hello":"world"}`},
		{"envelope without game info", `{"indexedDBVersion":2,"data":{"weeklyLogs":[]}}`},
		{"flat doc missing current state", `{"save_file_info":{"player_name":"x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Import(ctx, "", []byte(tt.payload))
			assert.ErrorIs(t, err, ErrBadImport)
		})
	}

	// Nothing may have been written along the way.
	metas, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, metas)
}
