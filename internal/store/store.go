// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package store keeps save-game documents in their normalized five-collection
// form on top of a storage engine: game info, weekly logs, daily logs,
// monthly chapters, and the prologue, each slot-scoped. Writes replace a
// slot's collections wholesale and are verified by reading the rows back.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/grimoire-interactive/daybook/internal/engine"
	"github.com/grimoire-interactive/daybook/internal/logging"
	"github.com/grimoire-interactive/daybook/internal/metrics"
	"github.com/grimoire-interactive/daybook/internal/savegame"
)

// SchemaVersion is the current on-disk layout version. Version 1 predates
// slot scoping; Open upgrades it in place.
const SchemaVersion = 2

// LegacySlotID is the slot that version-1 data is assigned to during the
// schema upgrade, so pre-slot saves stay loadable.
const LegacySlotID = "slot_default"

// ErrIntegrity reports that a save's read-back verification found the stored
// rows do not reproduce the document that was written.
var ErrIntegrity = errors.New("store: saved data failed read-back verification")

// Store is the normalized save-game store. Its methods are safe for
// concurrent use to the extent the underlying engine is.
type Store struct {
	eng engine.Engine
	log zerolog.Logger
}

// Open wraps an engine and brings the schema up to the current version.
// The upgrade is atomic: either every legacy key is rewritten under
// LegacySlotID and the version bumped, or nothing changes.
func Open(ctx context.Context, eng engine.Engine) (*Store, error) {
	s := &Store{eng: eng, log: logging.WithComponent("store")}
	if err := s.upgradeSchema(ctx); err != nil {
		return nil, fmt.Errorf("schema upgrade: %w", err)
	}
	return s, nil
}

// SaveGameData replaces all of slotID's rows with the document's normalized
// form, then reads them back and verifies the reconstruction matches what
// was meant to be written. A verification mismatch returns ErrIntegrity;
// the mismatching rows are left in place for inspection.
func (s *Store) SaveGameData(ctx context.Context, slotID string, doc *savegame.SaveGame) error {
	if slotID == "" {
		return errors.New("store: empty slot id")
	}
	if doc == nil {
		return errors.New("store: nil document")
	}

	rows := savegame.Decompose(slotID, doc)
	ops, err := replaceOps(slotID, rows)
	if err != nil {
		return err
	}
	if err := s.eng.Apply(ctx, ops); err != nil {
		return fmt.Errorf("save slot %s: %w", slotID, err)
	}
	metrics.SlotSaves.Inc()

	if err := s.verify(ctx, slotID, rows); err != nil {
		return err
	}
	s.log.Debug().Str("slot", slotID).
		Int("weekly", len(rows.WeeklyLogs)).
		Int("daily", len(rows.DailyLogs)).
		Msg("slot saved and verified")
	return nil
}

// LoadGameData reconstructs slotID's document. A slot with no rows returns
// (nil, nil): absence is an answer, not a failure.
func (s *Store) LoadGameData(ctx context.Context, slotID string) (*savegame.SaveGame, error) {
	rows, err := s.RawRows(ctx, slotID)
	if err != nil {
		return nil, err
	}
	doc := savegame.Reconstruct(rows)
	if doc != nil {
		metrics.SlotLoads.Inc()
	}
	return doc, nil
}

// DeleteGameData removes every row belonging to slotID in one batch.
func (s *Store) DeleteGameData(ctx context.Context, slotID string) error {
	if slotID == "" {
		return errors.New("store: empty slot id")
	}
	ops := []engine.Op{
		engine.Delete(gameInfoKey(slotID)),
		engine.DeletePrefix(weeklySlotPrefix(slotID)),
		engine.DeletePrefix(dailySlotPrefix(slotID)),
		engine.DeletePrefix(chapterSlotPrefix(slotID)),
		engine.Delete(prologueKey(slotID)),
	}
	if err := s.eng.Apply(ctx, ops); err != nil {
		return fmt.Errorf("delete slot %s: %w", slotID, err)
	}
	return nil
}

// RawRows returns slotID's stored rows without reassembling them. Export
// uses this so a backup file carries the exact persisted form.
func (s *Store) RawRows(ctx context.Context, slotID string) (savegame.Rows, error) {
	var rows savegame.Rows

	data, err := s.eng.Get(ctx, gameInfoKey(slotID))
	switch {
	case errors.Is(err, engine.ErrNotFound):
		// fall through with nil GameInfo
	case err != nil:
		return rows, fmt.Errorf("load game info %s: %w", slotID, err)
	default:
		var gi savegame.GameInfoRow
		if err := json.Unmarshal(data, &gi); err != nil {
			return rows, fmt.Errorf("decode game info %s: %w", slotID, err)
		}
		rows.GameInfo = &gi
	}

	if err := listInto(ctx, s.eng, weeklySlotPrefix(slotID), &rows.WeeklyLogs); err != nil {
		return rows, err
	}
	if err := listInto(ctx, s.eng, dailySlotPrefix(slotID), &rows.DailyLogs); err != nil {
		return rows, err
	}
	if err := listInto(ctx, s.eng, chapterSlotPrefix(slotID), &rows.MonthlyChapters); err != nil {
		return rows, err
	}

	data, err = s.eng.Get(ctx, prologueKey(slotID))
	switch {
	case errors.Is(err, engine.ErrNotFound):
	case err != nil:
		return rows, fmt.Errorf("load prologue %s: %w", slotID, err)
	default:
		var p savegame.PrologueRow
		if err := json.Unmarshal(data, &p); err != nil {
			return rows, fmt.Errorf("decode prologue %s: %w", slotID, err)
		}
		rows.Prologue = &p
	}

	return rows, nil
}

// RestoreRows replaces a slot's collections with rows verbatim. Import uses
// this to replay an exported row set. The owning slot is taken from the
// game-info row.
func (s *Store) RestoreRows(ctx context.Context, slotID string, rows savegame.Rows) error {
	if slotID == "" {
		return errors.New("store: empty slot id")
	}
	rows.Retag(slotID)
	ops, err := replaceOps(slotID, rows)
	if err != nil {
		return err
	}
	if err := s.eng.Apply(ctx, ops); err != nil {
		return fmt.Errorf("restore slot %s: %w", slotID, err)
	}
	return nil
}

// SlotIDs lists every slot that has a game-info row, in key order. The
// slot index is derivable from this plus the per-slot rows.
func (s *Store) SlotIDs(ctx context.Context) ([]string, error) {
	entries, err := s.eng.List(ctx, gameInfoKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if id, ok := keySuffix(e.Key, gameInfoKeyPrefix); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// LatestDiaryDate returns the newest diary write date stored for slotID
// without decoding any row: daily keys end in the ISO date, so the last key
// in the listing is the answer. Returns "" when the slot has no entries.
func (s *Store) LatestDiaryDate(ctx context.Context, slotID string) (string, error) {
	entries, err := s.eng.List(ctx, dailySlotPrefix(slotID))
	if err != nil {
		return "", fmt.Errorf("list daily keys %s: %w", slotID, err)
	}
	if len(entries) == 0 {
		return "", nil
	}
	suffix, _ := keySuffix(entries[len(entries)-1].Key, dailySlotPrefix(slotID))
	return suffix, nil
}

// replaceOps builds the atomic delete-then-put batch for one slot.
func replaceOps(slotID string, rows savegame.Rows) ([]engine.Op, error) {
	ops := []engine.Op{
		engine.DeletePrefix(weeklySlotPrefix(slotID)),
		engine.DeletePrefix(dailySlotPrefix(slotID)),
		engine.DeletePrefix(chapterSlotPrefix(slotID)),
	}

	if rows.GameInfo != nil {
		data, err := json.Marshal(rows.GameInfo)
		if err != nil {
			return nil, fmt.Errorf("encode game info: %w", err)
		}
		ops = append(ops, engine.Put(gameInfoKey(slotID), data))
	} else {
		ops = append(ops, engine.Delete(gameInfoKey(slotID)))
	}

	for _, row := range rows.WeeklyLogs {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode weekly row: %w", err)
		}
		ops = append(ops, engine.Put(weeklyKey(slotID, row.WeekNumber), data))
	}
	for _, row := range rows.DailyLogs {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode daily row: %w", err)
		}
		ops = append(ops, engine.Put(dailyKey(slotID, row.DiaryWriteDate), data))
	}
	for _, row := range rows.MonthlyChapters {
		data, err := json.Marshal(row)
		if err != nil {
			return nil, fmt.Errorf("encode chapter row: %w", err)
		}
		ops = append(ops, engine.Put(chapterKey(slotID, row.Month), data))
	}

	if rows.Prologue != nil {
		data, err := json.Marshal(rows.Prologue)
		if err != nil {
			return nil, fmt.Errorf("encode prologue: %w", err)
		}
		ops = append(ops, engine.Put(prologueKey(slotID), data))
	} else {
		ops = append(ops, engine.Delete(prologueKey(slotID)))
	}

	return ops, nil
}

// verify re-reads the slot and checks the stored rows reproduce the written
// document. Comparison runs on the reconstructed documents, since both sides
// normalize ordering the same way.
func (s *Store) verify(ctx context.Context, slotID string, written savegame.Rows) error {
	stored, err := s.RawRows(ctx, slotID)
	if err != nil {
		return fmt.Errorf("verify slot %s: %w", slotID, err)
	}

	want, err := json.Marshal(savegame.Reconstruct(written))
	if err != nil {
		return fmt.Errorf("verify slot %s: %w", slotID, err)
	}
	got, err := json.Marshal(savegame.Reconstruct(stored))
	if err != nil {
		return fmt.Errorf("verify slot %s: %w", slotID, err)
	}

	if !bytes.Equal(want, got) {
		metrics.SaveVerifyFailures.Inc()
		s.log.Error().Str("slot", slotID).Msg("read-back verification mismatch")
		return fmt.Errorf("%w: slot %s", ErrIntegrity, slotID)
	}
	return nil
}

// listInto decodes every entry under prefix into out, which must be a
// pointer to a slice of row structs.
func listInto[T any](ctx context.Context, eng engine.Engine, prefix string, out *[]T) error {
	entries, err := eng.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list %s: %w", prefix, err)
	}
	for _, e := range entries {
		var row T
		if err := json.Unmarshal(e.Value, &row); err != nil {
			return fmt.Errorf("decode %s: %w", e.Key, err)
		}
		*out = append(*out, row)
	}
	return nil
}
