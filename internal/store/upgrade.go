// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/grimoire-interactive/daybook/internal/engine"
	"github.com/grimoire-interactive/daybook/internal/metrics"
	"github.com/grimoire-interactive/daybook/internal/savegame"
)

// Version-1 key names. The original layout predates slots: one implicit save
// whose rows carried no slot scope. The upgrade assigns all of it to
// LegacySlotID.
const (
	legacyGameInfoKey = gameInfoKeyPrefix + "current_save"
	legacyPrologueKey = prologueKeyPrefix + "prologue"
)

// upgradeSchema brings the keyspace to SchemaVersion. All rewrites plus the
// version bump go through one atomic batch, so a crash mid-upgrade leaves
// the store at version 1 and the upgrade reruns cleanly on the next open.
func (s *Store) upgradeSchema(ctx context.Context) error {
	data, err := s.eng.Get(ctx, schemaVersionKey)
	if err == nil {
		version, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr != nil {
			return fmt.Errorf("bad schema version %q: %w", data, convErr)
		}
		if version >= SchemaVersion {
			return nil
		}
	} else if !isNotFound(err) {
		return err
	}

	ops, migrated, err := s.legacyRewriteOps(ctx)
	if err != nil {
		return err
	}
	ops = append(ops, engine.Put(schemaVersionKey, []byte(strconv.Itoa(SchemaVersion))))

	if err := s.eng.Apply(ctx, ops); err != nil {
		return fmt.Errorf("apply upgrade: %w", err)
	}
	if migrated > 0 {
		metrics.SchemaUpgrades.Inc()
		s.log.Info().Int("rows", migrated).Str("slot", LegacySlotID).
			Msg("upgraded legacy rows to slot-scoped layout")
	}
	return nil
}

// legacyRewriteOps builds the batch that moves every version-1 row under
// LegacySlotID. Version-1 keys are recognizable by shape: their collection
// suffix has no slot segment.
func (s *Store) legacyRewriteOps(ctx context.Context) ([]engine.Op, int, error) {
	var ops []engine.Op
	migrated := 0

	// gameinfo/current_save -> gameinfo/slot_default
	data, err := s.eng.Get(ctx, legacyGameInfoKey)
	switch {
	case isNotFound(err):
	case err != nil:
		return nil, 0, err
	default:
		var row savegame.GameInfoRow
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, 0, fmt.Errorf("decode legacy game info: %w", err)
		}
		row.ID = LegacySlotID
		out, err := json.Marshal(&row)
		if err != nil {
			return nil, 0, err
		}
		ops = append(ops,
			engine.Delete(legacyGameInfoKey),
			engine.Put(gameInfoKey(LegacySlotID), out))
		migrated++
	}

	// weekly/<week> -> weekly/slot_default/<week>
	entries, err := s.eng.List(ctx, weeklyKeyPrefix)
	if err != nil {
		return nil, 0, err
	}
	for _, e := range entries {
		suffix, _ := keySuffix(e.Key, weeklyKeyPrefix)
		if strings.Contains(suffix, "/") {
			continue // already slot-scoped
		}
		var row savegame.WeeklyRow
		if err := json.Unmarshal(e.Value, &row); err != nil {
			return nil, 0, fmt.Errorf("decode legacy weekly row %s: %w", e.Key, err)
		}
		row.SlotID = LegacySlotID
		out, err := json.Marshal(&row)
		if err != nil {
			return nil, 0, err
		}
		ops = append(ops,
			engine.Delete(e.Key),
			engine.Put(weeklyKey(LegacySlotID, row.WeekNumber), out))
		migrated++
	}

	// daily/<date> -> daily/slot_default/<date>
	entries, err = s.eng.List(ctx, dailyKeyPrefix)
	if err != nil {
		return nil, 0, err
	}
	for _, e := range entries {
		suffix, _ := keySuffix(e.Key, dailyKeyPrefix)
		if strings.Contains(suffix, "/") {
			continue
		}
		var row savegame.DailyRow
		if err := json.Unmarshal(e.Value, &row); err != nil {
			return nil, 0, fmt.Errorf("decode legacy daily row %s: %w", e.Key, err)
		}
		row.SlotID = LegacySlotID
		out, err := json.Marshal(&row)
		if err != nil {
			return nil, 0, err
		}
		ops = append(ops,
			engine.Delete(e.Key),
			engine.Put(dailyKey(LegacySlotID, row.DiaryWriteDate), out))
		migrated++
	}

	// chapter/<month> -> chapter/slot_default/<month>
	entries, err = s.eng.List(ctx, chapterKeyPrefix)
	if err != nil {
		return nil, 0, err
	}
	for _, e := range entries {
		suffix, _ := keySuffix(e.Key, chapterKeyPrefix)
		if strings.Contains(suffix, "/") {
			continue
		}
		var row savegame.ChapterRow
		if err := json.Unmarshal(e.Value, &row); err != nil {
			return nil, 0, fmt.Errorf("decode legacy chapter row %s: %w", e.Key, err)
		}
		row.SlotID = LegacySlotID
		out, err := json.Marshal(&row)
		if err != nil {
			return nil, 0, err
		}
		ops = append(ops,
			engine.Delete(e.Key),
			engine.Put(chapterKey(LegacySlotID, row.Month), out))
		migrated++
	}

	// prologue/prologue -> prologue/slot_default
	data, err = s.eng.Get(ctx, legacyPrologueKey)
	switch {
	case isNotFound(err):
	case err != nil:
		return nil, 0, err
	default:
		var row savegame.PrologueRow
		if err := json.Unmarshal(data, &row); err != nil {
			return nil, 0, fmt.Errorf("decode legacy prologue: %w", err)
		}
		row.SlotID = LegacySlotID
		row.ID = savegame.PrologueRowID(LegacySlotID)
		out, err := json.Marshal(&row)
		if err != nil {
			return nil, 0, err
		}
		ops = append(ops,
			engine.Delete(legacyPrologueKey),
			engine.Put(prologueKey(LegacySlotID), out))
		migrated++
	}

	return ops, migrated, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, engine.ErrNotFound)
}
