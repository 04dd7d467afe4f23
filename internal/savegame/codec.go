// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package savegame

import (
	"sort"

	"github.com/goccy/go-json"
)

// GameInfoRow is the normalized game-info record: the per-slot singleton
// carrying identity, live state, and the non-tabular inventory fields.
type GameInfoRow struct {
	ID                 string            `json:"id"`
	SaveFileInfo       SaveFileInfo      `json:"save_file_info"`
	CurrentState       CurrentState      `json:"current_state"`
	ActiveRules        []json.RawMessage `json:"active_rules"`
	CollectedArtifacts []json.RawMessage `json:"collected_artifacts"`
}

// WeeklyRow is a WeeklyRecord tagged with its owning slot.
type WeeklyRow struct {
	WeeklyRecord
	SlotID string `json:"slotId"`
}

// DailyRow is a DailyEntry tagged with its owning slot and chapter month.
// The month tag is what re-attaches the entry to its chapter at read time.
type DailyRow struct {
	DailyEntry
	SlotID string `json:"slotId"`
	Month  string `json:"month"`
}

// ChapterRow is a MonthlyChapter with its daily entries stripped out, since
// those live in their own collection.
type ChapterRow struct {
	Month          string `json:"month"`
	ChapterSummary string `json:"chapter_summary,omitempty"`
	SlotID         string `json:"slotId"`
}

// PrologueRow is the per-slot prologue singleton.
type PrologueRow struct {
	ID     string `json:"id"`
	SlotID string `json:"slotId"`
	Prologue
}

// Rows is the full normalized row set for one slot. It doubles as the
// payload of the versioned export envelope, so its JSON field names are part
// of the backup file format.
type Rows struct {
	GameInfo        *GameInfoRow `json:"gameInfo"`
	WeeklyLogs      []WeeklyRow  `json:"weeklyLogs"`
	DailyLogs       []DailyRow   `json:"dailyLogs"`
	MonthlyChapters []ChapterRow `json:"monthlyChapters"`
	Prologue        *PrologueRow `json:"prologue"`
}

// PrologueRowID builds the prologue record identifier for a slot.
func PrologueRowID(slotID string) string {
	return slotID + "_prologue"
}

// Decompose splits a SaveGame document into its normalized rows under the
// given slot identifier. Duplicate natural keys within a collection collapse
// to the last occurrence, so a document carrying two weekly records for the
// same week yields exactly one row for that week.
func Decompose(slotID string, doc *SaveGame) Rows {
	rows := Rows{
		GameInfo: &GameInfoRow{
			ID:                 slotID,
			SaveFileInfo:       doc.SaveFileInfo,
			CurrentState:       doc.CurrentState,
			ActiveRules:        doc.LegacyInventory.ActiveRules,
			CollectedArtifacts: doc.LegacyInventory.CollectedArtifacts,
		},
	}

	weekSeen := map[int]int{}
	for _, rec := range doc.LegacyInventory.WeeklyRecords {
		row := WeeklyRow{WeeklyRecord: rec, SlotID: slotID}
		if i, ok := weekSeen[rec.WeekNumber]; ok {
			rows.WeeklyLogs[i] = row
			continue
		}
		weekSeen[rec.WeekNumber] = len(rows.WeeklyLogs)
		rows.WeeklyLogs = append(rows.WeeklyLogs, row)
	}

	monthSeen := map[string]int{}
	dateSeen := map[string]int{}
	for _, ch := range doc.CampaignHistory.MonthlyChapters {
		chRow := ChapterRow{Month: ch.Month, ChapterSummary: ch.ChapterSummary, SlotID: slotID}
		if i, ok := monthSeen[ch.Month]; ok {
			rows.MonthlyChapters[i] = chRow
		} else {
			monthSeen[ch.Month] = len(rows.MonthlyChapters)
			rows.MonthlyChapters = append(rows.MonthlyChapters, chRow)
		}
		for _, e := range ch.DailyEntries {
			dRow := DailyRow{DailyEntry: e, SlotID: slotID, Month: ch.Month}
			if i, ok := dateSeen[e.DiaryWriteDate]; ok {
				rows.DailyLogs[i] = dRow
				continue
			}
			dateSeen[e.DiaryWriteDate] = len(rows.DailyLogs)
			rows.DailyLogs = append(rows.DailyLogs, dRow)
		}
	}

	if p := doc.CampaignHistory.Prologue; p != (Prologue{}) {
		rows.Prologue = &PrologueRow{
			ID:       PrologueRowID(slotID),
			SlotID:   slotID,
			Prologue: p,
		}
	}

	return rows
}

// Reconstruct joins normalized rows back into the SaveGame document shape.
// It returns nil when the game-info row is absent: a missing slot is a
// normal outcome, not an error.
//
// Ordering is normalized on the way out: weekly records ascend by week
// number, chapters follow canonical month order, and each chapter's daily
// entries ascend by diary write date. Daily rows whose month tag matches no
// chapter are silently excluded — referential integrity here is additive,
// not enforced.
func Reconstruct(rows Rows) *SaveGame {
	if rows.GameInfo == nil {
		return nil
	}

	weekly := make([]WeeklyRecord, 0, len(rows.WeeklyLogs))
	for _, row := range rows.WeeklyLogs {
		weekly = append(weekly, row.WeeklyRecord)
	}
	sort.Slice(weekly, func(i, j int) bool {
		return weekly[i].WeekNumber < weekly[j].WeekNumber
	})

	byMonth := make(map[string][]DailyEntry)
	for _, row := range rows.DailyLogs {
		byMonth[row.Month] = append(byMonth[row.Month], row.DailyEntry)
	}

	chapters := make([]MonthlyChapter, 0, len(rows.MonthlyChapters))
	for _, row := range rows.MonthlyChapters {
		entries := byMonth[row.Month]
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].DiaryWriteDate < entries[j].DiaryWriteDate
		})
		if entries == nil {
			entries = []DailyEntry{}
		}
		chapters = append(chapters, MonthlyChapter{
			Month:          row.Month,
			ChapterSummary: row.ChapterSummary,
			DailyEntries:   entries,
		})
	}
	sort.SliceStable(chapters, func(i, j int) bool {
		return MonthOrder(chapters[i].Month) < MonthOrder(chapters[j].Month)
	})

	var prologue Prologue
	if rows.Prologue != nil {
		prologue = rows.Prologue.Prologue
	}

	return &SaveGame{
		SaveFileInfo: rows.GameInfo.SaveFileInfo,
		CurrentState: rows.GameInfo.CurrentState,
		LegacyInventory: LegacyInventory{
			ActiveRules:        rows.GameInfo.ActiveRules,
			CollectedArtifacts: rows.GameInfo.CollectedArtifacts,
			WeeklyRecords:      weekly,
		},
		CampaignHistory: CampaignHistory{
			MonthlyChapters: chapters,
			Prologue:        prologue,
		},
	}
}

// Retag rewrites every row's slot ownership, including the derived prologue
// and game-info identifiers. Import uses it to replay an exported row set
// under a different slot id.
func (r *Rows) Retag(slotID string) {
	if r.GameInfo != nil {
		r.GameInfo.ID = slotID
	}
	for i := range r.WeeklyLogs {
		r.WeeklyLogs[i].SlotID = slotID
	}
	for i := range r.DailyLogs {
		r.DailyLogs[i].SlotID = slotID
	}
	for i := range r.MonthlyChapters {
		r.MonthlyChapters[i].SlotID = slotID
	}
	if r.Prologue != nil {
		r.Prologue.SlotID = slotID
		r.Prologue.ID = PrologueRowID(slotID)
	}
}
