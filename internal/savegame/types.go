// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package savegame

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Defaults applied when an imported or freshly created document omits its
// identity fields. They match the campaign the game ships with.
const (
	DefaultPlayerName   = "John Miller"
	DefaultCampaignYear = 1925
)

// DateLayout is the calendar-date format used throughout the save document
// (diary dates, target dates, the prologue date). Dates are kept as strings
// because the document is exchanged verbatim with the narrative service;
// the ISO layout makes lexicographic comparison equivalent to chronological.
const DateLayout = "2006-01-02"

// SaveGame is the root save-game document for one campaign slot.
type SaveGame struct {
	SaveFileInfo    SaveFileInfo    `json:"save_file_info"`
	CurrentState    CurrentState    `json:"current_state"`
	LegacyInventory LegacyInventory `json:"legacy_inventory"`
	CampaignHistory CampaignHistory `json:"campaign_history"`
}

// SaveFileInfo is the slot's identity plus its activity marker. PlayerName
// and CampaignYear are immutable after creation; LastPlayed is restamped on
// every save.
type SaveFileInfo struct {
	PlayerName   string `json:"player_name"`
	CampaignYear int    `json:"campaign_year"`
	LastPlayed   string `json:"last_played,omitempty"`
}

// CurrentState is the live game cursor. There is exactly one per slot and it
// is overwritten wholesale on every save.
type CurrentState struct {
	TodayDate      string         `json:"today_date"`
	MadnessTracker MadnessTracker `json:"madness_tracker"`
	WeeklyProgress WeeklyProgress `json:"weekly_progress"`
}

// MadnessTracker tracks the investigator's madness level.
type MadnessTracker struct {
	CurrentLevel int `json:"current_level"`
}

// WeeklyProgress tracks successes within the running week.
type WeeklyProgress struct {
	SuccessCount int `json:"success_count"`
}

// LegacyInventory carries the elements that accumulate as the calendar turns
// and persist until year's end.
type LegacyInventory struct {
	ActiveRules        []json.RawMessage `json:"active_rules"`
	CollectedArtifacts []json.RawMessage `json:"collected_artifacts"`
	WeeklyRecords      []WeeklyRecord    `json:"weekly_records"`
}

// WeeklyRecord archives one concluded week. WeekNumber is the natural key,
// unique within a slot.
type WeeklyRecord struct {
	WeekNumber   int `json:"week_number"`
	SuccessCount int `json:"success_count,omitempty"`
}

// CampaignHistory holds the narrative record of past episodes.
type CampaignHistory struct {
	MonthlyChapters []MonthlyChapter `json:"monthly_chapters"`
	Prologue        Prologue         `json:"prologue"`
}

// MonthlyChapter groups one month's daily entries plus month-level metadata.
// Month is one of the twelve canonical month names and is the natural key
// within a slot.
type MonthlyChapter struct {
	Month          string       `json:"month"`
	ChapterSummary string       `json:"chapter_summary,omitempty"`
	DailyEntries   []DailyEntry `json:"daily_entries"`
}

// DailyEntry records one resolved encounter. DiaryWriteDate is the natural
// key, unique within a slot. The entry belongs to exactly one chapter via
// the month tag applied when it is stored.
type DailyEntry struct {
	DiaryWriteDate     string `json:"diary_write_date"`
	TargetDate         string `json:"target_date,omitempty"`
	IsSuccess          bool   `json:"is_success"`
	ActionType         string `json:"action_type,omitempty"`
	DiceSum            int    `json:"dice_sum,omitempty"`
	CthulhuSymbolCount int    `json:"cthulhu_symbol_count,omitempty"`
	FullText           string `json:"full_text,omitempty"`
	Summary            string `json:"summary,omitempty"`
}

// Prologue is the campaign's opening narrative; at most one per slot.
type Prologue struct {
	Date        string `json:"date"`
	Content     string `json:"content"`
	IsFinalized bool   `json:"is_finalized"`
}

// SlotMeta is the lightweight slot-index entry. It is a denormalized cache
// of the underlying tables: LatestDiaryDate in particular may be stale and
// must never be treated as authoritative.
type SlotMeta struct {
	SlotID          string    `json:"slotId"`
	CampaignYear    int       `json:"campaignYear"`
	PlayerName      string    `json:"playerName"`
	LatestDiaryDate string    `json:"latestDiaryDate,omitempty"`
	SavedAt         time.Time `json:"savedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PlayerNameOrDefault returns the document's player name, falling back to
// the shipped default when absent.
func (s *SaveGame) PlayerNameOrDefault() string {
	if s.SaveFileInfo.PlayerName != "" {
		return s.SaveFileInfo.PlayerName
	}
	return DefaultPlayerName
}

// CampaignYearOrDefault returns the document's campaign year, falling back
// to the shipped default when absent.
func (s *SaveGame) CampaignYearOrDefault() int {
	if s.SaveFileInfo.CampaignYear != 0 {
		return s.SaveFileInfo.CampaignYear
	}
	return DefaultCampaignYear
}

// LatestDiaryDate returns the maximum diary_write_date across all chapters,
// or "" when the document has no daily entries yet.
func (s *SaveGame) LatestDiaryDate() string {
	latest := ""
	for _, ch := range s.CampaignHistory.MonthlyChapters {
		for _, e := range ch.DailyEntries {
			if e.DiaryWriteDate != "" && e.DiaryWriteDate > latest {
				latest = e.DiaryWriteDate
			}
		}
	}
	return latest
}

// BackupFileName derives the deterministic export filename from a slot's
// latest diary date: diary_until_<month>_<day>.json, with no zero padding.
// An empty or unparseable date yields diary_until_unknown.json.
func BackupFileName(latestDiaryDate string) string {
	if latestDiaryDate == "" {
		return "diary_until_unknown.json"
	}
	t, err := time.Parse(DateLayout, latestDiaryDate)
	if err != nil {
		return "diary_until_unknown.json"
	}
	return fmt.Sprintf("diary_until_%d_%d.json", int(t.Month()), t.Day())
}
