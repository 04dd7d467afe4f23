// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package savegame

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() *SaveGame {
	return &SaveGame{
		SaveFileInfo: SaveFileInfo{
			PlayerName:   "John Miller",
			CampaignYear: 1925,
			LastPlayed:   "1925-02-14",
		},
		CurrentState: CurrentState{
			TodayDate:      "1925-02-14",
			MadnessTracker: MadnessTracker{CurrentLevel: 2},
			WeeklyProgress: WeeklyProgress{SuccessCount: 3},
		},
		LegacyInventory: LegacyInventory{
			ActiveRules:        []json.RawMessage{json.RawMessage(`{"id":"rule_7"}`)},
			CollectedArtifacts: []json.RawMessage{json.RawMessage(`{"id":"artifact_2"}`)},
			WeeklyRecords: []WeeklyRecord{
				{WeekNumber: 1, SuccessCount: 4},
				{WeekNumber: 2, SuccessCount: 5},
			},
		},
		CampaignHistory: CampaignHistory{
			MonthlyChapters: []MonthlyChapter{
				{
					Month:          "January",
					ChapterSummary: "A cold beginning.",
					DailyEntries: []DailyEntry{
						{DiaryWriteDate: "1925-01-03", IsSuccess: true, ActionType: "investigate", DiceSum: 9},
						{DiaryWriteDate: "1925-01-01", IsSuccess: false, ActionType: "rest"},
					},
				},
				{
					Month: "February",
					DailyEntries: []DailyEntry{
						{DiaryWriteDate: "1925-02-10", IsSuccess: true},
					},
				},
			},
			Prologue: Prologue{Date: "1924-12-31", Content: "It began with a letter.", IsFinalized: true},
		},
	}
}

func TestDecomposeTagsRows(t *testing.T) {
	doc := sampleDoc()
	rows := Decompose("slot_100", doc)

	require.NotNil(t, rows.GameInfo)
	assert.Equal(t, "slot_100", rows.GameInfo.ID)
	assert.Equal(t, doc.SaveFileInfo, rows.GameInfo.SaveFileInfo)
	assert.Equal(t, doc.CurrentState, rows.GameInfo.CurrentState)

	require.Len(t, rows.WeeklyLogs, 2)
	for _, w := range rows.WeeklyLogs {
		assert.Equal(t, "slot_100", w.SlotID)
	}

	require.Len(t, rows.DailyLogs, 3)
	for _, d := range rows.DailyLogs {
		assert.Equal(t, "slot_100", d.SlotID)
		assert.NotEmpty(t, d.Month)
	}

	require.Len(t, rows.MonthlyChapters, 2)
	require.NotNil(t, rows.Prologue)
	assert.Equal(t, "slot_100_prologue", rows.Prologue.ID)
	assert.Equal(t, "slot_100", rows.Prologue.SlotID)
}

func TestDecomposeDeduplicatesByNaturalKey(t *testing.T) {
	doc := sampleDoc()
	doc.LegacyInventory.WeeklyRecords = append(doc.LegacyInventory.WeeklyRecords,
		WeeklyRecord{WeekNumber: 2, SuccessCount: 7})
	doc.CampaignHistory.MonthlyChapters[1].DailyEntries = append(
		doc.CampaignHistory.MonthlyChapters[1].DailyEntries,
		DailyEntry{DiaryWriteDate: "1925-01-03", IsSuccess: false, Summary: "revised"})

	rows := Decompose("slot_100", doc)

	require.Len(t, rows.WeeklyLogs, 2)
	var week2 *WeeklyRow
	for i := range rows.WeeklyLogs {
		if rows.WeeklyLogs[i].WeekNumber == 2 {
			week2 = &rows.WeeklyLogs[i]
		}
	}
	require.NotNil(t, week2)
	assert.Equal(t, 7, week2.SuccessCount, "last occurrence wins")

	require.Len(t, rows.DailyLogs, 3)
	var jan3 *DailyRow
	for i := range rows.DailyLogs {
		if rows.DailyLogs[i].DiaryWriteDate == "1925-01-03" {
			jan3 = &rows.DailyLogs[i]
		}
	}
	require.NotNil(t, jan3)
	assert.Equal(t, "revised", jan3.Summary, "last occurrence wins")
	assert.Equal(t, "February", jan3.Month)
}

func TestDecomposeOmitsEmptyPrologue(t *testing.T) {
	doc := sampleDoc()
	doc.CampaignHistory.Prologue = Prologue{}

	rows := Decompose("slot_100", doc)
	assert.Nil(t, rows.Prologue)
}

func TestReconstructRoundTrip(t *testing.T) {
	doc := sampleDoc()
	rows := Decompose("slot_100", doc)
	got := Reconstruct(rows)

	require.NotNil(t, got)
	assert.Equal(t, doc.SaveFileInfo, got.SaveFileInfo)
	assert.Equal(t, doc.CurrentState, got.CurrentState)
	assert.Equal(t, doc.LegacyInventory.ActiveRules, got.LegacyInventory.ActiveRules)
	assert.Equal(t, doc.LegacyInventory.CollectedArtifacts, got.LegacyInventory.CollectedArtifacts)
	assert.Equal(t, doc.LegacyInventory.WeeklyRecords, got.LegacyInventory.WeeklyRecords)
	assert.Equal(t, doc.CampaignHistory.Prologue, got.CampaignHistory.Prologue)

	require.Len(t, got.CampaignHistory.MonthlyChapters, 2)
	jan := got.CampaignHistory.MonthlyChapters[0]
	assert.Equal(t, "January", jan.Month)
	require.Len(t, jan.DailyEntries, 2)
	assert.Equal(t, "1925-01-01", jan.DailyEntries[0].DiaryWriteDate)
	assert.Equal(t, "1925-01-03", jan.DailyEntries[1].DiaryWriteDate)
	assert.Equal(t, "February", got.CampaignHistory.MonthlyChapters[1].Month)
}

func TestReconstructMissingGameInfoIsNil(t *testing.T) {
	rows := Rows{
		WeeklyLogs: []WeeklyRow{{WeeklyRecord: WeeklyRecord{WeekNumber: 1}, SlotID: "slot_1"}},
	}
	assert.Nil(t, Reconstruct(rows))
}

func TestReconstructOrdering(t *testing.T) {
	rows := Rows{
		GameInfo: &GameInfoRow{ID: "slot_1"},
		WeeklyLogs: []WeeklyRow{
			{WeeklyRecord: WeeklyRecord{WeekNumber: 5}, SlotID: "slot_1"},
			{WeeklyRecord: WeeklyRecord{WeekNumber: 1}, SlotID: "slot_1"},
			{WeeklyRecord: WeeklyRecord{WeekNumber: 3}, SlotID: "slot_1"},
		},
		MonthlyChapters: []ChapterRow{
			{Month: "March", SlotID: "slot_1"},
			{Month: "January", SlotID: "slot_1"},
		},
		DailyLogs: []DailyRow{
			{DailyEntry: DailyEntry{DiaryWriteDate: "1925-01-09"}, SlotID: "slot_1", Month: "January"},
			{DailyEntry: DailyEntry{DiaryWriteDate: "1925-01-02"}, SlotID: "slot_1", Month: "January"},
		},
	}

	got := Reconstruct(rows)
	require.NotNil(t, got)

	weeks := got.LegacyInventory.WeeklyRecords
	require.Len(t, weeks, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{weeks[0].WeekNumber, weeks[1].WeekNumber, weeks[2].WeekNumber})

	chapters := got.CampaignHistory.MonthlyChapters
	require.Len(t, chapters, 2)
	assert.Equal(t, "January", chapters[0].Month)
	assert.Equal(t, "March", chapters[1].Month)

	jan := chapters[0].DailyEntries
	require.Len(t, jan, 2)
	assert.Equal(t, "1925-01-02", jan[0].DiaryWriteDate)
	assert.Equal(t, "1925-01-09", jan[1].DiaryWriteDate)
}

func TestReconstructDropsOrphanDailyRows(t *testing.T) {
	rows := Rows{
		GameInfo: &GameInfoRow{ID: "slot_1"},
		MonthlyChapters: []ChapterRow{
			{Month: "January", SlotID: "slot_1"},
		},
		DailyLogs: []DailyRow{
			{DailyEntry: DailyEntry{DiaryWriteDate: "1925-01-02"}, SlotID: "slot_1", Month: "January"},
			{DailyEntry: DailyEntry{DiaryWriteDate: "1925-04-02"}, SlotID: "slot_1", Month: "April"},
		},
	}

	got := Reconstruct(rows)
	require.NotNil(t, got)
	require.Len(t, got.CampaignHistory.MonthlyChapters, 1)
	assert.Len(t, got.CampaignHistory.MonthlyChapters[0].DailyEntries, 1)
}

func TestReconstructMissingPrologueIsZero(t *testing.T) {
	got := Reconstruct(Rows{GameInfo: &GameInfoRow{ID: "slot_1"}})
	require.NotNil(t, got)
	assert.Equal(t, Prologue{}, got.CampaignHistory.Prologue)
}

func TestRetag(t *testing.T) {
	rows := Decompose("slot_old", sampleDoc())
	rows.Retag("slot_new")

	assert.Equal(t, "slot_new", rows.GameInfo.ID)
	for _, w := range rows.WeeklyLogs {
		assert.Equal(t, "slot_new", w.SlotID)
	}
	for _, d := range rows.DailyLogs {
		assert.Equal(t, "slot_new", d.SlotID)
	}
	for _, c := range rows.MonthlyChapters {
		assert.Equal(t, "slot_new", c.SlotID)
	}
	require.NotNil(t, rows.Prologue)
	assert.Equal(t, "slot_new", rows.Prologue.SlotID)
	assert.Equal(t, "slot_new_prologue", rows.Prologue.ID)
}
