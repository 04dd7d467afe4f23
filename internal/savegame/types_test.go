// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package savegame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatestDiaryDate(t *testing.T) {
	doc := &SaveGame{
		SaveFileInfo: SaveFileInfo{CampaignYear: 1925},
		CampaignHistory: CampaignHistory{
			MonthlyChapters: []MonthlyChapter{
				{
					Month: "January",
					DailyEntries: []DailyEntry{
						{DiaryWriteDate: "1925-01-03", IsSuccess: true},
					},
				},
			},
		},
	}
	assert.Equal(t, "1925-01-03", doc.LatestDiaryDate())
}

func TestLatestDiaryDateSpansChapters(t *testing.T) {
	doc := &SaveGame{
		CampaignHistory: CampaignHistory{
			MonthlyChapters: []MonthlyChapter{
				{Month: "March", DailyEntries: []DailyEntry{{DiaryWriteDate: "1925-03-20"}}},
				{Month: "January", DailyEntries: []DailyEntry{{DiaryWriteDate: "1925-01-31"}}},
			},
		},
	}
	assert.Equal(t, "1925-03-20", doc.LatestDiaryDate())
}

func TestLatestDiaryDateEmpty(t *testing.T) {
	assert.Equal(t, "", (&SaveGame{}).LatestDiaryDate())
}

func TestBackupFileName(t *testing.T) {
	tests := []struct {
		name string
		date string
		want string
	}{
		{"unpadded month and day", "1925-01-03", "diary_until_1_3.json"},
		{"two digit day", "1925-11-25", "diary_until_11_25.json"},
		{"empty date", "", "diary_until_unknown.json"},
		{"garbage date", "sometime", "diary_until_unknown.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BackupFileName(tt.date))
		})
	}
}

func TestIdentityDefaults(t *testing.T) {
	empty := &SaveGame{}
	assert.Equal(t, DefaultPlayerName, empty.PlayerNameOrDefault())
	assert.Equal(t, DefaultCampaignYear, empty.CampaignYearOrDefault())

	named := &SaveGame{SaveFileInfo: SaveFileInfo{PlayerName: "Ada", CampaignYear: 1931}}
	assert.Equal(t, "Ada", named.PlayerNameOrDefault())
	assert.Equal(t, 1931, named.CampaignYearOrDefault())
}

func TestMonthOrder(t *testing.T) {
	assert.Less(t, MonthOrder("January"), MonthOrder("February"))
	assert.Less(t, MonthOrder("November"), MonthOrder("December"))
	assert.Equal(t, len(CanonicalMonths), MonthOrder("Smarch"), "unknown months sort last")
	assert.True(t, IsCanonicalMonth("August"))
	assert.False(t, IsCanonicalMonth("august"))
}
