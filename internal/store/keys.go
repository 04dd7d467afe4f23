// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package store

import (
	"fmt"
	"strings"
)

// Key prefixes for the five row collections plus store metadata. Every
// per-slot key embeds the slot id as a path segment so collections from
// different slots never interleave.
const (
	gameInfoKeyPrefix = "gameinfo/"
	weeklyKeyPrefix   = "weekly/"
	dailyKeyPrefix    = "daily/"
	chapterKeyPrefix  = "chapter/"
	prologueKeyPrefix = "prologue/"

	schemaVersionKey = "meta/schema_version"
)

func gameInfoKey(slotID string) string {
	return gameInfoKeyPrefix + slotID
}

// weeklyKey zero-pads the week number so keys list in week order.
func weeklyKey(slotID string, week int) string {
	return fmt.Sprintf("%s%s/%04d", weeklyKeyPrefix, slotID, week)
}

func weeklySlotPrefix(slotID string) string {
	return weeklyKeyPrefix + slotID + "/"
}

// dailyKey relies on the ISO date layout: lexicographic key order is
// chronological order.
func dailyKey(slotID, diaryWriteDate string) string {
	return dailyKeyPrefix + slotID + "/" + diaryWriteDate
}

func dailySlotPrefix(slotID string) string {
	return dailyKeyPrefix + slotID + "/"
}

func chapterKey(slotID, month string) string {
	return chapterKeyPrefix + slotID + "/" + month
}

func chapterSlotPrefix(slotID string) string {
	return chapterKeyPrefix + slotID + "/"
}

func prologueKey(slotID string) string {
	return prologueKeyPrefix + slotID
}

// keySuffix strips prefix from key; second return is false when key does not
// carry the prefix.
func keySuffix(key, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}
