// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package savegame

// CanonicalMonths lists the twelve month names used as chapter keys, in
// calendar order. Chapters are always reconstructed in this order,
// regardless of insertion order.
var CanonicalMonths = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var monthIndex = func() map[string]int {
	m := make(map[string]int, len(CanonicalMonths))
	for i, name := range CanonicalMonths {
		m[name] = i
	}
	return m
}()

// MonthOrder returns the zero-based calendar position of a canonical month
// name. Unknown names sort after all canonical months, so malformed chapters
// are kept but pushed to the end rather than dropped.
func MonthOrder(month string) int {
	if i, ok := monthIndex[month]; ok {
		return i
	}
	return len(CanonicalMonths)
}

// IsCanonicalMonth reports whether month is one of the twelve chapter keys.
func IsCanonicalMonth(month string) bool {
	_, ok := monthIndex[month]
	return ok
}
