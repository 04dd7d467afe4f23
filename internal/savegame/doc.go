// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package savegame defines the save-game document model and the pure codecs
// that translate between the two historical on-disk encodings:
//
//   - the flat encoding: one SaveGame document wrapped in a slot envelope,
//     used by legacy backups and by the remote narrative service;
//   - the normalized encoding: five row collections (game info, weekly
//     records, daily entries, monthly chapters, prologue) tied together by a
//     slot identifier.
//
// Both codecs are pure functions over in-memory values. They know nothing
// about storage engines, which keeps them unit-testable without a backend and
// lets the store and the import path share one decomposition/reconstruction
// implementation.
package savegame
