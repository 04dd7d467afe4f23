// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package slots

import (
	"context"
	"fmt"
	"time"

	"github.com/grimoire-interactive/daybook/internal/savegame"
)

// Sync directions accepted by SyncWithServer.
const (
	SyncUpload   = "upload"
	SyncDownload = "download"
	SyncBoth     = "both"
)

// remoteTimeout bounds the detached upload an autosave spawns.
const remoteTimeout = 30 * time.Second

// AutoSave persists the document locally and then pushes it to the server in
// the background. The local write is the save; a remote failure is logged
// and never surfaces, so play continues offline.
//
// An empty slotID means no slot has been chosen yet: AutoSave creates one,
// makes it active, and returns its id.
func (m *Manager) AutoSave(ctx context.Context, slotID string, doc *savegame.SaveGame) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("slots: autosave needs a document")
	}

	if slotID == "" {
		meta, err := m.Create(ctx, doc)
		if err != nil {
			return "", err
		}
		slotID = meta.SlotID
		if err := m.SetActiveSlot(ctx, slotID); err != nil {
			return "", err
		}
	} else if err := m.Save(ctx, slotID, doc); err != nil {
		return "", err
	}

	if m.remote != nil {
		// Detached from the request context on purpose: the caller is done
		// once the local write lands.
		go func() {
			uploadCtx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
			defer cancel()
			if err := m.remote.UploadSlot(uploadCtx, slotID, doc); err != nil {
				m.log.Warn().Err(err).Str("slot", slotID).Msg("background upload failed")
			}
		}()
	}

	return slotID, nil
}

// SyncWithServer reconciles one slot with the remote copy. Upload pushes the
// local document; download pulls the server's copy (if any) and saves it
// locally; both does upload then download. A slot with no local data skips
// the upload leg. Callers on the autosave path ignore the returned error.
func (m *Manager) SyncWithServer(ctx context.Context, slotID, direction string) error {
	switch direction {
	case SyncUpload, SyncDownload, SyncBoth:
	default:
		return fmt.Errorf("slots: unknown sync direction %q", direction)
	}
	if m.remote == nil {
		return nil
	}

	if direction == SyncUpload || direction == SyncBoth {
		doc, err := m.Load(ctx, slotID)
		if err != nil {
			return err
		}
		if doc != nil {
			if err := m.remote.UploadSlot(ctx, slotID, doc); err != nil {
				return fmt.Errorf("upload slot %s: %w", slotID, err)
			}
		}
	}

	if direction == SyncDownload || direction == SyncBoth {
		doc, err := m.remote.DownloadSlot(ctx, slotID)
		if err != nil {
			return fmt.Errorf("download slot %s: %w", slotID, err)
		}
		if doc != nil {
			if err := m.Save(ctx, slotID, doc); err != nil {
				return err
			}
		}
	}

	return nil
}
