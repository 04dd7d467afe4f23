// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimoire-interactive/daybook/internal/engine"
)

func TestMaintenanceServiceStopsOnCancel(t *testing.T) {
	eng, err := engine.OpenSQLite(filepath.Join(t.TempDir(), "daybook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	svc := NewEngineMaintenanceService(eng, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestMaintenanceServiceRunsBadgerGC(t *testing.T) {
	eng, err := engine.OpenBadger(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	svc := NewEngineMaintenanceService(eng, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = svc.Serve(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMaintenanceServiceString(t *testing.T) {
	svc := NewEngineMaintenanceService(nil, 0)
	assert.Equal(t, "engine-maintenance", svc.String())
}
