// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package services

import (
	"context"
	"time"

	"github.com/grimoire-interactive/daybook/internal/engine"
)

// maintainer is implemented by engines with a periodic maintenance
// loop (the badger engine's value-log GC).
type maintainer interface {
	Maintain(ctx context.Context, interval time.Duration)
}

// EngineMaintenanceService runs an engine's maintenance loop under
// supervision. Engines without one (sqlite) make this a no-op that
// sleeps until shutdown.
type EngineMaintenanceService struct {
	eng      engine.Engine
	interval time.Duration
}

// NewEngineMaintenanceService creates the maintenance service wrapper.
func NewEngineMaintenanceService(eng engine.Engine, interval time.Duration) *EngineMaintenanceService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &EngineMaintenanceService{eng: eng, interval: interval}
}

// Serve implements suture.Service.
func (s *EngineMaintenanceService) Serve(ctx context.Context) error {
	if m, ok := s.eng.(maintainer); ok {
		m.Maintain(ctx, s.interval)
		return ctx.Err()
	}
	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *EngineMaintenanceService) String() string {
	return "engine-maintenance"
}
