// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package encounters caches the game's encounter reference table. The table
// changes only when the game data ships a new version, so it is cached at
// two levels: an in-memory TTL cache for the running session and a versioned
// entry in the storage engine that survives restarts. Version mismatches
// invalidate the persistent copy and force a refetch.
package encounters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/grimoire-interactive/daybook/internal/cache"
	"github.com/grimoire-interactive/daybook/internal/engine"
	"github.com/grimoire-interactive/daybook/internal/logging"
)

const (
	encounterCacheKey = "cache/encounters"
	memCacheKey       = "encounters"
)

// ErrUnavailable means the table is in neither cache and the server could
// not supply it.
var ErrUnavailable = errors.New("encounters: no cached data and server unreachable")

// Fetcher supplies the encounter table from the server.
type Fetcher interface {
	EncounterData(ctx context.Context) (json.RawMessage, error)
}

// entry is the persisted cache record.
type entry struct {
	Version  int             `json:"version"`
	Content  json.RawMessage `json:"content"`
	CachedAt time.Time       `json:"cachedAt"`
}

// Service loads and caches encounter data.
type Service struct {
	eng     engine.Engine
	mem     cache.Cacher
	fetcher Fetcher
	version int
	log     zerolog.Logger
}

// NewService wires the encounter cache. version is the table version the
// running build expects; a persisted entry with any other version is stale.
// fetcher may be nil when the server sync is disabled, in which case only
// cached data is served.
func NewService(eng engine.Engine, mem cache.Cacher, fetcher Fetcher, version int) *Service {
	return &Service{
		eng:     eng,
		mem:     mem,
		fetcher: fetcher,
		version: version,
		log:     logging.WithComponent("encounters"),
	}
}

// Load returns the encounter table, consulting the memory cache, then the
// persistent cache, then the server. A fresh server copy is written through
// both cache levels.
func (s *Service) Load(ctx context.Context) (json.RawMessage, error) {
	if cached, ok := s.mem.Get(memCacheKey); ok {
		if data, ok := cached.(json.RawMessage); ok {
			return data, nil
		}
	}

	if data := s.loadPersistent(ctx); data != nil {
		s.mem.Set(memCacheKey, data)
		return data, nil
	}

	if s.fetcher == nil {
		return nil, ErrUnavailable
	}
	data, err := s.fetcher.EncounterData(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := s.storePersistent(ctx, data); err != nil {
		// Serving the data matters more than caching it.
		s.log.Warn().Err(err).Msg("could not persist encounter data")
	}
	s.mem.Set(memCacheKey, data)
	s.log.Info().Int("version", s.version).Msg("encounter data fetched from server")
	return data, nil
}

// ClearCache drops both cache levels. The next Load refetches.
func (s *Service) ClearCache(ctx context.Context) error {
	s.mem.Delete(memCacheKey)
	if err := s.eng.Delete(ctx, encounterCacheKey); err != nil {
		return fmt.Errorf("clear encounter cache: %w", err)
	}
	return nil
}

// loadPersistent returns the stored table when present and version-current,
// nil otherwise. Corrupt or stale entries are treated as absent.
func (s *Service) loadPersistent(ctx context.Context) json.RawMessage {
	raw, err := s.eng.Get(ctx, encounterCacheKey)
	if err != nil {
		if !errors.Is(err, engine.ErrNotFound) {
			s.log.Warn().Err(err).Msg("encounter cache read failed")
		}
		return nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.log.Warn().Err(err).Msg("encounter cache entry corrupt, discarding")
		return nil
	}
	if e.Version != s.version {
		s.log.Info().Int("cached", e.Version).Int("want", s.version).
			Msg("encounter cache version stale, discarding")
		return nil
	}
	return e.Content
}

func (s *Service) storePersistent(ctx context.Context, data json.RawMessage) error {
	raw, err := json.Marshal(entry{
		Version:  s.version,
		Content:  data,
		CachedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.eng.Put(ctx, encounterCacheKey, raw)
}
