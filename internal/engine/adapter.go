// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/grimoire-interactive/daybook/internal/logging"
	"github.com/grimoire-interactive/daybook/internal/metrics"
)

// Engine selection modes. Auto probes in ranked order; the explicit modes
// pin one backend and fail hard when it cannot start.
const (
	ModeAuto = "auto"
)

// markerFile records which engine owns the data directory. It is consulted
// before probing so an installation never silently flips backends, and it is
// what makes cross-engine migration detectable.
const markerFile = "ENGINE"

const (
	badgerSubdir = "badger"
	sqliteFile   = "daybook.db"
)

// blockedRetries bounds the lock-contention retry loop. A Badger directory
// held by a crashed process frees quickly; one held by a live process never
// does, so there is no point waiting long.
const blockedRetries = 4

// Open selects, opens, and returns a storage engine rooted at dir.
//
// mode pins the backend ("badger", "sqlite") or lets Open probe in ranked
// order ("auto" or empty): Badger first, SQLite second. A Badger directory
// locked by another process is retried with exponential backoff before the
// probe falls through. When every candidate fails, the returned error wraps
// ErrUnavailable.
//
// When the directory's marker records a different engine than the one
// selected, Open copies all keys from the old engine into the new one
// before returning. Migration is best-effort: a partial copy logs and
// keeps the new engine, matching the priority of availability over
// completeness for a local save cache that can re-sync from the server.
func Open(ctx context.Context, dir, mode string) (Engine, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if mode == "" {
		mode = ModeAuto
	}

	log := logging.WithComponent("engine")
	previous := readMarker(dir)

	eng, err := openRanked(ctx, dir, mode)
	if err != nil {
		return nil, err
	}

	metrics.StorageEngineSelected.WithLabelValues(eng.Name()).Set(1)
	log.Info().Str("engine", eng.Name()).Str("dir", dir).Msg("storage engine opened")

	if previous != "" && previous != eng.Name() {
		log.Info().Str("from", previous).Str("to", eng.Name()).Msg("engine changed, migrating data")
		if err := migrate(ctx, dir, previous, eng); err != nil {
			log.Warn().Err(err).Msg("engine migration incomplete")
		}
	}

	if err := writeMarker(dir, eng.Name()); err != nil {
		eng.Close()
		return nil, err
	}
	return Instrument(eng), nil
}

func openRanked(ctx context.Context, dir, mode string) (Engine, error) {
	var candidates []string
	switch mode {
	case ModeAuto:
		candidates = []string{EngineBadger, EngineSQLite}
	case EngineBadger, EngineSQLite:
		candidates = []string{mode}
	default:
		return nil, fmt.Errorf("unknown engine mode %q", mode)
	}

	log := logging.WithComponent("engine")
	var errs []error
	for _, name := range candidates {
		eng, err := openOne(ctx, dir, name)
		if err == nil {
			return eng, nil
		}
		log.Warn().Err(err).Str("engine", name).Msg("engine probe failed")
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, errors.Join(errs...))
}

// openOne opens a single named engine, retrying ErrBlocked with backoff.
func openOne(ctx context.Context, dir, name string) (Engine, error) {
	open := func() (Engine, error) {
		switch name {
		case EngineBadger:
			return OpenBadger(filepath.Join(dir, badgerSubdir))
		case EngineSQLite:
			return OpenSQLite(filepath.Join(dir, sqliteFile))
		default:
			return nil, fmt.Errorf("unknown engine %q", name)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(200*time.Millisecond),
			backoff.WithMaxInterval(2*time.Second),
		), blockedRetries), ctx)

	return backoff.RetryWithData(func() (Engine, error) {
		eng, err := open()
		if err != nil && !errors.Is(err, ErrBlocked) {
			return nil, backoff.Permanent(err)
		}
		return eng, err
	}, policy)
}

// migrate copies every key from the previously recorded engine into dst.
// The source data is left in place; a later manual cleanup can reclaim it.
func migrate(ctx context.Context, dir, from string, dst Engine) error {
	src, err := openOne(ctx, dir, from)
	if err != nil {
		return fmt.Errorf("open previous engine %s: %w", from, err)
	}
	defer src.Close()

	entries, err := src.List(ctx, "")
	if err != nil {
		return fmt.Errorf("read previous engine: %w", err)
	}

	ops := make([]Op, 0, len(entries))
	for _, e := range entries {
		ops = append(ops, Put(e.Key, e.Value))
	}
	if len(ops) == 0 {
		return nil
	}
	if err := dst.Apply(ctx, ops); err != nil {
		return fmt.Errorf("copy %d keys to %s: %w", len(ops), dst.Name(), err)
	}

	log := logging.WithComponent("engine")
	log.Info().
		Int("keys", len(ops)).Str("from", from).Str("to", dst.Name()).
		Msg("engine migration complete")
	return nil
}

func readMarker(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func writeMarker(dir, name string) error {
	path := filepath.Join(dir, markerFile)
	if err := os.WriteFile(path, []byte(name+"\n"), 0o640); err != nil {
		return fmt.Errorf("write engine marker: %w", err)
	}
	return nil
}
