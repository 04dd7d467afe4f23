// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/grimoire-interactive/daybook/internal/logging"
)

// EngineBadger is the Name of the BadgerDB document engine.
const EngineBadger = "badger"

// badgerEngine stores each record as one Badger key. It is the primary
// engine: richer and faster than the SQLite fallback, but it requires an
// exclusive directory lock.
type badgerEngine struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadger opens (or creates) a Badger database rooted at dir. A directory
// held by another process surfaces as ErrBlocked so the adapter can retry
// before falling back.
func OpenBadger(dir string) (Engine, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompactL0OnClose(true)

	db, err := badger.Open(opts)
	if err != nil {
		if isBadgerLockError(err) {
			return nil, fmt.Errorf("%w: %v", ErrBlocked, err)
		}
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}

	return &badgerEngine{db: db, log: logging.WithComponent("engine")}, nil
}

func (e *badgerEngine) Name() string { return EngineBadger }

func (e *badgerEngine) Put(ctx context.Context, key string, value []byte) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return classifyBadgerWriteError(err)
	}
	return nil
}

func (e *badgerEngine) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (e *badgerEngine) Delete(ctx context.Context, key string) error {
	return e.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (e *badgerEngine) List(ctx context.Context, prefix string) ([]Entry, error) {
	var entries []Entry
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", item.Key(), err)
			}
			entries = append(entries, Entry{Key: string(item.Key()), Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (e *badgerEngine) Apply(ctx context.Context, ops []Op) error {
	err := e.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			switch op.Type {
			case OpPut:
				if err := txn.Set([]byte(op.Key), op.Value); err != nil {
					return err
				}
			case OpDelete:
				if err := txn.Delete([]byte(op.Key)); err != nil {
					return err
				}
			case OpDeletePrefix:
				if err := deletePrefixInTxn(txn, op.Key); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown op type %d", op.Type)
			}
		}
		return nil
	})
	if err != nil {
		return classifyBadgerWriteError(err)
	}
	return nil
}

// deletePrefixInTxn collects matching keys first: Badger iterators must not
// observe writes made by the same loop.
func deletePrefixInTxn(txn *badger.Txn, prefix string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false

	var keys [][]byte
	it := txn.NewIterator(opts)
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func (e *badgerEngine) Close() error {
	return e.db.Close()
}

// Maintain runs Badger's value-log garbage collection on a ticker until the
// context is cancelled. badger.ErrNoRewrite just means there was nothing to
// reclaim this round.
func (e *badgerEngine) Maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := e.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				e.log.Warn().Err(err).Msg("badger value log gc failed")
			}
		}
	}
}

func classifyBadgerWriteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrTxnTooBig) || errors.Is(err, syscall.ENOSPC) ||
		strings.Contains(err.Error(), "no space left on device") {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func isBadgerLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Cannot acquire directory lock") ||
		strings.Contains(msg, "resource temporarily unavailable")
}
