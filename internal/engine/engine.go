// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package engine abstracts the local persistence backend behind a flat
// key/value contract. Two implementations exist: a BadgerDB document engine
// and a SQLite key/value table used as the fallback when Badger cannot be
// opened. Callers never choose an engine directly; Open probes in ranked
// order and remembers the outcome so later runs stay on the same backend.
package engine

import (
	"context"
	"errors"
)

// Sentinel errors shared by all engine implementations. Callers match with
// errors.Is; the wrapped cause carries the backend detail.
var (
	// ErrNotFound is returned by Get when the key has no value. Absence is
	// a normal outcome for most callers.
	ErrNotFound = errors.New("engine: key not found")

	// ErrQuotaExceeded marks a write rejected because the backing store is
	// out of space. It is distinguished so the caller can surface an
	// actionable message instead of a generic failure.
	ErrQuotaExceeded = errors.New("engine: storage quota exceeded")

	// ErrUnavailable is returned by Open when no engine could be started.
	ErrUnavailable = errors.New("engine: no storage engine available")

	// ErrBlocked marks an engine that exists but is held by another
	// process. Open retries this case before falling back.
	ErrBlocked = errors.New("engine: storage engine blocked by another process")
)

// OpType discriminates the operations in an atomic batch.
type OpType int

const (
	OpPut OpType = iota
	OpDelete
	// OpDeletePrefix removes every key under a prefix. It lets a batch
	// express replace-collection semantics without a pre-read.
	OpDeletePrefix
)

// Op is one mutation inside an atomic batch.
type Op struct {
	Type  OpType
	Key   string
	Value []byte
}

// Put builds a put operation.
func Put(key string, value []byte) Op {
	return Op{Type: OpPut, Key: key, Value: value}
}

// Delete builds a delete operation.
func Delete(key string) Op {
	return Op{Type: OpDelete, Key: key}
}

// DeletePrefix builds a prefix-delete operation.
func DeletePrefix(prefix string) Op {
	return Op{Type: OpDeletePrefix, Key: prefix}
}

// Entry is one key/value pair returned by List.
type Entry struct {
	Key   string
	Value []byte
}

// Engine is the flat key/value contract both backends satisfy. Keys are
// opaque strings; values are opaque bytes (in practice, JSON documents).
// All methods are safe for concurrent use.
type Engine interface {
	// Name identifies the backend ("badger" or "sqlite"). The adapter
	// persists it so subsequent runs reopen the same engine.
	Name() string

	// Put stores value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns every entry whose key starts with prefix, in ascending
	// key order.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Apply executes the batch atomically: either every operation takes
	// effect or none does.
	Apply(ctx context.Context, ops []Op) error

	// Close releases the backend. The engine is unusable afterwards.
	Close() error
}
