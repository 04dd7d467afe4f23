// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package engine

import (
	"context"
	"time"

	"github.com/grimoire-interactive/daybook/internal/metrics"
)

// instrumentedEngine wraps a backend and records one metric sample per
// operation. Maintain is forwarded by the type assertion in the
// maintenance service, so it is implemented here as well.
type instrumentedEngine struct {
	inner Engine
}

// Instrument decorates eng with per-operation counters and latency
// histograms under its Name() label.
func Instrument(eng Engine) Engine {
	return &instrumentedEngine{inner: eng}
}

func (e *instrumentedEngine) Name() string { return e.inner.Name() }

func (e *instrumentedEngine) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := e.inner.Put(ctx, key, value)
	metrics.RecordStorageOp(e.inner.Name(), "put", time.Since(start), err)
	return err
}

func (e *instrumentedEngine) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := e.inner.Get(ctx, key)
	metrics.RecordStorageOp(e.inner.Name(), "get", time.Since(start), err)
	return data, err
}

func (e *instrumentedEngine) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := e.inner.Delete(ctx, key)
	metrics.RecordStorageOp(e.inner.Name(), "delete", time.Since(start), err)
	return err
}

func (e *instrumentedEngine) List(ctx context.Context, prefix string) ([]Entry, error) {
	start := time.Now()
	entries, err := e.inner.List(ctx, prefix)
	metrics.RecordStorageOp(e.inner.Name(), "list", time.Since(start), err)
	return entries, err
}

func (e *instrumentedEngine) Apply(ctx context.Context, ops []Op) error {
	start := time.Now()
	err := e.inner.Apply(ctx, ops)
	metrics.RecordStorageOp(e.inner.Name(), "batch", time.Since(start), err)
	return err
}

func (e *instrumentedEngine) Close() error { return e.inner.Close() }

// Maintain forwards to the backend's maintenance loop when it has one and
// otherwise blocks until shutdown, keeping the contract that Maintain runs
// for the lifetime of ctx.
func (e *instrumentedEngine) Maintain(ctx context.Context, interval time.Duration) {
	if m, ok := e.inner.(interface {
		Maintain(ctx context.Context, interval time.Duration)
	}); ok {
		m.Maintain(ctx, interval)
		return
	}
	<-ctx.Done()
}
