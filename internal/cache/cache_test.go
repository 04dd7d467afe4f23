// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	c := New("test", time.Minute)
	defer c.Stop()

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("key", "value")
	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "value", got)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Keys)
}

func TestExpiry(t *testing.T) {
	c := New("test", time.Minute)
	defer c.Stop()

	c.SetWithTTL("fleeting", 42, 10*time.Millisecond)
	got, ok := c.Get("fleeting")
	require.True(t, ok)
	assert.Equal(t, 42, got)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get("fleeting")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestDeleteAndClear(t *testing.T) {
	c := New("test", time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().Keys)
}

func TestOverwrite(t *testing.T) {
	c := New("test", time.Minute)
	defer c.Stop()

	c.Set("key", "old")
	c.Set("key", "new")
	got, ok := c.Get("key")
	require.True(t, ok)
	assert.Equal(t, "new", got)
	assert.Equal(t, int64(1), c.Stats().Keys)
}

func TestConcurrentAccess(t *testing.T) {
	c := New("test", time.Minute)
	defer c.Stop()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				c.Set("shared", j)
				c.Get("shared")
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	_, ok := c.Get("shared")
	assert.True(t, ok)
}
