// Daybook - Save-Game Persistence for 365 Adventure: Cthulhu
// Copyright 2026 Grimoire Interactive
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/grimoire-interactive/daybook

// Package remote talks to the game's server-side save API. All calls run
// through a circuit breaker: the server being down must never translate into
// local save failures, so callers treat every error here as advisory.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/grimoire-interactive/daybook/internal/logging"
	"github.com/grimoire-interactive/daybook/internal/metrics"
	"github.com/grimoire-interactive/daybook/internal/savegame"
)

const breakerName = "save-api"

// maxResponseBytes caps response reads; save documents are small and the
// encounter table is bounded.
const maxResponseBytes = 16 << 20

// Client is the HTTP client for the save API.
type Client struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     zerolog.Logger
}

// apiEnvelope is the server's uniform response shape.
type apiEnvelope struct {
	Success  bool            `json:"success"`
	Detail   string          `json:"detail,omitempty"`
	GameData json.RawMessage `json:"game_data,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// savePayload is the upload body for POST /api/game/save-slot.
type savePayload struct {
	SlotID   string             `json:"slot_id"`
	GameData *savegame.SaveGame `json:"game_data"`
}

// NewClient builds a save-API client for baseURL. The circuit opens after a
// 60% failure rate over at least 6 calls and probes again after 30 seconds;
// save traffic is sparse, so the thresholds are lower than a busy API would
// use.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	log := logging.WithComponent("remote")

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		// A 404 is an answer (no remote copy yet), not a server failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotFound)
		},
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 6 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			log.Info().Str("from", fromStr).Str("to", toStr).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		cb:      cb,
		log:     log,
	}
}

// UploadSlot pushes one slot's document to the server.
func (c *Client) UploadSlot(ctx context.Context, slotID string, doc *savegame.SaveGame) error {
	start := time.Now()
	err := c.uploadSlot(ctx, slotID, doc)
	metrics.RecordRemoteSync("upload", time.Since(start), err)
	return err
}

func (c *Client) uploadSlot(ctx context.Context, slotID string, doc *savegame.SaveGame) error {
	body, err := json.Marshal(savePayload{SlotID: slotID, GameData: doc})
	if err != nil {
		return fmt.Errorf("encode save payload: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/api/game/save-slot", body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode save response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("server rejected save: %s", env.Detail)
	}
	return nil
}

// DownloadSlot fetches one slot's document from the server. A slot the
// server has never seen returns (nil, nil).
func (c *Client) DownloadSlot(ctx context.Context, slotID string) (*savegame.SaveGame, error) {
	start := time.Now()
	doc, err := c.downloadSlot(ctx, slotID)
	metrics.RecordRemoteSync("download", time.Since(start), err)
	return doc, err
}

func (c *Client) downloadSlot(ctx context.Context, slotID string) (*savegame.SaveGame, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/game/load-slot/"+slotID, nil)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode load response: %w", err)
	}
	if !env.Success || len(env.GameData) == 0 {
		return nil, fmt.Errorf("server returned no game data: %s", env.Detail)
	}

	var doc savegame.SaveGame
	if err := json.Unmarshal(env.GameData, &doc); err != nil {
		return nil, fmt.Errorf("decode game data: %w", err)
	}
	return &doc, nil
}

// EncounterData fetches the reference encounter table.
func (c *Client) EncounterData(ctx context.Context) (json.RawMessage, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/game/encounter-data", nil)
	if err != nil {
		return nil, err
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode encounter response: %w", err)
	}
	if !env.Success || len(env.Data) == 0 {
		return nil, fmt.Errorf("server returned no encounter data: %s", env.Detail)
	}
	return env.Data, nil
}

// errNotFound distinguishes a 404 inside do; it never escapes the package.
var errNotFound = errors.New("remote: not found")

// do issues one request through the circuit breaker and returns the response
// body. HTTP 404 maps to errNotFound and does not count as a breaker failure.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	return c.cb.Execute(func() ([]byte, error) {
		var reader io.Reader = http.NoBody
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, errNotFound
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}
		return data, nil
	})
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
