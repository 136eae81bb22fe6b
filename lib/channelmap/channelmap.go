// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package channelmap maintains the strictly 1:1 binding between a
// normalized phone and its ticket channel. Rebinding either side is
// last-write-wins: the evicted pairings are unbound first so the map
// stays bijective at every instant. The map is persisted as a flat
// JSON object and flushed synchronously on every mutation.
package channelmap

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/relaydesk/relaydesk/lib/storage"
)

// mapFile is the persisted phone → channel map.
const mapFile = "channel_map.json"

// Map is the bidirectional phone ↔ channel binding for one instance.
// Safe for concurrent use.
type Map struct {
	path   string
	logger *slog.Logger

	mu        sync.Mutex
	byPhone   map[string]string
	byChannel map[string]string
}

// Open loads (or initializes) the channel map rooted at dir.
func Open(dir string, logger *slog.Logger) (*Map, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Map{
		path:      filepath.Join(dir, mapFile),
		logger:    logger,
		byPhone:   map[string]string{},
		byChannel: map[string]string{},
	}
	if err := storage.LoadJSON(m.path, &m.byPhone); err != nil {
		return nil, fmt.Errorf("channelmap: loading %s: %w", m.path, err)
	}
	for phoneKey, channelID := range m.byPhone {
		m.byChannel[channelID] = phoneKey
	}
	return m, nil
}

// Bind associates phoneKey with channelID. If either side was bound
// elsewhere, the stale pairings are dropped first (last-write-wins,
// a documented policy rather than conflict detection).
func (m *Map) Bind(phoneKey, channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if previous, ok := m.byPhone[phoneKey]; ok {
		delete(m.byChannel, previous)
	}
	if previous, ok := m.byChannel[channelID]; ok {
		delete(m.byPhone, previous)
	}

	m.byPhone[phoneKey] = channelID
	m.byChannel[channelID] = phoneKey
	m.flushLocked()
}

// Unbind removes the binding for phoneKey, if any.
func (m *Map) Unbind(phoneKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	channelID, ok := m.byPhone[phoneKey]
	if !ok {
		return
	}
	delete(m.byPhone, phoneKey)
	delete(m.byChannel, channelID)
	m.flushLocked()
}

// UnbindByChannel removes the binding for channelID, if any.
func (m *Map) UnbindByChannel(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	phoneKey, ok := m.byChannel[channelID]
	if !ok {
		return
	}
	delete(m.byChannel, channelID)
	delete(m.byPhone, phoneKey)
	m.flushLocked()
}

// Channel returns the channel bound to phoneKey.
func (m *Map) Channel(phoneKey string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channelID, ok := m.byPhone[phoneKey]
	return channelID, ok
}

// Phone returns the phone bound to channelID.
func (m *Map) Phone(channelID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phoneKey, ok := m.byChannel[channelID]
	return phoneKey, ok
}

// Channels returns a snapshot of every bound channel ID.
func (m *Map) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	channels := make([]string, 0, len(m.byChannel))
	for channelID := range m.byChannel {
		channels = append(channels, channelID)
	}
	return channels
}

// Len returns the number of active bindings.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byPhone)
}

// Purge drops every binding from memory and disk.
func (m *Map) Purge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPhone = map[string]string{}
	m.byChannel = map[string]string{}
	if err := storage.SaveJSON(m.path, m.byPhone); err != nil {
		return fmt.Errorf("channelmap: purging %s: %w", m.path, err)
	}
	return nil
}

// flushLocked persists the phone → channel side (the channel side is
// derived at load). Called with m.mu held.
func (m *Map) flushLocked() {
	if err := storage.SaveJSON(m.path, m.byPhone); err != nil {
		m.logger.Error("channel map flush failed", "path", m.path, "error", err)
	}
}
