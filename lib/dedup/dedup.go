// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package dedup remembers which inbound platform events have already
// been processed so a redelivery is a no-op. The key is the pair
// (source message ID, attachment ID) — a text message uses an empty
// attachment ID. The journal is persisted as deterministic CBOR and
// reloaded at instance init, so dedup survives restarts; it is
// bounded, evicting oldest entries first.
package dedup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/relaydesk/relaydesk/lib/storage"
)

// journalFile is the persisted seen-event journal.
const journalFile = "seen.cbor"

// DefaultLimit bounds the journal when the caller passes 0.
const DefaultLimit = 8192

// Key identifies one processed inbound event.
type Key struct {
	MessageID    string `cbor:"1,keyasint"`
	AttachmentID string `cbor:"2,keyasint"`
}

// encMode encodes with Core Deterministic Encoding (RFC 8949 §4.2):
// the same journal state always produces identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("dedup: CBOR encoder initialization failed: " + err.Error())
	}
}

// Journal is the per-instance seen-event set. Safe for concurrent use.
type Journal struct {
	path   string
	limit  int
	logger *slog.Logger

	mu    sync.Mutex
	order []Key
	seen  map[Key]struct{}
}

// Open loads (or initializes) the journal rooted at dir. limit bounds
// the number of remembered events; 0 means DefaultLimit.
func Open(dir string, limit int, logger *slog.Logger) (*Journal, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	journal := &Journal{
		path:   filepath.Join(dir, journalFile),
		limit:  limit,
		logger: logger,
		seen:   map[Key]struct{}{},
	}

	data, err := os.ReadFile(journal.path)
	if err != nil {
		if os.IsNotExist(err) {
			return journal, nil
		}
		return nil, fmt.Errorf("dedup: reading %s: %w", journal.path, err)
	}
	if err := cbor.Unmarshal(data, &journal.order); err != nil {
		return nil, fmt.Errorf("dedup: decoding %s: %w", journal.path, err)
	}
	for _, key := range journal.order {
		journal.seen[key] = struct{}{}
	}
	return journal, nil
}

// Seen reports whether the key has already been processed.
func (j *Journal) Seen(key Key) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.seen[key]
	return ok
}

// Mark records the key as processed. Returns false if it was already
// recorded (the redelivery case). The journal is flushed synchronously.
func (j *Journal) Mark(key Key) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.seen[key]; ok {
		return false
	}
	j.seen[key] = struct{}{}
	j.order = append(j.order, key)

	for len(j.order) > j.limit {
		oldest := j.order[0]
		j.order = j.order[1:]
		delete(j.seen, oldest)
	}

	j.flushLocked()
	return true
}

// Len returns the number of remembered events.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.order)
}

// Purge drops the journal from memory and disk.
func (j *Journal) Purge() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.order = nil
	j.seen = map[Key]struct{}{}
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("dedup: purging %s: %w", j.path, err)
	}
	return nil
}

// flushLocked persists the journal. Called with j.mu held. A failed
// flush is logged; the in-memory set stays authoritative. The write
// goes through the atomic temp-file+rename path so a crash mid-flush
// can never leave a torn journal behind.
func (j *Journal) flushLocked() {
	data, err := encMode.Marshal(j.order)
	if err != nil {
		j.logger.Error("dedup journal encode failed", "path", j.path, "error", err)
		return
	}
	if err := storage.SaveBytes(j.path, data); err != nil {
		j.logger.Error("dedup journal flush failed", "path", j.path, "error", err)
	}
}
