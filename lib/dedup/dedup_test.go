// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"os"
	"testing"
)

func TestMarkAndSeen(t *testing.T) {
	journal, err := Open(t.TempDir(), 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	key := Key{MessageID: "msg-1", AttachmentID: "att-1"}
	if journal.Seen(key) {
		t.Error("fresh key reported as seen")
	}
	if !journal.Mark(key) {
		t.Error("first Mark should return true")
	}
	if journal.Mark(key) {
		t.Error("redelivered Mark should return false")
	}
	if !journal.Seen(key) {
		t.Error("marked key not seen")
	}

	// Same message, different attachment is a distinct event.
	if !journal.Mark(Key{MessageID: "msg-1", AttachmentID: "att-2"}) {
		t.Error("distinct attachment should not be deduplicated")
	}
}

func TestJournalSurvivesReload(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir, 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	key := Key{MessageID: "msg-1"}
	first.Mark(key)

	second, err := Open(dir, 0, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !second.Seen(key) {
		t.Error("journal entry lost across reload")
	}
	if second.Mark(key) {
		t.Error("redelivery after restart should be a no-op")
	}
}

func TestFlushIsAtomic(t *testing.T) {
	dir := t.TempDir()
	journal, err := Open(dir, 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	journal.Mark(Key{MessageID: "msg-1"})
	journal.Mark(Key{MessageID: "msg-2"})

	// The flush goes through the temp-file+rename path: after every
	// Mark the directory holds exactly the journal file, and it parses.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != journalFile {
		t.Fatalf("journal dir holds %v, want only %s", entries, journalFile)
	}

	if _, err := Open(dir, 0, nil); err != nil {
		t.Errorf("reopen after flush: %v", err)
	}
}

func TestEvictionOldestFirst(t *testing.T) {
	journal, err := Open(t.TempDir(), 2, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	journal.Mark(Key{MessageID: "msg-1"})
	journal.Mark(Key{MessageID: "msg-2"})
	journal.Mark(Key{MessageID: "msg-3"})

	if journal.Len() != 2 {
		t.Errorf("Len = %d, want 2", journal.Len())
	}
	if journal.Seen(Key{MessageID: "msg-1"}) {
		t.Error("oldest entry should have been evicted")
	}
	if !journal.Seen(Key{MessageID: "msg-3"}) {
		t.Error("newest entry missing")
	}
}

func TestPurge(t *testing.T) {
	dir := t.TempDir()
	journal, err := Open(dir, 0, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	journal.Mark(Key{MessageID: "msg-1"})

	if err := journal.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if journal.Len() != 0 {
		t.Errorf("Len = %d after purge, want 0", journal.Len())
	}

	reloaded, err := Open(dir, 0, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reloaded.Seen(Key{MessageID: "msg-1"}) {
		t.Error("purged entry survived on disk")
	}
}
