// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relaydesk/relaydesk/lib/clock"
)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return Open(t.TempDir(), "instance-1", fake, nil), fake
}

func TestAppendCreatesTaggedMaster(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Append("+15551234567", "John", "John: hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append("+15551234567", "John", "Support: hi there"); err != nil {
		t.Fatalf("second Append: %v", err)
	}

	data, err := os.ReadFile(store.MasterPath("+15551234567", "John"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "<!-- relaydesk-instance: instance-1 -->") {
		t.Errorf("master missing instance tag:\n%s", content)
	}
	if !strings.Contains(content, "John: hello") || !strings.Contains(content, "Support: hi there") {
		t.Errorf("master missing appended entries:\n%s", content)
	}
	if strings.Count(content, "relaydesk-instance") != 1 {
		t.Error("instance tag written more than once")
	}
}

func TestSnapshotIsImmutableCopy(t *testing.T) {
	store, fake := newTestStore(t)
	if err := store.Append("+15551234567", "John", "John: hello"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	snapshot, err := store.Snapshot("+15551234567", "John", "ticket-42")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !strings.Contains(filepath.Base(snapshot), "ticket-42") {
		t.Errorf("snapshot name %q missing ticket id", snapshot)
	}

	// Later appends must not change the snapshot.
	fake.Advance(time.Minute)
	if err := store.Append("+15551234567", "John", "John: anything else?"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	data, err := os.ReadFile(snapshot)
	if err != nil {
		t.Fatalf("ReadFile snapshot: %v", err)
	}
	if strings.Contains(string(data), "anything else?") {
		t.Error("snapshot changed after close")
	}
}

func TestSnapshotWithoutTrafficIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	snapshot, err := store.Snapshot("+15551234567", "John", "ticket-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snapshot != "" {
		t.Errorf("snapshot of empty ticket = %q, want empty", snapshot)
	}
}

func TestFindLatestPrefersMaster(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Append("+15551234567", "John", "entry"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := store.Snapshot("+15551234567", "John", "ticket-1"); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	found, err := store.FindLatest("+15551234567", "John")
	if err != nil {
		t.Fatalf("FindLatest: %v", err)
	}
	if found != store.MasterPath("+15551234567", "John") {
		t.Errorf("FindLatest = %q, want the master path", found)
	}
}

func TestFindLatestFallsBackToNewestSnapshot(t *testing.T) {
	store, fake := newTestStore(t)
	if err := store.Append("+15551234567", "John", "entry"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	older, err := store.Snapshot("+15551234567", "John", "ticket-1")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	fake.Advance(time.Hour)
	newer, err := store.Snapshot("+15551234567", "John", "ticket-2")
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}

	if err := os.Remove(store.MasterPath("+15551234567", "John")); err != nil {
		t.Fatalf("Remove master: %v", err)
	}

	found, err := store.FindLatest("+15551234567", "John")
	if err != nil {
		t.Fatalf("FindLatest: %v", err)
	}
	if found != newer {
		t.Errorf("FindLatest = %q, want newest snapshot %q (older was %q)", found, newer, older)
	}
}

func TestFindLatestScanAfterPartialRename(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Append("+15551234567", "John", "entry"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// The lookup uses the new name but the directory still carries the
	// old one — only the phone segment still matches.
	found, err := store.FindLatest("+15551234567", "Jonathan Q. Public")
	if err != nil {
		t.Fatalf("FindLatest after partial rename: %v", err)
	}
	if !strings.Contains(found, "+15551234567") {
		t.Errorf("scan found %q, want a path under the phone directory", found)
	}
}

func TestFindLatestRejectsForeignInstance(t *testing.T) {
	dir := t.TempDir()
	fake := clock.Fake(time.Unix(0, 0))

	foreign := Open(dir, "instance-other", fake, nil)
	if err := foreign.Append("+15551234567", "John", "foreign entry"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	mine := Open(dir, "instance-1", fake, nil)
	if _, err := mine.FindLatest("+15551234567", "John"); err == nil {
		t.Fatal("FindLatest must not return a transcript tagged with another instance")
	}
}

func TestRenameUserMovesDirectory(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Append("+15551234567", "John", "entry"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := store.RenameUser("+15551234567", "John", "Jonathan"); err != nil {
		t.Fatalf("RenameUser: %v", err)
	}

	found, err := store.FindLatest("+15551234567", "Jonathan")
	if err != nil {
		t.Fatalf("FindLatest after rename: %v", err)
	}
	if found != store.MasterPath("+15551234567", "Jonathan") {
		t.Errorf("FindLatest = %q, want the migrated master", found)
	}
}

func TestRenameUserAbsentSourceIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.RenameUser("+15551234567", "Nobody", "Somebody"); err != nil {
		t.Fatalf("RenameUser with absent source: %v", err)
	}
	if err := store.RenameUser("+15551234567", "Nobody", "Somebody"); err != nil {
		t.Fatalf("replayed RenameUser: %v", err)
	}
}

func TestPurgeRemovesOnlyOwnedFiles(t *testing.T) {
	dir := t.TempDir()
	fake := clock.Fake(time.Unix(0, 0))

	mine := Open(dir, "instance-1", fake, nil)
	foreign := Open(dir, "instance-other", fake, nil)
	if err := mine.Append("+15551111111", "Mine", "entry"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := foreign.Append("+15552222222", "Theirs", "entry"); err != nil {
		t.Fatalf("foreign Append: %v", err)
	}

	if err := mine.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}

	if _, err := os.Stat(mine.MasterPath("+15551111111", "Mine")); !os.IsNotExist(err) {
		t.Error("owned transcript survived purge")
	}
	if _, err := os.Stat(foreign.MasterPath("+15552222222", "Theirs")); err != nil {
		t.Error("foreign transcript removed by purge")
	}
}
