// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/relaydesk/relaydesk/lib/clock"
	"github.com/relaydesk/relaydesk/lib/phone"
)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store, err := Open(t.TempDir(), fake, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return store, fake
}

func TestGetOrCreateLazy(t *testing.T) {
	store, fake := newTestStore(t)

	card := store.GetOrCreate("+1 (555) 123-4567@s.whatsapp.net")
	if card.Phone != "+15551234567" {
		t.Errorf("Phone = %q, want +15551234567", card.Phone)
	}
	if !card.CreatedAt.Equal(fake.Now()) {
		t.Errorf("CreatedAt = %v, want %v", card.CreatedAt, fake.Now())
	}
	if store.Count() != 1 {
		t.Errorf("Count = %d, want 1", store.Count())
	}

	// Second contact touches LastContact, keeps CreatedAt.
	fake.Advance(time.Hour)
	again := store.GetOrCreate("+15551234567")
	if !again.CreatedAt.Equal(card.CreatedAt) {
		t.Error("CreatedAt changed on repeat contact")
	}
	if !again.LastContact.After(card.LastContact) {
		t.Error("LastContact not touched on repeat contact")
	}
	if store.Count() != 1 {
		t.Errorf("Count = %d after repeat contact, want 1", store.Count())
	}
}

func TestGetOrCreateUnknownSentinel(t *testing.T) {
	store, _ := newTestStore(t)
	card := store.GetOrCreate("@broadcast")
	if card.Phone != phone.Unknown {
		t.Errorf("Phone = %q, want %q", card.Phone, phone.Unknown)
	}
}

func TestUpdatePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	fake := clock.Fake(time.Unix(0, 0))

	store, err := Open(dir, fake, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.GetOrCreate("+15551234567")
	name := "John"
	if _, err := store.Update("+15551234567", Patch{Name: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, err := Open(dir, fake, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	card, ok := reloaded.Get("+15551234567")
	if !ok {
		t.Fatal("card missing after reload")
	}
	if card.Name != "John" {
		t.Errorf("Name = %q after reload, want John", card.Name)
	}
}

func TestUpdateUnknownPhone(t *testing.T) {
	store, _ := newTestStore(t)
	name := "Nobody"
	if _, err := store.Update("+19990000000", Patch{Name: &name}); err == nil {
		t.Fatal("Update of unregistered phone should fail")
	}
}

func TestRenameCascadeRunsHooksInOrder(t *testing.T) {
	store, _ := newTestStore(t)
	store.GetOrCreate("+15551234567")

	var order []string
	store.OnRename("media", func(key, oldName, newName string) error {
		order = append(order, "media:"+oldName+">"+newName)
		return nil
	})
	store.OnRename("transcript", func(key, oldName, newName string) error {
		order = append(order, "transcript:"+oldName+">"+newName)
		return nil
	})

	name := "John"
	if _, err := store.Update("+15551234567", Patch{Name: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := []string{"media:+15551234567>John", "transcript:+15551234567>John"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Errorf("cascade order = %v, want %v", order, want)
	}
}

func TestNotesOnlyUpdateSkipsCascade(t *testing.T) {
	store, _ := newTestStore(t)
	store.GetOrCreate("+15551234567")

	called := false
	store.OnRename("media", func(key, oldName, newName string) error {
		called = true
		return nil
	})

	notes := "met at the conference"
	if _, err := store.Update("+15551234567", Patch{Notes: &notes}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if called {
		t.Error("notes-only update must not trigger the rename cascade")
	}
}

func TestCascadePartialFailure(t *testing.T) {
	store, _ := newTestStore(t)
	store.GetOrCreate("+15551234567")

	var afterFailure bool
	store.OnRename("media", func(key, oldName, newName string) error {
		return fmt.Errorf("disk on fire")
	})
	store.OnRename("transcript", func(key, oldName, newName string) error {
		afterFailure = true
		return nil
	})

	name := "John"
	card, err := store.Update("+15551234567", Patch{Name: &name})
	if err == nil {
		t.Fatal("Update should report the failed cascade step")
	}

	var cascade *CascadeError
	if !errors.As(err, &cascade) {
		t.Fatalf("error %v is not a *CascadeError", err)
	}
	if cascade.Completed != 1 {
		t.Errorf("Completed = %d, want 1", cascade.Completed)
	}
	if len(cascade.Steps) != 1 || cascade.Steps[0].Label != "media" {
		t.Errorf("failed steps = %+v, want the media step", cascade.Steps)
	}
	if !afterFailure {
		t.Error("steps after a failure must still run")
	}
	if card.Name != "John" {
		t.Error("card update must survive a cascade failure")
	}
}

func TestFindByName(t *testing.T) {
	store, _ := newTestStore(t)
	store.GetOrCreate("+15551234567")
	name := "John Smith"
	if _, err := store.Update("+15551234567", Patch{Name: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	for _, query := range []string{"john smith", "JOHN SMITH", "John  Smith"} {
		matches := store.FindByName(query)
		if len(matches) != 1 || matches[0].Phone != "+15551234567" {
			t.Errorf("FindByName(%q) = %v, want the one card", query, matches)
		}
	}

	if matches := store.FindByName("jane"); len(matches) != 0 {
		t.Errorf("FindByName(jane) = %v, want none", matches)
	}
}

func TestFindByPartialName(t *testing.T) {
	store, _ := newTestStore(t)
	seed := map[string]string{
		"+15550000001": "Jonathan Archer",
		"+15550000002": "John Smith",
		"+15550000003": "Benjamin Sisko",
	}
	for key, name := range seed {
		store.GetOrCreate(key)
		n := name
		if _, err := store.Update(key, Patch{Name: &n}); err != nil {
			t.Fatalf("Update(%s): %v", key, err)
		}
	}

	matches := store.FindByPartialName("jon", 10)
	if len(matches) == 0 {
		t.Fatal("FindByPartialName(jon) found nothing")
	}
	for _, match := range matches {
		if match.Name == "Benjamin Sisko" {
			t.Errorf("FindByPartialName(jon) matched %q", match.Name)
		}
	}

	if matches := store.FindByPartialName("john", 1); len(matches) != 1 {
		t.Errorf("limit not applied: got %d matches", len(matches))
	}
	if matches := store.FindByPartialName("", 10); matches != nil {
		t.Errorf("empty query should match nothing, got %v", matches)
	}
}

func TestPurge(t *testing.T) {
	store, _ := newTestStore(t)
	store.GetOrCreate("+15551234567")
	if err := store.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("Count = %d after purge, want 0", store.Count())
	}
}
