// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package channelmap

import "testing"

func newTestMap(t *testing.T) *Map {
	t.Helper()
	m, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return m
}

func TestBindBidirectional(t *testing.T) {
	m := newTestMap(t)
	m.Bind("+15551234567", "chan-1")

	if channel, ok := m.Channel("+15551234567"); !ok || channel != "chan-1" {
		t.Errorf("Channel = %q/%v, want chan-1/true", channel, ok)
	}
	if phoneKey, ok := m.Phone("chan-1"); !ok || phoneKey != "+15551234567" {
		t.Errorf("Phone = %q/%v, want +15551234567/true", phoneKey, ok)
	}
}

func TestRebindPhoneLastWriteWins(t *testing.T) {
	m := newTestMap(t)
	m.Bind("+15551234567", "chan-1")
	m.Bind("+15551234567", "chan-2")

	if channel, _ := m.Channel("+15551234567"); channel != "chan-2" {
		t.Errorf("Channel = %q, want chan-2", channel)
	}
	if _, ok := m.Phone("chan-1"); ok {
		t.Error("stale reverse binding for chan-1 survived rebind")
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestRebindChannelLastWriteWins(t *testing.T) {
	m := newTestMap(t)
	m.Bind("+15551111111", "chan-1")
	m.Bind("+15552222222", "chan-1")

	if _, ok := m.Channel("+15551111111"); ok {
		t.Error("evicted phone still bound after channel rebind")
	}
	if phoneKey, _ := m.Phone("chan-1"); phoneKey != "+15552222222" {
		t.Errorf("Phone = %q, want +15552222222", phoneKey)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}

func TestUnbind(t *testing.T) {
	m := newTestMap(t)
	m.Bind("+15551234567", "chan-1")

	m.Unbind("+15551234567")
	if _, ok := m.Channel("+15551234567"); ok {
		t.Error("phone still bound after Unbind")
	}
	if _, ok := m.Phone("chan-1"); ok {
		t.Error("channel still bound after Unbind")
	}

	// Unbinding twice is a no-op.
	m.Unbind("+15551234567")
}

func TestUnbindByChannel(t *testing.T) {
	m := newTestMap(t)
	m.Bind("+15551234567", "chan-1")

	m.UnbindByChannel("chan-1")
	if m.Len() != 0 {
		t.Errorf("Len = %d after UnbindByChannel, want 0", m.Len())
	}
	m.UnbindByChannel("chan-1")
}

func TestPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first.Bind("+15551234567", "chan-1")

	second, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if channel, ok := second.Channel("+15551234567"); !ok || channel != "chan-1" {
		t.Errorf("binding lost across reload: %q/%v", channel, ok)
	}
	if phoneKey, ok := second.Phone("chan-1"); !ok || phoneKey != "+15551234567" {
		t.Errorf("reverse side not rebuilt on load: %q/%v", phoneKey, ok)
	}
}

func TestPurge(t *testing.T) {
	m := newTestMap(t)
	m.Bind("+15551234567", "chan-1")
	if err := m.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len = %d after purge, want 0", m.Len())
	}
}
