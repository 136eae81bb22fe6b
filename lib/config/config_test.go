// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile %s: %v", name, err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relaydesk.yaml", `
paths:
  root: /srv/relaydesk
bridge:
  ticket_category: cat-support
  dedup_journal_limit: 100
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Root != "/srv/relaydesk" {
		t.Errorf("Root = %q", cfg.Paths.Root)
	}
	if cfg.Bridge.TicketCategory != "cat-support" {
		t.Errorf("TicketCategory = %q", cfg.Bridge.TicketCategory)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("RELAYDESK_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load without RELAYDESK_CONFIG should fail")
	}
}

func TestValidateRejectsEmptyRoot(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate should reject an empty root")
	}
}

func TestLoadSettingsWithComments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.json", `{
  // close tickets loudly on this instance
  "sendCloseNotice": true,
  "closeGraceSeconds": 5,
  "specialChannels": {
    "chan-announcements": "Please check our announcements!",
  },
  "templates": {
    "close_notice": "This conversation was closed.",
  },
}`)

	settings, err := LoadSettings(dir)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !settings.SendCloseNotice {
		t.Error("SendCloseNotice not parsed")
	}
	if settings.CloseGrace() != 5*time.Second {
		t.Errorf("CloseGrace = %v, want 5s", settings.CloseGrace())
	}
	if settings.SpecialChannels["chan-announcements"] == "" {
		t.Error("SpecialChannels not parsed")
	}
	if got := settings.Template("close_notice", "fallback"); got != "This conversation was closed." {
		t.Errorf("Template = %q", got)
	}
	if got := settings.Template("missing", "fallback"); got != "fallback" {
		t.Errorf("Template fallback = %q", got)
	}
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	settings, err := LoadSettings(t.TempDir())
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if settings.SendCloseNotice {
		t.Error("SendCloseNotice should default to off")
	}
	if settings.CloseGrace() != DefaultCloseGraceSeconds*time.Second {
		t.Errorf("CloseGrace = %v, want default", settings.CloseGrace())
	}
	if settings.AnnounceDelay() != DefaultAnnounceDelayMillis*time.Millisecond {
		t.Errorf("AnnounceDelay = %v, want default", settings.AnnounceDelay())
	}
}
