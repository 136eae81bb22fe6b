// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"
)

// settingsFile holds per-instance feature toggles and templates.
const settingsFile = "settings.json"

// Settings are the per-instance feature toggles and message
// templates, stored in the instance's storage root.
type Settings struct {
	// SendCloseNotice sends the close template to the contact when a
	// ticket closes. Off by default: most deployments close silently.
	SendCloseNotice bool `json:"sendCloseNotice"`

	// CloseGraceSeconds is the delay between CLOSING and the channel
	// deletion. Zero uses DefaultCloseGraceSeconds.
	CloseGraceSeconds int `json:"closeGraceSeconds"`

	// SpecialChannels maps a channel ID to the announcement text sent
	// to the contact when that channel is mentioned in an outbound
	// message. The announcement goes as a separate, delayed follow-up
	// rather than inline.
	SpecialChannels map[string]string `json:"specialChannels"`

	// AnnounceDelayMillis is the delay before each special-channel
	// announcement follow-up. Zero uses DefaultAnnounceDelayMillis.
	AnnounceDelayMillis int `json:"announceDelayMillis"`

	// Templates are the user-visible message templates keyed by name
	// ("close_notice", "ticket_info", ...). Missing keys fall back to
	// built-in defaults.
	Templates map[string]string `json:"templates"`
}

// Grace-delay and announcement defaults applied when settings leave
// the fields zero.
const (
	DefaultCloseGraceSeconds   = 30
	DefaultAnnounceDelayMillis = 750
)

// CloseGrace returns the CLOSING→CLOSED grace delay.
func (s Settings) CloseGrace() time.Duration {
	seconds := s.CloseGraceSeconds
	if seconds <= 0 {
		seconds = DefaultCloseGraceSeconds
	}
	return time.Duration(seconds) * time.Second
}

// AnnounceDelay returns the delay before each special-channel
// announcement.
func (s Settings) AnnounceDelay() time.Duration {
	millis := s.AnnounceDelayMillis
	if millis <= 0 {
		millis = DefaultAnnounceDelayMillis
	}
	return time.Duration(millis) * time.Millisecond
}

// Template returns the named template, or the fallback when the
// settings do not override it.
func (s Settings) Template(name, fallback string) string {
	if text, ok := s.Templates[name]; ok && text != "" {
		return text
	}
	return fallback
}

// LoadSettings reads the instance's settings.json from dir. The file
// may contain JSONC comments and trailing commas. A missing file
// yields zero-value settings (all defaults).
func LoadSettings(dir string) (Settings, error) {
	var settings Settings

	path := filepath.Join(dir, settingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), &settings); err != nil {
		return settings, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return settings, nil
}
