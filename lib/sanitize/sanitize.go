// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package sanitize converts display names into filesystem- and
// channel-safe slugs. The sanitized form is used for directory names
// under a user's storage root and for ticket channel names; it is
// never an identity key (the normalized phone remains the true key),
// so two names that sanitize identically only share a directory name.
package sanitize

import "strings"

// UnknownUser is the slug used when sanitization produces an empty
// result (a name with no representable characters).
const UnknownUser = "unknown-user"

// Name lowercases the display name, collapses whitespace runs to
// single hyphens, strips every character outside [a-z0-9-], and
// collapses the resulting hyphen runs. The empty result maps to
// UnknownUser.
func Name(displayName string) string {
	lowered := strings.ToLower(strings.TrimSpace(displayName))

	var builder strings.Builder
	builder.Grow(len(lowered))

	lastHyphen := false
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '\t' || r == '\n' || r == '-' || r == '_':
			if builder.Len() > 0 && !lastHyphen {
				builder.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	slug := strings.TrimSuffix(builder.String(), "-")
	if slug == "" {
		return UnknownUser
	}
	return slug
}
