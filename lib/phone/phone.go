// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package phone canonicalizes contact-platform addresses into the
// normalized phone keys used throughout Relaydesk. Every store keys
// on the normalized form; raw transport addresses never leave the
// messaging boundary.
package phone

import "strings"

// Unknown is the sentinel key used when normalization produces an
// empty result (no digits at all in the input). Stores treat it like
// any other phone key, so even malformed senders get a stable
// identity rather than an error.
const Unknown = "unknown-number"

// Normalize converts a raw contact-platform address into the
// canonical phone key: everything from the first '@' (the transport
// suffix, e.g. "@s.whatsapp.net") is stripped, a single leading '+'
// is preserved, and all other non-digit characters are dropped.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x)
// for every input, including Unknown itself.
func Normalize(raw string) string {
	if raw == Unknown {
		return Unknown
	}

	if at := strings.IndexByte(raw, '@'); at >= 0 {
		raw = raw[:at]
	}

	var builder strings.Builder
	builder.Grow(len(raw))

	trimmed := strings.TrimSpace(raw)
	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case c == '+' && builder.Len() == 0:
			builder.WriteByte('+')
		case c >= '0' && c <= '9':
			builder.WriteByte(c)
		}
	}

	normalized := builder.String()
	// A bare "+" carries no digits and is not a usable key.
	if normalized == "" || normalized == "+" {
		return Unknown
	}
	return normalized
}
