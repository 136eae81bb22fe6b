// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the Relaydesk engine. It connects a contact
// platform (phone-addressed conversations) to a ticket platform
// (per-conversation channels), one isolated Instance per tenant.
//
// An Instance owns one of every store — identities, channel bindings,
// media, transcripts, the dedup journal, the credential vault — plus
// the two transports. The Registry constructs instances at
// registration and tears them down at disconnect; no state is ever
// shared across instances.
//
// Message flow is serialized per channel: each inbound or outbound
// event for a channel is processed only after the previous one has
// settled, which is the engine's only ordering guarantee. Failures
// degrade and continue — every router entry point has its own error
// boundary, so a transport or disk error never takes the process
// down.
package bridge
