// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "context"

// ContactTransport is the contact-platform side of the bridge. A
// transport owns one account link per instance. Implementations are
// expected to be safe for concurrent use; the engine's per-channel
// queues provide ordering, not mutual exclusion.
type ContactTransport interface {
	// Connect establishes the platform link. Connection progress is
	// reported on ConnectionStates.
	Connect(ctx context.Context) error

	// SendText delivers a plain text message to the raw address.
	SendText(ctx context.Context, address, text string) error

	// SendMedia delivers media natively for its kind (image as image,
	// voice note as voice note). Platforms reject payloads they
	// cannot transcode; callers degrade via the document kind.
	SendMedia(ctx context.Context, address string, upload MediaUpload) error

	// DownloadMedia fetches an attachment's bytes.
	DownloadMedia(ctx context.Context, ref MediaRef) ([]byte, error)

	// Events delivers inbound contact messages. Closed on Close.
	Events() <-chan ContactEvent

	// ConnectionStates delivers link state transitions in order.
	ConnectionStates() <-chan ConnectionState

	// Close releases the link. Idempotent.
	Close() error
}

// TicketTransport is the ticket-platform side of the bridge.
type TicketTransport interface {
	// SendToChannel posts a message to a channel and returns the new
	// message's ID.
	SendToChannel(ctx context.Context, channelID string, payload ChannelPayload) (string, error)

	// CreateChannel creates a channel under the category and returns
	// its ID.
	CreateChannel(ctx context.Context, categoryID, name string) (string, error)

	// DeleteChannel removes a channel.
	DeleteChannel(ctx context.Context, channelID string) error

	// RenameChannel renames a channel.
	RenameChannel(ctx context.Context, channelID, name string) error

	// PinMessage pins a message in its channel.
	PinMessage(ctx context.Context, channelID, messageID string) error

	// EditMessage replaces a message's content.
	EditMessage(ctx context.Context, channelID, messageID string, payload ChannelPayload) error

	// DownloadMedia fetches an attachment's bytes.
	DownloadMedia(ctx context.Context, ref MediaRef) ([]byte, error)

	// Events delivers messages posted in ticket channels. Closed when
	// the transport shuts down.
	Events() <-chan TicketEvent
}
