// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

// ConnectionState describes the contact-platform link. Delivered on
// ContactTransport.ConnectionStates in the order the transitions
// happen.
type ConnectionState int

const (
	// StateDisconnected means no link to the contact platform.
	StateDisconnected ConnectionState = iota
	// StateConnecting means the transport is establishing the link.
	StateConnecting
	// StatePairing means the transport is waiting for the operator to
	// approve the link (e.g. scan a pairing code).
	StatePairing
	// StateConnected means the link is up and events flow.
	StateConnected
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StatePairing:
		return "pairing"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// MediaRef is an opaque handle a transport hands out for downloading
// an attachment's bytes later.
type MediaRef string

// Attachment is one media item carried by an inbound event.
type Attachment struct {
	// ID identifies the attachment within its message; part of the
	// dedup key.
	ID string

	// DeclaredType is the MIME type the platform declared, possibly
	// empty or wrong — classification also consults the filename.
	DeclaredType string

	// Filename is the original filename, possibly empty.
	Filename string

	// Ref downloads the payload via the owning transport.
	Ref MediaRef

	// URL is a direct link to the payload when the platform exposes
	// one. Used as the last-resort fallback reference.
	URL string
}

// ContactEvent is one inbound message from the contact platform.
type ContactEvent struct {
	// MessageID is the platform's message identifier; part of the
	// dedup key.
	MessageID string

	// Sender is the raw transport address (normalized by the engine).
	Sender string

	// PushName is the sender-advertised display name, possibly empty.
	PushName string

	// Text is the message body, possibly empty for pure media.
	Text string

	// Attachments carries the message's media items.
	Attachments []Attachment

	// FromSelf marks an echo of the bridge's own outbound send.
	FromSelf bool

	// Broadcast marks broadcast/system senders (status updates etc.).
	Broadcast bool

	// Group marks messages from group conversations. The bridge is
	// strictly 1:1 and ignores them.
	Group bool
}

// MentionKind distinguishes the mention targets a ticket platform
// supports.
type MentionKind int

const (
	// MentionChannel is a channel mention, rendered as "#name".
	MentionChannel MentionKind = iota
	// MentionUser is a user mention, rendered as "@name".
	MentionUser
)

// Mention is one platform mention inside a TicketEvent's text. The
// text contains the raw token (e.g. "<#chan-1>"); the engine replaces
// it with a plain rendering or a special-channel announcement.
type Mention struct {
	Kind MentionKind
	// ID is the mentioned channel or user ID.
	ID string
	// Name is the display name of the mention target.
	Name string
	// Token is the raw token as it appears in the text.
	Token string
}

// TicketEvent is one message posted in a ticket channel.
type TicketEvent struct {
	// MessageID is the platform's message identifier.
	MessageID string

	// ChannelID is the ticket channel the message was posted in.
	ChannelID string

	// AuthorName is the posting agent's display name, prefixed onto
	// the forwarded text.
	AuthorName string

	// Text is the message body.
	Text string

	// Attachments carries the message's media items.
	Attachments []Attachment

	// Mentions lists the platform mentions present in Text.
	Mentions []Mention

	// FromSelf marks the bridge's own posts (ticket-info display,
	// forwarded contact messages).
	FromSelf bool
}

// MediaUpload is an outbound media payload, already classified.
type MediaUpload struct {
	Kind     MediaKind
	Filename string
	// DeclaredType is the MIME type to present to the receiving
	// platform.
	DeclaredType string
	Data         []byte
	// Caption accompanies the media where the platform supports it.
	Caption string
}

// ChannelPayload is one message posted to a ticket channel.
type ChannelPayload struct {
	Text string
	// Attachment is optional media attached to the post.
	Attachment *MediaUpload
}
