// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/relaydesk/relaydesk/lib/dedup"
	"github.com/relaydesk/relaydesk/lib/identity"
	"github.com/relaydesk/relaydesk/lib/phone"
	"github.com/relaydesk/relaydesk/messaging"
)

// RouteContactEvent enqueues an inbound contact message for
// processing. Events from the same contact are processed strictly in
// arrival order; the call itself returns immediately.
func (in *Instance) RouteContactEvent(event messaging.ContactEvent) {
	phoneKey := phone.Normalize(event.Sender)
	in.queues.enqueue("contact/"+phoneKey, func() {
		if err := in.handleContactEvent(context.Background(), phoneKey, event); err != nil {
			in.logger.Error("inbound routing failed",
				"phone", phoneKey,
				"message", event.MessageID,
				"error", err,
			)
		}
	})
}

// RouteTicketEvent enqueues an outbound ticket-channel message for
// processing. Events for the same channel are processed strictly in
// arrival order; the call itself returns immediately.
func (in *Instance) RouteTicketEvent(event messaging.TicketEvent) {
	in.queues.enqueue("ticket/"+event.ChannelID, func() {
		if err := in.handleTicketEvent(context.Background(), event); err != nil {
			in.logger.Error("outbound routing failed",
				"channel", event.ChannelID,
				"message", event.MessageID,
				"error", err,
			)
		}
	})
}

// handleContactEvent moves one contact-platform message into its
// ticket channel, opening the ticket first when the phone is unbound.
func (in *Instance) handleContactEvent(ctx context.Context, phoneKey string, event messaging.ContactEvent) error {
	// The bridge is strictly 1:1: echoes of our own sends, broadcast
	// and system senders, and group conversations are all ignored.
	if event.FromSelf || event.Broadcast || event.Group {
		return nil
	}

	card := in.identities.GetOrCreate(phoneKey)

	// Adopt the sender-advertised name for cards still carrying the
	// phone placeholder. Runs the full cascade, which is all no-ops
	// before the first directories and channel exist.
	if card.Name == card.Phone && event.PushName != "" {
		updated, err := in.identities.Update(phoneKey, identity.Patch{Name: &event.PushName})
		if err != nil {
			// A cascade failure still leaves the name applied.
			in.logger.Error("adopting push name failed", "phone", phoneKey, "error", err)
		}
		if updated.Phone != "" {
			card = updated
		}
	}

	ticket, err := in.OpenTicket(ctx, phoneKey)
	if err != nil {
		return fmt.Errorf("opening ticket for %s: %w", phoneKey, err)
	}
	channelID := ticket.ChannelID

	if event.Text != "" {
		// Redelivered events are a no-op; the journal survives
		// restarts.
		if in.journal.Mark(dedup.Key{MessageID: event.MessageID}) {
			_, err := in.tickets.SendToChannel(ctx, channelID, messaging.ChannelPayload{
				Text: event.Text,
			})
			if err != nil {
				in.logger.Error("forwarding text to channel failed",
					"channel", channelID,
					"error", err,
				)
			} else if err := in.transcripts.Append(phoneKey, card.Name, card.Name+": "+event.Text); err != nil {
				in.logger.Error("transcript append failed", "phone", phoneKey, "error", err)
			}
		}
	}

	for _, attachment := range event.Attachments {
		key := dedup.Key{MessageID: event.MessageID, AttachmentID: attachment.ID}
		if !in.journal.Mark(key) {
			continue
		}
		if err := in.forwardContactMedia(ctx, phoneKey, card.Name, channelID, attachment); err != nil {
			in.logger.Error("forwarding media to channel failed",
				"channel", channelID,
				"attachment", attachment.ID,
				"error", err,
			)
		}
	}
	return nil
}

// forwardContactMedia downloads one inbound attachment, stores it
// (deduplicated) in the media store, and posts it to the ticket
// channel. A post failure leaves a visible marker in the channel.
func (in *Instance) forwardContactMedia(ctx context.Context, phoneKey, displayName, channelID string, attachment messaging.Attachment) error {
	data, err := in.contact.DownloadMedia(ctx, attachment.Ref)
	if err != nil {
		return &messaging.TransportError{Platform: "contact", Op: "download_media", Err: err}
	}

	path, created, err := in.media.Save(data, phoneKey, displayName, attachment.Filename)
	if err != nil {
		in.logger.Error("storing media failed", "phone", phoneKey, "error", err)
	} else if created {
		if err := in.transcripts.Append(phoneKey, displayName, "[media] "+path); err != nil {
			in.logger.Error("transcript append failed", "phone", phoneKey, "error", err)
		}
	}

	kind := messaging.ClassifyMedia(attachment.DeclaredType, attachment.Filename)
	_, err = in.tickets.SendToChannel(ctx, channelID, messaging.ChannelPayload{
		Attachment: &messaging.MediaUpload{
			Kind:         kind,
			Filename:     attachment.Filename,
			DeclaredType: attachment.DeclaredType,
			Data:         data,
		},
	})
	if err != nil {
		marker := strings.NewReplacer("{filename}", attachment.Filename).
			Replace(in.settings.Template("media_failure", defaultMediaFailureNotice))
		if _, markerErr := in.tickets.SendToChannel(ctx, channelID, messaging.ChannelPayload{Text: marker}); markerErr != nil {
			in.logger.Error("posting media failure marker failed", "channel", channelID, "error", markerErr)
		}
		return &messaging.TransportError{Platform: "ticket", Op: "send_media", Err: err}
	}
	return nil
}

// handleTicketEvent moves one ticket-channel message to its bound
// contact: author prefix, mention translation, media degrade pipeline,
// and delayed special-channel announcements.
func (in *Instance) handleTicketEvent(ctx context.Context, event messaging.TicketEvent) error {
	if event.FromSelf {
		return nil
	}

	phoneKey, bound := in.channels.Phone(event.ChannelID)
	if !bound {
		// Visible notice on the ticket side; the message is dropped.
		notice := in.settings.Template("unbound_notice", defaultUnboundNotice)
		if _, err := in.tickets.SendToChannel(ctx, event.ChannelID, messaging.ChannelPayload{Text: notice}); err != nil {
			in.logger.Error("posting unbound notice failed", "channel", event.ChannelID, "error", err)
		}
		return &messaging.NotFoundError{Kind: "binding", Key: event.ChannelID}
	}

	card, _ := in.identities.Get(phoneKey)
	text, announcements := in.translateMentions(event.Text, event.Mentions)

	if text != "" {
		outbound := text
		if event.AuthorName != "" {
			outbound = event.AuthorName + ": " + text
		}
		if err := in.contact.SendText(ctx, phoneKey, outbound); err != nil {
			in.postDeliveryFailure(ctx, event.ChannelID, "text message")
			return &messaging.TransportError{Platform: "contact", Op: "send_text", Err: err}
		}
		if err := in.transcripts.Append(phoneKey, card.Name, event.AuthorName+" (agent): "+text); err != nil {
			in.logger.Error("transcript append failed", "phone", phoneKey, "error", err)
		}
	}

	// Special-channel announcements go as separate delayed follow-ups,
	// staggered so they arrive in mention order.
	delay := in.settings.AnnounceDelay()
	for i, announcement := range announcements {
		announcement := announcement
		in.clock.AfterFunc(delay*time.Duration(i+1), func() {
			if err := in.contact.SendText(context.Background(), phoneKey, announcement); err != nil {
				in.logger.Error("special-channel announcement failed",
					"phone", phoneKey,
					"error", err,
				)
			}
		})
	}

	for _, attachment := range event.Attachments {
		if err := in.sendMediaToContact(ctx, phoneKey, attachment, event.AuthorName); err != nil {
			in.postDeliveryFailure(ctx, event.ChannelID, attachment.Filename)
			in.logger.Error("media degrade pipeline exhausted",
				"phone", phoneKey,
				"attachment", attachment.ID,
				"error", err,
			)
		}
	}
	return nil
}

// translateMentions replaces platform mention tokens with plain
// "#name"/"@name" text and collects, in mention order, the configured
// announcement of each mentioned special channel.
func (in *Instance) translateMentions(text string, mentions []messaging.Mention) (string, []string) {
	var announcements []string
	for _, mention := range mentions {
		rendering := "@" + mention.Name
		if mention.Kind == messaging.MentionChannel {
			rendering = "#" + mention.Name
			if announcement, ok := in.settings.SpecialChannels[mention.ID]; ok {
				announcements = append(announcements, announcement)
			}
		}
		if mention.Token != "" {
			text = strings.ReplaceAll(text, mention.Token, rendering)
		}
	}
	return text, announcements
}

// postDeliveryFailure leaves a visible marker in the channel when an
// outbound delivery failed. Marker failures are only logged — the
// router never escalates its own error reporting.
func (in *Instance) postDeliveryFailure(ctx context.Context, channelID, what string) {
	marker := strings.NewReplacer("{filename}", what).
		Replace(in.settings.Template("media_failure", defaultMediaFailureNotice))
	if _, err := in.tickets.SendToChannel(ctx, channelID, messaging.ChannelPayload{Text: marker}); err != nil {
		in.logger.Error("posting delivery failure marker failed", "channel", channelID, "error", err)
	}
}
