// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/relaydesk/relaydesk/lib/identity"
	"github.com/relaydesk/relaydesk/lib/phone"
	"github.com/relaydesk/relaydesk/lib/sanitize"
	"github.com/relaydesk/relaydesk/messaging"
)

// TicketState is the lifecycle position of a ticket channel. The
// absence of a Ticket record is the NONE state.
type TicketState int

const (
	// TicketOpen means the channel exists and the phone is bound.
	TicketOpen TicketState = iota + 1
	// TicketClosing means close was requested: the phone is already
	// unbound and the channel awaits its grace-delay deletion.
	TicketClosing
	// TicketClosed means the grace delay elapsed and deletion was
	// attempted (successfully or not — a failed deletion is orphaned).
	TicketClosed
)

// String returns the lowercase state name.
func (s TicketState) String() string {
	switch s {
	case TicketOpen:
		return "open"
	case TicketClosing:
		return "closing"
	case TicketClosed:
		return "closed"
	}
	return "none"
}

// Ticket is one active contact conversation's channel.
type Ticket struct {
	ChannelID string
	Phone     string
	State     TicketState

	// infoMessageID is the pinned ticket-info display, edited in place
	// when the contact is renamed.
	infoMessageID string
}

// Default user-visible templates, overridable per instance via
// settings.json.
const (
	defaultTicketInfoTemplate = "**Ticket — {name}**\nContact: {phone}\nNotes: {notes}"
	defaultCloseNotice        = "This conversation has been closed. Message us again anytime to open a new one."
	defaultUnboundNotice      = "No contact is bound to this channel; the message was not delivered."
	defaultMediaFailureNotice = "Could not deliver media: {filename}"
)

// OpenTicket drives NONE→OPEN for the given contact: it creates a
// ticket channel under the configured category, binds the phone, and
// pins a ticket-info display built from the UserCard. If the phone is
// already bound the existing ticket is returned unchanged.
func (in *Instance) OpenTicket(ctx context.Context, rawPhone string) (*Ticket, error) {
	phoneKey := phone.Normalize(rawPhone)
	card := in.identities.GetOrCreate(phoneKey)

	if channelID, ok := in.channels.Channel(phoneKey); ok {
		in.mu.Lock()
		ticket, tracked := in.open[channelID]
		in.mu.Unlock()
		if tracked {
			return ticket, nil
		}
		// Bound but untracked: binding persisted across a restart.
		ticket = &Ticket{ChannelID: channelID, Phone: phoneKey, State: TicketOpen}
		in.mu.Lock()
		in.open[channelID] = ticket
		in.mu.Unlock()
		return ticket, nil
	}

	channelID, err := in.tickets.CreateChannel(ctx, in.category, channelName(card))
	if err != nil {
		return nil, &messaging.TransportError{Platform: "ticket", Op: "create_channel", Err: err}
	}

	in.channels.Bind(phoneKey, channelID)

	ticket := &Ticket{ChannelID: channelID, Phone: phoneKey, State: TicketOpen}
	in.mu.Lock()
	in.open[channelID] = ticket
	in.mu.Unlock()

	// The info display is posted exactly once per open. Pin failures
	// degrade to an unpinned display rather than failing the open.
	infoID, err := in.tickets.SendToChannel(ctx, channelID, messaging.ChannelPayload{
		Text: in.ticketInfoText(card),
	})
	if err != nil {
		in.logger.Error("posting ticket info failed", "channel", channelID, "error", err)
	} else {
		ticket.infoMessageID = infoID
		if err := in.tickets.PinMessage(ctx, channelID, infoID); err != nil {
			in.logger.Error("pinning ticket info failed", "channel", channelID, "error", err)
		}
	}

	in.logger.Info("ticket opened",
		"phone", phoneKey,
		"channel", channelID,
		"name", card.Name,
	)
	return ticket, nil
}

// CloseTicket drives OPEN→CLOSING→CLOSED for the channel. The phone
// is unbound immediately so a new inbound message opens a fresh
// ticket; the channel itself is deleted after the grace delay. A
// deletion failure is logged and the channel left orphaned — there is
// no retry.
func (in *Instance) CloseTicket(ctx context.Context, channelID string) error {
	phoneKey, bound := in.channels.Phone(channelID)
	if !bound {
		return &messaging.NotFoundError{Kind: "ticket", Key: channelID}
	}

	in.mu.Lock()
	ticket, tracked := in.open[channelID]
	if !tracked {
		ticket = &Ticket{ChannelID: channelID, Phone: phoneKey, State: TicketOpen}
		in.open[channelID] = ticket
	}
	if ticket.State != TicketOpen {
		state := ticket.State
		in.mu.Unlock()
		return fmt.Errorf("bridge: ticket %s is %s, not open", channelID, state)
	}
	ticket.State = TicketClosing
	in.mu.Unlock()

	if in.settings.SendCloseNotice {
		notice := in.settings.Template("close_notice", defaultCloseNotice)
		if err := in.contact.SendText(ctx, phoneKey, notice); err != nil {
			in.logger.Error("close notice failed", "phone", phoneKey, "error", err)
		}
	}

	if card, ok := in.identities.Get(phoneKey); ok {
		snapshot, err := in.transcripts.Snapshot(phoneKey, card.Name, channelID)
		if err != nil {
			in.logger.Error("transcript snapshot failed", "phone", phoneKey, "error", err)
		} else if snapshot != "" {
			in.logger.Info("transcript snapshot written", "path", snapshot)
		}
	}

	// Unbind before the grace delay: from this instant a new inbound
	// message from the phone opens a fresh ticket instead of writing
	// into the dying channel.
	in.channels.Unbind(phoneKey)

	grace := in.settings.CloseGrace()
	in.clock.AfterFunc(grace, func() {
		if err := in.tickets.DeleteChannel(context.Background(), channelID); err != nil {
			in.logger.Error("channel deletion failed, leaving orphaned",
				"channel", channelID,
				"error", err,
			)
		}
		in.mu.Lock()
		ticket.State = TicketClosed
		delete(in.open, channelID)
		in.mu.Unlock()
	})

	in.logger.Info("ticket closing",
		"phone", phoneKey,
		"channel", channelID,
		"grace", grace,
	)
	return nil
}

// RenameUser changes the contact's display name and runs the rename
// cascade (media directory, transcript paths, channel name, ticket
// info). A *identity.CascadeError reports which steps failed; the name
// change itself has already taken effect.
func (in *Instance) RenameUser(rawPhone, newName string) (identity.UserCard, error) {
	return in.identities.Update(rawPhone, identity.Patch{Name: &newName})
}

// UpdateNotes changes the contact's notes and redraws the ticket info
// if a ticket is open. Notes changes do not rename anything.
func (in *Instance) UpdateNotes(rawPhone, notes string) (identity.UserCard, error) {
	card, err := in.identities.Update(rawPhone, identity.Patch{Notes: &notes})
	if err != nil {
		return card, err
	}
	if hookErr := in.redrawTicketInfoHook(card.Phone, card.Name, card.Name); hookErr != nil {
		in.logger.Error("ticket info redraw failed", "phone", card.Phone, "error", hookErr)
	}
	return card, nil
}

// renameChannelHook is the cascade step that renames the live ticket
// channel. Unbound phones have no channel; the step is a no-op.
func (in *Instance) renameChannelHook(phoneKey, oldName, newName string) error {
	channelID, bound := in.channels.Channel(phoneKey)
	if !bound {
		return nil
	}
	card, ok := in.identities.Get(phoneKey)
	if !ok {
		return nil
	}
	if err := in.tickets.RenameChannel(context.Background(), channelID, channelName(card)); err != nil {
		return &messaging.TransportError{Platform: "ticket", Op: "rename_channel", Err: err}
	}
	return nil
}

// redrawTicketInfoHook is the cascade step that re-renders the pinned
// ticket-info display after an identity edit.
func (in *Instance) redrawTicketInfoHook(phoneKey, oldName, newName string) error {
	channelID, bound := in.channels.Channel(phoneKey)
	if !bound {
		return nil
	}

	in.mu.Lock()
	ticket, tracked := in.open[channelID]
	infoID := ""
	if tracked {
		infoID = ticket.infoMessageID
	}
	in.mu.Unlock()
	if infoID == "" {
		return nil
	}

	card, ok := in.identities.Get(phoneKey)
	if !ok {
		return nil
	}
	err := in.tickets.EditMessage(context.Background(), channelID, infoID, messaging.ChannelPayload{
		Text: in.ticketInfoText(card),
	})
	if err != nil {
		return &messaging.TransportError{Platform: "ticket", Op: "edit_message", Err: err}
	}
	return nil
}

// ticketInfoText renders the pinned ticket display for a card.
func (in *Instance) ticketInfoText(card identity.UserCard) string {
	template := in.settings.Template("ticket_info", defaultTicketInfoTemplate)
	return strings.NewReplacer(
		"{name}", card.Name,
		"{phone}", card.Phone,
		"{notes}", card.Notes,
	).Replace(template)
}

// channelName derives the ticket channel name from a card. Names that
// sanitize to nothing fall back to the phone digits.
func channelName(card identity.UserCard) string {
	name := sanitize.Name(card.Name)
	if name == sanitize.UnknownUser {
		if fromPhone := sanitize.Name(card.Phone); fromPhone != sanitize.UnknownUser {
			return fromPhone
		}
	}
	return name
}
