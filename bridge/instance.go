// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/relaydesk/relaydesk/lib/channelmap"
	"github.com/relaydesk/relaydesk/lib/clock"
	"github.com/relaydesk/relaydesk/lib/config"
	"github.com/relaydesk/relaydesk/lib/credential"
	"github.com/relaydesk/relaydesk/lib/dedup"
	"github.com/relaydesk/relaydesk/lib/identity"
	"github.com/relaydesk/relaydesk/lib/mediastore"
	"github.com/relaydesk/relaydesk/lib/transcript"
	"github.com/relaydesk/relaydesk/messaging"
)

// Options configures a new Instance.
type Options struct {
	// ID identifies this registration. Transcript files are tagged
	// with it; a re-registration under a new ID deliberately orphans
	// the old registration's transcripts.
	ID string

	// TenantKey identifies the external community this instance
	// serves.
	TenantKey string

	// Root is the instance's isolated storage directory.
	Root string

	// TicketCategory is the ticket-platform category new ticket
	// channels are created under.
	TicketCategory string

	// DedupLimit bounds the seen-event journal. Zero uses the
	// journal's built-in default.
	DedupLimit int

	Contact messaging.ContactTransport
	Tickets messaging.TicketTransport

	Clock  clock.Clock
	Logger *slog.Logger
}

// Instance is one tenant's bridge: stores, transports, lifecycle, and
// router. Safe for concurrent use.
type Instance struct {
	id        string
	tenantKey string
	category  string
	root      string
	settings  config.Settings

	clock  clock.Clock
	logger *slog.Logger

	identities  *identity.Store
	channels    *channelmap.Map
	media       *mediastore.Store
	transcripts *transcript.Store
	journal     *dedup.Journal
	vault       *credential.Vault

	contact messaging.ContactTransport
	tickets messaging.TicketTransport

	queues *serializer

	mu        sync.Mutex
	open      map[string]*Ticket // channel ID → lifecycle record
	connState messaging.ConnectionState
}

// New opens every store under opts.Root and wires the rename cascade.
func New(opts Options) (*Instance, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("instance", opts.ID, "tenant", opts.TenantKey)

	if err := os.MkdirAll(opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("bridge: creating storage root %s: %w", opts.Root, err)
	}

	settings, err := config.LoadSettings(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("bridge: instance %s: %w", opts.ID, err)
	}

	identities, err := identity.Open(opts.Root, opts.Clock, logger)
	if err != nil {
		return nil, fmt.Errorf("bridge: instance %s: %w", opts.ID, err)
	}
	channels, err := channelmap.Open(opts.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("bridge: instance %s: %w", opts.ID, err)
	}
	media, err := mediastore.Open(opts.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("bridge: instance %s: %w", opts.ID, err)
	}
	journal, err := dedup.Open(opts.Root, opts.DedupLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("bridge: instance %s: %w", opts.ID, err)
	}
	vault, err := credential.Open(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("bridge: instance %s: %w", opts.ID, err)
	}

	instance := &Instance{
		id:          opts.ID,
		tenantKey:   opts.TenantKey,
		category:    opts.TicketCategory,
		root:        opts.Root,
		settings:    settings,
		clock:       opts.Clock,
		logger:      logger,
		identities:  identities,
		channels:    channels,
		media:       media,
		transcripts: transcript.Open(opts.Root, opts.ID, opts.Clock, logger),
		journal:     journal,
		vault:       vault,
		contact:     opts.Contact,
		tickets:     opts.Tickets,
		queues:      newSerializer(),
		open:        map[string]*Ticket{},
	}

	// The rename cascade, in registration order. The media step moves
	// the shared user directory; the transcript step after it is a
	// no-op ensure. The two ticket-side steps only apply while the
	// phone is bound.
	identities.OnRename("media_directory", media.RenameUser)
	identities.OnRename("transcript_paths", instance.transcripts.RenameUser)
	identities.OnRename("channel_name", instance.renameChannelHook)
	identities.OnRename("ticket_info", instance.redrawTicketInfoHook)

	return instance, nil
}

// ID returns the instance's registration ID.
func (in *Instance) ID() string { return in.id }

// TenantKey returns the tenant this instance serves.
func (in *Instance) TenantKey() string { return in.tenantKey }

// Vault returns the instance's credential vault, used by the
// contact-platform transport to persist its session.
func (in *Instance) Vault() *credential.Vault { return in.vault }

// Status is the instance health summary exposed upward.
type Status struct {
	OpenTickets     int
	RegisteredUsers int
	Connected       bool
}

// Status reports the instance's current state.
func (in *Instance) Status() Status {
	in.mu.Lock()
	connected := in.connState == messaging.StateConnected
	in.mu.Unlock()

	return Status{
		OpenTickets:     in.channels.Len(),
		RegisteredUsers: in.identities.Count(),
		Connected:       connected,
	}
}

// Run connects the contact transport and pumps both platforms' events
// through the router until ctx is cancelled or both transports close
// their event channels.
func (in *Instance) Run(ctx context.Context) error {
	if err := in.contact.Connect(ctx); err != nil {
		return &messaging.TransportError{Platform: "contact", Op: "connect", Err: err}
	}

	contactEvents := in.contact.Events()
	connectionStates := in.contact.ConnectionStates()
	ticketEvents := in.tickets.Events()

	for contactEvents != nil || connectionStates != nil || ticketEvents != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case state, ok := <-connectionStates:
			if !ok {
				connectionStates = nil
				continue
			}
			in.setConnectionState(state)

		case event, ok := <-contactEvents:
			if !ok {
				contactEvents = nil
				continue
			}
			in.RouteContactEvent(event)

		case event, ok := <-ticketEvents:
			if !ok {
				ticketEvents = nil
				continue
			}
			in.RouteTicketEvent(event)
		}
	}
	return nil
}

func (in *Instance) setConnectionState(state messaging.ConnectionState) {
	in.mu.Lock()
	previous := in.connState
	in.connState = state
	in.mu.Unlock()

	if state != previous {
		in.logger.Info("contact link state changed",
			"from", previous.String(),
			"to", state.String(),
		)
	}
}

// CloseAllTickets closes every open ticket. Used by disconnect.
func (in *Instance) CloseAllTickets(ctx context.Context) {
	for _, channelID := range in.channels.Channels() {
		if err := in.CloseTicket(ctx, channelID); err != nil {
			in.logger.Error("closing ticket during disconnect failed",
				"channel", channelID,
				"error", err,
			)
		}
	}
}

// PurgeAll erases every persisted store for this instance: identity,
// bindings, media, transcripts, dedup journal, and sealed credentials.
// Only a full tenant disconnect calls this.
func (in *Instance) PurgeAll() error {
	steps := []struct {
		name  string
		purge func() error
	}{
		{"identity", in.identities.Purge},
		{"channel_map", in.channels.Purge},
		{"media", in.media.Purge},
		{"transcripts", in.transcripts.Purge},
		{"dedup", in.journal.Purge},
		{"credentials", in.vault.Purge},
	}
	var errs []string
	for _, step := range steps {
		if err := step.purge(); err != nil {
			in.logger.Error("purge step failed", "store", step.name, "error", err)
			errs = append(errs, step.name)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("bridge: purge failed for: %s", strings.Join(errs, ", "))
	}
	return nil
}

// drainQueues blocks until every per-channel queue is empty. Callers
// must have stopped feeding events first.
func (in *Instance) drainQueues() {
	in.queues.wait()
}
