// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/relaydesk/relaydesk/lib/clock"
	"github.com/relaydesk/relaydesk/messaging"
)

// Registry is the top-level tenant container: one isolated Instance
// per registered tenant. Safe for concurrent use.
type Registry struct {
	root       string
	dedupLimit int
	clock      clock.Clock
	logger     *slog.Logger

	mu         sync.Mutex
	byID       map[string]*Instance
	byTenant   map[string]*Instance
	byCategory map[string]*Instance
}

// NewRegistry returns a registry rooting instance storage under root.
func NewRegistry(root string, dedupLimit int, clk clock.Clock, logger *slog.Logger) *Registry {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		root:       root,
		dedupLimit: dedupLimit,
		clock:      clk,
		logger:     logger,
		byID:       map[string]*Instance{},
		byTenant:   map[string]*Instance{},
		byCategory: map[string]*Instance{},
	}
}

// Register creates (or replaces) the tenant's instance. The storage
// root is keyed by tenant, so persisted identity and media survive a
// re-registration; the in-memory caches never do — a tenant switching
// to a new instance ID gets an entirely fresh Instance, and transcript
// files tagged with the old ID become foreign to the new one.
func (r *Registry) Register(instanceID, tenantKey, categoryKey string, contact messaging.ContactTransport, tickets messaging.TicketTransport) (*Instance, error) {
	instance, err := New(Options{
		ID:             instanceID,
		TenantKey:      tenantKey,
		Root:           filepath.Join(r.root, tenantKey),
		TicketCategory: categoryKey,
		DedupLimit:     r.dedupLimit,
		Contact:        contact,
		Tickets:        tickets,
		Clock:          r.clock,
		Logger:         r.logger,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if previous, ok := r.byTenant[tenantKey]; ok {
		delete(r.byID, previous.id)
		delete(r.byCategory, previous.category)
		r.logger.Info("tenant re-registered, caches reset",
			"tenant", tenantKey,
			"old_instance", previous.id,
			"new_instance", instanceID,
		)
	}
	r.byID[instanceID] = instance
	r.byTenant[tenantKey] = instance
	if categoryKey != "" {
		r.byCategory[categoryKey] = instance
	}
	r.mu.Unlock()

	return instance, nil
}

// Get returns the instance registered under instanceID.
func (r *Registry) Get(instanceID string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	instance, ok := r.byID[instanceID]
	return instance, ok
}

// Lookup resolves a tenant key or a category key to its instance.
func (r *Registry) Lookup(key string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if instance, ok := r.byTenant[key]; ok {
		return instance, true
	}
	instance, ok := r.byCategory[key]
	return instance, ok
}

// Instances returns a snapshot of every registered instance.
func (r *Registry) Instances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	instances := make([]*Instance, 0, len(r.byID))
	for _, instance := range r.byID {
		instances = append(instances, instance)
	}
	return instances
}

// Disconnect closes all the instance's open tickets, shuts down its
// contact link, and removes it from the registry. With full set, every
// persisted store — identity, media, transcripts, dedup journal,
// sealed credentials — is purged for this instance only.
func (r *Registry) Disconnect(ctx context.Context, instanceID string, full bool) error {
	r.mu.Lock()
	instance, ok := r.byID[instanceID]
	if ok {
		delete(r.byID, instanceID)
		delete(r.byTenant, instance.tenantKey)
		delete(r.byCategory, instance.category)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("bridge: no instance registered as %s", instanceID)
	}

	instance.CloseAllTickets(ctx)
	instance.drainQueues()

	if err := instance.contact.Close(); err != nil {
		r.logger.Error("closing contact transport failed",
			"instance", instanceID,
			"error", err,
		)
	}

	if full {
		if err := instance.PurgeAll(); err != nil {
			return err
		}
	}

	r.logger.Info("instance disconnected", "instance", instanceID, "full", full)
	return nil
}
