// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity is the per-instance store of contact identities.
// A UserCard is keyed by the normalized phone and created lazily on
// first contact. A display-name change triggers the rename cascade:
// every registered hook (media directory migration, transcript path
// migration, ticket channel rename, ticket-info redraw) runs
// sequentially, best-effort — a failed step is logged and reported
// but never rolls back the steps that completed.
package identity

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/relaydesk/relaydesk/lib/clock"
	"github.com/relaydesk/relaydesk/lib/phone"
	"github.com/relaydesk/relaydesk/lib/sanitize"
	"github.com/relaydesk/relaydesk/lib/storage"
)

// cardsFile is the persisted identity map, one JSON object keyed by
// normalized phone.
const cardsFile = "user_cards.json"

// UserCard is the identity record for one contact.
type UserCard struct {
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
	LastContact time.Time `json:"lastContact"`
}

// Patch holds the fields an Update may change. Nil means "leave
// unchanged".
type Patch struct {
	Name  *string
	Notes *string
}

// RenameHook is one step of the rename cascade. Hooks receive the
// normalized phone plus the old and new display names.
type RenameHook func(phoneKey, oldName, newName string) error

// Store holds the UserCards of one instance. Safe for concurrent use.
// Every mutation is flushed synchronously to user_cards.json; a flush
// failure is logged and in-memory state stays authoritative.
type Store struct {
	path   string
	clock  clock.Clock
	logger *slog.Logger

	mu    sync.Mutex
	cards map[string]*UserCard
	hooks []namedHook
}

type namedHook struct {
	label string
	hook  RenameHook
}

// Open loads (or initializes) the identity store rooted at dir.
func Open(dir string, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{
		path:   filepath.Join(dir, cardsFile),
		clock:  clk,
		logger: logger,
		cards:  map[string]*UserCard{},
	}
	if err := storage.LoadJSON(store.path, &store.cards); err != nil {
		return nil, fmt.Errorf("identity: loading %s: %w", store.path, err)
	}
	return store, nil
}

// OnRename registers a cascade step. Steps run in registration order
// during Update when the display name changes. The label identifies
// the step in logs and CascadeError reports.
func (s *Store) OnRename(label string, hook RenameHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, namedHook{label: label, hook: hook})
}

// GetOrCreate returns the UserCard for the given raw address,
// creating it lazily on first contact. LastContact is touched on
// every call. The returned card is a copy.
func (s *Store) GetOrCreate(raw string) UserCard {
	key := phone.Normalize(raw)
	now := s.clock.Now()

	s.mu.Lock()
	card, ok := s.cards[key]
	if !ok {
		card = &UserCard{
			Phone:     key,
			Name:      key,
			CreatedAt: now,
		}
		s.cards[key] = card
	}
	card.LastContact = now
	snapshot := *card
	s.flushLocked()
	s.mu.Unlock()

	return snapshot
}

// Get returns the card for the raw address without creating or
// touching it.
func (s *Store) Get(raw string) (UserCard, bool) {
	key := phone.Normalize(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	card, ok := s.cards[key]
	if !ok {
		return UserCard{}, false
	}
	return *card, true
}

// Update applies the patch to the card for raw. A display-name change
// runs the rename cascade after the card is updated and flushed. The
// returned error is a *CascadeError when one or more cascade steps
// failed; the card update itself has still taken effect (partial
// success, no rollback).
func (s *Store) Update(raw string, patch Patch) (UserCard, error) {
	key := phone.Normalize(raw)

	s.mu.Lock()
	card, ok := s.cards[key]
	if !ok {
		s.mu.Unlock()
		return UserCard{}, fmt.Errorf("identity: no card for %s", key)
	}

	oldName := card.Name
	if patch.Name != nil {
		card.Name = *patch.Name
	}
	if patch.Notes != nil {
		card.Notes = *patch.Notes
	}
	snapshot := *card
	s.flushLocked()

	renamed := patch.Name != nil && *patch.Name != oldName
	hooks := make([]namedHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	if !renamed {
		return snapshot, nil
	}

	// Cascade steps run sequentially outside the lock so a hook may
	// call back into the store. Failures are collected, not fatal.
	cascade := &CascadeError{Phone: key, OldName: oldName, NewName: snapshot.Name}
	for _, step := range hooks {
		if err := step.hook(key, oldName, snapshot.Name); err != nil {
			s.logger.Error("rename cascade step failed",
				"step", step.label,
				"phone", key,
				"old_name", oldName,
				"new_name", snapshot.Name,
				"error", err,
			)
			cascade.Steps = append(cascade.Steps, CascadeStep{Label: step.label, Err: err})
			continue
		}
		cascade.Completed++
	}

	if len(cascade.Steps) > 0 {
		return snapshot, cascade
	}
	return snapshot, nil
}

// FindByName returns cards whose sanitized display name equals the
// sanitized query (case-insensitive exact match).
func (s *Store) FindByName(name string) []UserCard {
	want := sanitize.Name(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []UserCard
	for _, card := range s.cards {
		if sanitize.Name(card.Name) == want {
			matches = append(matches, *card)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Phone < matches[j].Phone })
	return matches
}

// FindByPartialName fuzzy-matches the query against display names,
// returning up to limit cards ranked by match score (best first).
// Ties break on most recent contact.
func (s *Store) FindByPartialName(query string, limit int) []UserCard {
	pattern := []rune(strings.ToLower(strings.TrimSpace(query)))
	if len(pattern) == 0 || limit <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	type scored struct {
		card  UserCard
		score int
	}
	var results []scored
	slab := matchSlab()
	for _, card := range s.cards {
		score, ok := fuzzyScore(card.Name, pattern, slab)
		if !ok {
			continue
		}
		results = append(results, scored{card: *card, score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].card.LastContact.After(results[j].card.LastContact)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	cards := make([]UserCard, len(results))
	for i, result := range results {
		cards[i] = result.card
	}
	return cards
}

// Count returns the number of registered cards.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards)
}

// Purge drops every card from memory and disk. Used only by a full
// tenant disconnect.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards = map[string]*UserCard{}
	if err := storage.SaveJSON(s.path, s.cards); err != nil {
		return fmt.Errorf("identity: purging %s: %w", s.path, err)
	}
	return nil
}

// flushLocked persists the card map. Called with s.mu held. A failed
// flush keeps the in-memory state authoritative.
func (s *Store) flushLocked() {
	if err := storage.SaveJSON(s.path, s.cards); err != nil {
		s.logger.Error("identity flush failed", "path", s.path, "error", err)
	}
}
