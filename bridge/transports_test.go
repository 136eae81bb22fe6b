// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/relaydesk/relaydesk/messaging"
)

// fakeContact is an in-memory ContactTransport recording every send.
type fakeContact struct {
	mu    sync.Mutex
	texts []sentText
	media []sentMedia

	// textErr fails every SendText.
	textErr error
	// mediaErr fails every SendMedia.
	mediaErr error
	// nativeErr fails SendMedia for every kind except KindDocument.
	nativeErr error
	// downloadGate, when non-nil, blocks DownloadMedia until closed.
	downloadGate chan struct{}

	downloads map[messaging.MediaRef][]byte
	events    chan messaging.ContactEvent
	states    chan messaging.ConnectionState
}

type sentText struct {
	address string
	text    string
}

type sentMedia struct {
	address string
	upload  messaging.MediaUpload
}

func newFakeContact() *fakeContact {
	return &fakeContact{
		downloads: map[messaging.MediaRef][]byte{},
		events:    make(chan messaging.ContactEvent, 16),
		states:    make(chan messaging.ConnectionState, 16),
	}
}

func (c *fakeContact) Connect(ctx context.Context) error {
	c.states <- messaging.StateConnected
	return nil
}

func (c *fakeContact) SendText(ctx context.Context, address, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.textErr != nil {
		return c.textErr
	}
	c.texts = append(c.texts, sentText{address: address, text: text})
	return nil
}

func (c *fakeContact) SendMedia(ctx context.Context, address string, upload messaging.MediaUpload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mediaErr != nil {
		return c.mediaErr
	}
	if c.nativeErr != nil && upload.Kind != messaging.KindDocument {
		return c.nativeErr
	}
	c.media = append(c.media, sentMedia{address: address, upload: upload})
	return nil
}

func (c *fakeContact) DownloadMedia(ctx context.Context, ref messaging.MediaRef) ([]byte, error) {
	c.mu.Lock()
	gate := c.downloadGate
	data, ok := c.downloads[ref]
	c.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return []byte("payload:" + string(ref)), nil
	}
	return data, nil
}

func (c *fakeContact) Events() <-chan messaging.ContactEvent { return c.events }

func (c *fakeContact) ConnectionStates() <-chan messaging.ConnectionState { return c.states }

func (c *fakeContact) Close() error { return nil }

func (c *fakeContact) sentTexts() []sentText {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentText(nil), c.texts...)
}

func (c *fakeContact) sentMedia() []sentMedia {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMedia(nil), c.media...)
}

// fakeTickets is an in-memory TicketTransport recording every call.
type fakeTickets struct {
	mu          sync.Mutex
	nextChannel int
	nextMessage int

	channelNames map[string]string
	posts        []channelPost
	pins         []pinned
	edits        []edited
	deleted      []string

	createErr   error
	sendErr     error
	deleteErr   error
	downloadErr error
	downloads   map[messaging.MediaRef][]byte

	events chan messaging.TicketEvent
}

type channelPost struct {
	channelID string
	payload   messaging.ChannelPayload
}

type pinned struct {
	channelID string
	messageID string
}

type edited struct {
	channelID string
	messageID string
	payload   messaging.ChannelPayload
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{
		channelNames: map[string]string{},
		downloads:    map[messaging.MediaRef][]byte{},
		events:       make(chan messaging.TicketEvent, 16),
	}
}

func (f *fakeTickets) SendToChannel(ctx context.Context, channelID string, payload messaging.ChannelPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.nextMessage++
	f.posts = append(f.posts, channelPost{channelID: channelID, payload: payload})
	return fmt.Sprintf("msg-%d", f.nextMessage), nil
}

func (f *fakeTickets) CreateChannel(ctx context.Context, categoryID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextChannel++
	channelID := fmt.Sprintf("chan-%d", f.nextChannel)
	f.channelNames[channelID] = name
	return channelID, nil
}

func (f *fakeTickets) DeleteChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, channelID)
	delete(f.channelNames, channelID)
	return nil
}

func (f *fakeTickets) RenameChannel(ctx context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelNames[channelID] = name
	return nil
}

func (f *fakeTickets) PinMessage(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pins = append(f.pins, pinned{channelID: channelID, messageID: messageID})
	return nil
}

func (f *fakeTickets) EditMessage(ctx context.Context, channelID, messageID string, payload messaging.ChannelPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edited{channelID: channelID, messageID: messageID, payload: payload})
	return nil
}

func (f *fakeTickets) DownloadMedia(ctx context.Context, ref messaging.MediaRef) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	if data, ok := f.downloads[ref]; ok {
		return data, nil
	}
	return []byte("payload:" + string(ref)), nil
}

func (f *fakeTickets) Events() <-chan messaging.TicketEvent { return f.events }

func (f *fakeTickets) channelPosts() []channelPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]channelPost(nil), f.posts...)
}

func (f *fakeTickets) pinnedMessages() []pinned {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pinned(nil), f.pins...)
}

func (f *fakeTickets) editedMessages() []edited {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]edited(nil), f.edits...)
}

func (f *fakeTickets) deletedChannels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeTickets) channelName(channelID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channelNames[channelID]
}
