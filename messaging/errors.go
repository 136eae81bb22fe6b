// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// TransportError wraps a failed platform call. Callers extract it
// with errors.As:
//
//	var transportErr *messaging.TransportError
//	if errors.As(err, &transportErr) { ... }
type TransportError struct {
	// Platform is "contact" or "ticket".
	Platform string
	// Op is the failed operation ("send_media", "create_channel", ...).
	Op string
	// Err is the underlying transport error.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %s: %v", e.Platform, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var transportError *TransportError
	return errors.As(err, &transportError)
}

// NotFoundError reports a missing binding or identity for a routed
// message. The router drops the message with a visible notice rather
// than crashing.
type NotFoundError struct {
	// Kind names what was missing ("binding", "identity").
	Kind string
	// Key is the lookup key that missed.
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s for %s", e.Kind, e.Key)
}

// IsNotFound reports whether err is a *NotFoundError.
func IsNotFound(err error) bool {
	var notFoundError *NotFoundError
	return errors.As(err, &notFoundError)
}
