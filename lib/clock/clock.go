// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the time operations the bridge schedules:
// the ticket close grace delay and the special-channel announcement
// delay. Production code injects Real(); tests inject Fake() and
// advance time deterministically.
package clock

import "time"

// Clock provides the current time and deferred execution. Any bridge
// component that would call time.Now or time.AfterFunc takes a Clock
// instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (real) or synchronously during Advance (fake).
	// The returned Timer can cancel the pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the timer from firing. Returns true if the call
// stopped the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
