// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging defines the boundary between the bridge engine
// and the two platforms it connects: the contact platform (phone-
// addressed, where conversations originate) and the ticket platform
// (channel-addressed, where each conversation gets its own ticket
// channel).
//
// The engine only ever sees these interfaces and types; the actual
// wire protocols live in transport implementations outside this
// repository. Connection state is delivered on an explicit channel
// rather than registered callbacks, so consumers cannot depend on
// handler registration order.
package messaging
