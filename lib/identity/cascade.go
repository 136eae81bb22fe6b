// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"fmt"
	"strings"
)

// CascadeStep records one failed step of a rename cascade.
type CascadeStep struct {
	// Label is the registration label of the failed hook.
	Label string
	// Err is the hook's error.
	Err error
}

// CascadeError reports a partially-successful rename cascade: the
// card itself was updated and Completed steps succeeded, but the
// listed Steps failed. Completed steps are never rolled back; failed
// steps are not retried automatically.
type CascadeError struct {
	Phone     string
	OldName   string
	NewName   string
	Completed int
	Steps     []CascadeStep
}

func (e *CascadeError) Error() string {
	labels := make([]string, len(e.Steps))
	for i, step := range e.Steps {
		labels[i] = fmt.Sprintf("%s: %v", step.Label, step.Err)
	}
	return fmt.Sprintf("identity: rename %s %q -> %q: %d steps completed, %d failed (%s)",
		e.Phone, e.OldName, e.NewName, e.Completed, len(e.Steps), strings.Join(labels, "; "))
}
