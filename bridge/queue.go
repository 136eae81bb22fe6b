// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import "sync"

// serializer runs tasks in strict FIFO order per key. A task is
// started only after the previous task for the same key has returned,
// so one inbound event's text plus attachments never interleave with
// the next event for the same channel. Tasks for different keys run
// independently on their own goroutines — no ordering is implied
// across keys.
type serializer struct {
	mu       sync.Mutex
	queues   map[string][]func()
	draining map[string]bool
	wg       sync.WaitGroup
}

func newSerializer() *serializer {
	return &serializer{
		queues:   map[string][]func(){},
		draining: map[string]bool{},
	}
}

// enqueue appends the task to the key's queue and starts a drainer
// for the key if none is running. Returns immediately.
func (s *serializer) enqueue(key string, task func()) {
	s.mu.Lock()
	s.queues[key] = append(s.queues[key], task)
	if s.draining[key] {
		s.mu.Unlock()
		return
	}
	s.draining[key] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.drain(key)
}

// drain runs the key's tasks one at a time until the queue empties.
func (s *serializer) drain(key string) {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		queue := s.queues[key]
		if len(queue) == 0 {
			delete(s.queues, key)
			delete(s.draining, key)
			s.mu.Unlock()
			return
		}
		task := queue[0]
		s.queues[key] = queue[1:]
		s.mu.Unlock()

		task()
	}
}

// wait blocks until every queue has drained. Only meaningful once no
// new tasks are being enqueued (shutdown, test synchronization).
func (s *serializer) wait() {
	s.wg.Wait()
}
