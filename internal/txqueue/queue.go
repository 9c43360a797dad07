// Copyright 2024 The crescendo Authors
// This file is part of the crescendo library.
//
// The crescendo library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The crescendo library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the crescendo library. If not, see <http://www.gnu.org/licenses/>.

// Package txqueue is the single in-memory FIFO of signed transaction bytes
// shared by every producer and dispatcher, gated by an integrated
// token-bucket rate limiter.
package txqueue

import (
	"sync"
	"sync/atomic"
)

// cacheLinePad keeps the two hot counters below from sharing a cache line
// with each other or with the fields that follow them; this was measured in the reference
// implementation to matter by itself (see spec.md section 5).
const cacheLinePad = 64 - 8

type paddedCounter struct {
	v atomic.Uint64
	_ [cacheLinePad]byte
}

// Queue is a FIFO of signed transaction payloads with running
// total-added/total-popped counters and an embedded RateLimiter that gates
// PopAtMost. A single mutex protects the underlying slice for both push and
// pop, held only as long as each operation needs it.
type Queue struct {
	mu      sync.Mutex
	entries [][]byte

	totalAdded  paddedCounter
	totalPopped paddedCounter

	Limiter *RateLimiter
}

// New builds an empty queue gated by a limiter starting at initialRate
// tokens/second.
func New(initialRate uint64) *Queue {
	return &Queue{
		Limiter: NewRateLimiter(initialRate),
	}
}

// PushBatch appends payloads to the tail and increments total_added by
// len(payloads) atomically with the append.
func (q *Queue) PushBatch(payloads [][]byte) {
	if len(payloads) == 0 {
		return
	}
	q.mu.Lock()
	q.entries = append(q.entries, payloads...)
	q.totalAdded.v.Add(uint64(len(payloads)))
	q.mu.Unlock()
}

// PopAtMost drains up to max payloads from the head, gated by the rate
// limiter: tokens are consumed one at a time from the head of the queue,
// stopping at the first token the limiter refuses. If no token could be
// obtained at all, PopAtMost returns (nil, false) and removes nothing.
// Otherwise it removes exactly as many payloads as tokens obtained and
// returns them in FIFO order.
//
// The whole operation runs under a single critical section so that the
// number of tokens consumed always matches the number of payloads drained.
func (q *Queue) PopAtMost(max int) ([][]byte, bool) {
	if max <= 0 {
		return nil, false
	}

	q.mu.Lock()

	k := len(q.entries)
	if max < k {
		k = max
	}

	allowed := 0
	for allowed < k {
		if !q.Limiter.TryConsume() {
			break
		}
		allowed++
	}
	if allowed == 0 {
		q.mu.Unlock()
		return nil, false
	}

	popped := q.entries[:allowed]
	q.entries = q.entries[allowed:]
	q.mu.Unlock()

	q.totalPopped.v.Add(uint64(allowed))
	return popped, true
}

// Len reports the approximate number of payloads currently resident:
// total_added - total_popped, read without synchronizing against writers.
func (q *Queue) Len() int {
	return int(q.TotalAdded() - q.TotalPopped())
}

// TotalAdded returns the running count of payloads ever pushed.
func (q *Queue) TotalAdded() uint64 {
	return q.totalAdded.v.Load()
}

// TotalPopped returns the running count of payloads ever popped.
func (q *Queue) TotalPopped() uint64 {
	return q.totalPopped.v.Load()
}
