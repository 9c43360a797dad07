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

package txqueue

import "testing"

func payloads(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

func TestPopAtMostEmptyQueue(t *testing.T) {
	q := New(100)
	q.Limiter.availableTokens.Store(100)
	got, ok := q.PopAtMost(5)
	if ok || got != nil {
		t.Fatalf("PopAtMost on empty queue = (%v, %v), want (nil, false)", got, ok)
	}
	if q.Limiter.availableTokens.Load() != 100 {
		t.Fatalf("tokens consumed on empty queue pop")
	}
}

func TestPopAtMostZero(t *testing.T) {
	q := New(100)
	q.PushBatch(payloads(3))
	q.Limiter.availableTokens.Store(100)
	got, ok := q.PopAtMost(0)
	if ok || got != nil {
		t.Fatalf("PopAtMost(0) = (%v, %v), want (nil, false)", got, ok)
	}
}

func TestPopAtMostFIFOOrder(t *testing.T) {
	q := New(100)
	q.PushBatch(payloads(5))
	q.Limiter.availableTokens.Store(100)

	popped, ok := q.PopAtMost(3)
	if !ok {
		t.Fatal("expected a pop to succeed")
	}
	for i, p := range popped {
		if p[0] != byte(i) {
			t.Fatalf("pop %d: got %d, want head-first order %d", i, p[0], i)
		}
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

func TestPopAtMostGatedByRateLimiter(t *testing.T) {
	q := New(100)
	q.PushBatch(payloads(10))
	q.Limiter.availableTokens.Store(3)

	popped, ok := q.PopAtMost(10)
	if !ok {
		t.Fatal("expected partial pop to succeed")
	}
	if len(popped) != 3 {
		t.Fatalf("len(popped) = %d, want 3 (limited by available tokens)", len(popped))
	}
	if q.TotalPopped() != 3 {
		t.Fatalf("TotalPopped() = %d, want 3", q.TotalPopped())
	}
}

func TestPopAtMostNoTokensReturnsNone(t *testing.T) {
	q := New(100)
	q.PushBatch(payloads(10))
	q.Limiter.availableTokens.Store(0)

	popped, ok := q.PopAtMost(10)
	if ok || popped != nil {
		t.Fatalf("PopAtMost with no tokens = (%v, %v), want (nil, false)", popped, ok)
	}
	if q.Len() != 10 {
		t.Fatalf("queue should be untouched when no tokens are available, Len() = %d", q.Len())
	}
}

func TestTotalAddedNeverLessThanTotalPopped(t *testing.T) {
	q := New(1000)
	q.PushBatch(payloads(50))
	q.Limiter.availableTokens.Store(1000)

	for q.Len() > 0 {
		popped, ok := q.PopAtMost(7)
		if !ok {
			break
		}
		_ = popped
		if q.TotalPopped() > q.TotalAdded() {
			t.Fatalf("TotalPopped (%d) exceeded TotalAdded (%d)", q.TotalPopped(), q.TotalAdded())
		}
	}
	if q.TotalPopped() != 50 {
		t.Fatalf("TotalPopped() = %d, want 50", q.TotalPopped())
	}
}
