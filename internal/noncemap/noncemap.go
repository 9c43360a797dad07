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

// Package noncemap tracks the next unused nonce for each of a fixed set of
// sender accounts under high write contention.
package noncemap

import "sync/atomic"

// cacheLinePad is sized so that each entry's hot counter does not share a
// cache line with its neighbors. Two producer goroutines claiming nonces for
// adjacent account indices must not false-share.
const cacheLinePad = 64 - 8

type paddedCounter struct {
	v atomic.Uint64
	_ [cacheLinePad]byte
}

// Map is a concurrent account_index -> next_nonce table. Account indices are
// a dense [0,N) range known at construction time, so the map is backed by a
// plain padded slice rather than a general-purpose concurrent map: claims
// against distinct indices never contend, and there is no hashing or
// resizing on the hot path.
type Map struct {
	counters []paddedCounter
}

// New builds a Map with n accounts, all nonces initialized to zero.
func New(n uint32) *Map {
	return &Map{counters: make([]paddedCounter, n)}
}

// Claim returns the current nonce for accountIndex and atomically
// increments the stored value by one. It is safe to call concurrently for
// distinct indices; calls against the same index are serialized by the
// atomic increment itself, so the sequence of values returned for a given
// index is strictly increasing and gap-free starting at zero.
//
// An accountIndex outside [0, N) is a programmer error and is fatal.
func (m *Map) Claim(accountIndex uint32) uint64 {
	return m.counters[accountIndex].v.Add(1) - 1
}

// Len reports the number of tracked accounts.
func (m *Map) Len() int {
	return len(m.counters)
}
