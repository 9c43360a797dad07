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

// Package stats holds the process-wide, lock-free counters dispatchers
// update on every JSON-RPC batch response and the reporters periodically
// sample to derive rates.
package stats

import "sync/atomic"

const cacheLinePad = 64 - 8

type paddedCounter struct {
	v atomic.Uint64
	_ [cacheLinePad]byte
}

// NetworkStats accumulates per-item outcomes across every dispatcher.
// Both counters are monotonically non-decreasing and safe for concurrent
// use from any number of dispatcher goroutines.
type NetworkStats struct {
	requests paddedCounter
	errors   paddedCounter
}

// New returns a zeroed NetworkStats ready to share across dispatchers.
func New() *NetworkStats {
	return &NetworkStats{}
}

// AddRequests records n additional successful per-item outcomes.
func (s *NetworkStats) AddRequests(n uint64) {
	if n != 0 {
		s.requests.v.Add(n)
	}
}

// AddErrors records n additional failed per-item outcomes.
func (s *NetworkStats) AddErrors(n uint64) {
	if n != 0 {
		s.errors.v.Add(n)
	}
}

// Requests returns the cumulative successful outcome count.
func (s *NetworkStats) Requests() uint64 {
	return s.requests.v.Load()
}

// Errors returns the cumulative failed outcome count.
func (s *NetworkStats) Errors() uint64 {
	return s.errors.v.Load()
}

// Snapshot is a point-in-time reading of both counters, used by the
// network reporter to derive per-second rates between two samples.
type Snapshot struct {
	Requests uint64
	Errors   uint64
}

// Sample takes an instantaneous snapshot of both counters. The two loads
// are independent atomics and are not mutually consistent, which matches
// the "relaxed ordering is sufficient" resource-model guarantee: no
// observer here depends on ordering across counters.
func (s *NetworkStats) Sample() Snapshot {
	return Snapshot{
		Requests: s.Requests(),
		Errors:   s.Errors(),
	}
}
