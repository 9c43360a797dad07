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

import (
	"context"
	"sync/atomic"
	"time"
)

// refillInterval is fixed at one second per the rate-limiting contract.
const refillInterval = time.Second

// RateLimiter is a token bucket refilled once per second, capped at
// maxTokens. TryConsume is lock-free on its success path: a single
// compare-and-swap against the available-tokens counter.
type RateLimiter struct {
	maxTokens       atomic.Uint64
	refillAmount    atomic.Uint64
	availableTokens atomic.Uint64
}

// NewRateLimiter builds a limiter with the given initial steady-state rate.
// Both the burst ceiling and the per-second refill start at initialRate.
func NewRateLimiter(initialRate uint64) *RateLimiter {
	rl := &RateLimiter{}
	rl.maxTokens.Store(initialRate)
	rl.refillAmount.Store(initialRate)
	return rl
}

// Run starts the once-per-second refill loop. It blocks until ctx is done,
// so callers spawn it as its own goroutine.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(refillInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.refill()
		}
	}
}

func (rl *RateLimiter) refill() {
	amount := rl.refillAmount.Load()
	max := rl.maxTokens.Load()
	for {
		cur := rl.availableTokens.Load()
		next := cur + amount
		if next > max {
			next = max
		}
		if rl.availableTokens.CompareAndSwap(cur, next) {
			return
		}
	}
}

// TryConsume attempts to take a single token. It reports whether a token was
// available. The success path is a single CAS with no allocation.
func (rl *RateLimiter) TryConsume() bool {
	for {
		cur := rl.availableTokens.Load()
		if cur == 0 {
			return false
		}
		if rl.availableTokens.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// SetRate updates the steady-state refill rate and burst ceiling together,
// and resets available tokens to zero so that raising the ceiling never
// grants an instantaneous burst. The token bucket's invariant
// (refillAmount <= maxTokens) must hold at every instant of the update, so
// when raising the rate maxTokens is written before refillAmount; when
// lowering it, refillAmount is written first.
func (rl *RateLimiter) SetRate(newRate uint64) {
	increasing := newRate > rl.refillAmount.Load()
	if increasing {
		rl.maxTokens.Store(newRate)
		rl.refillAmount.Store(newRate)
	} else {
		rl.refillAmount.Store(newRate)
		rl.maxTokens.Store(newRate)
	}
	rl.availableTokens.Store(0)
}

// Rate reports the current steady-state refill amount (tokens/second).
func (rl *RateLimiter) Rate() uint64 {
	return rl.refillAmount.Load()
}

// Threshold is one entry of the rate escalation schedule: once total popped
// items crosses PoppedThreshold, NewRate becomes the active refill rate.
type Threshold struct {
	PoppedThreshold uint32
	NewRate         uint64
}

// SelectRate picks the highest-threshold entry whose PoppedThreshold is at
// most totalPopped, falling back to initialRate if none qualifies. schedule
// must be sorted ascending by PoppedThreshold; this mirrors the selection
// rule in spec.md's rate-controller section.
func SelectRate(schedule []Threshold, totalPopped uint64, initialRate uint64) uint64 {
	rate := initialRate
	for _, th := range schedule {
		if uint64(th.PoppedThreshold) <= totalPopped {
			rate = th.NewRate
		} else {
			break
		}
	}
	return rate
}
