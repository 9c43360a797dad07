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

package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/transmissions11/crescendo/internal/txqueue"
)

func TestRunQueueReporterAppliesRateControllerSchedule(t *testing.T) {
	q := txqueue.New(100)
	q.Limiter.SetRate(100)

	schedule := []txqueue.Threshold{
		{PoppedThreshold: 0, NewRate: 100},
		{PoppedThreshold: 5, NewRate: 9999},
	}

	payload := [][]byte{{0x1}}
	for i := 0; i < 10; i++ {
		q.PushBatch(payload)
	}
	q.Limiter.SetRate(100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunQueueReporter(ctx, 5*time.Millisecond, q, schedule, 1)
	// The bucket starts empty; its once-per-second refill grants the tokens
	// the pops below need.
	go q.Limiter.Run(ctx)

	// Drain past the threshold so the next tick sees total_popped > 5.
	deadline := time.After(2 * time.Second)
	for q.TotalPopped() < 6 {
		q.PopAtMost(10)
		select {
		case <-deadline:
			t.Fatal("timed out waiting for pops")
		default:
		}
	}

	// Give the reporter a couple of ticks to observe the new popped count
	// and apply the schedule.
	time.Sleep(50 * time.Millisecond)

	if q.Limiter.Rate() != 9999 {
		t.Fatalf("Limiter.Rate() = %d, want 9999 after crossing threshold", q.Limiter.Rate())
	}
}
