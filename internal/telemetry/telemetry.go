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

// Package telemetry runs the two periodic reporters (queue and network)
// and exposes cumulative counters as Prometheus gauges alongside them.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	prometheusadapter "github.com/ethereum/go-ethereum/metrics/prometheus"

	"github.com/transmissions11/crescendo/internal/humanize"
	"github.com/transmissions11/crescendo/internal/stats"
	"github.com/transmissions11/crescendo/internal/txqueue"
)

var logger = log.New("component", "telemetry")

var (
	queueAddedGauge  = gethmetrics.NewRegisteredGauge("crescendo/queue/added", nil)
	queuePoppedGauge = gethmetrics.NewRegisteredGauge("crescendo/queue/popped", nil)
	queueLenGauge    = gethmetrics.NewRegisteredGauge("crescendo/queue/len", nil)
	queueRateGauge   = gethmetrics.NewRegisteredGauge("crescendo/queue/ratelimit", nil)
	networkReqsGauge = gethmetrics.NewRegisteredGauge("crescendo/network/requests", nil)
	networkErrsGauge = gethmetrics.NewRegisteredGauge("crescendo/network/errors", nil)
)

// ServePrometheus starts the go-ethereum metrics registry's Prometheus
// exporter on addr in a background goroutine and returns immediately,
// without waiting for the listener; a listen or serve failure is logged.
// It uses
// upstream go-ethereum's own collector, which snapshots gethmetrics.DefaultRegistry
// on every scrape rather than pushing updates on a timer.
func ServePrometheus(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prometheusadapter.Handler(gethmetrics.DefaultRegistry))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("prometheus exporter stopped", "addr", addr, "err", err)
		}
	}()
}

// RunQueueReporter ticks every interval, reporting added/popped/delta
// rates and current queue length and rate limit, and invokes the rate
// controller: selecting the schedule-derived rate for the current
// total-popped count and applying it if it differs from the limiter's
// current rate.
func RunQueueReporter(ctx context.Context, interval time.Duration, queue *txqueue.Queue, schedule []txqueue.Threshold, initialRate uint64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevAdded, prevPopped uint64
	prevTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			added := queue.TotalAdded()
			popped := queue.TotalPopped()
			elapsed := now.Sub(prevTime).Seconds()
			if elapsed <= 0 {
				elapsed = interval.Seconds()
			}

			addedPerSec := float64(added-prevAdded) / elapsed
			poppedPerSec := float64(popped-prevPopped) / elapsed
			deltaPerSec := addedPerSec - poppedPerSec

			queueAddedGauge.Update(int64(added))
			queuePoppedGauge.Update(int64(popped))
			queueLenGauge.Update(int64(queue.Len()))
			queueRateGauge.Update(int64(queue.Limiter.Rate()))

			logger.Info("queue",
				"added_per_sec", humanize.Separate(uint64(addedPerSec)),
				"popped_per_sec", humanize.Separate(uint64(poppedPerSec)),
				"delta_per_sec", humanize.SeparateSigned(int64(deltaPerSec)),
				"len", humanize.Separate(uint64(queue.Len())),
				"ratelimit", humanize.Separate(queue.Limiter.Rate()),
			)

			newRate := txqueue.SelectRate(schedule, popped, initialRate)
			if newRate != queue.Limiter.Rate() {
				queue.Limiter.SetRate(newRate)
				logger.Info("rate controller: updated refill rate", "new_rate", newRate, "total_popped", popped)
			}

			prevAdded, prevPopped, prevTime = added, popped, now
		}
	}
}

// RunNetworkReporter ticks every interval, reporting requests/errors per
// second and cumulative totals.
func RunNetworkReporter(ctx context.Context, interval time.Duration, netStats *stats.NetworkStats) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev stats.Snapshot
	prevTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cur := netStats.Sample()
			elapsed := now.Sub(prevTime).Seconds()
			if elapsed <= 0 {
				elapsed = interval.Seconds()
			}

			reqsPerSec := float64(cur.Requests-prev.Requests) / elapsed
			errsPerSec := float64(cur.Errors-prev.Errors) / elapsed

			networkReqsGauge.Update(int64(cur.Requests))
			networkErrsGauge.Update(int64(cur.Errors))

			logger.Info("network",
				"requests_per_sec", humanize.Separate(uint64(reqsPerSec)),
				"errors_per_sec", humanize.Separate(uint64(errsPerSec)),
				"total_requests", humanize.Separate(cur.Requests),
				"total_errors", humanize.Separate(cur.Errors),
			)

			prev, prevTime = cur, now
		}
	}
}

// FormatTarget is a small convenience used by the CLI to echo back the
// configured metrics listen address as a /metrics URL.
func FormatTarget(addr string) string {
	return fmt.Sprintf("http://%s/metrics", addr)
}
