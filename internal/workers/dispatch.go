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

package workers

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/transmissions11/crescendo/internal/stats"
	"github.com/transmissions11/crescendo/internal/txqueue"
)

// NewDispatchClient builds the HTTP client every dispatcher on a host
// thread shares. It is tuned for many short-lived keep-alive connections
// to a single target: TCP NODELAY, a large per-host idle pool, and idle
// and keep-alive timeouts generous enough to survive gaps between batches.
func NewDispatchClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 60 * time.Second,
	}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn, nil
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// rpcRequest is one element of a JSON-RPC batch request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

// buildBatchBody composes the JSON array body for a batch of signed,
// EIP-2718-encoded transaction payloads.
func buildBatchBody(payloads [][]byte) ([]byte, error) {
	batch := make([]rpcRequest, len(payloads))
	for i, payload := range payloads {
		batch[i] = rpcRequest{
			JSONRPC: "2.0",
			Method:  "eth_sendRawTransaction",
			Params:  []interface{}{"0x" + hex.EncodeToString(payload)},
			ID:      i + 1,
		}
	}
	return json.Marshal(batch)
}

// DispatchConfig carries the per-dispatcher-group parameters that don't
// change across the dispatcher's lifetime.
type DispatchConfig struct {
	TargetURL         string
	BatchFactor       int
	ErrorSleep        time.Duration
	TxQueueEmptySleep time.Duration
	TotalConnections  uint64
}

// RunDispatch is one dispatcher's loop body. It returns only once ctx is
// done; callers run it as its own goroutine within a dispatcher host group sharing client.
// isTelemetryWorker must be true for exactly one connection across the
// whole process (worker id 0 in spec.md §4.7's terms); that connection
// alone logs the wall-clock/implied-RPS side channel on every batch.
func RunDispatch(ctx context.Context, cfg DispatchConfig, isTelemetryWorker bool, client *http.Client, queue *txqueue.Queue, netStats *stats.NetworkStats) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		popped, ok := queue.PopAtMost(cfg.BatchFactor)
		if !ok {
			time.Sleep(cfg.TxQueueEmptySleep)
			continue
		}

		start := time.Now()
		errCount, err := postBatch(ctx, client, cfg.TargetURL, popped)
		duration := time.Since(start)

		if err != nil {
			netStats.AddErrors(uint64(len(popped)))
			log.Warn("dispatch: batch post failed", "err", err, "size", len(popped))
			time.Sleep(cfg.ErrorSleep)
			continue
		}

		netStats.AddErrors(uint64(errCount))
		netStats.AddRequests(uint64(len(popped) - errCount))

		if isTelemetryWorker && duration > 0 {
			impliedRPS := (float64(len(popped)) / duration.Seconds()) * float64(cfg.TotalConnections)
			log.Info("dispatch: sample", "batch", len(popped), "duration", duration, "implied_total_rps", impliedRPS)
		}
	}
}

// postBatch POSTs body to target and returns the number of per-item
// failures observed in the response, approximated by counting occurrences
// of the literal substring `"error":` rather than a full JSON parse — this
// is a deliberate, documented cost tradeoff on the dispatcher's hot path.
func postBatch(ctx context.Context, client *http.Client, target string, payloads [][]byte) (int, error) {
	body, err := buildBatchBody(payloads)
	if err != nil {
		return 0, fmt.Errorf("dispatch: encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("dispatch: post batch: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("dispatch: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("dispatch: non-2xx status %d", resp.StatusCode)
	}

	errCount := strings.Count(string(respBody), `"error":`)
	return errCount, nil
}
