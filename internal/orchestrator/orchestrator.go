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

// Package orchestrator wires the signer pool, nonce map, queue, core
// planner, producers, dispatchers, and reporters into one running process.
package orchestrator

import (
	"context"
	"fmt"
	"math/big"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/transmissions11/crescendo/internal/config"
	"github.com/transmissions11/crescendo/internal/noncemap"
	"github.com/transmissions11/crescendo/internal/rlimit"
	"github.com/transmissions11/crescendo/internal/signerpool"
	"github.com/transmissions11/crescendo/internal/stats"
	"github.com/transmissions11/crescendo/internal/telemetry"
	"github.com/transmissions11/crescendo/internal/txqueue"
	"github.com/transmissions11/crescendo/internal/workers"
)

var logger = log.New("component", "orchestrator")

// Run builds every process-lifetime capability from cfg and blocks
// forever driving producers, dispatchers, and reporters. It returns only
// if one of the two reporters exits, which under normal operation never
// happens.
func Run(ctx context.Context, cfg *config.Config) error {
	if !common.IsHexAddress(cfg.TxGenWorker.TokenContractAddress) {
		return fmt.Errorf("orchestrator: token_contract_address %q is not a valid hex address", cfg.TxGenWorker.TokenContractAddress)
	}
	tokenContract := common.HexToAddress(cfg.TxGenWorker.TokenContractAddress)

	if soft, err := rlimit.IncreaseNofile(10 * cfg.NetworkWorker.TotalConnections); err != nil {
		logger.Warn("could not raise file descriptor limit", "err", err)
	} else {
		logger.Info("file descriptor soft limit", "value", soft)
	}

	signers, err := signerpool.Derive(cfg.TxGenWorker.Mnemonic, cfg.TxGenWorker.NumAccounts)
	if err != nil {
		return fmt.Errorf("orchestrator: derive signer pool: %w", err)
	}
	nonces := noncemap.New(cfg.TxGenWorker.NumAccounts)
	queue := txqueue.New(cfg.RateLimiting.InitialRatelimit)
	netStats := stats.New()

	schedule := make([]txqueue.Threshold, len(cfg.RateLimiting.RatelimitThresholds))
	for i, th := range cfg.RateLimiting.RatelimitThresholds {
		schedule[i] = txqueue.Threshold{PoppedThreshold: th.PoppedThreshold, NewRate: th.NewRate}
	}

	numCores := runtime.NumCPU()
	coreIDs := make([]int, numCores)
	for i := range coreIDs {
		coreIDs[i] = i
	}
	// Reserve the first core for the main runtime (reporters, ticker loops).
	if len(coreIDs) > 1 {
		coreIDs = coreIDs[1:]
	}

	assignments, counts := workers.Plan(coreIDs, []workers.Desire{
		workers.PercentageDesire(workers.ClassTxGen, cfg.Workers.TxGenWorkerPercentage),
		workers.PercentageDesire(workers.ClassNetwork, cfg.Workers.NetworkWorkerPercentage),
	})
	logger.Info("core plan", "total", len(coreIDs))
	fmt.Print(workers.Summary(counts))

	txGenCfg := workers.TxGenConfig{
		ChainID:                     new(big.Int).SetUint64(cfg.TxGenWorker.ChainID),
		GasPrice:                    new(big.Int).SetUint64(cfg.TxGenWorker.GasPrice),
		GasLimit:                    cfg.TxGenWorker.GasLimit,
		TokenContractAddress:        tokenContract,
		RecipientDistributionFactor: cfg.TxGenWorker.RecipientDistributionFactor,
		MaxTransferAmount:           cfg.TxGenWorker.MaxTransferAmount,
		BatchSize:                   int(cfg.TxGenWorker.BatchSize),
	}

	numDispatchers := counts[workers.ClassNetwork]
	if numDispatchers == 0 {
		numDispatchers = 1
	}
	connectionsPerDispatcher := cfg.NetworkWorker.TotalConnections / uint64(numDispatchers)
	if connectionsPerDispatcher == 0 {
		connectionsPerDispatcher = 1
	}

	dispatchIndex := 0
	for _, a := range assignments {
		a := a
		switch a.Class {
		case workers.ClassTxGen:
			go spawnPinned(cfg.Workers.ThreadPinning, a.CoreID, func() {
				workers.RunTxGen(txGenCfg, signers, nonces, queue)
			})
		case workers.ClassNetwork:
			client := workers.NewDispatchClient()
			isTelemetryGroup := dispatchIndex == 0
			dispatchCfg := workers.DispatchConfig{
				TargetURL:         cfg.NetworkWorker.TargetURL,
				BatchFactor:       int(cfg.NetworkWorker.BatchFactor),
				ErrorSleep:        msDuration(cfg.NetworkWorker.ErrorSleepMs),
				TxQueueEmptySleep: msDuration(cfg.NetworkWorker.TxQueueEmptySleepMs),
				TotalConnections:  cfg.NetworkWorker.TotalConnections,
			}
			connections := connectionsPerDispatcher
			go spawnPinned(cfg.Workers.ThreadPinning, a.CoreID, func() {
				for i := uint64(0); i < connections; i++ {
					isTelemetryWorker := isTelemetryGroup && i == 0
					go workers.RunDispatch(ctx, dispatchCfg, isTelemetryWorker, client, queue, netStats)
				}
				<-ctx.Done()
			})
			dispatchIndex++
		}
	}

	go queue.Limiter.Run(ctx)

	errc := make(chan error, 2)
	go func() {
		telemetry.RunQueueReporter(ctx, secDuration(cfg.Reporters.TxQueueReportIntervalSecs), queue, schedule, cfg.RateLimiting.InitialRatelimit)
		errc <- fmt.Errorf("orchestrator: queue reporter exited unexpectedly")
	}()
	go func() {
		telemetry.RunNetworkReporter(ctx, secDuration(cfg.Reporters.NetworkStatsReportIntervalSecs), netStats)
		errc <- fmt.Errorf("orchestrator: network reporter exited unexpectedly")
	}()

	return <-errc
}

func msDuration(ms uint64) time.Duration { return time.Duration(ms) * time.Millisecond }
func secDuration(s uint64) time.Duration { return time.Duration(s) * time.Second }

// spawnPinned locks the calling goroutine to its OS thread, optionally
// pins that thread to coreID, then runs body. Callers invoke this as its
// own goroutine since it never returns until body returns.
//
// Per spec.md's error taxonomy, a pin failure while pinning is enabled is
// fatal: logger.Crit logs and terminates the process rather than letting a
// worker silently run unpinned.
func spawnPinned(pin bool, coreID int, body func()) {
	runtime.LockOSThread()
	if pin {
		if err := workers.PinCurrentThread(coreID); err != nil {
			logger.Crit("failed to pin worker thread", "core", coreID, "err", err)
		}
	}
	body()
}
