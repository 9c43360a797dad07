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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseTOML = `
[tx_gen_worker]
chain_id = 1337
mnemonic = "test test test test test test test test test test test junk"
num_accounts = 100
gas_price = 1000000000
gas_limit = 100000
token_contract_address = "0x00000000000000000000000000000000000001"
recipient_distribution_factor = 1
max_transfer_amount = 100
batch_size = 64

[network_worker]
target_url = "http://127.0.0.1:8545"
total_connections = 64
batch_factor = 32
error_sleep_ms = 100
tx_queue_empty_sleep_ms = 10

[rate_limiting]
initial_ratelimit = 100

[[rate_limiting.ratelimit_thresholds]]
popped_threshold = 1000
new_rate = 500

[[rate_limiting.ratelimit_thresholds]]
popped_threshold = 5000
new_rate = 2500

[workers]
thread_pinning = true
tx_gen_worker_percentage = 0.5
network_worker_percentage = 0.5

[reporters]
tx_queue_report_interval_secs = 5
network_stats_report_interval_secs = 5
`

const overlayTOML = `
[network_worker]
target_url = "http://10.0.0.1:8545"

[rate_limiting]
initial_ratelimit = 9999
`

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadBaseOnly(t *testing.T) {
	basePath := writeTemp(t, "base.toml", baseTOML)

	cfg, err := Load(basePath, "")
	require.NoError(t, err)

	assert.EqualValues(t, 100, cfg.TxGenWorker.NumAccounts)
	assert.Equal(t, "http://127.0.0.1:8545", cfg.NetworkWorker.TargetURL)
	require.Len(t, cfg.RateLimiting.RatelimitThresholds, 2)
	assert.EqualValues(t, 1000, cfg.RateLimiting.RatelimitThresholds[0].PoppedThreshold)
	assert.EqualValues(t, 500, cfg.RateLimiting.RatelimitThresholds[0].NewRate)
}

func TestLoadMergesOverlayOverBase(t *testing.T) {
	basePath := writeTemp(t, "base.toml", baseTOML)
	overlayPath := writeTemp(t, "overlay.toml", overlayTOML)

	cfg, err := Load(basePath, overlayPath)
	require.NoError(t, err)

	// Overlay replaces these two fields.
	assert.Equal(t, "http://10.0.0.1:8545", cfg.NetworkWorker.TargetURL)
	assert.EqualValues(t, 9999, cfg.RateLimiting.InitialRatelimit)

	// Everything else from the base survives untouched.
	assert.EqualValues(t, 32, cfg.NetworkWorker.BatchFactor)
	assert.EqualValues(t, 100, cfg.TxGenWorker.NumAccounts)
}

func TestValidateRejectsZeroAccounts(t *testing.T) {
	cfg := &Config{
		TxGenWorker:   TxGenWorkerConfig{NumAccounts: 0, BatchSize: 1},
		NetworkWorker: NetworkWorkerConfig{TargetURL: "http://x", BatchFactor: 1},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnsortedThresholds(t *testing.T) {
	cfg := &Config{
		TxGenWorker:   TxGenWorkerConfig{NumAccounts: 1, BatchSize: 1},
		NetworkWorker: NetworkWorkerConfig{TargetURL: "http://x", BatchFactor: 1},
		RateLimiting: RateLimitingConfig{
			RatelimitThresholds: []RateThreshold{
				{PoppedThreshold: 1000, NewRate: 500},
				{PoppedThreshold: 10, NewRate: 9999},
			},
		},
	}
	assert.Error(t, cfg.Validate())
}
