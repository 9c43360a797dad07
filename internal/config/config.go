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

// Package config loads and validates the TOML configuration that drives a
// crescendo run: account derivation, gas parameters, rate limiting, the
// producer/dispatcher core split, and reporter intervals.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/naoina/toml"
)

// tomlSettings matches TOML keys to Go struct field names ignoring case and
// underscores, so snake_case keys such as tx_gen_worker fill TxGenWorker.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return strings.ToLower(strings.ReplaceAll(key, "_", ""))
	},
	FieldToKey: func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// TxGenWorkerConfig parameterizes transaction construction: the signing
// domain, the account pool, gas pricing, the target contract, and the
// recipient-selection and amount-selection distributions.
type TxGenWorkerConfig struct {
	ChainID uint64

	Mnemonic    string
	NumAccounts uint32

	GasPrice uint64
	GasLimit uint64

	TokenContractAddress        string
	RecipientDistributionFactor uint32
	MaxTransferAmount           uint64

	BatchSize uint32
}

// NetworkWorkerConfig parameterizes the dispatcher pool: where batches are
// sent, how big each JSON-RPC batch is, and the backoff sleeps for errors
// and an empty queue.
type NetworkWorkerConfig struct {
	TargetURL        string
	TotalConnections uint64

	BatchFactor uint32

	ErrorSleepMs        uint64
	TxQueueEmptySleepMs uint64
}

// RateThreshold is one entry of an ascending popped-count escalation
// schedule; see txqueue.Threshold, which this is converted to at startup.
type RateThreshold struct {
	PoppedThreshold uint32
	NewRate         uint64
}

// RateLimitingConfig configures the token bucket's starting rate and its
// escalation schedule.
type RateLimitingConfig struct {
	InitialRatelimit    uint64
	RatelimitThresholds []RateThreshold
}

// WorkersConfig configures how available cores are split between producers
// and dispatchers, and whether worker threads pin themselves to a core.
type WorkersConfig struct {
	ThreadPinning           bool
	TxGenWorkerPercentage   float64
	NetworkWorkerPercentage float64
}

// ReportersConfig configures how often the two telemetry reporters print.
type ReportersConfig struct {
	TxQueueReportIntervalSecs       uint64
	NetworkStatsReportIntervalSecs uint64
}

// Config is the complete, validated configuration for one crescendo run.
type Config struct {
	TxGenWorker   TxGenWorkerConfig
	NetworkWorker NetworkWorkerConfig
	RateLimiting  RateLimitingConfig
	Workers       WorkersConfig
	Reporters     ReportersConfig
}

// Load reads and parses the TOML file at path, then, if overlayPath is
// non-empty, merges the overlay file's values on top: any key the overlay
// sets replaces the base's value for that key, recursing into nested
// tables and leaving base keys the overlay omits untouched.
func Load(path string, overlayPath string) (*Config, error) {
	base, err := decodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}

	if overlayPath != "" {
		overlay, err := decodeFile(overlayPath)
		if err != nil {
			return nil, fmt.Errorf("config: load overlay %s: %w", overlayPath, err)
		}
		base = mergeValues(base, overlay).(map[string]interface{})
	}

	var cfg Config
	if err := remarshal(base, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode merged config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decodeFile parses a TOML file into a generic value tree so it can be
// merged before the typed decode happens.
func decodeFile(path string) (map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw map[string]interface{}
	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&raw); err != nil {
		if _, ok := err.(*toml.LineError); ok {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	return raw, nil
}

// mergeValues merges overlay onto base: for two maps, it recurses key by
// key; for anything else, overlay replaces base outright. This mirrors a
// base-plus-overlay TOML merge with overlay precedence.
func mergeValues(base, overlay interface{}) interface{} {
	baseMap, baseIsMap := base.(map[string]interface{})
	overlayMap, overlayIsMap := overlay.(map[string]interface{})
	if !baseIsMap || !overlayIsMap {
		return overlay
	}
	merged := make(map[string]interface{}, len(baseMap))
	for k, v := range baseMap {
		merged[k] = v
	}
	for k, overlayVal := range overlayMap {
		if baseVal, ok := merged[k]; ok {
			merged[k] = mergeValues(baseVal, overlayVal)
		} else {
			merged[k] = overlayVal
		}
	}
	return merged
}

// remarshal round-trips a generic value tree through TOML text so it can be
// decoded into a concrete struct with the same field-matching rules used to
// read the original files.
func remarshal(raw map[string]interface{}, out *Config) error {
	text, err := tomlSettings.Marshal(raw)
	if err != nil {
		return err
	}
	return tomlSettings.NewDecoder(bytes.NewReader(text)).Decode(out)
}

// Validate rejects configurations that would make the rest of the core
// behave nonsensically. It is intentionally shallow: it only checks
// invariants this package can enforce without reaching into common.IsHexAddress
// or similar domain logic owned by other packages.
func (c *Config) Validate() error {
	if c.TxGenWorker.NumAccounts == 0 {
		return fmt.Errorf("config: tx_gen_worker.num_accounts must be > 0")
	}
	if c.TxGenWorker.BatchSize == 0 {
		return fmt.Errorf("config: tx_gen_worker.batch_size must be > 0")
	}
	if c.NetworkWorker.TargetURL == "" {
		return fmt.Errorf("config: network_worker.target_url must be set")
	}
	if c.NetworkWorker.BatchFactor == 0 {
		return fmt.Errorf("config: network_worker.batch_factor must be > 0")
	}
	if c.Workers.TxGenWorkerPercentage < 0 || c.Workers.NetworkWorkerPercentage < 0 {
		return fmt.Errorf("config: worker percentages must be non-negative")
	}
	sorted := c.RateLimiting.RatelimitThresholds
	for i := 1; i < len(sorted); i++ {
		if sorted[i].PoppedThreshold < sorted[i-1].PoppedThreshold {
			return fmt.Errorf("config: rate_limiting.ratelimit_thresholds must be sorted ascending by popped_threshold")
		}
	}
	return nil
}
