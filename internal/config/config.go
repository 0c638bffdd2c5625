// Package config loads and validates tickforge's engine configuration,
// grounded on 0xtitan6-polymarket-mm's internal/config/config.go: YAML via
// github.com/spf13/viper, mapstructure-tagged structs, a Load/Validate
// split. Covers every item in spec.md §6's Configuration list plus the
// transport/WAL/logging settings a real deployment needs.
package config

import (
	"fmt"
	"strings"
	"time"

	"tickforge/internal/common"

	"github.com/spf13/viper"
)

// Config is the top-level configuration, one instance shared by every
// symbol the coordinator spawns (per-symbol overrides are a SymbolConfig
// layered on top, see Symbols below).
type Config struct {
	PriceDomain PriceDomainConfig `mapstructure:"price_domain"`
	Band        BandConfig        `mapstructure:"band"`
	Matching    MatchingConfig    `mapstructure:"matching"`
	Arena       ArenaConfig       `mapstructure:"arena"`
	Queues      QueueConfig       `mapstructure:"queues"`
	Eviction    EvictionConfig    `mapstructure:"eviction"`
	Placement   PlacementConfig   `mapstructure:"placement"`
	Transport   TransportConfig   `mapstructure:"transport"`
	WAL         WALConfig         `mapstructure:"wal"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Symbols     map[string]SymbolOverride `mapstructure:"symbols"`
}

// PriceDomainConfig mirrors priced.Domain's constructor arguments.
type PriceDomainConfig struct {
	Floor int64 `mapstructure:"floor"`
	Ceil  int64 `mapstructure:"ceil"`
	Tick  int64 `mapstructure:"tick"`
}

// BandConfig selects Abs or Percent; exactly one of Delta/Bps is read,
// chosen by Kind (spec.md §6 `band: Abs(u64) | Percent(bps)`).
type BandConfig struct {
	Kind  string `mapstructure:"kind"` // "abs" | "percent"
	Delta int64  `mapstructure:"delta"`
	Bps   int64  `mapstructure:"bps"`
}

// MatchingConfig covers self_match_policy and exec_id_mode.
type MatchingConfig struct {
	SelfMatchPolicy string `mapstructure:"self_match_policy"` // "skip" | "cancel_resting" | "cancel_aggressor"
	ExecIDMode      string `mapstructure:"exec_id_mode"`      // "sharded" | "external"
	ExecIDShiftBits uint   `mapstructure:"exec_id_shift_bits"`
	MaxOrderQty     uint64 `mapstructure:"max_order_qty"`
}

// ArenaConfig covers arena_capacity.
type ArenaConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// QueueConfig covers inbound/outbound_queue_capacity.
type QueueConfig struct {
	InboundCapacity  int `mapstructure:"inbound_capacity"`
	OutboundCapacity int `mapstructure:"outbound_capacity"`
}

// EvictionConfig covers evict_after_ms.
type EvictionConfig struct {
	EvictAfterMS int64 `mapstructure:"evict_after_ms"`
}

// PlacementConfig covers placement.{hot_symbols, hot_pool_cpus,
// cold_pool_cpus, numa_binding}.
type PlacementConfig struct {
	HotSymbols   []string `mapstructure:"hot_symbols"`
	HotPoolCPUs  []int    `mapstructure:"hot_pool_cpus"`
	ColdPoolCPUs []int    `mapstructure:"cold_pool_cpus"`
	NUMABinding  bool     `mapstructure:"numa_binding"`
}

// TransportConfig configures the wire-protocol TCP server (not named in
// spec.md §6, which treats transport as external; enumerated here per
// SPEC_FULL.md's domain stack expansion).
type TransportConfig struct {
	Address  string        `mapstructure:"address"`
	Port     int           `mapstructure:"port"`
	NWorkers int           `mapstructure:"n_workers"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WALConfig configures the lossless write-ahead-log sink.
type WALConfig struct {
	Dir         string `mapstructure:"dir"`
	MaxBuffered int    `mapstructure:"max_buffered"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SymbolOverride lets individual symbols diverge from the global defaults
// above (e.g. a tighter band, a bigger arena) without a config file per
// symbol.
type SymbolOverride struct {
	PriceDomain *PriceDomainConfig `mapstructure:"price_domain"`
	Band        *BandConfig        `mapstructure:"band"`
	MaxOrderQty *uint64            `mapstructure:"max_order_qty"`
}

// Load reads config from a YAML file via viper.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	// viper lower-cases map keys; restore upper-case symbol names so
	// Symbols can be indexed by the symbol as clients send it.
	if len(cfg.Symbols) > 0 {
		symbols := make(map[string]SymbolOverride, len(cfg.Symbols))
		for name, o := range cfg.Symbols {
			symbols[strings.ToUpper(name)] = o
		}
		cfg.Symbols = symbols
	}
	return &cfg, nil
}

// Validate checks every field spec.md §6 requires to be present and sane.
func (c *Config) Validate() error {
	if c.PriceDomain.Tick <= 0 {
		return fmt.Errorf("price_domain.tick must be positive")
	}
	if c.PriceDomain.Ceil < c.PriceDomain.Floor {
		return fmt.Errorf("price_domain.ceil must be >= price_domain.floor")
	}
	switch c.Band.Kind {
	case "abs":
		if c.Band.Delta < 0 {
			return fmt.Errorf("band.delta must be >= 0")
		}
	case "percent":
		if c.Band.Bps < 0 {
			return fmt.Errorf("band.bps must be >= 0")
		}
	default:
		return fmt.Errorf("band.kind must be \"abs\" or \"percent\", got %q", c.Band.Kind)
	}
	if _, err := c.SelfMatchPolicy(); err != nil {
		return err
	}
	if _, err := c.ExecIDMode(); err != nil {
		return err
	}
	if c.Arena.Capacity <= 0 {
		return fmt.Errorf("arena.capacity must be positive")
	}
	if c.Queues.InboundCapacity <= 0 {
		return fmt.Errorf("queues.inbound_capacity must be positive")
	}
	if c.Queues.OutboundCapacity <= 0 {
		return fmt.Errorf("queues.outbound_capacity must be positive")
	}
	if c.Eviction.EvictAfterMS <= 0 {
		return fmt.Errorf("eviction.evict_after_ms must be positive")
	}
	return nil
}

// SelfMatchPolicy parses matching.self_match_policy into the common enum.
func (c *Config) SelfMatchPolicy() (common.SelfMatchPolicy, error) {
	switch c.Matching.SelfMatchPolicy {
	case "", "skip":
		return common.Skip, nil
	case "cancel_resting":
		return common.CancelResting, nil
	case "cancel_aggressor":
		return common.CancelAggressor, nil
	default:
		return 0, fmt.Errorf("matching.self_match_policy: unknown value %q", c.Matching.SelfMatchPolicy)
	}
}

// ExecIDMode parses matching.exec_id_mode into the common enum.
func (c *Config) ExecIDMode() (common.ExecIDMode, error) {
	switch c.Matching.ExecIDMode {
	case "", "sharded":
		return common.Sharded, nil
	case "external":
		return common.External, nil
	default:
		return 0, fmt.Errorf("matching.exec_id_mode: unknown value %q", c.Matching.ExecIDMode)
	}
}

// IsHotSymbol reports whether symbol is in the configured hot set (spec.md
// §4.6 "Hot symbols (by configurable classification)").
func (c *Config) IsHotSymbol(symbol string) bool {
	for _, s := range c.Placement.HotSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}
