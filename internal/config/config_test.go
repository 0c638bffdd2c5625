package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickforge/internal/common"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validYAML = `
price_domain:
  floor: 1
  ceil: 1000
  tick: 1
band:
  kind: abs
  delta: 50
matching:
  self_match_policy: cancel_resting
  exec_id_mode: sharded
  exec_id_shift_bits: 20
  max_order_qty: 1000
arena:
  capacity: 1024
queues:
  inbound_capacity: 256
  outbound_capacity: 512
eviction:
  evict_after_ms: 60000
placement:
  hot_symbols: ["AAPL"]
  hot_pool_cpus: [0, 1]
  cold_pool_cpus: [2, 3]
  numa_binding: false
transport:
  address: "127.0.0.1"
  port: 9101
  n_workers: 4
  timeout: 5s
wal:
  dir: "./wal"
  max_buffered: 64
logging:
  level: info
  format: console
symbols:
  GME:
    band:
      kind: abs
      delta: 10
    max_order_qty: 500
`

func TestLoadAndValidateValidConfig(t *testing.T) {
	path := writeTempConfig(t, validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, int64(1), cfg.PriceDomain.Floor)
	assert.Equal(t, int64(1000), cfg.PriceDomain.Ceil)
	assert.True(t, cfg.IsHotSymbol("AAPL"))
	assert.False(t, cfg.IsHotSymbol("MSFT"))

	policy, err := cfg.SelfMatchPolicy()
	require.NoError(t, err)
	assert.Equal(t, common.CancelResting, policy)

	mode, err := cfg.ExecIDMode()
	require.NoError(t, err)
	assert.Equal(t, common.Sharded, mode)

	override, ok := cfg.Symbols["GME"]
	require.True(t, ok)
	require.NotNil(t, override.MaxOrderQty)
	assert.Equal(t, uint64(500), *override.MaxOrderQty)
}

func TestValidateRejectsBadTick(t *testing.T) {
	cfg := &Config{
		PriceDomain: PriceDomainConfig{Floor: 1, Ceil: 100, Tick: 0},
		Band:        BandConfig{Kind: "abs"},
		Arena:       ArenaConfig{Capacity: 1},
		Queues:      QueueConfig{InboundCapacity: 1, OutboundCapacity: 1},
		Eviction:    EvictionConfig{EvictAfterMS: 1},
	}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownBandKind(t *testing.T) {
	cfg := &Config{
		PriceDomain: PriceDomainConfig{Floor: 1, Ceil: 100, Tick: 1},
		Band:        BandConfig{Kind: "linear"},
		Arena:       ArenaConfig{Capacity: 1},
		Queues:      QueueConfig{InboundCapacity: 1, OutboundCapacity: 1},
		Eviction:    EvictionConfig{EvictAfterMS: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "band.kind")
}

func TestValidateRejectsUnknownSelfMatchPolicy(t *testing.T) {
	cfg := &Config{
		PriceDomain: PriceDomainConfig{Floor: 1, Ceil: 100, Tick: 1},
		Band:        BandConfig{Kind: "abs"},
		Matching:    MatchingConfig{SelfMatchPolicy: "explode"},
		Arena:       ArenaConfig{Capacity: 1},
		Queues:      QueueConfig{InboundCapacity: 1, OutboundCapacity: 1},
		Eviction:    EvictionConfig{EvictAfterMS: 1},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self_match_policy")
}

func TestSelfMatchPolicyDefaultsToSkip(t *testing.T) {
	cfg := &Config{}
	p, err := cfg.SelfMatchPolicy()
	require.NoError(t, err)
	assert.Equal(t, common.Skip, p)
}

func TestExecIDModeDefaultsToSharded(t *testing.T) {
	cfg := &Config{}
	m, err := cfg.ExecIDMode()
	require.NoError(t, err)
	assert.Equal(t, common.Sharded, m)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
