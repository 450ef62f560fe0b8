package flaxkv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{}.withDefaults()

	require.Equal(t, EngineMmapBTree, cfg.EngineKind)
	require.Equal(t, 100*time.Millisecond, cfg.FlushInterval)
	require.Equal(t, 1000, cfg.HighWaterMark)
	require.Equal(t, 5*time.Second, cfg.ShutdownGrace)
}

func TestConfig_WithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{
		EngineKind:    EngineLSM,
		FlushInterval: 7 * time.Second,
		HighWaterMark: 42,
		ShutdownGrace: time.Minute,
	}.withDefaults()

	require.Equal(t, EngineLSM, cfg.EngineKind)
	require.Equal(t, 7*time.Second, cfg.FlushInterval)
	require.Equal(t, 42, cfg.HighWaterMark)
	require.Equal(t, time.Minute, cfg.ShutdownGrace)
}

func TestConfig_NegativeOneDisablesTimerAndHighWater(t *testing.T) {
	cfg := Config{
		FlushInterval: -1,
		HighWaterMark: -1,
	}.withDefaults()

	require.Equal(t, time.Duration(0), cfg.FlushInterval)
	require.Equal(t, 0, cfg.HighWaterMark)
}

func TestEngineKind_String(t *testing.T) {
	require.Equal(t, "mmap_btree", EngineMmapBTree.String())
	require.Equal(t, "lsm", EngineLSM.String())
	require.Equal(t, "memory", EngineMemory.String())
	require.Equal(t, "unknown", EngineKind(99).String())
}
