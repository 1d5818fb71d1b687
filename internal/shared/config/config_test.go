package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SERVICE_NAME", "casino-service")

	cfg := Load()

	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.Equal(t, "9099", cfg.MetricsPort)
	assert.Equal(t, "bet_resolved", cfg.TopicBetResolved)
	assert.Equal(t, 3*time.Second, cfg.ChainBlockPeriod)
	assert.Equal(t, int64(100), cfg.BetFeeCents)

	p, err := cfg.LedgerParams()
	require.NoError(t, err)
	assert.Equal(t, "1.95", p.PayoutMultiplier.String())
	assert.Equal(t, uint64(2), p.WinOdds)
	assert.Equal(t, int64(100_000_000), p.MaxStake)
	assert.Equal(t, uint64(10_000), p.MaxRoundAhead)
}

func TestLoadOverridesAndDotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("BET_FEE_CENTS=250\nWIN_ODDS=4\n"), 0o600))

	t.Setenv("ENV_FILE", envFile)
	t.Setenv("SERVICE_NAME", "resolver-keeper")
	t.Setenv("BET_FEE_CENTS", "10") // exportada vence o .env
	t.Setenv("CHAIN_BLOCK_PERIOD", "500ms")
	t.Setenv("PAYOUT_MULTIPLIER", "3.8")
	t.Cleanup(func() { os.Unsetenv("WIN_ODDS") })

	cfg := Load()

	assert.Equal(t, int64(10), cfg.BetFeeCents)
	assert.Equal(t, uint64(4), cfg.WinOdds)
	assert.Equal(t, 500*time.Millisecond, cfg.ChainBlockPeriod)
	assert.Equal(t, "", cfg.HTTPPort)
	assert.Equal(t, "9097", cfg.MetricsPort)
	assert.False(t, cfg.BeaconMirrorRedis)

	p, err := cfg.LedgerParams()
	require.NoError(t, err)
	payout, err := p.Payout(100)
	require.NoError(t, err)
	assert.Equal(t, int64(380), payout)
}

func TestLedgerParamsRejectsBadMultiplier(t *testing.T) {
	cfg := Config{BetFeeCents: 1, WinOdds: 2, RoundOffset: 1, PayoutMultiplier: "abc"}
	_, err := cfg.LedgerParams()
	assert.Error(t, err)

	cfg.PayoutMultiplier = "0"
	_, err = cfg.LedgerParams()
	assert.Error(t, err)
}

func TestLoadBeaconSimulator(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("SERVICE_NAME", "beacon-simulator")
	t.Setenv("BEACON_MIRROR_REDIS", "true")
	t.Setenv("BEACON_PERIOD", "1s")

	cfg := Load()

	assert.Equal(t, "8090", cfg.HTTPPort)
	assert.Equal(t, "9098", cfg.MetricsPort)
	assert.True(t, cfg.BeaconMirrorRedis)
	assert.Equal(t, time.Second, cfg.BeaconPeriod)
	assert.Equal(t, "local-beacon", cfg.BeaconSeed)
}
