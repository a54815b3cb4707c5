package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("RUN_MODE", "")
	t.Setenv("MONITORED_WALLETS", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, RunModeMock, cfg.RunMode)
	assert.False(t, cfg.AutoExecute)
	assert.Equal(t, 0.15, cfg.Params.VolatilityThreshold)
	assert.Equal(t, 15*time.Minute, cfg.Params.BackgroundInterval)
	assert.Equal(t, 15*time.Second, cfg.Params.DashboardInterval)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.False(t, cfg.DB.Enabled())
	assert.Equal(t, "dlmm:rebalance-events", cfg.Endpoints.RedisChannel)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("MONITORED_WALLETS", testWallet+", "+testWallet)
	t.Setenv("AUTO_REBALANCE_ENABLED", "true")
	t.Setenv("VOLATILITY_THRESHOLD", "0.2")
	t.Setenv("REBALANCE_INTERVAL", "300")
	t.Setenv("DASHBOARD_INTERVAL", "30s")
	t.Setenv("DB_HOST", "localhost")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{testWallet, testWallet}, cfg.MonitoredWallets)
	assert.True(t, cfg.AutoExecute)
	assert.Equal(t, 0.2, cfg.Params.VolatilityThreshold)
	assert.Equal(t, 5*time.Minute, cfg.Params.BackgroundInterval)
	assert.Equal(t, 30*time.Second, cfg.Params.DashboardInterval)
	assert.True(t, cfg.DB.Enabled())
	assert.Equal(t, 0.15, DefaultRebalanceParameters.VolatilityThreshold, "defaults must not be mutated")
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad mode", map[string]string{"RUN_MODE": "paper"}},
		{"bad wallet", map[string]string{"MONITORED_WALLETS": "not-a-key"}},
		{"bad bool", map[string]string{"AUTO_REBALANCE_ENABLED": "maybe"}},
		{"bad threshold", map[string]string{"VOLATILITY_THRESHOLD": "-1"}},
		{"bad interval", map[string]string{"REBALANCE_INTERVAL": "soon"}},
		{"live without endpoints", map[string]string{"RUN_MODE": "live", "INDEXER_API": "", "EXECUTOR_API": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a ,, b ,"))
}
