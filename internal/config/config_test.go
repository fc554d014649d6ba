package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	conf, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "binance", conf.Market.Exchange)
	assert.Equal(t, "BTCUSDT", conf.Market.Symbol)
	assert.Equal(t, "15m", conf.Market.Timeframe)
	assert.Equal(t, 500, conf.Market.Limit)
	assert.Equal(t, 100, conf.Sentiment.Limit)
	assert.Equal(t, 24, conf.Sentiment.WindowHours)
	assert.Equal(t, "gemini", conf.LLM.Provider)
	assert.Equal(t, "GEMINI_API_KEY", conf.LLM.APIKeyEnv)
	assert.Equal(t, ":8089", conf.Server.Addr)
	assert.NotEmpty(t, conf.Storage.CacheDir)

	require.Len(t, conf.Sentiment.Sources, 1)
	assert.Equal(t, "cryptopanic", conf.Sentiment.Sources[0].Name)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
market:
  symbol: ETHUSDT
  timeframe: 1h
  limit: 200
llm:
  provider: openai
  model: gpt-4o-mini
server:
  addr: ":9000"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", conf.Market.Symbol)
	assert.Equal(t, "1h", conf.Market.Timeframe)
	assert.Equal(t, 200, conf.Market.Limit)
	assert.Equal(t, "openai", conf.LLM.Provider)
	assert.Equal(t, "OPENAI_API_KEY", conf.LLM.APIKeyEnv, "openai provider should correct the key env")
	assert.Equal(t, ":9000", conf.Server.Addr)
	// 未覆盖的字段仍取默认值
	assert.Equal(t, "binance", conf.Market.Exchange)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MERLIN_SYMBOL", "SOLUSDT")
	t.Setenv("MERLIN_TIMEFRAME", "4h")
	t.Setenv("MERLIN_LLM_PROVIDER", "none")

	conf, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "SOLUSDT", conf.Market.Symbol)
	assert.Equal(t, "4h", conf.Market.Timeframe)
	assert.Equal(t, "none", conf.LLM.Provider)
}

func TestLoad_InvalidTimeframeRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("market:\n  timeframe: 7m\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoad_InvalidLimitRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("market:\n  limit: 5000\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestSqlitePath(t *testing.T) {
	conf := StorageConf{CacheDir: "/tmp/merlin"}
	assert.Equal(t, filepath.Join("/tmp/merlin", "merlin_cache.sqlite3"), conf.SqlitePath())
}
