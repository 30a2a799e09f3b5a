package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, 10, GetInt("send_max_attempts"))
	assert.Equal(t, time.Second, GetDuration("tick_interval"))
	assert.Equal(t, "USDC", GetString("quote_asset"))
}

func TestGetList(t *testing.T) {
	t.Setenv("INSTRUMENTS", " BTC, ,ETH,USDC ")
	assert.Equal(t, []string{"BTC", "ETH", "USDC"}, GetList("instruments"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kafka_group: evaluators\n"), 0o600))

	require.NoError(t, LoadFile(path))
	assert.Equal(t, "evaluators", GetString("kafka_group"))

	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}
