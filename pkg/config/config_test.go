package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Empty values fall through to the built-in defaults
	for _, key := range []string{
		"SERVER_PORT", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"BASE_CURRENCY", "RATE_REFRESH_HOURS", "RAG_K", "GEMINI_CALL_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, int32(2), cfg.Database.MinConns)
	assert.Equal(t, "USD", cfg.Currency.BaseCurrency)
	assert.Equal(t, 24*time.Hour, cfg.Currency.RefreshInterval)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, 60*time.Second, cfg.Gemini.CallTimeout)
}

func TestLoadPoolSizingFromEnv(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("DB_MIN_CONNS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.Equal(t, int32(5), cfg.Database.MinConns)
}

func TestGeminiKeyPoolSkipsEmptySlots(t *testing.T) {
	t.Setenv("GEMINI_API_KEY_1", "k1")
	t.Setenv("GEMINI_API_KEY_2", "")
	t.Setenv("GEMINI_API_KEY_3", "k3")
	t.Setenv("GEMINI_API_KEY", "fallback")

	assert.Equal(t, []string{"k1", "k3", "fallback"}, geminiKeyPool())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"USD", "JPY"}, splitList("USD, JPY"))
	assert.Equal(t, []string{"USD"}, splitList("USD,,"))
	assert.Nil(t, splitList(""))
}
