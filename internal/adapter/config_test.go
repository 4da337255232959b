package adapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Catalog.PageSize)
	assert.Equal(t, 200, cfg.Deck.BatchSize)
	assert.Equal(t, 200*time.Millisecond, cfg.Deck.TransitionDelay)
	assert.False(t, cfg.Deck.MarkViewedOnBackward)
	assert.False(t, cfg.Deck.AutoAdvance)
	assert.Equal(t, DefaultInstruction, cfg.Chat.Instruction)
	assert.True(t, cfg.Chat.Stream)
	assert.False(t, cfg.IsConfigured())
	assert.False(t, cfg.HasChat())
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `catalog:
  url: https://cards.example.com/api
  page_size: 500
  poll_interval: 30s
deck:
  batch_size: 50
  mark_viewed_on_backward: true
  transition_delay: 150ms
  auto_advance: true
chat:
  model: local-model
  stream: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("QUIZDECK_CHAT_API_KEY", "sk-test")
	t.Setenv("QUIZDECK_LOGGING_LEVEL", "debug")

	cfg, err := loadConfig(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, "https://cards.example.com/api", cfg.Catalog.URL)
	assert.Equal(t, 200, cfg.Catalog.PageSize, "page size is capped")
	assert.Equal(t, 30*time.Second, cfg.Catalog.PollInterval)
	assert.Equal(t, 50, cfg.Deck.BatchSize)
	assert.True(t, cfg.Deck.MarkViewedOnBackward)
	assert.Equal(t, 150*time.Millisecond, cfg.Deck.TransitionDelay)
	assert.True(t, cfg.Deck.AutoAdvance)
	assert.Equal(t, "local-model", cfg.Chat.Model)
	assert.False(t, cfg.Chat.Stream)
	assert.Equal(t, "sk-test", cfg.Chat.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.IsConfigured())
	assert.True(t, cfg.HasChat())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Catalog.SeedDir = "/usr/share/quizdeck"
	cfg.Deck.BatchSize = 25
	cfg.Chat.APIKey = "sk-saved"

	require.NoError(t, saveConfig(viper.New(), cfg, dir))

	loaded, err := loadConfig(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "/usr/share/quizdeck", loaded.Catalog.SeedDir)
	assert.Equal(t, 25, loaded.Deck.BatchSize)
	assert.Equal(t, "sk-saved", loaded.Chat.APIKey)
	assert.Equal(t, cfg.Catalog.PollInterval, loaded.Catalog.PollInterval)
	assert.True(t, loaded.IsConfigured())
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"Error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestJSONLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown", "index", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "quizdeck", entry["app"])
	assert.EqualValues(t, 4, entry["index"])
}

func TestSetupLogger_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "quizdeck.log")
	logger, closeFn, err := SetupLogger(&LoggingConfig{File: path, Level: "info"})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
