package adapter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "QUIZDECK"

// Config holds all application configuration
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Deck    DeckConfig    `mapstructure:"deck"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CatalogConfig holds remote catalog configuration
type CatalogConfig struct {
	URL          string        `mapstructure:"url"`
	Token        string        `mapstructure:"token"`
	PageSize     int           `mapstructure:"page_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"` // 0 disables polling
	SeedDir      string        `mapstructure:"seed_dir"`      // Bundled .txt cards used when the remote is unreachable
}

// DeckConfig holds navigation preferences
type DeckConfig struct {
	BatchSize            int           `mapstructure:"batch_size"`
	MarkViewedOnBackward bool          `mapstructure:"mark_viewed_on_backward"`
	AutoAdvance          bool          `mapstructure:"auto_advance"`
	TransitionDelay      time.Duration `mapstructure:"transition_delay"`
}

// ChatConfig holds chat completion configuration
type ChatConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
	TopP        float32 `mapstructure:"top_p"`
	Instruction string  `mapstructure:"instruction"`
	Stream      bool    `mapstructure:"stream"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultInstruction is the system prompt sent ahead of every chat
const DefaultInstruction = "You are a patient tutor. The user is studying the question and answer below. " +
	"Answer follow-up questions concisely and stay on the topic of the card."

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			PageSize:     200,
			PollInterval: 10 * time.Minute,
		},
		Deck: DeckConfig{
			BatchSize:       200,
			TransitionDelay: 200 * time.Millisecond,
		},
		Chat: ChatConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.7,
			TopP:        0.95,
			Instruction: DefaultInstruction,
			Stream:      true,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "quizdeck", "quizdeck.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "quizdeck", "quizdeck.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "quizdeck")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "quizdeck")
	}
}

// setDefaults registers every key so env overrides apply to keys missing
// from the config file
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("catalog.url", cfg.Catalog.URL)
	v.SetDefault("catalog.token", cfg.Catalog.Token)
	v.SetDefault("catalog.page_size", cfg.Catalog.PageSize)
	v.SetDefault("catalog.poll_interval", cfg.Catalog.PollInterval)
	v.SetDefault("catalog.seed_dir", cfg.Catalog.SeedDir)

	v.SetDefault("deck.batch_size", cfg.Deck.BatchSize)
	v.SetDefault("deck.mark_viewed_on_backward", cfg.Deck.MarkViewedOnBackward)
	v.SetDefault("deck.transition_delay", cfg.Deck.TransitionDelay)
	v.SetDefault("deck.auto_advance", cfg.Deck.AutoAdvance)

	v.SetDefault("chat.base_url", cfg.Chat.BaseURL)
	v.SetDefault("chat.api_key", cfg.Chat.APIKey)
	v.SetDefault("chat.model", cfg.Chat.Model)
	v.SetDefault("chat.max_tokens", cfg.Chat.MaxTokens)
	v.SetDefault("chat.temperature", cfg.Chat.Temperature)
	v.SetDefault("chat.top_p", cfg.Chat.TopP)
	v.SetDefault("chat.instruction", cfg.Chat.Instruction)
	v.SetDefault("chat.stream", cfg.Chat.Stream)

	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
}

// LoadConfig loads configuration from file, .env and environment
func LoadConfig() (*Config, error) {
	// A missing .env is fine; real environment variables take precedence
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}
	return loadConfig(viper.GetViper(), defaultConfigPath(), ".")
}

func loadConfig(v *viper.Viper, paths ...string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable overrides, e.g. QUIZDECK_CHAT_API_KEY
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Catalog.PageSize <= 0 || c.Catalog.PageSize > 200 {
		c.Catalog.PageSize = 200
	}
	if c.Deck.BatchSize < 0 {
		c.Deck.BatchSize = 0
	}
	if c.Deck.TransitionDelay < 0 {
		c.Deck.TransitionDelay = 0
	}
	if c.Chat.Instruction == "" {
		c.Chat.Instruction = DefaultInstruction
	}
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	return saveConfig(viper.GetViper(), cfg, defaultConfigPath())
}

func saveConfig(v *viper.Viper, cfg *Config, configPath string) error {
	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	v.Set("catalog.url", cfg.Catalog.URL)
	v.Set("catalog.token", cfg.Catalog.Token)
	v.Set("catalog.page_size", cfg.Catalog.PageSize)
	v.Set("catalog.poll_interval", cfg.Catalog.PollInterval.String())
	v.Set("catalog.seed_dir", cfg.Catalog.SeedDir)

	v.Set("deck.batch_size", cfg.Deck.BatchSize)
	v.Set("deck.mark_viewed_on_backward", cfg.Deck.MarkViewedOnBackward)
	v.Set("deck.transition_delay", cfg.Deck.TransitionDelay.String())
	v.Set("deck.auto_advance", cfg.Deck.AutoAdvance)

	v.Set("chat.base_url", cfg.Chat.BaseURL)
	v.Set("chat.api_key", cfg.Chat.APIKey)
	v.Set("chat.model", cfg.Chat.Model)
	v.Set("chat.max_tokens", cfg.Chat.MaxTokens)
	v.Set("chat.temperature", cfg.Chat.Temperature)
	v.Set("chat.top_p", cfg.Chat.TopP)
	v.Set("chat.instruction", cfg.Chat.Instruction)
	v.Set("chat.stream", cfg.Chat.Stream)

	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsConfigured returns true if there is somewhere to load cards from
func (c *Config) IsConfigured() bool {
	return c.Catalog.URL != "" || c.Catalog.SeedDir != ""
}

// HasChat returns true if a chat API key is set
func (c *Config) HasChat() bool {
	return c.Chat.APIKey != ""
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "quizdeck", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "quizdeck", "cache")
	}
}

// ClearCache removes all cached data, including view and like progress
func ClearCache() error {
	cachePath := defaultCachePath()
	if err := os.RemoveAll(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetCachePath returns the cache directory path
func GetCachePath() string {
	return defaultCachePath()
}
