package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultPath is where the config file is looked up when none is given.
const DefaultPath = "config/config.json"

// EnvPrefix namespaces environment overrides, e.g. WECHAT_EDITOR_LLM_API_KEY.
const EnvPrefix = "WECHAT_EDITOR"

// Config is the application configuration.
type Config struct {
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	ServerAddr string        `mapstructure:"server_addr"`
	LLM        LLMConfig     `mapstructure:"llm"`
	History    HistoryConfig `mapstructure:"history"`
}

// LLMConfig selects and configures the model backend.
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// HistoryConfig chooses where drafts are persisted.
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// HasWeChat reports whether publishing credentials are present.
func (c Config) HasWeChat() bool {
	return c.AppID != "" && c.AppSecret != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_id", "")
	v.SetDefault("app_secret", "")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("history.backend", "file")
	v.SetDefault("history.path", "data")
}

// Load reads the config file at path (if any), then applies environment
// overrides. A .env file in the working directory is loaded first. A
// missing file at DefaultPath is not an error; any other missing path is.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		case errors.Is(statErr, os.ErrNotExist) && path == DefaultPath:
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, statErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}
