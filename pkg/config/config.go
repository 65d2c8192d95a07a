package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig                 `mapstructure:"app"`
	Provider   string                    `mapstructure:"provider"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Agent      AgentConfig               `mapstructure:"agent"`
	Index      IndexConfig               `mapstructure:"index"`
	Server     ServerConfig              `mapstructure:"server"`
	Governance GovernanceConfig          `mapstructure:"governance"`
	Gateways   map[string]GatewayConfig  `mapstructure:"gateways"`
	Log        LogConfig                 `mapstructure:"log"`
	Prompts    PromptsConfig             `mapstructure:"prompts"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	Workspace string `mapstructure:"workspace"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	Enabled bool   `mapstructure:"enabled"`
}

type AgentConfig struct {
	Role         string        `mapstructure:"role"`
	MaxTurns     int           `mapstructure:"max_turns"`
	HistoryCap   int           `mapstructure:"history_cap"`
	Temperature  float64       `mapstructure:"temperature"`
	ShellTimeout time.Duration `mapstructure:"shell_timeout"`
}

// IndexConfig points at the optional pre-built document index used by the
// retrieval tool.
type IndexConfig struct {
	Path           string `mapstructure:"path"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	ChunkSize      int    `mapstructure:"chunk_size"`
	ChunkOverlap   int    `mapstructure:"chunk_overlap"`
	TopK           int    `mapstructure:"top_k"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
}

// GovernanceConfig feeds the tool policy. Protected files may be read but
// never overwritten by write tools.
type GovernanceConfig struct {
	DenyTools      []string `mapstructure:"deny_tools"`
	DenyPatterns   []string `mapstructure:"deny_patterns"`
	ProtectedFiles []string `mapstructure:"protected_files"`
}

type GatewayConfig struct {
	Token   string `mapstructure:"token"`
	ChatID  string `mapstructure:"chat_id"`
	Channel string `mapstructure:"channel_id"`
	Enabled bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	LLMLogPath string `mapstructure:"llm_log_path"`
}

type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load reads configuration from path (or sentinel.{yaml,json} in the working
// directory when path is empty), the environment and a local .env file.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sentinel")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	for name, p := range cfg.Providers {
		p.APIKey = os.ExpandEnv(p.APIKey)
		cfg.Providers[name] = p
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "sentinel")
	v.SetDefault("app.workspace", ".")

	v.SetDefault("provider", "googleai")
	v.SetDefault("providers.googleai.enabled", true)
	v.SetDefault("providers.googleai.model", "gemini-2.0-flash")
	v.SetDefault("providers.googleai.api_key", "")

	v.SetDefault("agent.role", "Senior DevOps Engineer")
	v.SetDefault("agent.max_turns", 15)
	v.SetDefault("agent.history_cap", 0)
	v.SetDefault("agent.temperature", 0.0)
	v.SetDefault("agent.shell_timeout", "5m")

	v.SetDefault("index.path", "index/sentinel.db")
	v.SetDefault("index.embedding_model", "text-embedding-004")
	v.SetDefault("index.chunk_size", 1500)
	v.SetDefault("index.chunk_overlap", 350)
	v.SetDefault("index.top_k", 4)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.run_timeout", "10m")

	v.SetDefault("governance.protected_files", []string{"original.tf", "logs.json"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.llm_log_path", "logs/llm.jsonl")
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("providers.googleai.api_key", "GOOGLE_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("provider", "SENTINEL_PROVIDER")
	_ = v.BindEnv("index.path", "SENTINEL_INDEX_PATH")
	_ = v.BindEnv("gateways.telegram.token", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("gateways.discord.token", "DISCORD_BOT_TOKEN")

	// The model selector applies to whichever provider is active.
	if model := os.Getenv("SENTINEL_MODEL"); model != "" {
		v.Set("providers."+v.GetString("provider")+".model", model)
	}
}

// GetDefaultProvider returns the selected provider when it is enabled,
// otherwise the first enabled provider in name order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	if p, ok := c.Providers[c.Provider]; ok && p.Enabled {
		return c.Provider, p
	}

	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if p := c.Providers[name]; p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetGateway returns the named gateway config if it is enabled and has a token.
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	gw, ok := c.Gateways[name]
	if ok && gw.Enabled && gw.Token != "" {
		return gw, true
	}
	return GatewayConfig{}, false
}
