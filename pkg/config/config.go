package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/biodoia/goarcanea/pkg/database"
	"github.com/biodoia/goarcanea/pkg/resilience"
	"github.com/spf13/viper"
)

// EnvPrefix è il prefisso delle variabili d'ambiente di override
const EnvPrefix = "ARCANEA"

// Tipi di provider supportati
const (
	ProviderTypeAnthropic = "anthropic"
	ProviderTypeOpenAI    = "openai"
	ProviderTypeCompat    = "compat"
	ProviderTypeEcho      = "echo"
)

// Config rappresenta la configurazione completa dell'applicazione
type Config struct {
	Database   database.Config  `yaml:"database" mapstructure:"database"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Workflows  WorkflowsConfig  `yaml:"workflows" mapstructure:"workflows"`
	Routing    RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Providers  []ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// RedisConfig configurazione Redis
type RedisConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// RegistryConfig configurazione del catalogo agenti.
// Source vuoto significa catalogo incorporato nel binario.
type RegistryConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
}

// WorkflowsConfig configurazione del motore di workflow
type WorkflowsConfig struct {
	Catalog     string `yaml:"catalog" mapstructure:"catalog"`
	MaxParallel int    `yaml:"max_parallel" mapstructure:"max_parallel"`
	Persist     bool   `yaml:"persist" mapstructure:"persist"`
}

// RoutingConfig configurazione del router AI
type RoutingConfig struct {
	DefaultProvider string                 `yaml:"default_provider" mapstructure:"default_provider"`
	Rules           []RoutingRule          `yaml:"rules" mapstructure:"rules"`
	Fallbacks       map[string][]string    `yaml:"fallbacks" mapstructure:"fallbacks"`
	Timeout         time.Duration          `yaml:"timeout" mapstructure:"timeout"`
	Retry           resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
	RetryPreset     string                 `yaml:"retry_preset" mapstructure:"retry_preset"` // fast, standard, persistent: sostituisce retry
	Cache           CacheConfig            `yaml:"cache" mapstructure:"cache"`
}

// RoutingRule associa un gruppo di agenti a un provider.
// Tutti i criteri valorizzati devono corrispondere.
type RoutingRule struct {
	Name         string   `yaml:"name" mapstructure:"name"`
	Provider     string   `yaml:"provider" mapstructure:"provider"`
	Agents       []string `yaml:"agents" mapstructure:"agents"`
	Courts       []string `yaml:"courts" mapstructure:"courts"`
	Elements     []string `yaml:"elements" mapstructure:"elements"`
	Keywords     []string `yaml:"keywords" mapstructure:"keywords"`
	MinFrequency float64  `yaml:"min_frequency" mapstructure:"min_frequency"`
	MaxFrequency float64  `yaml:"max_frequency" mapstructure:"max_frequency"`
}

// CacheConfig configurazione della cache delle risposte
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL        time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MaxEntries int           `yaml:"max_entries" mapstructure:"max_entries"`
	Redis      bool          `yaml:"redis" mapstructure:"redis"`
}

// ProviderConfig configurazione di un backend di generazione
type ProviderConfig struct {
	Name      string  `yaml:"name" mapstructure:"name"`
	Type      string  `yaml:"type" mapstructure:"type"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	APIKeyEnv string  `yaml:"api_key_env" mapstructure:"api_key_env"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // richieste al secondo, 0 = illimitato
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// ResolveAPIKey restituisce la chiave esplicita o quella letta dall'ambiente
func (p ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// MonitoringConfig configurazione monitoring
type MonitoringConfig struct {
	Logging struct {
		Level  string `yaml:"level" mapstructure:"level"`
		Format string `yaml:"format" mapstructure:"format"`
	} `yaml:"logging" mapstructure:"logging"`
}

// Load carica la configurazione da file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Read environment variables (ARCANEA_ROUTING_DEFAULT_PROVIDER, ...)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	if cfg.Routing.RetryPreset != "" {
		if preset, ok := resilience.RetryPreset(cfg.Routing.RetryPreset); ok {
			cfg.Routing.Retry = preset
		}
	}

	return &cfg, nil
}

// setDefaults imposta i valori di default
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.connection", "./data/arcanea.db")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.log_level", "warn")

	// Redis defaults
	v.SetDefault("redis.host", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Registry / workflows defaults
	v.SetDefault("registry.source", "")
	v.SetDefault("workflows.catalog", "")
	v.SetDefault("workflows.max_parallel", 0)
	v.SetDefault("workflows.persist", true)

	// Routing defaults
	retry := resilience.DefaultRetryConfig()
	v.SetDefault("routing.default_provider", "echo")
	v.SetDefault("routing.timeout", 60*time.Second)
	v.SetDefault("routing.retry.max_retries", retry.MaxRetries)
	v.SetDefault("routing.retry.initial_backoff", retry.InitialBackoff)
	v.SetDefault("routing.retry.max_backoff", retry.MaxBackoff)
	v.SetDefault("routing.retry.backoff_multiplier", retry.BackoffMultiplier)
	v.SetDefault("routing.retry.jitter", retry.Jitter)
	v.SetDefault("routing.retry.jitter_fraction", retry.JitterFraction)
	v.SetDefault("routing.cache.enabled", false)
	v.SetDefault("routing.cache.ttl", 30*time.Minute)
	v.SetDefault("routing.cache.max_entries", 1000)
	v.SetDefault("routing.cache.redis", false)

	// Monitoring defaults
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
}

// DefaultProviders restituisce i provider usati quando il file non ne dichiara
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			Name:      "anthropic",
			Type:      ProviderTypeAnthropic,
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 4096,
		},
		{
			Name:      "openai",
			Type:      ProviderTypeOpenAI,
			APIKeyEnv: "OPENAI_API_KEY",
			Model:     "gpt-4o-mini",
		},
		{
			Name: "echo",
			Type: ProviderTypeEcho,
		},
	}
}

// Provider cerca un provider per nome
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// Validate valida la configurazione
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database type: %s", c.Database.Type)
	}

	if c.Workflows.MaxParallel < 0 {
		return fmt.Errorf("invalid workflows.max_parallel: %d", c.Workflows.MaxParallel)
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider #%d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider: %s", p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case ProviderTypeAnthropic, ProviderTypeOpenAI, ProviderTypeEcho:
		case ProviderTypeCompat:
			if p.BaseURL == "" {
				return fmt.Errorf("provider %s: base_url is required for compat providers", p.Name)
			}
		default:
			return fmt.Errorf("provider %s: unsupported type %q", p.Name, p.Type)
		}

		if p.RateLimit < 0 {
			return fmt.Errorf("provider %s: invalid rate_limit %v", p.Name, p.RateLimit)
		}
	}

	if c.Routing.DefaultProvider == "" {
		return fmt.Errorf("routing.default_provider is required")
	}
	if !seen[c.Routing.DefaultProvider] {
		return fmt.Errorf("routing.default_provider references unknown provider: %s", c.Routing.DefaultProvider)
	}
	if c.Routing.Timeout <= 0 {
		return fmt.Errorf("invalid routing.timeout: %s", c.Routing.Timeout)
	}
	if c.Routing.RetryPreset != "" {
		if _, ok := resilience.RetryPreset(c.Routing.RetryPreset); !ok {
			return fmt.Errorf("unknown routing.retry_preset: %s", c.Routing.RetryPreset)
		}
	}
	if c.Routing.Retry.MaxRetries < 0 {
		return fmt.Errorf("invalid routing.retry.max_retries: %d", c.Routing.Retry.MaxRetries)
	}

	for i, r := range c.Routing.Rules {
		if !seen[r.Provider] {
			return fmt.Errorf("routing rule #%d (%s) references unknown provider: %s", i, r.Name, r.Provider)
		}
		if r.MaxFrequency > 0 && r.MinFrequency > r.MaxFrequency {
			return fmt.Errorf("routing rule #%d (%s): min_frequency > max_frequency", i, r.Name)
		}
	}

	for primary, chain := range c.Routing.Fallbacks {
		if !seen[primary] {
			return fmt.Errorf("fallback chain for unknown provider: %s", primary)
		}
		for _, name := range chain {
			if !seen[name] {
				return fmt.Errorf("fallback chain for %s references unknown provider: %s", primary, name)
			}
		}
	}

	return nil
}
