package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Graph     GraphConfig     `yaml:"graph" mapstructure:"graph"`
	SAM       SAMConfig       `yaml:"sam" mapstructure:"sam"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Research  ResearchConfig  `yaml:"research" mapstructure:"research"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the relational contact database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GraphConfig configures the Neo4j graph store for research profiles.
type GraphConfig struct {
	URI      string `yaml:"uri" mapstructure:"uri"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// SAMConfig holds SAM.gov opportunities API settings.
type SAMConfig struct {
	Key          string   `yaml:"key" mapstructure:"key"`
	BaseURL      string   `yaml:"base_url" mapstructure:"base_url"`
	NAICS        []string `yaml:"naics" mapstructure:"naics"`
	PageSize     int      `yaml:"page_size" mapstructure:"page_size"`
	RatePerSec   float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	LookbackDays int      `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// AnthropicConfig holds Anthropic API settings for the research action.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	Model         string `yaml:"model" mapstructure:"model"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxSearchUses int    `yaml:"max_search_uses" mapstructure:"max_search_uses"`
}

// ResearchConfig configures the research orchestration engine.
type ResearchConfig struct {
	// ProfileStore selects where profiles are attached: "graph" or "relational".
	ProfileStore string `yaml:"profile_store" mapstructure:"profile_store"`

	FreshnessDays int     `yaml:"freshness_days" mapstructure:"freshness_days"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DelaySecs     float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
	MaxDelaySecs  float64 `yaml:"max_delay_secs" mapstructure:"max_delay_secs"`
	AbortAfter    int     `yaml:"abort_after" mapstructure:"abort_after"`
	CostPerCall   float64 `yaml:"cost_per_call" mapstructure:"cost_per_call"`

	LedgerPath string `yaml:"ledger_path" mapstructure:"ledger_path"`
	FocusPath  string `yaml:"focus_path" mapstructure:"focus_path"`
	SummaryDir string `yaml:"summary_dir" mapstructure:"summary_dir"`
}

// ServerConfig configures the status API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FEDRESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fedresearch.db")
	v.SetDefault("graph.uri", "")
	v.SetDefault("graph.username", "neo4j")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "neo4j")
	v.SetDefault("sam.key", "")
	v.SetDefault("sam.naics", []string{})
	v.SetDefault("anthropic.key", "")
	v.SetDefault("sam.base_url", "https://api.sam.gov/opportunities/v2/search")
	v.SetDefault("sam.page_size", 100)
	v.SetDefault("sam.rate_per_sec", 1.0)
	v.SetDefault("sam.lookback_days", 30)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.max_search_uses", 5)
	v.SetDefault("research.profile_store", "relational")
	v.SetDefault("research.freshness_days", 14)
	v.SetDefault("research.timeout_secs", 120)
	v.SetDefault("research.delay_secs", 2.0)
	v.SetDefault("research.max_delay_secs", 120.0)
	v.SetDefault("research.abort_after", 5)
	v.SetDefault("research.cost_per_call", 0.017)
	v.SetDefault("research.ledger_path", "research_ledger.json")
	v.SetDefault("research.focus_path", "")
	v.SetDefault("research.summary_dir", ".")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
