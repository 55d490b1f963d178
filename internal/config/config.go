package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is constructed once
// per invocation and threaded as a parameter — no ambient global state.
type Config struct {
	AI        AIConfig        `yaml:"ai" mapstructure:"ai"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Interpret InterpretConfig `yaml:"interpret" mapstructure:"interpret"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Checklist ChecklistConfig `yaml:"checklist" mapstructure:"checklist"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AIConfig selects and credentials the AI provider. An unrecognized
// Provider value falls back to the OpenAI-compatible protocol.
type AIConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BatchConfig controls AI batching. Size 0 means one unbounded batch.
type BatchConfig struct {
	Size    int `yaml:"size" mapstructure:"size"`
	DelayMS int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// InterpretConfig controls the interpretation pipeline.
type InterpretConfig struct {
	// ConfidenceThreshold is an integer 0–100. Answers below it are
	// flagged for review.
	ConfidenceThreshold int `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
}

// ExtractConfig controls document extraction.
type ExtractConfig struct {
	ColumnCount int `yaml:"column_count" mapstructure:"column_count"`
	MaxDocChars int `yaml:"max_doc_chars" mapstructure:"max_doc_chars"`
}

// ChecklistConfig locates the quality requirement definitions.
type ChecklistConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StoreConfig configures the audit store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the run-trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and VPAT_-prefixed environment
// variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VPAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.max_tokens", 4096)
	v.SetDefault("batch.size", 10)
	v.SetDefault("batch.delay_ms", 1000)
	v.SetDefault("interpret.confidence_threshold", 70)
	v.SetDefault("extract.column_count", 3)
	v.SetDefault("extract.max_doc_chars", 20000)
	v.SetDefault("checklist.path", "checklist.yaml")
	v.SetDefault("store.path", "vpat.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks invariants that must hold before any remote call.
func (c *Config) Validate() error {
	if c.Interpret.ConfidenceThreshold < 0 || c.Interpret.ConfidenceThreshold > 100 {
		return eris.Errorf("config: confidence threshold %d outside 0-100", c.Interpret.ConfidenceThreshold)
	}
	if c.Extract.ColumnCount < 1 {
		return eris.Errorf("config: column count %d must be positive", c.Extract.ColumnCount)
	}
	if c.Batch.Size < 0 {
		return eris.Errorf("config: batch size %d must be >= 0", c.Batch.Size)
	}
	if c.Batch.DelayMS < 0 {
		return eris.Errorf("config: batch delay %dms must be >= 0", c.Batch.DelayMS)
	}
	return nil
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
