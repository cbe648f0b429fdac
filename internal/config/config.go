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
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Title     TitleConfig     `yaml:"title" mapstructure:"title"`
	Synth     SynthConfig     `yaml:"synth" mapstructure:"synth"`
	Infer     InferConfig     `yaml:"infer" mapstructure:"infer"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FetchConfig configures source-file retrieval.
type FetchConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// IngestConfig configures ingestion behavior.
type IngestConfig struct {
	MaxConcurrentSources int `yaml:"max_concurrent_sources" mapstructure:"max_concurrent_sources"`
	ReviewGraceDays      int `yaml:"review_grace_days" mapstructure:"review_grace_days"`
}

// ResolveConfig configures entity resolution.
type ResolveConfig struct {
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
}

// TitleConfig configures title classification.
type TitleConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	RulesPath           string  `yaml:"rules_path" mapstructure:"rules_path"`
}

// SynthConfig configures archetype synthesis.
type SynthConfig struct {
	StaleAfterDays int `yaml:"stale_after_days" mapstructure:"stale_after_days"`
}

// InferConfig configures the inference models.
type InferConfig struct {
	Salary    SalaryConfig    `yaml:"salary" mapstructure:"salary"`
	Headcount HeadcountConfig `yaml:"headcount" mapstructure:"headcount"`
	Existence ExistenceConfig `yaml:"existence" mapstructure:"existence"`
}

// SalaryConfig holds gradient-boosting hyperparameters for the salary model.
type SalaryConfig struct {
	Trees        int     `yaml:"trees" mapstructure:"trees"`
	MaxDepth     int     `yaml:"max_depth" mapstructure:"max_depth"`
	MinLeaf      int     `yaml:"min_leaf" mapstructure:"min_leaf"`
	LearningRate float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
}

// HeadcountConfig configures the headcount allocator.
type HeadcountConfig struct {
	TemplateMinCompanies int `yaml:"template_min_companies" mapstructure:"template_min_companies"`
}

// ExistenceConfig configures the archetype-existence classifier.
type ExistenceConfig struct {
	Trees                 int     `yaml:"trees" mapstructure:"trees"`
	MaxDepth              int     `yaml:"max_depth" mapstructure:"max_depth"`
	MinLeaf               int     `yaml:"min_leaf" mapstructure:"min_leaf"`
	LearningRate          float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
	NegativeRatio         float64 `yaml:"negative_ratio" mapstructure:"negative_ratio"`
	Threshold             float64 `yaml:"threshold" mapstructure:"threshold"`
	StratifyByCompanySize bool    `yaml:"stratify_by_company_size" mapstructure:"stratify_by_company_size"`
	Seed                  int64   `yaml:"seed" mapstructure:"seed"`
}

// ServerConfig configures the read-only archetype query server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "labor-atlas.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("fetch.user_agent", "labor-atlas/1.0")
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.temp_dir", "/tmp/labor-atlas")
	v.SetDefault("ingest.max_concurrent_sources", 4)
	v.SetDefault("ingest.review_grace_days", 14)
	v.SetDefault("resolve.fuzzy_threshold", 0.88)
	v.SetDefault("title.confidence_threshold", 0.5)
	v.SetDefault("synth.stale_after_days", 365)
	v.SetDefault("infer.salary.trees", 200)
	v.SetDefault("infer.salary.max_depth", 4)
	v.SetDefault("infer.salary.min_leaf", 5)
	v.SetDefault("infer.salary.learning_rate", 0.05)
	v.SetDefault("infer.headcount.template_min_companies", 50)
	v.SetDefault("infer.existence.trees", 150)
	v.SetDefault("infer.existence.max_depth", 3)
	v.SetDefault("infer.existence.min_leaf", 10)
	v.SetDefault("infer.existence.learning_rate", 0.1)
	v.SetDefault("infer.existence.negative_ratio", 2.0)
	v.SetDefault("infer.existence.threshold", 0.5)
	v.SetDefault("infer.existence.stratify_by_company_size", false)
	v.SetDefault("infer.existence.seed", 42)
	v.SetDefault("server.port", 8080)

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
