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
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Merge        MergeConfig        `yaml:"merge" mapstructure:"merge"`
	Vision       VisionConfig       `yaml:"vision" mapstructure:"vision"`
	Palette      PaletteConfig      `yaml:"palette" mapstructure:"palette"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// OrchestratorConfig controls extractor fan-out.
type OrchestratorConfig struct {
	MaxConcurrent   int                  `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	CallTimeoutSecs int                  `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker" mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig controls per-extractor fault isolation.
type CircuitBreakerConfig struct {
	FailureThreshold  int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	RecoveryTimeoutMs int `yaml:"recovery_timeout_ms" mapstructure:"recovery_timeout_ms"`
}

// MergeConfig holds the per-domain similarity thresholds and the shared
// confidence merge weight.
type MergeConfig struct {
	Weight            float64 `yaml:"weight" mapstructure:"weight"`
	ColorDeltaE       float64 `yaml:"color_delta_e" mapstructure:"color_delta_e"`
	SpacingTolerance  float64 `yaml:"spacing_tolerance" mapstructure:"spacing_tolerance"`
	ShadowDistance    float64 `yaml:"shadow_distance" mapstructure:"shadow_distance"`
	ShadowOpacityGate float64 `yaml:"shadow_opacity_gate" mapstructure:"shadow_opacity_gate"`
	FontSizeTolerance float64 `yaml:"font_size_tolerance" mapstructure:"font_size_tolerance"`
}

// VisionConfig holds the Anthropic vision extractor settings.
type VisionConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// PaletteConfig configures the built-in palette extractor.
type PaletteConfig struct {
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	MaxColors int  `yaml:"max_colors" mapstructure:"max_colors"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration is usable for the given run
// mode. All discovered problems are reported at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Orchestrator.MaxConcurrent < 1 || c.Orchestrator.MaxConcurrent > 64 {
		problems = append(problems, "orchestrator.max_concurrent must be between 1 and 64")
	}
	if c.Orchestrator.CircuitBreaker.FailureThreshold < 1 {
		problems = append(problems, "orchestrator.circuit_breaker.failure_threshold must be >= 1")
	}
	if c.Merge.Weight < 0 || c.Merge.Weight > 1 {
		problems = append(problems, "merge.weight must be between 0 and 1")
	}
	for name, v := range map[string]float64{
		"merge.color_delta_e":       c.Merge.ColorDeltaE,
		"merge.spacing_tolerance":   c.Merge.SpacingTolerance,
		"merge.shadow_distance":     c.Merge.ShadowDistance,
		"merge.shadow_opacity_gate": c.Merge.ShadowOpacityGate,
		"merge.font_size_tolerance": c.Merge.FontSizeTolerance,
	} {
		if v < 0 {
			problems = append(problems, name+" must be >= 0")
		}
	}

	switch mode {
	case "extract", "aggregate":
		// Both run extraction, so at least one extractor must be usable.
		if c.Vision.Key == "" && !c.Palette.Enabled {
			problems = append(problems, "vision.key is required when palette is disabled")
		}
	case "breakers":
		// State reporting works with whatever extractors are configured.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TOKENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("orchestrator.max_concurrent", 4)
	v.SetDefault("orchestrator.call_timeout_secs", 120)
	v.SetDefault("orchestrator.circuit_breaker.failure_threshold", 5)
	v.SetDefault("orchestrator.circuit_breaker.recovery_timeout_ms", 30000)
	v.SetDefault("merge.weight", 0.1)
	v.SetDefault("merge.color_delta_e", 2.0)
	v.SetDefault("merge.spacing_tolerance", 0.10)
	v.SetDefault("merge.shadow_distance", 5.0)
	v.SetDefault("merge.shadow_opacity_gate", 0.05)
	v.SetDefault("merge.font_size_tolerance", 3.0)
	v.SetDefault("vision.model", "claude-haiku-4-5-20251001")
	v.SetDefault("vision.max_tokens", 4096)
	v.SetDefault("vision.requests_per_minute", 30)
	v.SetDefault("palette.enabled", true)
	v.SetDefault("palette.max_colors", 6)

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
