// Package config loads memscope configuration from defaults, an optional
// YAML file and MEMSCOPE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level memscope configuration.
type Config struct {
	DBPath     string           `mapstructure:"db_path" yaml:"db_path"`
	Store      string           `mapstructure:"store" yaml:"store"`
	Chunk      ChunkConfig      `mapstructure:"chunk" yaml:"chunk"`
	Search     SearchConfig     `mapstructure:"search" yaml:"search"`
	Compaction CompactionConfig `mapstructure:"compaction" yaml:"compaction"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding" yaml:"embedding"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// ChunkConfig controls ingestion chunking. Sizes are in characters.
type ChunkConfig struct {
	Size      int    `mapstructure:"size" yaml:"size"`
	Overlap   int    `mapstructure:"overlap" yaml:"overlap"`
	Separator string `mapstructure:"separator" yaml:"separator"`
}

// SearchConfig controls query defaults.
type SearchConfig struct {
	Scorer    string  `mapstructure:"scorer" yaml:"scorer"`
	Limit     int     `mapstructure:"limit" yaml:"limit"`
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
}

// CompactionConfig controls per-scope summarisation.
type CompactionConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Frequency  int    `mapstructure:"frequency" yaml:"frequency"`
	MaxChars   int    `mapstructure:"max_chars" yaml:"max_chars"`
	Replace    bool   `mapstructure:"replace" yaml:"replace"`
	Summarizer string `mapstructure:"summarizer" yaml:"summarizer"`
}

// EmbeddingConfig selects the embedding provider used by the embedding scorer.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Dims     int    `mapstructure:"dims" yaml:"dims"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Debug  bool   `mapstructure:"debug" yaml:"debug"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Dir returns the memscope home directory, ~/.memscope.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".memscope")
}

// DefaultPath is where Load looks for a config file when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath: filepath.Join(Dir(), "memscope.db"),
		Store:  "sqlite",
		Chunk: ChunkConfig{
			Size:      512,
			Overlap:   50,
			Separator: " ",
		},
		Search: SearchConfig{
			Scorer: "jaccard",
			Limit:  10,
		},
		Compaction: CompactionConfig{
			Enabled:    true,
			Frequency:  10,
			MaxChars:   2000,
			Summarizer: "concat",
		},
		Log: LogConfig{Format: "pretty"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("store", d.Store)

	v.SetDefault("chunk.size", d.Chunk.Size)
	v.SetDefault("chunk.overlap", d.Chunk.Overlap)
	v.SetDefault("chunk.separator", d.Chunk.Separator)

	v.SetDefault("search.scorer", d.Search.Scorer)
	v.SetDefault("search.limit", d.Search.Limit)
	v.SetDefault("search.threshold", d.Search.Threshold)

	v.SetDefault("compaction.enabled", d.Compaction.Enabled)
	v.SetDefault("compaction.frequency", d.Compaction.Frequency)
	v.SetDefault("compaction.max_chars", d.Compaction.MaxChars)
	v.SetDefault("compaction.replace", d.Compaction.Replace)
	v.SetDefault("compaction.summarizer", d.Compaction.Summarizer)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.dims", d.Embedding.Dims)

	v.SetDefault("log.debug", d.Log.Debug)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads configuration. Precedence, highest first: MEMSCOPE_ environment
// variables, the YAML file, defaults. An explicit path must exist; without
// one, a missing DefaultPath is fine.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEMSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("embedding.api_key", "MEMSCOPE_EMBEDDING_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for logical errors, reporting every
// problem found rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Store {
	case "sqlite", "memory":
	default:
		add("store: unknown backend %q (use sqlite or memory)", c.Store)
	}
	if c.Store == "sqlite" && c.DBPath == "" {
		add("db_path: required for the sqlite store")
	}

	if c.Chunk.Size <= 0 {
		add("chunk.size: must be positive, got %d", c.Chunk.Size)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.Size {
		add("chunk.overlap: must be in [0, chunk.size), got %d", c.Chunk.Overlap)
	}

	switch c.Search.Scorer {
	case "jaccard":
	case "embedding":
		if c.Embedding.Provider == "" {
			add("search.scorer: embedding scorer needs embedding.provider")
		}
	default:
		add("search.scorer: unknown scorer %q (use jaccard or embedding)", c.Search.Scorer)
	}
	if c.Search.Limit < 0 {
		add("search.limit: must not be negative, got %d", c.Search.Limit)
	}

	if c.Compaction.Frequency <= 0 {
		add("compaction.frequency: must be positive, got %d", c.Compaction.Frequency)
	}
	if c.Compaction.MaxChars <= 0 {
		add("compaction.max_chars: must be positive, got %d", c.Compaction.MaxChars)
	}
	switch c.Compaction.Summarizer {
	case "concat", "frequency":
	default:
		add("compaction.summarizer: unknown summarizer %q (use concat or frequency)", c.Compaction.Summarizer)
	}

	switch c.Embedding.Provider {
	case "", "ollama", "openai":
	default:
		add("embedding.provider: unknown provider %q (use ollama or openai)", c.Embedding.Provider)
	}

	switch c.Log.Format {
	case "text", "pretty", "json":
	default:
		add("log.format: unknown format %q (use text, pretty or json)", c.Log.Format)
	}

	if len(errs) == 0 {
		return nil
	}
	return oops.Code("config.invalid").
		With("problems", len(errs)).
		Wrapf(errors.Join(ErrInvalid, errors.Join(errs...)), "validating config")
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
