package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/m-mizutani/goerr/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. FEEDCORE_RANKING_CATEGORY.
const EnvPrefix = "FEEDCORE_"

// Config is the application's configuration model.
type Config struct {
	Storage  StorageConfig  `yaml:"storage" koanf:"storage"`
	Server   ServerConfig   `yaml:"server" koanf:"server"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
	Ranking  RankingConfig  `yaml:"ranking" koanf:"ranking"`
	Feedback FeedbackConfig `yaml:"feedback" koanf:"feedback"`
	Refresh  RefreshConfig  `yaml:"refresh" koanf:"refresh"`
	Identity IdentityConfig `yaml:"identity" koanf:"identity"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path" koanf:"db_path" validate:"required"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" koanf:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level" koanf:"level" validate:"omitempty,oneof=debug info warn error disabled"`
	Format string `yaml:"format" koanf:"format" validate:"omitempty,oneof=json console"`
}

type RankingConfig struct {
	// Category restricts candidates to one content category; empty ranks all.
	Category         string  `yaml:"category" koanf:"category"`
	SimilarityWeight float64 `yaml:"similarity_weight" koanf:"similarity_weight" validate:"gte=0"`
	PopularityWeight float64 `yaml:"popularity_weight" koanf:"popularity_weight" validate:"gte=0"`
	FreshnessWeight  float64 `yaml:"freshness_weight" koanf:"freshness_weight" validate:"gte=0"`
	// Diversity is "drop" (one item per author) or "interleave" (round-robin by author).
	Diversity   string        `yaml:"diversity" koanf:"diversity" validate:"oneof=drop interleave"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout"`
	MaxPageSize int           `yaml:"max_page_size" koanf:"max_page_size" validate:"gte=1"`
}

type FeedbackConfig struct {
	HidePenalty float64 `yaml:"hide_penalty" koanf:"hide_penalty" validate:"gte=0"`
	// Per-user demotion budgets; 0 is unlimited.
	MaxHidesPerHour int `yaml:"max_hides_per_hour" koanf:"max_hides_per_hour" validate:"gte=0"`
	MaxHidesPerDay  int `yaml:"max_hides_per_day" koanf:"max_hides_per_day" validate:"gte=0"`
}

type RefreshConfig struct {
	// Mode is "sync" (recompute inline) or "queue" (deferred worker).
	Mode  string  `yaml:"mode" koanf:"mode" validate:"oneof=sync queue"`
	Rate  float64 `yaml:"rate" koanf:"rate" validate:"gt=0"`
	Burst int     `yaml:"burst" koanf:"burst" validate:"gte=1"`
	// ContentInterval is the period of the full content refresh; 0 disables it.
	ContentInterval time.Duration `yaml:"content_interval" koanf:"content_interval"`
	Workers         int           `yaml:"workers" koanf:"workers" validate:"gte=1"`
	Buffer          int           `yaml:"buffer" koanf:"buffer" validate:"gte=1"`
}

type IdentityConfig struct {
	// Enforce rejects interactions from users unknown to the identity store.
	Enforce bool `yaml:"enforce" koanf:"enforce"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{DBPath: "./feedcore.db"},
		Server:  ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:     LogConfig{Level: "info", Format: "json"},
		Ranking: RankingConfig{
			Category:         "",
			SimilarityWeight: 0.4,
			PopularityWeight: 0.2,
			FreshnessWeight:  0.15,
			Diversity:        "drop",
			Timeout:          5 * time.Second,
			MaxPageSize:      100,
		},
		Feedback: FeedbackConfig{HidePenalty: 5},
		Refresh: RefreshConfig{
			Mode:            "sync",
			Rate:            20,
			Burst:           10,
			ContentInterval: time.Hour,
			Workers:         4,
			Buffer:          1024,
		},
	}
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return goerr.Wrap(err, "invalid configuration")
	}
	return nil
}

// Load layers defaults, the YAML file at path (skipped when it does not
// exist), and FEEDCORE_* environment variables, in that order.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, goerr.Wrap(err, "failed to load defaults")
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, goerr.Wrap(err, "failed to load config file", goerr.V("path", path))
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, goerr.Wrap(err, "failed to stat config file", goerr.V("path", path))
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, goerr.Wrap(err, "failed to load environment")
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, goerr.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps FEEDCORE_RANKING_SIMILARITY_WEIGHT to ranking.similarity_weight.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return goerr.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create config directory", goerr.V("path", path))
	}
	b, err := yamlv3.Marshal(cfg)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal config")
	}
	return os.WriteFile(path, b, 0o644)
}
