// Package config loads service settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ingredient-corrector/pkg/options"
)

var ErrUnknownBackend = errors.New("unknown cache backend")

const (
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendBolt  = "bolt"
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Model      ModelConfig      `yaml:"model"`
	Correction CorrectionConfig `yaml:"correction"`
	Cache      CacheConfig      `yaml:"cache"`
	Log        LogConfig        `yaml:"log"`
}

type HTTPConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxTokens      int           `yaml:"max_tokens"`
}

type ModelConfig struct {
	Path string `yaml:"path"`
}

type CorrectionConfig struct {
	SimilarityThreshold float32 `yaml:"similarity_threshold"`
	TopN                int     `yaml:"top_n"`
	EditFallback        bool    `yaml:"edit_fallback"`
	ShortTokenLength    int     `yaml:"short_token_length"`
	ShortMaxDistance    int     `yaml:"short_max_distance"`
	LongMaxDistance     int     `yaml:"long_max_distance"`
	Normalize           bool    `yaml:"normalize"`
	Workers             int     `yaml:"workers"`
}

type CacheConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
	Bolt    BoltConfig  `yaml:"bolt"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	d := options.DefaultOptions
	return &Config{
		HTTP: HTTPConfig{
			Addr:           ":8080",
			RequestTimeout: 10 * time.Second,
			MaxTokens:      1000,
		},
		Model: ModelConfig{Path: "models/ingredients.jvec"},
		Correction: CorrectionConfig{
			SimilarityThreshold: d.SimilarityThreshold,
			TopN:                d.TopN,
			EditFallback:        d.EditFallback,
			ShortTokenLength:    d.ShortTokenLength,
			ShortMaxDistance:    d.ShortMaxDistance,
			LongMaxDistance:     d.LongMaxDistance,
			Normalize:           d.Normalize,
			Workers:             d.Workers,
		},
		Cache: CacheConfig{
			Backend: BackendNone,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "ingredient_corrections", TTL: 24 * time.Hour},
			Bolt:    BoltConfig{Path: "corrections.db"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (optional) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.HTTP.Addr = getenv("HTTP_ADDR", c.HTTP.Addr)
	c.Model.Path = getenv("MODEL_PATH", c.Model.Path)
	c.Cache.Backend = getenv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Redis.Addr = getenv("REDIS_ADDR", c.Cache.Redis.Addr)
	c.Cache.Redis.Password = getenv("REDIS_PASSWORD", c.Cache.Redis.Password)
	c.Cache.Redis.DB = getEnvInt("REDIS_DB", c.Cache.Redis.DB)
	c.Cache.Bolt.Path = getenv("BOLT_PATH", c.Cache.Bolt.Path)
	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getenv("LOG_FORMAT", c.Log.Format)

	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("SIMILARITY_THRESHOLD: %w", err)
		}
		c.Correction.SimilarityThreshold = float32(f)
	}
	if v := os.Getenv("EDIT_FALLBACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EDIT_FALLBACK: %w", err)
		}
		c.Correction.EditFallback = b
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case "", BackendNone:
		c.Cache.Backend = BackendNone
	case BackendRedis, BackendBolt:
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Cache.Backend)
	}
	if c.Model.Path == "" {
		return errors.New("model path is required")
	}
	if c.HTTP.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative, got %d", c.HTTP.MaxTokens)
	}
	cc := c.Correction
	if cc.SimilarityThreshold < -1 || cc.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold %v outside [-1, 1]", cc.SimilarityThreshold)
	}
	if cc.ShortMaxDistance < 0 || cc.LongMaxDistance < 0 || cc.ShortTokenLength < 0 {
		return errors.New("edit distance settings must not be negative")
	}
	return nil
}

// Options converts the correction section into corrector options.
func (c CorrectionConfig) Options() []options.Options {
	opts := []options.Options{
		options.WithSimilarityThreshold(c.SimilarityThreshold),
		options.WithShortTokenLength(c.ShortTokenLength),
		options.WithMaxDistances(c.ShortMaxDistance, c.LongMaxDistance),
		options.WithNormalization(c.Normalize),
		options.WithWorkers(c.Workers),
	}
	if c.TopN > 0 {
		opts = append(opts, options.WithTopN(c.TopN))
	}
	if c.EditFallback {
		opts = append(opts, options.WithFallback())
	} else {
		opts = append(opts, options.WithoutFallback())
	}
	return opts
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	return def
}
