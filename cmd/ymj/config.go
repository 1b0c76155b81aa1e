package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/poiesic/ymj"
	"github.com/poiesic/ymj/ai"
	"github.com/poiesic/ymj/reembed"
	"github.com/urfave/cli/v2"
)

// defaultConfigFile is read from the working directory when --config is not given.
const defaultConfigFile = "ymj.toml"

// fileConfig mirrors ymj.toml.
type fileConfig struct {
	Embedding embeddingSection `toml:"embedding"`
	Cache     cacheSection     `toml:"cache"`
	Embed     embedSection     `toml:"embed"`
}

type embeddingSection struct {
	Backend    string `toml:"backend"`
	Host       string `toml:"host"`
	Model      string `toml:"model"`
	Dimensions int    `toml:"dimensions"`
	Timeout    string `toml:"timeout"`
}

type cacheSection struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

type embedSection struct {
	MaxInFlight       int     `toml:"max_in_flight"`
	Timeout           string  `toml:"timeout"`
	MaxRetries        int     `toml:"max_retries"`
	RetryDelay        string  `toml:"retry_delay"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Normalize         bool    `toml:"normalize"`
}

// loadFileConfig reads path. A missing file yields an empty config unless
// the path was given explicitly.
func loadFileConfig(path string, explicit bool) (*fileConfig, error) {
	cfg := &fileConfig{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func contextFileConfig(c *cli.Context) (*fileConfig, error) {
	path := c.String("config")
	explicit := c.IsSet("config")
	if path == "" {
		path = defaultConfigFile
	}
	return loadFileConfig(path, explicit)
}

func parseDuration(name, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// aiConfig builds the provider configuration. Flags override the file,
// which overrides ai.DefaultConfig.
func aiConfig(c *cli.Context, fc *fileConfig) (*ai.Config, error) {
	cfg := ai.DefaultConfig()

	if fc.Embedding.Backend != "" {
		cfg.Backend = ai.Backend(fc.Embedding.Backend)
	}
	if fc.Embedding.Host != "" {
		cfg.EmbeddingHost = fc.Embedding.Host
	}
	if fc.Embedding.Model != "" {
		cfg.EmbeddingModel = fc.Embedding.Model
	}
	if fc.Embedding.Dimensions != 0 {
		cfg.Dimensions = fc.Embedding.Dimensions
	}
	timeout, err := parseDuration("embedding.timeout", fc.Embedding.Timeout)
	if err != nil {
		return nil, err
	}
	if timeout != 0 {
		cfg.Timeout = timeout
	}

	if c.IsSet("backend") {
		cfg.Backend = ai.Backend(c.String("backend"))
	}
	if c.IsSet("embedding-host") {
		cfg.EmbeddingHost = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.EmbeddingModel = c.String("embedding-model")
	}
	if c.IsSet("dimensions") {
		cfg.Dimensions = c.Int("dimensions")
	}
	cfg.APIKey = os.Getenv("OPENAI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return cfg, nil
}

// engineOptions assembles the options for ymj.Open.
func engineOptions(c *cli.Context, fc *fileConfig) ([]ymj.EngineOption, error) {
	cfg, err := aiConfig(c, fc)
	if err != nil {
		return nil, err
	}

	backend, path := fc.Cache.Backend, fc.Cache.Path
	if c.IsSet("cache") {
		backend = c.String("cache")
	}
	if c.IsSet("cache-path") {
		path = c.String("cache-path")
	}
	if backend != "" && backend != string(ymj.CacheMemory) && path == "" {
		return nil, fmt.Errorf("cache backend %q needs a cache path", backend)
	}

	return []ymj.EngineOption{
		ymj.WithAIConfig(cfg),
		ymj.WithCache(ymj.CacheBackend(backend), path),
	}, nil
}

// reembedConfig builds the embedding run configuration for the embed command.
func reembedConfig(c *cli.Context, fc *fileConfig) (*reembed.Config, error) {
	cfg := reembed.DefaultConfig()

	if fc.Embed.MaxInFlight != 0 {
		cfg.MaxInFlight = fc.Embed.MaxInFlight
	}
	if fc.Embed.MaxRetries != 0 {
		cfg.MaxRetries = fc.Embed.MaxRetries
	}
	if fc.Embed.RequestsPerSecond != 0 {
		cfg.RequestsPerSecond = fc.Embed.RequestsPerSecond
	}
	cfg.Normalize = fc.Embed.Normalize

	timeout, err := parseDuration("embed.timeout", fc.Embed.Timeout)
	if err != nil {
		return nil, err
	}
	if timeout != 0 {
		cfg.Timeout = timeout
	}
	delay, err := parseDuration("embed.retry_delay", fc.Embed.RetryDelay)
	if err != nil {
		return nil, err
	}
	if delay != 0 {
		cfg.RetryDelay = delay
	}

	if c.IsSet("max-in-flight") {
		cfg.MaxInFlight = c.Int("max-in-flight")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("max-retries") {
		cfg.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("retry-delay") {
		cfg.RetryDelay = c.Duration("retry-delay")
	}
	if c.IsSet("rps") {
		cfg.RequestsPerSecond = c.Float64("rps")
	}
	if c.IsSet("normalize") {
		cfg.Normalize = c.Bool("normalize")
	}
	cfg.Force = c.Bool("force")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
