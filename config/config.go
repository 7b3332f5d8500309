package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

const (
	ConfigPathFlag    = "config"
	DefaultConfigPath = "config.yaml"
	LogLevelFlag      = "level"

	AwsRegionEnvVar  = "AWS_REGION"
	DefaultAwsRegion = "us-west-2"

	WrapperLocal  = "local"
	WrapperAwsKms = "aws-kms"
	WrapperGcpKms = "gcp-kms"

	DefaultCryptoSpec = "AES-128-CBC-HMAC-SHA256"
	DefaultValidity   = time.Hour
)

type (
	ConfigProvider interface {
		GetConfig() Config
	}

	Config struct {
		Distribution DistributionConfig `yaml:"distribution"`
		Encryption   EncryptionConfig   `yaml:"encryption"`
		Log          LogConfig          `yaml:"log"`
		Metrics      MetricsConfig      `yaml:"metrics"`
	}

	DistributionConfig struct {
		CryptoSpec    string `yaml:"crypto_spec"`
		Validity      string `yaml:"validity"`
		RefreshBefore string `yaml:"refresh_before,omitempty"`
	}

	EncryptionConfig struct {
		Caching CachingConfig `yaml:"caching"`
		Wrapper WrapperConfig `yaml:"wrapper"`
	}

	CachingConfig struct {
		MaxCache int    `yaml:"max_cache,omitempty"`
		MaxAge   string `yaml:"max_age,omitempty"`
		MaxUsage int    `yaml:"max_usage,omitempty"`
	}

	WrapperConfig struct {
		Type   string                 `yaml:"type"`
		Config map[string]interface{} `yaml:"config"`
	}

	LogConfig struct {
		Env   string `yaml:"env,omitempty"`
		Level string `yaml:"level,omitempty"`
	}

	MetricsConfig struct {
		// Textfile is written in Prometheus text format when a command finishes
		Textfile string `yaml:"textfile,omitempty"`
	}

	cliConfigProvider struct {
		ctx    *cli.Context
		config Config
	}
)

func newConfigProvider(ctx *cli.Context) (ConfigProvider, error) {
	cfg, err := LoadConfig(ctx.String(ConfigPathFlag))
	if err != nil {
		return nil, err
	}

	if level := ctx.String(LogLevelFlag); level != "" {
		cfg.Log.Level = level
	}

	return &cliConfigProvider{
		ctx:    ctx,
		config: cfg,
	}, nil
}

func (c *cliConfigProvider) GetConfig() Config {
	return c.config
}

// NewStaticProvider serves a fixed configuration
func NewStaticProvider(cfg Config) ConfigProvider {
	return &cliConfigProvider{config: cfg}
}

func LoadConfig(configFilePath string) (Config, error) {
	var config Config

	configFile, err := os.ReadFile(configFilePath)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(configFile, &config); err != nil {
		return config, fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	config.applyDefaults()

	if err = config.Validate(); err != nil {
		return config, fmt.Errorf("failed to validate config: %w", err)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Distribution.CryptoSpec == "" {
		c.Distribution.CryptoSpec = DefaultCryptoSpec
	}
	if c.Distribution.Validity == "" {
		c.Distribution.Validity = DefaultValidity.String()
	}
	if c.Encryption.Caching.MaxCache == 0 {
		c.Encryption.Caching.MaxCache = 100
	}
	if c.Encryption.Wrapper.Type == "" {
		c.Encryption.Wrapper.Type = WrapperLocal
	}
}

// Validate checks durations, limits and the wrapper type
func (c Config) Validate() error {
	var errs []error

	if v, err := parseDuration(c.Distribution.Validity); err != nil {
		errs = append(errs, fmt.Errorf("distribution.validity: %w", err))
	} else if v <= 0 {
		errs = append(errs, errors.New("distribution.validity must be positive"))
	}
	if _, err := parseDuration(c.Distribution.RefreshBefore); err != nil {
		errs = append(errs, fmt.Errorf("distribution.refresh_before: %w", err))
	}
	if _, err := parseDuration(c.Encryption.Caching.MaxAge); err != nil {
		errs = append(errs, fmt.Errorf("encryption.caching.max_age: %w", err))
	}
	if c.Encryption.Caching.MaxCache < 0 {
		errs = append(errs, errors.New("encryption.caching.max_cache must not be negative"))
	}
	if c.Encryption.Caching.MaxUsage < 0 {
		errs = append(errs, errors.New("encryption.caching.max_usage must not be negative"))
	}

	switch c.Encryption.Wrapper.Type {
	case WrapperLocal, WrapperAwsKms, WrapperGcpKms:
	default:
		errs = append(errs, fmt.Errorf("unsupported wrapper type %q", c.Encryption.Wrapper.Type))
	}

	return errors.Join(errs...)
}

func (d DistributionConfig) ValidityDuration() time.Duration {
	v, _ := parseDuration(d.Validity)
	return v
}

func (d DistributionConfig) RefreshBeforeDuration() time.Duration {
	v, _ := parseDuration(d.RefreshBefore)
	return v
}

func (c CachingConfig) MaxAgeDuration() time.Duration {
	v, _ := parseDuration(c.MaxAge)
	return v
}

// String returns a string option from the wrapper config
func (w WrapperConfig) String(key string) (string, error) {
	raw, ok := w.Config[key]
	if !ok {
		return "", fmt.Errorf("%s not found in wrapper config", key)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string", key)
	}
	return value, nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %s must not be negative", s)
	}
	return d, nil
}

var Module = fx.Provide(
	newConfigProvider,
)
