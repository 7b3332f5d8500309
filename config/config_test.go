package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config",
			configYAML: `
distribution:
  crypto_spec: "AES-128-GCM"
  validity: "30m"
  refresh_before: "5m"
encryption:
  caching:
    max_cache: 50
    max_age: "10m"
    max_usage: 100
  wrapper:
    type: "aws-kms"
    config:
      key-id: "arn:aws:kms:us-west-2:123456789012:key/test"
log:
  env: "prod"
  level: "warn"
metrics:
  textfile: "/var/lib/node_exporter/distkey.prom"
`,
		},
		{
			name:       "empty config uses defaults",
			configYAML: "{}",
		},
		{
			name: "invalid yaml",
			configYAML: `
distribution:
  validity: [
`,
			expectError: true,
			errorMsg:    "failed to unmarshal config file",
		},
		{
			name: "invalid validity",
			configYAML: `
distribution:
  validity: "soon"
`,
			expectError: true,
			errorMsg:    "distribution.validity",
		},
		{
			name: "zero validity",
			configYAML: `
distribution:
  validity: "0s"
`,
			expectError: true,
			errorMsg:    "distribution.validity must be positive",
		},
		{
			name: "negative max age",
			configYAML: `
encryption:
  caching:
    max_age: "-1m"
`,
			expectError: true,
			errorMsg:    "encryption.caching.max_age",
		},
		{
			name: "negative usage",
			configYAML: `
encryption:
  caching:
    max_usage: -1
`,
			expectError: true,
			errorMsg:    "encryption.caching.max_usage must not be negative",
		},
		{
			name: "unknown wrapper",
			configYAML: `
encryption:
  wrapper:
    type: "vault"
`,
			expectError: true,
			errorMsg:    `unsupported wrapper type "vault"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.configYAML))

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, cfg.Distribution.CryptoSpec)
			assert.Positive(t, cfg.Distribution.ValidityDuration())
		})
	}
}

func TestLoadConfig_Values(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
distribution:
  crypto_spec: "ChaCha20-Poly1305"
  validity: "30m"
  refresh_before: "5m"
encryption:
  caching:
    max_age: "10m"
    max_usage: 7
  wrapper:
    type: "gcp-kms"
    config:
      key-name: "projects/p/locations/global/keyRings/r/cryptoKeys/k"
`))
	require.NoError(t, err)

	assert.Equal(t, "ChaCha20-Poly1305", cfg.Distribution.CryptoSpec)
	assert.Equal(t, 30*time.Minute, cfg.Distribution.ValidityDuration())
	assert.Equal(t, 5*time.Minute, cfg.Distribution.RefreshBeforeDuration())
	assert.Equal(t, 10*time.Minute, cfg.Encryption.Caching.MaxAgeDuration())
	assert.Equal(t, 100, cfg.Encryption.Caching.MaxCache)
	assert.Equal(t, 7, cfg.Encryption.Caching.MaxUsage)

	keyName, err := cfg.Encryption.Wrapper.String("key-name")
	require.NoError(t, err)
	assert.Equal(t, "projects/p/locations/global/keyRings/r/cryptoKeys/k", keyName)

	_, err = cfg.Encryption.Wrapper.String("missing")
	assert.ErrorContains(t, err, "missing not found in wrapper config")
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, DefaultCryptoSpec, cfg.Distribution.CryptoSpec)
	assert.Equal(t, DefaultValidity, cfg.Distribution.ValidityDuration())
	assert.Zero(t, cfg.Distribution.RefreshBeforeDuration())
	assert.Equal(t, WrapperLocal, cfg.Encryption.Wrapper.Type)
	assert.Equal(t, 100, cfg.Encryption.Caching.MaxCache)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Config{
		Distribution: DistributionConfig{Validity: "bad", RefreshBefore: "-1s"},
		Encryption: EncryptionConfig{
			Caching: CachingConfig{MaxCache: -1},
			Wrapper: WrapperConfig{Type: "unknown"},
		},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distribution.validity")
	assert.Contains(t, err.Error(), "distribution.refresh_before")
	assert.Contains(t, err.Error(), "max_cache")
	assert.Contains(t, err.Error(), "unsupported wrapper type")
}

func TestNewConfigProvider_LevelOverride(t *testing.T) {
	path := writeConfig(t, `
log:
  level: "info"
`)

	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String(ConfigPathFlag, path, "")
	set.String(LogLevelFlag, "debug", "")
	ctx := cli.NewContext(cli.NewApp(), set, nil)

	provider, err := newConfigProvider(ctx)
	require.NoError(t, err)
	assert.Equal(t, "debug", provider.GetConfig().Log.Level)

	static := NewStaticProvider(Config{Log: LogConfig{Level: "error"}})
	assert.Equal(t, "error", static.GetConfig().Log.Level)
}
