package syndicated

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
listen: ":9000"
shutdown_timeout: "3s"
auth:
  bearer_token: "  abc  "
quota:
  max_requests_per_epoch: 5
telemetry:
  sample_ratio: 0.25
tokens:
  - address: "0x7070707070707070707070707070707070707070"
    exchange_rate: 10
    supply_cap: "1000"
    funding_start: 1
    funding_end: 2
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout.Duration)
	require.Equal(t, "abc", cfg.Auth.BearerToken)
	require.Equal(t, uint32(5), cfg.Quota.MaxRequestsPerEpoch)
	require.Equal(t, uint32(60), cfg.Quota.EpochSeconds)
	require.Equal(t, 4096, cfg.JournalSize)
	require.InDelta(t, 0.25, cfg.Telemetry.SampleRatio, 1e-9)
	require.Len(t, cfg.Tokens, 1)
}

func TestLoadConfigTOML(t *testing.T) {
	tokenFile := writeConfig(t, "token", "from-file\n")
	path := writeConfig(t, "config.toml", `
listen = ":9100"
shutdown_timeout = "1m"
data_dir = "/var/lib/syndicated"

[auth]
bearer_token_file = "`+filepath.ToSlash(tokenFile)+`"

[rate_limit]
requests_per_minute = 30
burst = 3
trusted_proxies = ["10.0.0.0/8", "::1"]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.ListenAddress)
	require.Equal(t, time.Minute, cfg.ShutdownTimeout.Duration)
	require.Equal(t, "/var/lib/syndicated", cfg.DataDir)
	require.Equal(t, "from-file", cfg.Auth.BearerToken)
	require.Equal(t, 3, cfg.RateLimit.Burst)
	require.Equal(t, []string{"10.0.0.0/8", "::1"}, cfg.RateLimit.TrustedProxies)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SYNDICATE_ENV", "staging")
	path := writeConfig(t, "config.yaml", "env: dev\nauth:\n  disabled: true\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "staging", cfg.Environment)
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing bearer token", mutate: func(c *Config) { c.Auth.BearerToken = "" }},
		{name: "bad factory address", mutate: func(c *Config) { c.FactoryAddress = "nope" }},
		{name: "bad trusted proxy", mutate: func(c *Config) { c.RateLimit.TrustedProxies = []string{"10.0.0.0/33"} }},
		{name: "sample ratio above one", mutate: func(c *Config) { c.Telemetry.SampleRatio = 1.5 }},
		{name: "zero exchange rate", mutate: func(c *Config) { c.Tokens[0].ExchangeRate = 0 }},
		{name: "non numeric supply cap", mutate: func(c *Config) { c.Tokens[0].SupplyCap = "lots" }},
		{name: "inverted funding window", mutate: func(c *Config) { c.Tokens[0].FundingStart = c.Tokens[0].FundingEnd }},
		{name: "duplicate token", mutate: func(c *Config) { c.Tokens = append(c.Tokens, c.Tokens[0]) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, testConfig().Validate())

	disabled := testConfig()
	disabled.Auth = AuthConfig{Disabled: true}
	require.NoError(t, disabled.Validate())
}

func TestDurationRejectsGarbage(t *testing.T) {
	var d Duration
	require.Error(t, d.UnmarshalText([]byte("soon")))
	require.NoError(t, d.UnmarshalText([]byte("250ms")))
	require.Equal(t, 250*time.Millisecond, d.Duration)
}
