package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/johnstarich/replayer/redactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "chromedp", config.Browser.Driver)
	assert.Equal(t, MemoryQueue, config.Queue.Backend)
	assert.False(t, config.Reporter.Enabled())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "replayer.yaml", `
addr: 127.0.0.1:9000
logLevel: debug
browser:
  driver: rod
  noHeadless: true
queue:
  backend: redis
  redisAddr: localhost:6379
reporter:
  authURL: https://bmc.example.com/jwt/login
  apiURL: https://bmc.example.com/entry
  username: svc
  password: hunter2
  tokenTTL: 10m
nats:
  url: nats://localhost:4222
`)
	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", config.Addr)
	assert.Equal(t, "rod", config.Browser.Driver)
	assert.True(t, config.Browser.NoHeadless)
	assert.Equal(t, RedisQueue, config.Queue.Backend)
	assert.Equal(t, redactor.String("hunter2"), config.Reporter.Password)
	assert.Equal(t, 10*time.Minute, config.Reporter.TokenTTL)
	assert.Equal(t, float64(1), config.Reporter.UploadsPerSecond, "Unset fields should keep defaults")
	assert.True(t, config.Reporter.Enabled())
	assert.Equal(t, "nats://localhost:4222", config.NATS.URL)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BMC_AUTH_URL", "https://auth")
	t.Setenv("BMC_HELIX_API", "https://api")
	t.Setenv("USERNAME", "env-user")
	t.Setenv("PASSWORD", "env-pass")
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("BROWSER_HEADLESS", "false")
	envFile := writeFile(t, ".env", "REPLAYER_DRIVER=playwright\nUSERNAME=ignored\n")
	t.Cleanup(func() { _ = os.Unsetenv("REPLAYER_DRIVER") })

	config, err := Load("", envFile, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "https://auth", config.Reporter.AuthURL)
	assert.Equal(t, "https://api", config.Reporter.APIURL)
	assert.Equal(t, "env-user", config.Reporter.Username, "Existing environment should win over .env files")
	assert.Equal(t, "env-pass", config.Reporter.Password.Reveal())
	assert.Equal(t, "playwright", config.Browser.Driver)
	assert.True(t, config.Browser.NoHeadless)
	assert.Equal(t, "WARN", config.LogLevel)
}

func TestApplyEnvInvalid(t *testing.T) {
	config := Default()
	err := config.applyEnv(func(name string) (string, bool) {
		if name == "BMC_TOKEN_TTL" {
			return "soon", true
		}
		return "", false
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		description string
		modify      func(c *Config)
		expectErr   string
	}{
		{
			description: "defaults",
			modify:      func(c *Config) {},
		},
		{
			description: "redis without address",
			modify:      func(c *Config) { c.Queue.Backend = RedisQueue },
			expectErr:   "Redis queue requires a redis address",
		},
		{
			description: "unknown queue",
			modify:      func(c *Config) { c.Queue.Backend = "kafka" },
			expectErr:   `Unknown queue backend: "kafka"`,
		},
		{
			description: "half configured reporter",
			modify:      func(c *Config) { c.Reporter.AuthURL = "https://auth" },
			expectErr:   "Reporter requires both an auth URL and an API URL",
		},
		{
			description: "bad log level",
			modify:      func(c *Config) { c.LogLevel = "loud" },
			expectErr:   `Invalid log level "loud"`,
		},
	} {
		t.Run(tc.description, func(t *testing.T) {
			config := Default()
			tc.modify(&config)
			err := config.Validate()
			if tc.expectErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	config := Default()
	config.LogLevel = "Debug"
	logger, err := config.NewLogger(true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	config.LogLevel = "error"
	logger, err = config.NewLogger(false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.WarnLevel))
}
