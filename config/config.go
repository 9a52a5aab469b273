// Package config loads replayer settings from a YAML file, .env files, and environment variables, in increasing priority.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/johnstarich/replayer/redactor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Queue backends
const (
	MemoryQueue = "memory"
	RedisQueue  = "redis"
)

// Config holds every setting for the server and CLI
type Config struct {
	Addr        string   `yaml:"addr"`
	ArtifactDir string   `yaml:"artifactDir"`
	LogLevel    string   `yaml:"logLevel"`
	Browser     Browser  `yaml:"browser"`
	Queue       Queue    `yaml:"queue"`
	Reporter    Reporter `yaml:"reporter"`
	NATS        NATS     `yaml:"nats"`
}

// Browser selects and configures the browser driver
type Browser struct {
	Driver     string `yaml:"driver"`
	NoHeadless bool   `yaml:"noHeadless"`
	Channel    string `yaml:"channel"`
	ExecPath   string `yaml:"execPath"`
	Debug      bool   `yaml:"debug"`
}

// Queue selects where pending runs are stored
type Queue struct {
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redisAddr"`
	RedisKey  string `yaml:"redisKey"`
}

// Reporter configures result uploads to the ticketing system. Uploads are disabled without an AuthURL and APIURL.
type Reporter struct {
	AuthURL            string          `yaml:"authURL"`
	APIURL             string          `yaml:"apiURL"`
	Username           string          `yaml:"username"`
	Password           redactor.String `yaml:"password"`
	TokenTTL           time.Duration   `yaml:"tokenTTL"`
	UploadsPerSecond   float64         `yaml:"uploadsPerSecond"`
	InsecureSkipVerify bool            `yaml:"insecureSkipVerify"`
}

// Enabled returns true if uploads are configured
func (r Reporter) Enabled() bool {
	return r.AuthURL != "" && r.APIURL != ""
}

// NATS configures result event publishing. Publishing is disabled without a URL.
type NATS struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		Addr:        "0.0.0.0:8080",
		ArtifactDir: "artifacts",
		LogLevel:    "info",
		Browser:     Browser{Driver: "chromedp"},
		Queue:       Queue{Backend: MemoryQueue},
		Reporter:    Reporter{TokenTTL: 50 * time.Minute, UploadsPerSecond: 1},
	}
}

// Load reads configPath, if not empty, over the defaults. Then loads envFiles into the environment, skipping
// missing files, and applies environment overrides.
func Load(configPath string, envFiles ...string) (Config, error) {
	config := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Config{}, errors.Wrapf(err, "Failed to read config %q", configPath)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, errors.Wrapf(err, "Invalid config %q", configPath)
		}
	}

	for _, envFile := range envFiles {
		err := godotenv.Load(envFile)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, errors.Wrapf(err, "Failed to load env file %q", envFile)
		}
	}
	if err := config.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"REPLAYER_ADDR":         &c.Addr,
		"REPLAYER_ARTIFACT_DIR": &c.ArtifactDir,
		"LOG_LEVEL":             &c.LogLevel,
		"REPLAYER_DRIVER":       &c.Browser.Driver,
		"BROWSER_CHANNEL":       &c.Browser.Channel,
		"BROWSER_EXEC_PATH":     &c.Browser.ExecPath,
		"REPLAYER_QUEUE":        &c.Queue.Backend,
		"REDIS_ADDR":            &c.Queue.RedisAddr,
		"REDIS_KEY":             &c.Queue.RedisKey,
		"BMC_AUTH_URL":          &c.Reporter.AuthURL,
		"BMC_HELIX_API":         &c.Reporter.APIURL,
		"USERNAME":              &c.Reporter.Username,
		"NATS_URL":              &c.NATS.URL,
		"NATS_SUBJECT":          &c.NATS.Subject,
	}
	for name, field := range strs {
		if value, ok := lookup(name); ok {
			*field = value
		}
	}
	if password, ok := lookup("PASSWORD"); ok {
		c.Reporter.Password = redactor.String(password)
	}
	if headless, ok := lookup("BROWSER_HEADLESS"); ok {
		isHeadless, err := strconv.ParseBool(headless)
		if err != nil {
			return errors.Wrap(err, "Invalid BROWSER_HEADLESS")
		}
		c.Browser.NoHeadless = !isHeadless
	}
	if ttl, ok := lookup("BMC_TOKEN_TTL"); ok {
		duration, err := time.ParseDuration(ttl)
		if err != nil {
			return errors.Wrap(err, "Invalid BMC_TOKEN_TTL")
		}
		c.Reporter.TokenTTL = duration
	}
	return nil
}

// Validate checks for settings which can never work
func (c Config) Validate() error {
	switch c.Queue.Backend {
	case MemoryQueue:
	case RedisQueue:
		if c.Queue.RedisAddr == "" {
			return errors.New("Redis queue requires a redis address")
		}
	default:
		return errors.Errorf("Unknown queue backend: %q", c.Queue.Backend)
	}
	if (c.Reporter.AuthURL == "") != (c.Reporter.APIURL == "") {
		return errors.New("Reporter requires both an auth URL and an API URL")
	}
	if _, err := zap.ParseAtomicLevel(strings.ToLower(c.LogLevel)); err != nil {
		return errors.Wrapf(err, "Invalid log level %q", c.LogLevel)
	}
	return nil
}

// NewLogger builds a production logger, or a development logger if development is true, at the configured level
func (c Config) NewLogger(development bool) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return nil, err
	}
	zapConfig := zap.NewProductionConfig()
	if development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = level
	return zapConfig.Build()
}
