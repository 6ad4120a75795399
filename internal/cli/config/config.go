package config

import (
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/modelgraph/modelgraph/internal/store"
)

// EnvPrefix prefixes the environment variables overriding config keys,
// e.g. MODELGRAPH_STORE_DSN for store.dsn
const EnvPrefix = "MODELGRAPH"

// Config represents the modelgraph configuration
type Config struct {
	// Metamodel is the path of a metamodel file. Empty selects the built-in
	// pets metamodel.
	Metamodel      string        `mapstructure:"metamodel"`
	Iterations     int           `mapstructure:"iterations"`
	Transformation string        `mapstructure:"transformation"`
	Log            LogConfig     `mapstructure:"log"`
	Store          StoreConfig   `mapstructure:"store"`
	Journal        JournalConfig `mapstructure:"journal"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// StoreConfig represents the SQL store configuration
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// JournalConfig represents change journal configuration
type JournalConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig represents the Redis stream the journal writes to. An empty
// address keeps the journal in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metamodel", "")
	v.SetDefault("iterations", 1)
	v.SetDefault("transformation", "copy")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("store.driver", "sqlite3")
	v.SetDefault("store.dsn", "file:modelgraph.db")
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.redis.addr", "")
	v.SetDefault("journal.redis.password", "")
	v.SetDefault("journal.redis.db", 0)
	v.SetDefault("journal.redis.stream", "modelgraph:changes")
}

// Load reads the configuration. With an empty path modelgraph.yaml is
// looked up in the working directory and may be absent; an explicit path
// must exist. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("modelgraph")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is configured
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Iterations < 1 {
		return errors.Newf("iterations must be at least 1, got %d", c.Iterations)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return errors.WithHint(errors.Wrapf(err, "invalid log.level"),
			"use one of debug, info, warn, error")
	}
	if !slices.Contains(store.Drivers, c.Store.Driver) {
		return errors.WithHint(errors.Newf("unsupported store.driver %q", c.Store.Driver),
			"use one of "+strings.Join(store.Drivers, ", "))
	}
	if c.Journal.Redis.Addr != "" && c.Journal.Redis.Stream == "" {
		return errors.New("journal.redis.stream must be set when journal.redis.addr is")
	}
	return nil
}
