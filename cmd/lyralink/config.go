package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/sauerbraten/lyralink"
)

// Config maps the configuration file and LYRALINK_* environment variables.
type Config struct {
	Server struct {
		Address string `mapstructure:"address"`
		Port    int    `mapstructure:"port"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"server"`

	Database struct {
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Allocator lyralink.AllocationPolicy `mapstructure:"allocator"`

	Resolver struct {
		ValidityWindow time.Duration `mapstructure:"validity_window"`
	} `mapstructure:"resolver"`

	Cache struct {
		Kind  string        `mapstructure:"kind"`
		TTL   time.Duration `mapstructure:"ttl"`
		Redis struct {
			Addr     string `mapstructure:"addr"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
	} `mapstructure:"cache"`

	Log LogConfig `mapstructure:"log"`

	Trace struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"trace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 12032)
	v.SetDefault("server.base_url", "https://ll.unfla.me")

	v.SetDefault("database.driver", lyralink.DriverSQLite)
	v.SetDefault("database.dsn", "file:lyralink.db?_journal_mode=wal&_busy_timeout=5000")

	v.SetDefault("allocator.start_length", lyralink.DefaultAllocationPolicy.StartLength)
	v.SetDefault("allocator.attempts_per_length", lyralink.DefaultAllocationPolicy.AttemptsPerLength)
	v.SetDefault("allocator.max_attempts", lyralink.DefaultAllocationPolicy.MaxAttempts)

	v.SetDefault("resolver.validity_window", "0s")

	v.SetDefault("cache.kind", cacheNone)
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("trace.enabled", false)
}

// loadConfig reads path if given, or looks for lyralink.yaml in the working
// directory and /etc/lyralink. A missing default file is not an error.
func loadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LYRALINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("lyralink")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/lyralink")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !xerrors.As(err, &notFound) {
			return Config{}, xerrors.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, xerrors.Errorf("error decoding config: %w", err)
	}

	return cfg, nil
}
