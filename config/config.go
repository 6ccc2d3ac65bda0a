package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pumped-fn/pumped-spatial/gateway"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SPATIAL_PORT.
const EnvPrefix = "SPATIAL"

// Config holds application configuration.
type Config struct {
	BaseURL   string     `mapstructure:"base_url"`
	Host      string     `mapstructure:"host"`
	Port      int        `mapstructure:"port"`
	HTTP      HTTPConfig `mapstructure:"http"`
	Retention string     `mapstructure:"retention"`
	Log       LogConfig  `mapstructure:"log"`
}

// HTTPConfig holds gateway client settings.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	Rate      float64       `mapstructure:"rate"`
	Burst     int           `mapstructure:"burst"`
	UserAgent string        `mapstructure:"user_agent"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// New returns a viper instance with defaults and SPATIAL_ env overrides bound.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("config", "")
	v.SetDefault("base_url", "")
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 8080)
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.rate", 10.0)
	v.SetDefault("http.burst", 5)
	v.SetDefault("http.user_agent", "pumped-spatial/0.1")
	v.SetDefault("retention", "retain")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return v
}

// Load reads configuration from file and env. The file is optional; its path
// comes from the "config" key (SPATIAL_CONFIG or a bound --config flag) or
// defaults to ~/.config/spatialsync/config.toml.
func Load(v *viper.Viper) (Config, error) {
	v.SetConfigType("toml")

	cfgPath := v.GetString("config")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "spatialsync"))
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Locator resolves the service base URL from v on every call, so the
// environment is consulted at request time rather than at startup.
func Locator(v *viper.Viper) gateway.Locator {
	return func() (string, error) {
		if base := v.GetString("base_url"); base != "" {
			return base, nil
		}
		port := v.GetInt("port")
		if port <= 0 {
			return "", fmt.Errorf("%s_PORT is not a valid port", EnvPrefix)
		}
		host := v.GetString("host")
		if host == "" {
			host = "localhost"
		}
		return fmt.Sprintf("http://%s:%d", host, port), nil
	}
}

// ClientOptions translates the HTTP settings into gateway options.
func (c Config) ClientOptions() []gateway.Option {
	opts := []gateway.Option{
		gateway.WithRateLimit(c.HTTP.Rate, c.HTTP.Burst),
	}
	if c.HTTP.Timeout > 0 {
		opts = append(opts, gateway.WithTimeout(c.HTTP.Timeout))
	}
	if c.HTTP.UserAgent != "" {
		opts = append(opts, gateway.WithUserAgent(c.HTTP.UserAgent))
	}
	return opts
}

// ParseLevel maps debug|info|warn|error onto slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", level, err)
	}
	return l, nil
}
