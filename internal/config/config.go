// Package config loads server settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "TAGSRV"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Addr              string        `mapstructure:"addr"`
	LogLevel          string        `mapstructure:"log_level"`
	LogFormat         string        `mapstructure:"log_format"`
	TickInterval      time.Duration `mapstructure:"tick_interval"`
	BroadcastInterval time.Duration `mapstructure:"broadcast_interval"`
	RestartDelay      time.Duration `mapstructure:"restart_delay"`
	Seed              uint64        `mapstructure:"seed"`
	DatabaseURL       string        `mapstructure:"database_url"`
}

func Default() Config {
	return Config{
		Addr:              ":8080",
		LogLevel:          "info",
		LogFormat:         "json",
		TickInterval:      50 * time.Millisecond,
		BroadcastInterval: 100 * time.Millisecond,
		RestartDelay:      3 * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("addr", d.Addr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("tick_interval", d.TickInterval)
	v.SetDefault("broadcast_interval", d.BroadcastInterval)
	v.SetDefault("restart_delay", d.RestartDelay)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("database_url", d.DatabaseURL)
}

// New returns a viper instance with defaults and TAGSRV_* env binding. The
// caller may bind flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadDotenv reads .env files into the process environment. Missing files are
// not an error; variables already set win.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !isNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func isNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

// Load reads configFile when given and decodes everything into a Config.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "addr is empty")
	}
	if c.TickInterval < 0 {
		problems = append(problems, "tick_interval is negative")
	}
	if c.BroadcastInterval < 0 {
		problems = append(problems, "broadcast_interval is negative")
	}
	if c.RestartDelay <= 0 {
		problems = append(problems, "restart_delay must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log_format %q is not json or console", c.LogFormat))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
