// Package config holds the process-level settings of the binaries. Simulation
// parameters live in tuning; this is where they are found and what the
// process around the world does.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "DWELLERS"

type Config struct {
	Addr        string `mapstructure:"addr"`
	AllowRemote bool   `mapstructure:"allowRemote"`
	DataDir     string `mapstructure:"dataDir"`
	WorldID     string `mapstructure:"worldID"`
	Seed        int64  `mapstructure:"seed"`

	LogLevel  string `mapstructure:"logLevel"`
	LogPretty bool   `mapstructure:"logPretty"`

	TuningPath   string `mapstructure:"tuningPath"`
	CatalogsPath string `mapstructure:"catalogsPath"`

	Journal JournalConfig `mapstructure:"journal"`
	Index   IndexConfig   `mapstructure:"index"`
}

type JournalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type IndexConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Queue   int  `mapstructure:"queue"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("allowRemote", false)
	v.SetDefault("dataDir", "./data")
	v.SetDefault("worldID", "world_1")
	v.SetDefault("seed", 1337)

	v.SetDefault("logLevel", "info")
	v.SetDefault("logPretty", false)

	v.SetDefault("tuningPath", "")
	v.SetDefault("catalogsPath", "")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("index.enabled", true)
	v.SetDefault("index.queue", 4096)
}

// Load reads path (yaml, json or toml by extension) over the defaults and
// then applies DWELLERS_* environment overrides, e.g. DWELLERS_INDEX_ENABLED.
// An empty path uses defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr is empty"))
	}
	if strings.TrimSpace(c.WorldID) == "" {
		errs = append(errs, errors.New("worldID is empty"))
	}
	if (c.Journal.Enabled || c.Index.Enabled) && strings.TrimSpace(c.DataDir) == "" {
		errs = append(errs, errors.New("dataDir is required when a sink is enabled"))
	}
	if c.Index.Queue < 0 {
		errs = append(errs, fmt.Errorf("index.queue must be >= 0, got %d", c.Index.Queue))
	}
	return errors.Join(errs...)
}
