// Package config layers defaults, an optional pwtrain.yaml, PWTRAIN_* environment
// variables and command-line flags into a Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Hussein-Mazeh/pwtrainer/krypto"
	"github.com/Hussein-Mazeh/pwtrainer/store"
)

const (
	configName = "pwtrain"
	envPrefix  = "PWTRAIN"
)

// Config is the effective runtime configuration.
type Config struct {
	Store    string `mapstructure:"store" yaml:"store"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	Argon2   Argon2 `mapstructure:"argon2" yaml:"argon2"`
}

// Argon2 holds the cost parameters applied to newly created hashes.
type Argon2 struct {
	Time      uint32 `mapstructure:"time" yaml:"time"`
	MemoryKiB uint32 `mapstructure:"memory_kib" yaml:"memory_kib"`
	Threads   uint8  `mapstructure:"threads" yaml:"threads"`
}

// Params converts the Argon2 section into hashing parameters.
func (c Config) Params() krypto.Params {
	return krypto.Params{
		Algorithm: krypto.AlgorithmArgon2id,
		Time:      c.Argon2.Time,
		MemoryKiB: c.Argon2.MemoryKiB,
		Threads:   c.Argon2.Threads,
	}
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	p := krypto.DefaultParams()
	return Config{
		Store:    store.DefaultFilename,
		LogLevel: "warn",
		Argon2: Argon2{
			Time:      p.Time,
			MemoryKiB: p.MemoryKiB,
			Threads:   p.Threads,
		},
	}
}

// BindFlags registers the persistent flags Load understands on cmd.
func BindFlags(cmd *cobra.Command) {
	d := Defaults()
	cmd.PersistentFlags().String("config", "", "config file (default ./pwtrain.yaml or <user config dir>/pwtrain/pwtrain.yaml)")
	cmd.PersistentFlags().String("store", d.Store, "path of the password store file")
	cmd.PersistentFlags().String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
}

// Load resolves the configuration for cmd. Precedence, highest first: flags set on
// the command line, environment, config file, defaults.
func Load(cmd *cobra.Command) (Config, error) {
	var c Config
	v := viper.New()

	d := Defaults()
	v.SetDefault("store", d.Store)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("argon2.time", d.Argon2.Time)
	v.SetDefault("argon2.memory_kib", d.Argon2.MemoryKiB)
	v.SetDefault("argon2.threads", d.Argon2.Threads)

	explicit := ""
	if f := cmd.Flags().Lookup("config"); f != nil {
		explicit = f.Value.String()
	}
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return c, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, name := range map[string]string{"store": "store", "log_level": "log-level"} {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return c, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate rejects configurations that cannot run a session.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Store) == "" {
		return errors.New("store path must not be empty")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("argon2 settings: %w", err)
	}
	return nil
}

// WriteFile writes c as YAML to path, creating parent directories.
func WriteFile(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
