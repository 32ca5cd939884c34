package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thatrasunil/code-connect/globals"
)

const (
	defaultLanguage     = "javascript"
	defaultStoreTimeout = 5 * time.Second
)

// Config is the global configuration object which is filled via the configuration file
// and may be overridden through environment variables (prefix CODECONNECT) or flags.
type Config struct {
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	PresenceConfig    PresenceConfig    `mapstructure:"presence"`
	RunnerConfig      RunnerConfig      `mapstructure:"runner"`
	LogLevel          string            `mapstructure:"log_level"`
	DefaultLanguage   string            `mapstructure:"default_language"`
}

// HistoryConfig limits the number of persisted messages replayed to a newly
// joined connection. 0 means the full room history.
type HistoryConfig struct {
	HistorySize int `mapstructure:"history_size"`
}

// PersistenceConfig selects the room store backend. Supported types are
// "memory", "buntdb", "sqlite", "postgres" and "mongo". DSN is the file name
// for buntdb/sqlite, the connection string for postgres/mongo, and unused for
// memory.
type PersistenceConfig struct {
	Type           string `mapstructure:"type"`
	DSN            string `mapstructure:"dsn"`
	Database       string `mapstructure:"database"`        // mongo only
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // per store call, default 5
}

// PresenceConfig selects the presence table backend. "memory" keeps presence
// in process (the default), "redis" shares it between instances via the
// given address.
type PresenceConfig struct {
	Type     string `mapstructure:"type"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RunnerConfig points at a piston-compatible code execution API.
type RunnerConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StoreTimeout returns the bounded timeout applied to every room store call.
func (c *Config) StoreTimeout() time.Duration {
	if c.PersistenceConfig.TimeoutSeconds > 0 {
		return time.Duration(c.PersistenceConfig.TimeoutSeconds) * time.Second
	}
	return defaultStoreTimeout
}

// Language returns the configured default document language.
func (c *Config) Language() string {
	if c.DefaultLanguage != "" {
		return c.DefaultLanguage
	}
	return defaultLanguage
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	flagSet.String("default-language", "", "default document language for new rooms")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	name = strings.Replace(name, "-", "_", -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("default_language", defaultLanguage)
	viper.SetDefault("persistence.type", "memory")
	viper.SetDefault("presence.type", "memory")
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("CODECONNECT")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	return &cfg, nil
}
