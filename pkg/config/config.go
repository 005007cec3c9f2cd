package config

// Package config provides a reusable loader for a Nodalync node's
// configuration files and environment variables. It is versioned so that
// applications can depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/nodalync/node/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a Nodalync node, covering every
// option spec.md §6.4 lists for local node setup.
type Config struct {
	Identity struct {
		KeyPath string `mapstructure:"key_path" json:"key_path"`
	} `mapstructure:"identity" json:"identity"`

	Storage struct {
		DBPath        string `mapstructure:"db_path" json:"db_path"`
		ContentDir    string `mapstructure:"content_dir" json:"content_dir"`
		CacheDir      string `mapstructure:"cache_dir" json:"cache_dir"`
		CacheMaxBytes uint64 `mapstructure:"cache_max_bytes" json:"cache_max_bytes"`
		CacheMaxItems int    `mapstructure:"cache_max_items" json:"cache_max_items"`
	} `mapstructure:"storage" json:"storage"`

	Network struct {
		ListenAddrs    []string `mapstructure:"listen_addrs" json:"listen_addrs"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	} `mapstructure:"network" json:"network"`

	Ledger struct {
		Network string `mapstructure:"network" json:"network"`
		Account string `mapstructure:"account" json:"account"`
		Contract string `mapstructure:"contract" json:"contract"`
	} `mapstructure:"ledger" json:"ledger"`

	Economics struct {
		DefaultPrice     uint64 `mapstructure:"default_price" json:"default_price"`
		DefaultDeposit   uint64 `mapstructure:"default_deposit" json:"default_deposit"`
		MinDeposit       uint64 `mapstructure:"min_deposit" json:"min_deposit"`
		AutoSettleThreshold uint64 `mapstructure:"auto_settle_threshold" json:"auto_settle_threshold"`
	} `mapstructure:"economics" json:"economics"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

func setDefaults() {
	viper.SetDefault("identity.key_path", "identity.key")
	viper.SetDefault("storage.db_path", "data/db")
	viper.SetDefault("storage.content_dir", "data/content")
	viper.SetDefault("storage.cache_dir", "data/cache")
	viper.SetDefault("storage.cache_max_bytes", uint64(1<<30))
	viper.SetDefault("storage.cache_max_items", 10_000)
	viper.SetDefault("economics.default_price", uint64(0))
	viper.SetDefault("economics.default_deposit", uint64(1_000_000))
	viper.SetDefault("economics.min_deposit", uint64(1))
	viper.SetDefault("economics.auto_settle_threshold", uint64(10_000_000_000))
	viper.SetDefault("logging.level", "info")
}

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files (e.g. "bootstrap" reads bootstrap.yaml over default.yaml). If env is
// empty, only the default configuration is loaded. A .env file in the
// working directory, if present, is loaded before viper's environment
// binding so NODALYNC_-prefixed overrides can come from either source.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // optional: no .env file is not an error

	setDefaults()
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("nodalync")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the NODALYNC_ENV environment
// variable to pick an override file, defaulting to none.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("NODALYNC_ENV", ""))
}
