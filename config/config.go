package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Game   GameConfig   `mapstructure:"game"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Storage driver selection
type StoreConfig struct {
	Driver       string `mapstructure:"driver"` // "sqlite", "jsonserver" or "memory"
	Path         string `mapstructure:"path"`   // sqlite database file
	URL          string `mapstructure:"url"`    // jsonserver base URL
	PollInterval int    `mapstructure:"poll_interval"` // jsonserver, seconds
}

type GameConfig struct {
	ID string `mapstructure:"id"`
	// ReachableStates are the neighbor states that expose a locked square
	// for selection.
	ReachableStates []string `mapstructure:"reachable_states"`
}

type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
	UsersPath     string `mapstructure:"users_path"` // users database file
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults
	}

	// Read local config file for overrides (ignored by git)
	viper.SetConfigName("config.local")
	viper.MergeInConfig()

	viper.SetEnvPrefix("MILESTONE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:8080"})

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.path", "./milestone.db")
	viper.SetDefault("store.url", "http://localhost:3000")
	viper.SetDefault("store.poll_interval", 5)

	viper.SetDefault("game.id", "fallcrate")
	viper.SetDefault("game.reachable_states", []string{"unlocked"})

	viper.SetDefault("auth.session_secret", "your-secret-key-change-this-in-production")
	viper.SetDefault("auth.users_path", "./users.db")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
