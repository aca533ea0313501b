package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	StoreDriver string `mapstructure:"store_driver"`
	StorePath   string `mapstructure:"store_path"`

	RoomTTL     time.Duration `mapstructure:"room_ttl"`
	ChatHistory int           `mapstructure:"chat_history"`

	RateLimitMessages int           `mapstructure:"rate_limit_messages"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "25s")
	v.SetDefault("store_driver", "memory")
	v.SetDefault("store_path", "./data/huddle.db")
	v.SetDefault("room_ttl", "30m")
	v.SetDefault("chat_history", 100)
	v.SetDefault("rate_limit_messages", 30)
	v.SetDefault("rate_limit_window", "10s")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
