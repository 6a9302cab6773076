package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port int
	}
	Database struct {
		Path string
	}
	Log struct {
		Level   string
		Console bool
	}
	Auth struct {
		JWTSecret string `mapstructure:"jwt_secret"`
	}
	SMTP struct {
		Host     string
		Port     int
		From     string
		Password string
	}
	Slack struct {
		Token   string
		Channel string
	}
	Scheduler struct {
		// TickSpec is the cron entry driving Engine.Tick. Keep a single
		// entry: in-process overlap is guarded, cross-process is not.
		TickSpec    string        `mapstructure:"tick_spec"`
		TemplateDir string        `mapstructure:"template_dir"`
		StaleAfter  time.Duration `mapstructure:"stale_after"`
	}
}

// Load reads config.yaml from the working directory, falling back to
// defaults for anything unset.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.path", "data/reportd.db")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.console", true)
	viper.SetDefault("scheduler.tick_spec", "* * * * *")
	viper.SetDefault("scheduler.template_dir", "templates")
	viper.SetDefault("scheduler.stale_after", time.Hour)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %v", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %v", err)
	}
	return &cfg, nil
}
