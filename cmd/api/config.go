package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/berfenger/multitek2mqtt/internal/config"

	"github.com/spf13/viper"
)

func initConfig() (*config.Config, error) {

	// alias PORT => MULTITEK_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("MULTITEK_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("multitek")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = config.ParseLogLevel(viper.GetString("log_level"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	// tablet keys need a default to be read from the environment
	viper.SetDefault("tablet.id", "")
	viper.SetDefault("tablet.host", "")
	viper.SetDefault("tablet.port", config.DEFAULT_TABLET_PORT)
	viper.SetDefault("tablet.api_key", "")
	viper.SetDefault("tablet.use_auth", false)
	viper.SetDefault("poll.update_interval_millis", 30000)
	viper.SetDefault("poll.probe_interval_seconds", 60)
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.ha_discovery_enable", true)
	viper.SetDefault("mqtt.base_topic", "multitek")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	for i := range cfg.Tablets {
		if cfg.Tablets[i].APIKey != "" {
			cfg.Tablets[i].APIKey = "*redacted*"
		}
	}
	slog.Info("Using", "config", cfg)
}
