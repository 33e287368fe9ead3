package util

import (
	"github.com/berfenger/multitek2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Tablets: []config.TabletConfig{
			{
				Id:   "hall",
				Host: "-.-.-.-",
				Port: 8123,
			},
		},
		Poll: config.PollConfig{
			UpdateIntervalMillis: 30000,
			ProbeIntervalSeconds: 0,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "multitek",
			HADiscoveryTopic: "homeassistant",
		},
		Port: 8080,
	}
}
