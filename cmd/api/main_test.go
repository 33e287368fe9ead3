package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "discover", "test-auth"}, names)
}

func TestInitConfigFromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("PORT", "9090")
	t.Setenv("MULTITEK_TABLET_HOST", "192.168.1.50")
	t.Setenv("MULTITEK_TABLET_API_KEY", "secret")
	t.Setenv("MULTITEK_TABLET_USE_AUTH", "true")
	t.Setenv("MULTITEK_MQTT_BASE_TOPIC", "Multitek")

	cfg, err := initConfig()
	require.NoError(t, err)
	assert.Equal(t, uint(9090), cfg.Port)
	assert.Equal(t, zapcore.WarnLevel, cfg.LogLevel)
	assert.Equal(t, "multitek", cfg.MQTT.BaseTopic)
	assert.Equal(t, uint32(30000), cfg.Poll.UpdateIntervalMillis)
	require.Len(t, cfg.Tablets, 1)
	assert.Equal(t, "192.168.1.50", cfg.Tablets[0].Host)
	assert.Equal(t, uint(8123), cfg.Tablets[0].Port)
	assert.True(t, cfg.Tablets[0].UseAuth)
}

func TestInitConfigRequiresTablet(t *testing.T) {
	viper.Reset()
	t.Setenv("MULTITEK_TABLET_HOST", "")

	_, err := initConfig()
	assert.Error(t, err)
}
