package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	MIN_UPDATE_INTERVAL_MILLIS = 5000
	DEFAULT_TABLET_PORT        = 8123
)

type Config struct {
	LogLevel zapcore.Level
	Tablet   TabletConfig   `mapstructure:"tablet"`
	Tablets  []TabletConfig `mapstructure:"tablets"`
	Poll     PollConfig     `mapstructure:"poll"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

// TabletConfig is the connection config of one tablet. It does not change
// while the coordinator for that tablet is running.
type TabletConfig struct {
	Id      string `mapstructure:"id"`
	Host    string `mapstructure:"host"`
	Port    uint   `mapstructure:"port"`
	APIKey  string `mapstructure:"api_key"`
	UseAuth bool   `mapstructure:"use_auth"`
}

type PollConfig struct {
	UpdateIntervalMillis uint32 `mapstructure:"update_interval_millis"`
	ProbeIntervalSeconds uint32 `mapstructure:"probe_interval_seconds"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func (p PollConfig) UpdateInterval() time.Duration {
	return time.Duration(p.UpdateIntervalMillis) * time.Millisecond
}

func (p PollConfig) ProbeInterval() time.Duration {
	return time.Duration(p.ProbeIntervalSeconds) * time.Second
}

// TabletId is the object id prefix used for the tablet's entities.
func (t TabletConfig) TabletId() string {
	if t.Id != "" {
		return t.Id
	}
	return "tablet_" + nonIdChars.ReplaceAllString(strings.ToLower(t.Host), "_")
}

// AllTablets merges the single tablet block with the tablets list.
func (c *Config) AllTablets() []TabletConfig {
	var tablets []TabletConfig
	if c.Tablet.Host != "" {
		tablets = append(tablets, c.Tablet)
	}
	return append(tablets, c.Tablets...)
}

var nonIdChars = regexp.MustCompile("[^a-z0-9_]+")

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	if !baseTopicRegexp.MatchString(lowerBaseTopic) {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

func CheckTablet(t TabletConfig) (TabletConfig, error) {
	if t.Host == "" {
		return t, errors.New("tablet host is required")
	}
	if t.Port == 0 {
		t.Port = DEFAULT_TABLET_PORT
	}
	if t.Port > 65535 {
		return t, fmt.Errorf("tablet %s: port %d out of range", t.Host, t.Port)
	}
	if t.UseAuth && t.APIKey == "" {
		return t, fmt.Errorf("tablet %s: use_auth requires api_key", t.Host)
	}
	if t.Id != "" {
		id, err := CheckMQTTTopic(t.Id)
		if err != nil {
			return t, fmt.Errorf("tablet %s: invalid id: %w", t.Host, err)
		}
		t.Id = id
	}
	return t, nil
}

// Validate checks bounds and normalises topics and tablets in place.
func (c *Config) Validate() error {
	baseTopic, err := CheckMQTTTopic(c.MQTT.BaseTopic)
	if err != nil {
		return errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	c.MQTT.BaseTopic = baseTopic

	hadBaseTopic, err := CheckMQTTTopic(c.MQTT.HADiscoveryTopic)
	if err != nil {
		return errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	c.MQTT.HADiscoveryTopic = hadBaseTopic

	if c.Poll.UpdateIntervalMillis < MIN_UPDATE_INTERVAL_MILLIS {
		return fmt.Errorf("config param poll.update_interval_millis should be >= %d", MIN_UPDATE_INTERVAL_MILLIS)
	}

	tablets := c.AllTablets()
	if len(tablets) == 0 {
		return errors.New("at least one tablet must be configured")
	}
	seen := make(map[string]bool, len(tablets))
	for i, t := range tablets {
		checked, err := CheckTablet(t)
		if err != nil {
			return err
		}
		if seen[checked.TabletId()] {
			return fmt.Errorf("duplicated tablet id %s", checked.TabletId())
		}
		seen[checked.TabletId()] = true
		tablets[i] = checked
	}
	c.Tablet = TabletConfig{}
	c.Tablets = tablets
	return nil
}

func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.WarnLevel
	}
}
