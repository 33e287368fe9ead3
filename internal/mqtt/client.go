package mqtt

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"

	COMPONENT_SENSOR        = "sensor"
	COMPONENT_BINARY_SENSOR = "binary_sensor"
	COMPONENT_SWITCH        = "switch"
)

var (
	ErrInvalidCommand   = errors.New("invalid command topic")
	ErrPublishTimeout   = errors.New("MQTT publish timed out")
	ErrConnectTimeout   = errors.New("MQTT connect timed out")
	ErrSubscribeTimeout = errors.New("MQTT subscribe timed out")
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(ClientId())
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic)
	opts.WillQos = 0

	return opts
}

// ClientId returns a fresh broker client id. Two bridges on the same broker
// must never share one.
func ClientId() string {
	return fmt.Sprintf("multitek2mqtt_%s", uuid.NewString()[:8])
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return NewMQTTClient(cfg.MQTT, mqtt.NewClient(opts))
}

func NewMQTTClient(cfg config.MQTTConfig, client mqtt.Client) *MQTTClient {
	return &MQTTClient{
		client:              client,
		cfg:                 cfg,
		switchCommandRegexp: switchCommandExtractor(cfg.BaseTopic),
	}
}

type MQTTClient struct {
	client              mqtt.Client
	cfg                 config.MQTTConfig
	switchCommandRegexp *regexp.Regexp
}

// ParsedMQTTCommand is a switch command addressed to <tablet>_<device>.
type ParsedMQTTCommand struct {
	ObjectId string
	Payload  string
}

func (c *MQTTClient) baseTopic() string {
	return c.cfg.BaseTopic
}

func (c *MQTTClient) DiscoveryTopic() string {
	return c.cfg.HADiscoveryTopic
}

func (c *MQTTClient) BridgeStateTopic() string {
	return bridgeStateTopic(c.baseTopic())
}

func (c *MQTTClient) SensorStateTopic(sensorId string) string {
	return c.stateTopic(COMPONENT_SENSOR, sensorId)
}

func (c *MQTTClient) BinarySensorStateTopic(sensorId string) string {
	return c.stateTopic(COMPONENT_BINARY_SENSOR, sensorId)
}

func (c *MQTTClient) SwitchStateTopic(switchId string) string {
	return c.stateTopic(COMPONENT_SWITCH, switchId)
}

func (c *MQTTClient) SwitchCommandTopic(switchId string) string {
	return fmt.Sprintf("%s/%s/%s/command", c.baseTopic(), COMPONENT_SWITCH, switchId)
}

// AttributesTopic carries the JSON attributes of an entity.
func (c *MQTTClient) AttributesTopic(component, id string) string {
	return fmt.Sprintf("%s/%s/%s/attributes", c.baseTopic(), component, id)
}

func (c *MQTTClient) stateTopic(component, id string) string {
	return fmt.Sprintf("%s/%s/%s/state", c.baseTopic(), component, id)
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return c.parseCommand(msg.Topic(), msg.Payload())
}

func (c *MQTTClient) parseCommand(topic string, payload []byte) (*ParsedMQTTCommand, error) {
	matches := c.switchCommandRegexp.FindStringSubmatch(topic)
	if len(matches) != 2 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCommand, topic)
	}
	return &ParsedMQTTCommand{
		ObjectId: matches[1],
		Payload:  string(payload),
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go waitToken(token, timeout, ErrPublishTimeout, continuation)
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.Subscribe(topic, qos, handler)
	go waitToken(token, timeout, ErrSubscribeTimeout, continuation)
}

func (c *MQTTClient) SubscribeToCommandTopic(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.Subscribe(c.commandTopic(), 1, handler, continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go waitToken(token, timeout, ErrConnectTimeout, continuation)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func (c *MQTTClient) commandTopic() string {
	return fmt.Sprintf("%s/%s/+/command", c.baseTopic(), COMPONENT_SWITCH)
}

func waitToken(token mqtt.Token, timeout time.Duration, timeoutErr error, continuation func(error)) {
	if !token.WaitTimeout(timeout) {
		continuation(timeoutErr)
		return
	}
	continuation(token.Error())
}

func switchCommandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/switch/([a-zA-Z0-9_]+)/command$", regexp.QuoteMeta(baseTopic)))
}

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}
