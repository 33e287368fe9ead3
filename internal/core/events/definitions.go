package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"

	. "github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE     = "bridge"
	SENSOR_SUFFIX_DEVICE_COUNT = "device_count"
	SENSOR_SUFFIX_CONNECTION   = "connection_status"
	SENSOR_SUFFIX_ONLINE       = "online"
	STATE_CLASS_MEASUREMENT    = "measurement"
	DEVICE_CLASS_CONNECTIVITY  = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC    = "diagnostic"
	SENSOR_TYPE_SENSOR         = "sensor"
	SENSOR_TYPE_BINARY         = "binary_sensor"
	COMPONENT_SWITCH           = "switch"
	STATE_CONNECTED            = "Connected"
	STATE_DISCONNECTED         = "Disconnected"
	MANUFACTURER               = "Multitek"
	MODEL                      = "Smart Tablet"
	ATTR_DEVICE_TYPE           = "device_type"
	ATTR_ROOM_NAME             = "room_name"
	ATTR_FLAT_NAME             = "flat_name"
	ATTR_FAVOURITE             = "favourite"
	ATTR_DEVICE_TYPES          = "device_types"
	ATTR_TABLET_IP             = "tablet_ip"
	ATTR_TABLET_PORT           = "tablet_port"
	ATTR_LAST_UPDATE           = "last_update"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("multitek_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "ACasal",
		Model:        "multitek2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Multitek2MQTT %s", md5HashShort(baseTopic)),
	}
}

func TabletDevice(tablet config.TabletConfig, bridge Device) Device {
	return Device{
		Id:               fmt.Sprintf("multitek_tablet_%s", md5HashShort(fmt.Sprintf("%s:%d", tablet.Host, tablet.Port))),
		Name:             fmt.Sprintf("Multitek Tablet %s", tablet.Host),
		Manufacturer:     MANUFACTURER,
		Model:            MODEL,
		ConfigurationURL: fmt.Sprintf("http://%s:%d", tablet.Host, tablet.Port),
		ViaDevice:        bridge.Id,
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

func BridgeSensors(bridge Device) []GenericSensor {
	return []GenericSensor{{
		Device:         bridge,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Bridge state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridge.Id, SENSOR_ID_BRIDGE_STATE),
	}}
}

func DeviceCountSensorId(tabletId string) string {
	return fmt.Sprintf("%s_%s", tabletId, SENSOR_SUFFIX_DEVICE_COUNT)
}

func ConnectionStatusSensorId(tabletId string) string {
	return fmt.Sprintf("%s_%s", tabletId, SENSOR_SUFFIX_CONNECTION)
}

func OnlineSensorId(tabletId string) string {
	return fmt.Sprintf("%s_%s", tabletId, SENSOR_SUFFIX_ONLINE)
}

func SwitchId(tabletId, deviceId string) string {
	return fmt.Sprintf("%s_%s", tabletId, ObjectId(deviceId))
}

// ObjectId maps a device id onto the topic-safe alphabet. Rewritten ids get a
// hash suffix so two devices never share a topic.
func ObjectId(deviceId string) string {
	safe := nonObjectIdChars.ReplaceAllString(deviceId, "_")
	if safe == deviceId && safe != "" {
		return safe
	}
	return fmt.Sprintf("%s_%s", safe, md5HashShort(deviceId))
}

var nonObjectIdChars = regexp.MustCompile("[^a-zA-Z0-9_]")

// TabletSensors are the diagnostic sensors every tablet exposes. The online
// sensor is only present when the connection probe runs.
func TabletSensors(tabletDevice Device, tabletId string, withProbe bool) []GenericSensor {
	sensors := []GenericSensor{
		{
			Device:        tabletDevice,
			Id:            DeviceCountSensorId(tabletId),
			SensorType:    SENSOR_TYPE_SENSOR,
			Name:          "Connected Devices",
			StateClass:    STATE_CLASS_MEASUREMENT,
			Icon:          "mdi:devices",
			UniqueId:      uniqueId(tabletDevice.Id, SENSOR_SUFFIX_DEVICE_COUNT),
			HasAttributes: true,
		},
		{
			Device:        tabletDevice,
			Id:            ConnectionStatusSensorId(tabletId),
			SensorType:    SENSOR_TYPE_SENSOR,
			Name:          "Connection Status",
			Icon:          "mdi:connection",
			UniqueId:      uniqueId(tabletDevice.Id, SENSOR_SUFFIX_CONNECTION),
			HasAttributes: true,
		},
	}
	if withProbe {
		sensors = append(sensors, GenericSensor{
			Device:         tabletDevice,
			Id:             OnlineSensorId(tabletId),
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Online",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(tabletDevice.Id, SENSOR_SUFFIX_ONLINE),
		})
	}
	return sensors
}

func RelaySwitch(tabletDevice Device, tabletId string, d multitek.Device) GenericSwitch {
	return GenericSwitch{
		Device:        tabletDevice,
		Id:            SwitchId(tabletId, d.ID),
		Name:          RelayName(d),
		Icon:          d.Type.Icon(),
		UniqueId:      uniqueId(tabletDevice.Id, d.ID),
		HasAttributes: true,
	}
}

func RelayName(d multitek.Device) string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("Relay %s", d.ID)
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}
