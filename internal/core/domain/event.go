package domain

import "fmt"

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

type FloatSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value    float64
	Decimals uint
}

type BinarySensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type SwitchSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

type TextSensorUpdateEvent struct {
	SensorUpdateEventMixIn
	Value string
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}

// AttributesUpdateEvent carries the extra state attributes of an entity.
// Component is the HA component the entity belongs to (sensor, switch).
type AttributesUpdateEvent struct {
	SensorUpdateEventMixIn
	Component  string
	Attributes map[string]any
}

// EntitiesAddedEvent announces entities that need a discovery config.
type EntitiesAddedEvent struct {
	TabletId string
	Sensors  []GenericSensor
	Switches []GenericSwitch
}
