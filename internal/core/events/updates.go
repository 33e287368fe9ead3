package events

import (
	"time"

	. "github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"
)

func BridgeStateEvent(online bool) BridgeStateUpdateEvent {
	return BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SENSOR_ID_BRIDGE_STATE},
		Value:                  online,
	}
}

func DeviceCountUpdateEvents(tabletId string, tablet config.TabletConfig, snapshot Snapshot) []any {
	id := DeviceCountSensorId(tabletId)
	return []any{
		FloatSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
			Value:                  float64(len(snapshot)),
			Decimals:               0,
		},
		AttributesUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
			Component:              SENSOR_TYPE_SENSOR,
			Attributes: map[string]any{
				ATTR_DEVICE_TYPES: snapshot.CountByTypeName(),
				ATTR_TABLET_IP:    tablet.Host,
				ATTR_TABLET_PORT:  tablet.Port,
			},
		},
	}
}

func ConnectionStateText(status CoordinatorStatus) string {
	if status.LastUpdateSuccess {
		return STATE_CONNECTED
	}
	return STATE_DISCONNECTED
}

func ConnectionStatusUpdateEvents(tabletId string, tablet config.TabletConfig, status CoordinatorStatus) []any {
	id := ConnectionStatusSensorId(tabletId)
	attrs := map[string]any{
		ATTR_TABLET_IP:   tablet.Host,
		ATTR_TABLET_PORT: tablet.Port,
	}
	if status.LastUpdateSuccess && status.LastUpdateTime != nil {
		attrs[ATTR_LAST_UPDATE] = status.LastUpdateTime.Format(time.RFC3339)
	}
	return []any{
		TextSensorUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
			Value:                  ConnectionStateText(status),
		},
		AttributesUpdateEvent{
			SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: id},
			Component:              SENSOR_TYPE_SENSOR,
			Attributes:             attrs,
		},
	}
}

func SwitchStateUpdateEvent(tabletId, deviceId string, on bool) SwitchSensorUpdateEvent {
	return SwitchSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SwitchId(tabletId, deviceId)},
		Value:                  on,
	}
}

func SwitchAttributesUpdateEvent(tabletId string, d multitek.Device) AttributesUpdateEvent {
	return AttributesUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{Id: SwitchId(tabletId, d.ID)},
		Component:              COMPONENT_SWITCH,
		Attributes: map[string]any{
			ATTR_DEVICE_TYPE: TypeName(d),
			ATTR_ROOM_NAME:   d.RoomName,
			ATTR_FLAT_NAME:   d.FlatName,
			ATTR_FAVOURITE:   d.Favourite,
		},
	}
}
