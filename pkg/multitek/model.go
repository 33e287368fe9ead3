package multitek

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// relay types, matching the tablet firmware constants
const (
	RelayTypeLight    RelayType = 1
	RelayTypeShutter  RelayType = 2
	RelayTypeOnOff    RelayType = 3
	RelayTypeGas      RelayType = 4
	RelayTypeElectric RelayType = 5
	RelayTypeWater    RelayType = 6
)

type RelayType int

var relayTypeIcons = map[RelayType]string{
	RelayTypeLight:    "mdi:lightbulb",
	RelayTypeShutter:  "mdi:window-shutter",
	RelayTypeOnOff:    "mdi:toggle-switch",
	RelayTypeGas:      "mdi:gas-cylinder",
	RelayTypeElectric: "mdi:flash",
	RelayTypeWater:    "mdi:water",
}

var relayTypeNames = map[RelayType]string{
	RelayTypeLight:    "Light",
	RelayTypeShutter:  "Shutter",
	RelayTypeOnOff:    "Switch",
	RelayTypeGas:      "Gas Valve",
	RelayTypeElectric: "Electric Switch",
	RelayTypeWater:    "Water Valve",
}

func (t RelayType) Icon() string {
	if icon, ok := relayTypeIcons[t]; ok {
		return icon
	}
	return "mdi:toggle-switch"
}

func (t RelayType) DisplayName() string {
	if name, ok := relayTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// IsSwitch reports whether relays of this type hold a plain on/off state.
// Shutters are excluded.
func (t RelayType) IsSwitch() bool {
	switch t {
	case RelayTypeLight, RelayTypeOnOff, RelayTypeGas, RelayTypeElectric, RelayTypeWater:
		return true
	default:
		return false
	}
}

// Device is one relay as reported by GET /api/devices.
type Device struct {
	ID        string    `json:"id"`
	Type      RelayType `json:"type"`
	Name      string    `json:"name"`
	TypeName  string    `json:"type_name"`
	RoomName  string    `json:"room_name"`
	FlatName  string    `json:"flat_name"`
	Favourite bool      `json:"favourite"`
	State     bool      `json:"state"`
}

func (d *Device) UnmarshalJSON(data []byte) error {
	type rawDevice struct {
		ID        json.RawMessage `json:"id"`
		Type      *RelayType      `json:"type"`
		Name      string          `json:"name"`
		TypeName  string          `json:"type_name"`
		RoomName  string          `json:"room_name"`
		FlatName  string          `json:"flat_name"`
		Favourite bool            `json:"favourite"`
		State     bool            `json:"state"`
	}
	var raw rawDevice
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := parseID(raw.ID)
	if err != nil {
		return err
	}
	// firmware omits the type for plain relays
	relayType := RelayTypeOnOff
	if raw.Type != nil {
		relayType = *raw.Type
	}
	*d = Device{
		ID:        id,
		Type:      relayType,
		Name:      raw.Name,
		TypeName:  raw.TypeName,
		RoomName:  raw.RoomName,
		FlatName:  raw.FlatName,
		Favourite: raw.Favourite,
		State:     raw.State,
	}
	return nil
}

// DevicePatch holds the fields returned by a relay command. Fields the tablet
// did not send are nil and must be left untouched when applied.
type DevicePatch struct {
	ID        *string    `json:"id,omitempty"`
	Type      *RelayType `json:"type,omitempty"`
	Name      *string    `json:"name,omitempty"`
	TypeName  *string    `json:"type_name,omitempty"`
	RoomName  *string    `json:"room_name,omitempty"`
	FlatName  *string    `json:"flat_name,omitempty"`
	Favourite *bool      `json:"favourite,omitempty"`
	State     *bool      `json:"state,omitempty"`
}

func (p *DevicePatch) UnmarshalJSON(data []byte) error {
	type rawPatch struct {
		ID        json.RawMessage `json:"id"`
		Type      *RelayType      `json:"type"`
		Name      *string         `json:"name"`
		TypeName  *string         `json:"type_name"`
		RoomName  *string         `json:"room_name"`
		FlatName  *string         `json:"flat_name"`
		Favourite *bool           `json:"favourite"`
		State     *bool           `json:"state"`
	}
	var raw rawPatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = DevicePatch{
		Type:      raw.Type,
		Name:      raw.Name,
		TypeName:  raw.TypeName,
		RoomName:  raw.RoomName,
		FlatName:  raw.FlatName,
		Favourite: raw.Favourite,
		State:     raw.State,
	}
	if len(raw.ID) > 0 && string(raw.ID) != "null" {
		id, err := parseID(raw.ID)
		if err != nil {
			return err
		}
		p.ID = &id
	}
	return nil
}

// ApplyTo returns a copy of d with every non-nil patch field set. The id of
// d is never changed.
func (p DevicePatch) ApplyTo(d Device) Device {
	if p.Type != nil {
		d.Type = *p.Type
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.TypeName != nil {
		d.TypeName = *p.TypeName
	}
	if p.RoomName != nil {
		d.RoomName = *p.RoomName
	}
	if p.FlatName != nil {
		d.FlatName = *p.FlatName
	}
	if p.Favourite != nil {
		d.Favourite = *p.Favourite
	}
	if p.State != nil {
		d.State = *p.State
	}
	return d
}

type StatusInfo struct {
	Online bool `json:"online"`
}

type DiscoveryAPI struct {
	AuthRequired bool   `json:"auth_required"`
	Version      string `json:"version,omitempty"`
}

type DiscoveryInfo struct {
	Name    string       `json:"name,omitempty"`
	Model   string       `json:"model,omitempty"`
	Version string       `json:"version,omitempty"`
	API     DiscoveryAPI `json:"api"`
}

type devicesResponse struct {
	Devices []Device `json:"devices"`
}

type relayStateRequest struct {
	State bool `json:"state"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// ids are strings on recent firmware and integers on older builds
func parseID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("%w: device without id", ErrInvalidResponse)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: invalid device id %s", ErrInvalidResponse, string(raw))
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return strings.TrimSpace(n.String()), nil
}
