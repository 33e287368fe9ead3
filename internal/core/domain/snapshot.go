package domain

import (
	"maps"
	"time"

	"github.com/berfenger/multitek2mqtt/pkg/multitek"
)

// Snapshot is the full set of relays last reported by a tablet, keyed by id.
// A Snapshot handed out by the coordinator is never mutated afterwards.
type Snapshot map[string]multitek.Device

func NewSnapshot(devices []multitek.Device) Snapshot {
	snapshot := make(Snapshot, len(devices))
	for _, d := range devices {
		snapshot[d.ID] = d
	}
	return snapshot
}

func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return maps.Clone(s)
}

// WithPatch returns a copy of s with the patch merged into the entry for
// deviceId. The second value is false when the entry does not exist, in which
// case s itself is returned.
func (s Snapshot) WithPatch(deviceId string, patch multitek.DevicePatch) (Snapshot, bool) {
	current, ok := s[deviceId]
	if !ok {
		return s, false
	}
	next := s.Clone()
	next[deviceId] = patch.ApplyTo(current)
	return next, true
}

// CountByTypeName groups relays by the type name reported by the tablet,
// falling back to the display name of the relay type.
func (s Snapshot) CountByTypeName() map[string]int {
	counts := make(map[string]int)
	for _, d := range s {
		counts[TypeName(d)]++
	}
	return counts
}

func TypeName(d multitek.Device) string {
	if d.TypeName != "" {
		return d.TypeName
	}
	return d.Type.DisplayName()
}

type CoordinatorStatus struct {
	LastUpdateSuccess bool
	LastUpdateTime    *time.Time
	LastError         error
}

// SnapshotUpdate is what data observers receive after a successful refresh
// or command.
type SnapshotUpdate struct {
	TabletId string
	Snapshot Snapshot
	Status   CoordinatorStatus
}
