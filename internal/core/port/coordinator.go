package port

import (
	"context"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"
)

// Coordinator is the view of a tablet coordinator that presentation
// adapters depend on.
type Coordinator interface {
	TabletId() string
	Tablet() config.TabletConfig
	Snapshot() domain.Snapshot
	Status() domain.CoordinatorStatus
	Subscribe(observer func(domain.SnapshotUpdate)) func()
	SubscribeStatus(observer func(domain.CoordinatorStatus)) func()
	SendCommand(ctx context.Context, deviceId string, command domain.RelayCommand, value *bool) (*multitek.DevicePatch, error)
}
