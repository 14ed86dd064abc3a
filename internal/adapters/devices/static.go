// Package devices provides core.DeviceEnumerator implementations. Real
// enumeration belongs to the hosting runtime (browser or OS audio stack);
// deployments without one run on a configured static list.
package devices

import (
	"context"

	"github.com/sentinelops/ptt/internal/domain"
)

// Static serves a fixed device list from configuration.
type Static struct {
	devices []domain.Device
}

func NewStatic(devs []domain.Device) *Static {
	return &Static{devices: append([]domain.Device(nil), devs...)}
}

func (s *Static) Enumerate(_ context.Context) ([]domain.Device, error) {
	return append([]domain.Device(nil), s.devices...), nil
}
