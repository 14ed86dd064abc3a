package core

import (
	"context"

	"github.com/sentinelops/ptt/internal/domain"
)

// DeviceEnumerator lists the audio endpoints the runtime exposes. The OS or
// browser runtime owning the hardware is a collaborator behind this
// interface; failures surface as ErrDeviceEnumeration (e.g. permission
// denied).
type DeviceEnumerator interface {
	Enumerate(ctx context.Context) ([]domain.Device, error)
}
