package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sentinelops/ptt/internal/core"
	"github.com/sentinelops/ptt/internal/domain"
)

var ErrUnknownDevice = errors.New("unknown device id")

// DeviceRegistry tracks the runtime's audio endpoints and the client-local
// input/output selection. Every enumeration re-validates the selection: an
// empty or vanished selection falls back to the first available device of
// its kind, so a channel is never un-joinable while a usable device exists.
// While an audio session is bound, selection changes are applied to the live
// session or fail loudly, never silently no-op.
type DeviceRegistry struct {
	mu       sync.RWMutex
	enum     core.DeviceEnumerator
	devices  []domain.Device
	input    domain.DeviceID
	output   domain.DeviceID
	live     core.AudioSession
	onChange func(devices []domain.Device)
}

func NewDeviceRegistry(enum core.DeviceEnumerator) *DeviceRegistry {
	return &DeviceRegistry{enum: enum}
}

// OnChange registers the device-list observer. Set once at mount.
func (r *DeviceRegistry) OnChange(fn func(devices []domain.Device)) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Refresh re-enumerates devices. Fails with ErrDeviceEnumeration when the
// runtime denies access.
func (r *DeviceRegistry) Refresh(ctx context.Context) ([]domain.Device, error) {
	devices, err := r.enum.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceEnumeration, err)
	}

	r.mu.Lock()
	r.devices = devices
	if _, ok := lookupDevice(devices, r.input, domain.DeviceInput); !ok {
		r.input = ""
		if dev, ok := firstOfKind(devices, domain.DeviceInput); ok {
			r.input = dev.ID
			log.Info().Str("module", "app.devices").Str("device", string(dev.ID)).Msg("auto-selected input")
		}
	}
	if _, ok := lookupDevice(devices, r.output, domain.DeviceOutput); !ok {
		r.output = ""
		if dev, ok := firstOfKind(devices, domain.DeviceOutput); ok {
			r.output = dev.ID
			log.Info().Str("module", "app.devices").Str("device", string(dev.ID)).Msg("auto-selected output")
		}
	}
	fn := r.onChange
	snapshot := append([]domain.Device(nil), devices...)
	r.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
	return snapshot, nil
}

func (r *DeviceRegistry) Devices() []domain.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Device(nil), r.devices...)
}

func (r *DeviceRegistry) SelectInput(id domain.DeviceID) error {
	return r.selectDevice(id, domain.DeviceInput)
}

func (r *DeviceRegistry) SelectOutput(id domain.DeviceID) error {
	return r.selectDevice(id, domain.DeviceOutput)
}

func (r *DeviceRegistry) selectDevice(id domain.DeviceID, kind domain.DeviceKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.input
	if kind == domain.DeviceOutput {
		current = r.output
	}
	if current == id {
		return nil
	}

	dev, ok := lookupDevice(r.devices, id, kind)
	if !ok {
		return fmt.Errorf("%w: %s (%s)", ErrUnknownDevice, id, kind)
	}

	if r.live != nil {
		var err error
		if kind == domain.DeviceInput {
			err = r.live.SwitchInput(dev)
		} else {
			err = r.live.SwitchOutput(dev)
		}
		if err != nil {
			return fmt.Errorf("apply %s device to live session: %w", kind, err)
		}
	}

	if kind == domain.DeviceInput {
		r.input = id
	} else {
		r.output = id
	}
	log.Info().Str("module", "app.devices").Str("kind", string(kind)).Str("device", string(id)).Msg("device selected")
	return nil
}

// Selected returns the devices to bind on connect. Fails with
// ErrNoDeviceSelected when either side has no selection, which only happens
// while no device of that kind has been enumerated.
func (r *DeviceRegistry) Selected() (input, output domain.Device, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, okIn := lookupDevice(r.devices, r.input, domain.DeviceInput)
	out, okOut := lookupDevice(r.devices, r.output, domain.DeviceOutput)
	if !okIn || !okOut {
		return domain.Device{}, domain.Device{}, core.ErrNoDeviceSelected
	}
	return in, out, nil
}

// BindSession attaches the live audio session so later selection changes are
// applied to it. UnbindSession detaches on disconnect.
func (r *DeviceRegistry) BindSession(s core.AudioSession) {
	r.mu.Lock()
	r.live = s
	r.mu.Unlock()
}

func (r *DeviceRegistry) UnbindSession() {
	r.mu.Lock()
	r.live = nil
	r.mu.Unlock()
}

func firstOfKind(devices []domain.Device, kind domain.DeviceKind) (domain.Device, bool) {
	for _, d := range devices {
		if d.Kind == kind {
			return d, true
		}
	}
	return domain.Device{}, false
}

func lookupDevice(devices []domain.Device, id domain.DeviceID, kind domain.DeviceKind) (domain.Device, bool) {
	if id == "" {
		return domain.Device{}, false
	}
	for _, d := range devices {
		if d.ID == id && d.Kind == kind {
			return d, true
		}
	}
	return domain.Device{}, false
}
