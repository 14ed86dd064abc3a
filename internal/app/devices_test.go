package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelops/ptt/internal/core"
	"github.com/sentinelops/ptt/internal/domain"
)

type fakeEnumerator struct {
	devices []domain.Device
	err     error
}

func (f *fakeEnumerator) Enumerate(context.Context) ([]domain.Device, error) {
	return f.devices, f.err
}

type fakeAudioSession struct {
	inputs     []domain.Device
	switchErr  error
	leaveCalls int
}

func (f *fakeAudioSession) SwitchInput(d domain.Device) error {
	if f.switchErr != nil {
		return f.switchErr
	}
	f.inputs = append(f.inputs, d)
	return nil
}

func (f *fakeAudioSession) SwitchOutput(domain.Device) error {
	return core.ErrDeviceSwitchUnsupported
}

func (f *fakeAudioSession) Leave() error {
	f.leaveCalls++
	return nil
}

func testDevices() []domain.Device {
	return []domain.Device{
		{ID: "mic-1", Kind: domain.DeviceInput, Label: "Desk Mic"},
		{ID: "mic-2", Kind: domain.DeviceInput, Label: "Headset Mic"},
		{ID: "spk-1", Kind: domain.DeviceOutput, Label: "Headset"},
	}
}

func TestDeviceRegistry_AutoSelectOnFirstEnumeration(t *testing.T) {
	reg := NewDeviceRegistry(&fakeEnumerator{devices: testDevices()})

	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	in, out, err := reg.Selected()
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceID("mic-1"), in.ID)
	assert.Equal(t, domain.DeviceID("spk-1"), out.ID)
}

func TestDeviceRegistry_EnumerationDenied(t *testing.T) {
	reg := NewDeviceRegistry(&fakeEnumerator{err: errors.New("permission denied")})

	_, err := reg.Refresh(context.Background())
	assert.ErrorIs(t, err, core.ErrDeviceEnumeration)

	_, _, err = reg.Selected()
	assert.ErrorIs(t, err, core.ErrNoDeviceSelected)
}

func TestDeviceRegistry_SelectIsIdempotent(t *testing.T) {
	reg := NewDeviceRegistry(&fakeEnumerator{devices: testDevices()})
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	require.NoError(t, reg.SelectInput("mic-2"))
	require.NoError(t, reg.SelectInput("mic-2"))

	in, _, err := reg.Selected()
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceID("mic-2"), in.ID)
}

func TestDeviceRegistry_SelectUnknownDevice(t *testing.T) {
	reg := NewDeviceRegistry(&fakeEnumerator{devices: testDevices()})
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, reg.SelectInput("no-such-device"), ErrUnknownDevice)
	// kind mismatch is unknown too
	assert.ErrorIs(t, reg.SelectOutput("mic-2"), ErrUnknownDevice)
}

func TestDeviceRegistry_LiveSwitchAppliedToSession(t *testing.T) {
	reg := NewDeviceRegistry(&fakeEnumerator{devices: testDevices()})
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	sess := &fakeAudioSession{}
	reg.BindSession(sess)

	require.NoError(t, reg.SelectInput("mic-2"))
	require.Len(t, sess.inputs, 1)
	assert.Equal(t, domain.DeviceID("mic-2"), sess.inputs[0].ID)
}

func TestDeviceRegistry_LiveSwitchFailsLoudly(t *testing.T) {
	reg := NewDeviceRegistry(&fakeEnumerator{devices: testDevices()})
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	reg.BindSession(&fakeAudioSession{switchErr: core.ErrDeviceSwitchUnsupported})

	err = reg.SelectInput("mic-2")
	assert.ErrorIs(t, err, core.ErrDeviceSwitchUnsupported)

	// the selection must not silently change
	in, _, err := reg.Selected()
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceID("mic-1"), in.ID)
}

func TestDeviceRegistry_RefreshRevalidatesSelection(t *testing.T) {
	enum := &fakeEnumerator{devices: testDevices()}
	reg := NewDeviceRegistry(enum)
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	require.NoError(t, reg.SelectInput("mic-2"))

	// the selected mic is gone on the next enumeration; the selection falls
	// back to the first remaining input instead of going stale
	enum.devices = []domain.Device{
		{ID: "mic-1", Kind: domain.DeviceInput, Label: "Desk Mic"},
		{ID: "spk-1", Kind: domain.DeviceOutput, Label: "Headset"},
	}
	_, err = reg.Refresh(context.Background())
	require.NoError(t, err)

	in, out, err := reg.Selected()
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceID("mic-1"), in.ID)
	assert.Equal(t, domain.DeviceID("spk-1"), out.ID)
}

func TestDeviceRegistry_RefreshClearsSelectionWhenKindGone(t *testing.T) {
	enum := &fakeEnumerator{devices: testDevices()}
	reg := NewDeviceRegistry(enum)
	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)

	enum.devices = []domain.Device{
		{ID: "spk-1", Kind: domain.DeviceOutput, Label: "Headset"},
	}
	_, err = reg.Refresh(context.Background())
	require.NoError(t, err)

	_, _, err = reg.Selected()
	assert.ErrorIs(t, err, core.ErrNoDeviceSelected)
}

func TestDeviceRegistry_OnChangeNotified(t *testing.T) {
	enum := &fakeEnumerator{devices: testDevices()}
	reg := NewDeviceRegistry(enum)

	var seen [][]domain.Device
	reg.OnChange(func(devices []domain.Device) { seen = append(seen, devices) })

	_, err := reg.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Len(t, seen[0], 3)
}
