package domain

type DeviceID string

type DeviceKind string

const (
	DeviceInput  DeviceKind = "input"
	DeviceOutput DeviceKind = "output"
)

// Device is one audio endpoint as reported by the runtime. Selection is a
// client-local preference and is never shared with peers.
type Device struct {
	ID    DeviceID   `json:"deviceId"`
	Kind  DeviceKind `json:"kind"`
	Label string     `json:"label"`
}
