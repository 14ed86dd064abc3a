// Package domain contains entities without logic, just meta-data.
package domain

import "errors"

type ChannelID string

type ChannelKind string

const (
	ChannelStandard ChannelKind = "standard"
	ChannelPriority ChannelKind = "priority"
)

var (
	ErrChannelIDEmpty     = errors.New("channel id empty")
	ErrNegativeClearance  = errors.New("required clearance is negative")
	ErrUnknownChannelKind = errors.New("unknown channel kind")
	ErrDuplicateChannelID = errors.New("duplicate channel id in catalog")
)

// Channel is one entry of the static channel catalog. Read-only at runtime.
type Channel struct {
	ID                ChannelID   `json:"id"`
	DisplayName       string      `json:"displayName"`
	Kind              ChannelKind `json:"kind"`
	RequiredClearance int         `json:"requiredClearance"`
}

func (c Channel) Validate() error {
	if c.ID == "" {
		return ErrChannelIDEmpty
	}
	if c.RequiredClearance < 0 {
		return ErrNegativeClearance
	}
	switch c.Kind {
	case ChannelStandard, ChannelPriority:
		return nil
	default:
		return ErrUnknownChannelKind
	}
}

// Catalog is the static set of channels known to the deployment.
type Catalog []Channel

func NewCatalog(channels ...Channel) (Catalog, error) {
	seen := make(map[ChannelID]struct{}, len(channels))
	for _, c := range channels {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[c.ID]; ok {
			return nil, ErrDuplicateChannelID
		}
		seen[c.ID] = struct{}{}
	}
	return Catalog(channels), nil
}

func (cat Catalog) Lookup(id ChannelID) (Channel, bool) {
	for _, c := range cat {
		if c.ID == id {
			return c, true
		}
	}
	return Channel{}, false
}
