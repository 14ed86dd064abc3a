package app

import "github.com/sentinelops/ptt/internal/domain"

// AvailableChannels returns the subset of the catalog the given clearance may
// join. Pure filter, no caching: recompute whenever clearance or catalog
// changes.
func AvailableChannels(clearance int, catalog domain.Catalog) []domain.Channel {
	out := make([]domain.Channel, 0, len(catalog))
	for _, c := range catalog {
		if clearance >= c.RequiredClearance {
			out = append(out, c)
		}
	}
	return out
}

// AccessPolicy gates channel joins for one participant clearance against the
// static catalog.
type AccessPolicy struct {
	Catalog domain.Catalog
}

// CanJoin reports whether the clearance meets the channel's requirement.
// Unknown channels are never joinable.
func (p AccessPolicy) CanJoin(clearance int, id domain.ChannelID) bool {
	c, ok := p.Catalog.Lookup(id)
	if !ok {
		return false
	}
	return clearance >= c.RequiredClearance
}
