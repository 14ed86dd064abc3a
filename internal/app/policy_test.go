package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinelops/ptt/internal/domain"
)

func testCatalog(t *testing.T) domain.Catalog {
	t.Helper()
	catalog, err := domain.NewCatalog(
		domain.Channel{ID: "main", DisplayName: "Main", Kind: domain.ChannelStandard, RequiredClearance: 0},
		domain.Channel{ID: "emergency", DisplayName: "Emergency", Kind: domain.ChannelPriority, RequiredClearance: 2},
		domain.Channel{ID: "dispatch", DisplayName: "Dispatch", Kind: domain.ChannelStandard, RequiredClearance: 3},
	)
	require.NoError(t, err)
	return catalog
}

func TestAvailableChannels_FiltersByClearance(t *testing.T) {
	catalog := testCatalog(t)

	got := AvailableChannels(1, catalog)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ChannelID("main"), got[0].ID)

	got = AvailableChannels(2, catalog)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ChannelID("main"), got[0].ID)
	assert.Equal(t, domain.ChannelID("emergency"), got[1].ID)

	got = AvailableChannels(3, catalog)
	assert.Len(t, got, 3)
}

func TestAvailableChannels_ExactBoundary(t *testing.T) {
	catalog := testCatalog(t)

	for clearance := 0; clearance <= 5; clearance++ {
		got := AvailableChannels(clearance, catalog)
		for _, c := range got {
			assert.LessOrEqual(t, c.RequiredClearance, clearance)
		}
		for _, c := range catalog {
			if c.RequiredClearance <= clearance {
				assert.Contains(t, got, c)
			} else {
				assert.NotContains(t, got, c)
			}
		}
	}
}

func TestAvailableChannels_EmptyCatalog(t *testing.T) {
	assert.Empty(t, AvailableChannels(10, nil))
}

func TestAccessPolicy_CanJoin(t *testing.T) {
	policy := AccessPolicy{Catalog: testCatalog(t)}

	assert.True(t, policy.CanJoin(0, "main"))
	assert.False(t, policy.CanJoin(1, "emergency"))
	assert.True(t, policy.CanJoin(2, "emergency"))
	assert.False(t, policy.CanJoin(2, "dispatch"))
	assert.False(t, policy.CanJoin(99, "no-such-channel"))
}
