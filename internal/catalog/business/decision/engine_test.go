package decision

import (
	"testing"

	"catalogsync/internal/catalog/models"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	cases := []struct {
		name       string
		syncType   models.SyncType
		conditions Conditions
		wantMethod models.Channel
	}{
		{
			name:       "rate limited forces bulk",
			syncType:   models.SyncTypeInventory,
			conditions: Conditions{IsRateLimited: true, ItemCountEstimate: 50},
			wantMethod: models.ChannelBulk,
		},
		{
			name:       "small recent dataset stays on api",
			syncType:   models.SyncTypeInventory,
			conditions: Conditions{ItemCountEstimate: 50, LastSyncAgeHours: 1},
			wantMethod: models.ChannelAPI,
		},
		{
			name:       "large stale dataset goes bulk",
			syncType:   models.SyncTypeInventory,
			conditions: Conditions{ItemCountEstimate: 8000, IsFullRefreshDue: true, LastSyncAgeHours: 30},
			wantMethod: models.ChannelBulk,
		},
		{
			name:       "api errors push toward bulk",
			syncType:   models.SyncTypeInventory,
			conditions: Conditions{ItemCountEstimate: 2000, RecentApiErrorCount: 9, LastSyncAgeHours: 5},
			wantMethod: models.ChannelBulk,
		},
		{
			name:       "small kit structures prefer api even when refresh due",
			syncType:   models.SyncTypeKits,
			conditions: Conditions{ItemCountEstimate: 400, IsFullRefreshDue: true, LastSyncAgeHours: 30},
			wantMethod: models.ChannelAPI,
		},
		{
			name:       "recently synced pricing prefers api",
			syncType:   models.SyncTypePricing,
			conditions: Conditions{ItemCountEstimate: 3000, LastSyncAgeHours: 1},
			wantMethod: models.ChannelAPI,
		},
		{
			name:       "zero signal defaults to api",
			syncType:   models.SyncTypeInventory,
			conditions: Conditions{ItemCountEstimate: 500, LastSyncAgeHours: 5},
			wantMethod: models.ChannelAPI,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := Decide(tc.syncType, tc.conditions)
			assert.Equal(t, tc.wantMethod, dec.Method)
			assert.NotEmpty(t, dec.Reason)
			assert.GreaterOrEqual(t, dec.Confidence, 0.0)
			assert.LessOrEqual(t, dec.Confidence, 1.0)
		})
	}
}

func TestDecideConfidenceCaps(t *testing.T) {
	dec := Decide(models.SyncTypeInventory, Conditions{
		IsRateLimited:       true,
		ItemCountEstimate:   10000,
		IsFullRefreshDue:    true,
		RecentApiErrorCount: 20,
		LastSyncAgeHours:    100,
	})
	// 50+30+20+25 = 125, capped.
	assert.Equal(t, models.ChannelBulk, dec.Method)
	assert.Equal(t, 1.0, dec.Confidence)
}
