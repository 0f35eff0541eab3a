package orchestrator

import (
	"context"
	"io"
	"testing"
	"time"

	"catalogsync/internal/catalog/models"
	"catalogsync/internal/supplier/clients"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	results   map[models.SyncType]models.SyncResult
	oneResult models.SyncResult
	fullCalls []models.SyncType
	incrCalls []models.SyncType
}

func (e *fakeExecutor) SyncFull(_ context.Context, syncType models.SyncType) models.SyncResult {
	e.fullCalls = append(e.fullCalls, syncType)
	return e.results[syncType]
}

func (e *fakeExecutor) SyncIncremental(_ context.Context, syncType models.SyncType, _ time.Duration) models.SyncResult {
	e.incrCalls = append(e.incrCalls, syncType)
	return e.results[syncType]
}

func (e *fakeExecutor) SyncOne(_ context.Context, _ string) models.SyncResult {
	return e.oneResult
}

type fakeGate struct {
	limited map[string]bool
}

func (g *fakeGate) IsRateLimited(endpoint string) bool     { return g.limited[endpoint] }
func (g *fakeGate) RemainingCooldown(string) time.Duration { return 0 }

type fakeHistory struct {
	last      map[models.SyncType]*models.SyncLogEntry
	errCounts map[models.SyncType]int
}

func (h *fakeHistory) LastCompleted(syncType models.SyncType) (*models.SyncLogEntry, error) {
	return h.last[syncType], nil
}

func (h *fakeHistory) RecentErrorCount(syncType models.SyncType, _ models.Channel, _ time.Time) (int, error) {
	return h.errCounts[syncType], nil
}

type fixedCount int

func (c fixedCount) Count() (int, error) { return int(c), nil }

func completedEntry(at time.Time) *models.SyncLogEntry {
	return &models.SyncLogEntry{Status: models.SyncRunCompleted, CompletedAt: &at}
}

func okResult() models.SyncResult {
	return models.SyncResult{Success: true, Status: models.SyncRunCompleted, Processed: 10}
}

func failedResult(msg string) models.SyncResult {
	return models.SyncResult{Status: models.SyncRunFailed, Errors: []string{msg}}
}

func newTestOrchestrator(api, bulk *fakeExecutor, gate *fakeGate, history *fakeHistory) *Orchestrator {
	return New(api, bulk, gate, history, fixedCount(500), fixedCount(500), fixedCount(500), io.Discard)
}

func TestPerformSyncRoutesToApiByDefault(t *testing.T) {
	api := &fakeExecutor{results: map[models.SyncType]models.SyncResult{models.SyncTypeInventory: okResult()}}
	bulk := &fakeExecutor{results: map[models.SyncType]models.SyncResult{}}
	recent := time.Now().Add(-1 * time.Hour)
	history := &fakeHistory{last: map[models.SyncType]*models.SyncLogEntry{
		models.SyncTypeInventory: completedEntry(recent),
	}}

	o := newTestOrchestrator(api, bulk, &fakeGate{limited: map[string]bool{}}, history)
	rep := o.PerformSync(context.Background(), models.SyncTypeInventory)

	assert.Equal(t, models.ChannelAPI, rep.Decision.Method)
	assert.Len(t, api.fullCalls, 1)
	assert.Empty(t, bulk.fullCalls)
	assert.True(t, rep.Result.Success)
}

func TestPerformSyncRoutesToBulkWhenThrottled(t *testing.T) {
	api := &fakeExecutor{results: map[models.SyncType]models.SyncResult{}}
	bulk := &fakeExecutor{results: map[models.SyncType]models.SyncResult{models.SyncTypeInventory: okResult()}}
	gate := &fakeGate{limited: map[string]bool{clients.EndpointInventory: true}}
	history := &fakeHistory{last: map[models.SyncType]*models.SyncLogEntry{}}

	o := newTestOrchestrator(api, bulk, gate, history)
	rep := o.PerformSync(context.Background(), models.SyncTypeInventory)

	assert.Equal(t, models.ChannelBulk, rep.Decision.Method)
	assert.Empty(t, api.fullCalls)
	assert.Len(t, bulk.fullCalls, 1)
}

func TestPerformSyncAllAggregation(t *testing.T) {
	recent := time.Now().Add(-1 * time.Hour)
	history := &fakeHistory{last: map[models.SyncType]*models.SyncLogEntry{
		models.SyncTypeInventory: completedEntry(recent),
		models.SyncTypePricing:   completedEntry(recent),
		models.SyncTypeKits:      completedEntry(recent),
	}}

	// Two of three succeed: the aggregate still counts as a success.
	api := &fakeExecutor{results: map[models.SyncType]models.SyncResult{
		models.SyncTypeInventory: okResult(),
		models.SyncTypePricing:   okResult(),
		models.SyncTypeKits:      failedResult("kit request timeout"),
	}}
	bulk := &fakeExecutor{results: map[models.SyncType]models.SyncResult{}}

	o := newTestOrchestrator(api, bulk, &fakeGate{limited: map[string]bool{}}, history)
	report := o.PerformSyncAll(context.Background())

	assert.True(t, report.Success)
	require.Len(t, report.Reports, 3)
	assert.NotEmpty(t, report.Recommendations)

	// All three fail: the aggregate fails.
	api.results = map[models.SyncType]models.SyncResult{
		models.SyncTypeInventory: failedResult("boom"),
		models.SyncTypePricing:   failedResult("boom"),
		models.SyncTypeKits:      failedResult("boom"),
	}
	report = o.PerformSyncAll(context.Background())
	assert.False(t, report.Success)
}

func TestPerformIncrementalFallsBackToBulk(t *testing.T) {
	api := &fakeExecutor{results: map[models.SyncType]models.SyncResult{models.SyncTypeInventory: okResult()}}
	bulk := &fakeExecutor{results: map[models.SyncType]models.SyncResult{models.SyncTypeInventory: okResult()}}
	history := &fakeHistory{last: map[models.SyncType]*models.SyncLogEntry{}}

	o := newTestOrchestrator(api, bulk, &fakeGate{limited: map[string]bool{}}, history)
	rep := o.PerformIncremental(context.Background(), models.SyncTypeInventory, 6*time.Hour)
	assert.Equal(t, models.ChannelAPI, rep.Decision.Method)
	assert.Len(t, api.incrCalls, 1)

	gated := newTestOrchestrator(api, bulk, &fakeGate{limited: map[string]bool{clients.EndpointInventory: true}}, history)
	rep = gated.PerformIncremental(context.Background(), models.SyncTypeInventory, 6*time.Hour)
	assert.Equal(t, models.ChannelBulk, rep.Decision.Method)
	assert.Len(t, bulk.incrCalls, 1)
}

func TestRecommendations(t *testing.T) {
	reports := []SyncReport{
		{Result: models.SyncResult{Status: models.SyncRunRateLimited}},
		{Result: models.SyncResult{Success: true, Status: models.SyncRunCompleted, Failed: 3,
			Errors: []string{"request /inventory failed: connection refused"}}},
	}
	recs := recommendations(reports)
	assert.Len(t, recs, 3)
}
