package orchestrator

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"catalogsync/internal/catalog/business/decision"
	"catalogsync/internal/catalog/business/executors"
	"catalogsync/internal/catalog/models"
	"catalogsync/internal/supplier/clients"
	"catalogsync/pkg/logger"
)

// fullRefreshInterval is how old the last completed run may get before a
// full refresh counts as due.
const fullRefreshInterval = 24 * time.Hour

// errorLookback bounds how far back recent API errors weigh on channel
// choice.
const errorLookback = 24 * time.Hour

// History is the sync-log surface the orchestrator reads conditions from.
type History interface {
	LastCompleted(syncType models.SyncType) (*models.SyncLogEntry, error)
	RecentErrorCount(syncType models.SyncType, channel models.Channel, since time.Time) (int, error)
}

// Counter estimates dataset size for one sync type.
type Counter interface {
	Count() (int, error)
}

// SyncReport is the outcome of one intelligently routed sync.
type SyncReport struct {
	SyncType models.SyncType
	Decision decision.Decision
	Result   models.SyncResult
}

// AggregateReport is the outcome of syncing all types at once. Success means
// at least half of the sub-syncs succeeded.
type AggregateReport struct {
	Success         bool
	Reports         []SyncReport
	Recommendations []string
	Duration        time.Duration
}

// Orchestrator picks a channel per sync run and delegates to the matching
// executor. It holds no sync state of its own; conditions come from the rate
// gate, the sync log and the stores every time.
type Orchestrator struct {
	api  executors.SyncExecutor
	bulk executors.SyncExecutor
	gate executors.RateStatus

	history History
	catalog Counter
	prices  Counter
	kits    Counter

	log logger.Logger
	now func() time.Time
}

func New(api, bulk executors.SyncExecutor, gate executors.RateStatus,
	history History, catalog, prices, kits Counter, writer io.Writer) *Orchestrator {

	_log := logger.NewLogger(writer, "[SyncOrchestrator]")
	return &Orchestrator{
		api:     api,
		bulk:    bulk,
		gate:    gate,
		history: history,
		catalog: catalog,
		prices:  prices,
		kits:    kits,
		log:     _log,
		now:     time.Now,
	}
}

func gateEndpoint(syncType models.SyncType) string {
	switch syncType {
	case models.SyncTypePricing:
		return clients.EndpointPricing
	case models.SyncTypeKits:
		return clients.EndpointDetails
	default:
		return clients.EndpointInventory
	}
}

// conditions assembles the decision inputs for one sync type. Read failures
// degrade to zero values rather than blocking the sync.
func (o *Orchestrator) conditions(syncType models.SyncType) decision.Conditions {
	c := decision.Conditions{
		IsRateLimited: o.gate.IsRateLimited(gateEndpoint(syncType)),
	}

	var counter Counter
	switch syncType {
	case models.SyncTypePricing:
		counter = o.prices
	case models.SyncTypeKits:
		counter = o.kits
	default:
		counter = o.catalog
	}
	if count, err := counter.Count(); err == nil {
		c.ItemCountEstimate = count
	} else {
		o.log.Log("count estimate for %s failed: %v", syncType, err)
	}

	last, err := o.history.LastCompleted(syncType)
	if err != nil {
		o.log.Log("last completed lookup for %s failed: %v", syncType, err)
	}
	if last == nil || last.CompletedAt == nil {
		c.IsFullRefreshDue = true
		c.LastSyncAgeHours = fullRefreshInterval.Hours() * 2
	} else {
		age := o.now().Sub(*last.CompletedAt)
		c.LastSyncAgeHours = age.Hours()
		c.IsFullRefreshDue = age > fullRefreshInterval
	}

	if errs, err := o.history.RecentErrorCount(syncType, models.ChannelAPI, o.now().Add(-errorLookback)); err == nil {
		c.RecentApiErrorCount = errs
	}
	return c
}

// PerformSync routes one full sync through the channel the decision engine
// picks.
func (o *Orchestrator) PerformSync(ctx context.Context, syncType models.SyncType) SyncReport {
	cond := o.conditions(syncType)
	dec := decision.Decide(syncType, cond)
	o.log.Log("sync %s routed to %s (confidence %.2f): %s", syncType, dec.Method, dec.Confidence, dec.Reason)

	executor := o.api
	if dec.Method == models.ChannelBulk {
		executor = o.bulk
	}
	result := executor.SyncFull(ctx, syncType)
	return SyncReport{SyncType: syncType, Decision: dec, Result: result}
}

// PerformSyncAll fans out over every sync type concurrently and aggregates.
// The types are independent; one failing does not stop the others.
func (o *Orchestrator) PerformSyncAll(ctx context.Context) AggregateReport {
	started := o.now()
	reports := make([]SyncReport, len(models.AllSyncTypes))

	var wg sync.WaitGroup
	for i, syncType := range models.AllSyncTypes {
		wg.Add(1)
		go func(i int, syncType models.SyncType) {
			defer wg.Done()
			reports[i] = o.PerformSync(ctx, syncType)
		}(i, syncType)
	}
	wg.Wait()

	succeeded := 0
	for _, rep := range reports {
		if rep.Result.Success {
			succeeded++
		}
	}

	report := AggregateReport{
		Success:         succeeded*2 >= len(reports),
		Reports:         reports,
		Recommendations: recommendations(reports),
		Duration:        o.now().Sub(started),
	}
	o.log.Log("sync all: %d/%d succeeded in %s", succeeded, len(reports), report.Duration)
	return report
}

// PerformIncremental refreshes stale records. Incremental work is API-first;
// when the API is cooling down it falls through to the bulk channel, whose
// stamp check keeps a redundant ingest cheap.
func (o *Orchestrator) PerformIncremental(ctx context.Context, syncType models.SyncType, staleness time.Duration) SyncReport {
	dec := decision.Decision{Method: models.ChannelAPI, Reason: "incremental refresh, api preferred", Confidence: 0.5}
	executor := o.api
	if o.gate.IsRateLimited(gateEndpoint(syncType)) {
		dec = decision.Decision{Method: models.ChannelBulk, Reason: "api cooling down, using feed", Confidence: 0.5}
		executor = o.bulk
	}
	o.log.Log("incremental %s routed to %s: %s", syncType, dec.Method, dec.Reason)
	result := executor.SyncIncremental(ctx, syncType, staleness)
	return SyncReport{SyncType: syncType, Decision: dec, Result: result}
}

// SyncPart refreshes a single part through the API channel. Rate-limited
// outcomes surface in the result so the caller can requeue.
func (o *Orchestrator) SyncPart(ctx context.Context, partNumber string) models.SyncResult {
	return o.api.SyncOne(ctx, partNumber)
}

// recommendations turns recurring error patterns into operator hints.
func recommendations(reports []SyncReport) []string {
	var (
		rateLimited  bool
		connectivity bool
		format       bool
		partial      bool
	)
	for _, rep := range reports {
		if rep.Result.Status == models.SyncRunRateLimited {
			rateLimited = true
		}
		if rep.Result.Failed > 0 && rep.Result.Success {
			partial = true
		}
		for _, e := range rep.Result.Errors {
			lower := strings.ToLower(e)
			switch {
			case strings.Contains(lower, "rate limit"):
				rateLimited = true
			case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"):
				connectivity = true
			case strings.Contains(lower, "unmarshal"), strings.Contains(lower, "parse"), strings.Contains(lower, "column"):
				format = true
			}
		}
	}

	var out []string
	if rateLimited {
		out = append(out, "api channel was throttled; prefer the bulk feed until the cooldown passes")
	}
	if connectivity {
		out = append(out, "supplier connectivity errors seen; check network path and supplier status")
	}
	if format {
		out = append(out, "response or feed format errors seen; the supplier layout may have changed")
	}
	if partial {
		out = append(out, "some records failed individually; review the sync log errors")
	}
	return out
}
