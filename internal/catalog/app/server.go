package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalogsync/config"
	"catalogsync/internal/catalog/business/executors"
	"catalogsync/internal/catalog/business/orchestrator"
	"catalogsync/internal/catalog/business/staging"
	"catalogsync/internal/catalog/business/validate"
	"catalogsync/internal/catalog/models"
	"catalogsync/internal/catalog/scheduler"
	"catalogsync/internal/catalog/storage/repositories"
	"catalogsync/internal/supplier/clients"
	"catalogsync/metrics"
	"catalogsync/migrations/catalog"
	"catalogsync/pkg/dbconnect"
	"catalogsync/pkg/dbconnect/migration"
	"catalogsync/pkg/dbconnect/postgres"
	"catalogsync/pkg/logger"
)

// App wires the whole sync subsystem together and exposes the operations
// callers use. Everything behind it is injected through the constructors, so
// the pieces stay testable in isolation.
type App struct {
	cfg *config.AppConfig
	out io.Writer
	log logger.Logger

	db        *sql.DB
	gate      *clients.RateGate
	orch      *orchestrator.Orchestrator
	sched     *scheduler.Scheduler
	staging   *staging.Service
	syncLog   *repositories.SyncLogRepository
	pending   *repositories.PendingRepository
	metricsHS *http.Server
}

func New(cfg *config.AppConfig, out io.Writer) *App {
	return &App{
		cfg: cfg,
		out: out,
		log: logger.NewLogger(out, "[CatalogSync]"),
	}
}

// Run connects storage, applies migrations, assembles the object graph and
// starts the scheduler and the metrics endpoint. It blocks until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	var connector dbconnect.Database = postgres.NewPgConnector(a.cfg.Postgres)
	db, err := connector.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db

	if err := a.migrate(db); err != nil {
		return err
	}
	a.assemble(db)

	if err := a.sched.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer a.sched.Destroy()

	a.metricsHS = &http.Server{Addr: a.cfg.MetricsAddr, Handler: a.metricsMux()}
	go func() {
		if err := a.metricsHS.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Log("metrics server stopped: %v", err)
		}
	}()
	a.log.Log("catalog sync running, metrics on %s", a.cfg.MetricsAddr)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.metricsHS.Shutdown(shutdownCtx); err != nil {
		a.log.Log("metrics shutdown error: %v", err)
	}
	return nil
}

func (a *App) migrate(db *sql.DB) error {
	steps := []migration.MigrationInterface{
		&catalog.CreateMigrationsInfra{},
		&catalog.CreateCatalogSchema{},
		&catalog.CreateCatalogRecordsTable{},
		&catalog.CreatePricesTable{},
		&catalog.CreateKitComponentsTable{},
		&catalog.CreateSyncLogTable{},
		&catalog.CreateUploadSessionsTable{},
		&catalog.CreateStagingRecordsTable{},
		&catalog.CreatePendingUpdatesTable{},
		&catalog.CreateSyncSchedulesTable{},
	}
	for _, step := range steps {
		if err := step.UpMigration(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (a *App) assemble(db *sql.DB) {
	catalogRepo := repositories.NewCatalogRepository(db)
	priceRepo := repositories.NewPriceRepository(db)
	kitRepo := repositories.NewKitRepository(db)
	syncLogRepo := repositories.NewSyncLogRepository(db)
	stagingRepo := repositories.NewStagingRepository(db)
	pendingRepo := repositories.NewPendingRepository(db)
	scheduleRepo := repositories.NewScheduleRepository(db)

	a.gate = clients.NewRateGate(a.cfg.Supplier.ApiRateLimit)
	apiClient := clients.NewApiClient(a.cfg.Supplier.ApiURL, a.cfg.Supplier.ApiKey, a.gate, a.out)
	bulkClient := clients.NewBulkClient(a.cfg.Supplier.FeedURL, a.cfg.Supplier.FeedEncoding, clients.NewHTTPFetcher(), a.out)

	apiExec := executors.NewApiExecutor(apiClient, a.gate, catalogRepo, priceRepo, kitRepo, syncLogRepo, a.out)
	bulkExec := executors.NewBulkExecutor(bulkClient, scheduleRepo, catalogRepo, priceRepo, kitRepo, syncLogRepo, a.out)

	a.orch = orchestrator.New(apiExec, bulkExec, a.gate, syncLogRepo,
		catalogRepo, priceRepo, kitRepo, a.out)

	pipeline := validate.NewPipeline(a.cfg.Supplier.FeedEncoding)
	a.staging = staging.NewService(pipeline, stagingRepo, catalogRepo, a.out)

	a.sched = scheduler.NewScheduler(a.orch, pendingRepo, syncLogRepo, scheduleRepo, a.cfg.Scheduler, a.out)
	a.syncLog = syncLogRepo
	a.pending = pendingRepo
}

func (a *App) metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := a.db.Ping(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// PerformIntelligentSync routes one sync type, or all of them when syncType
// is empty, through the decision engine.
func (a *App) PerformIntelligentSync(ctx context.Context, syncType models.SyncType) (*orchestrator.AggregateReport, error) {
	if syncType == "" {
		report, err := a.sched.TriggerFullSync(ctx)
		if err != nil {
			return nil, err
		}
		return report, nil
	}
	rep := a.orch.PerformSync(ctx, syncType)
	return &orchestrator.AggregateReport{
		Success: rep.Result.Success,
		Reports: []orchestrator.SyncReport{rep},
	}, nil
}

// SyncStatus is the caller-facing snapshot of sync health.
type SyncStatus struct {
	Busy         bool
	PendingCount int
	RecentRuns   []models.SyncLogEntry
	RecentErrors []scheduler.ErrorEntry
}

func (a *App) GetSyncStatus() (*SyncStatus, error) {
	runs, err := a.syncLog.Recent(20)
	if err != nil {
		return nil, err
	}
	pending, err := a.pending.PendingCount()
	if err != nil {
		return nil, err
	}
	return &SyncStatus{
		Busy:         a.sched.Busy(),
		PendingCount: pending,
		RecentRuns:   runs,
		RecentErrors: a.sched.RecentErrors(),
	}, nil
}

// EndpointRateStatus describes one API endpoint's throttle state.
type EndpointRateStatus struct {
	Limited  bool
	Cooldown time.Duration
}

func (a *App) GetRateLimitStatus() map[string]EndpointRateStatus {
	endpoints := []string{
		clients.EndpointSearch, clients.EndpointDetails,
		clients.EndpointInventory, clients.EndpointPricing,
	}
	out := make(map[string]EndpointRateStatus, len(endpoints))
	for _, endpoint := range endpoints {
		out[endpoint] = EndpointRateStatus{
			Limited:  a.gate.IsRateLimited(endpoint),
			Cooldown: a.gate.RemainingCooldown(endpoint),
		}
	}
	return out
}

// RequestPartUpdate queues a single-part refresh for the next queue drain.
func (a *App) RequestPartUpdate(partNumber, requestedBy string, priority int) (int64, error) {
	return a.pending.Enqueue(partNumber, requestedBy, priority)
}

// UpdatePartNow refreshes one part synchronously, bypassing the queue.
func (a *App) UpdatePartNow(ctx context.Context, partNumber string) models.SyncResult {
	return a.orch.SyncPart(ctx, partNumber)
}

// UploadBulkFile runs a merchant-submitted file through validation, staging
// and reconciliation, returning the session handle and summary.
func (a *App) UploadBulkFile(filename string, size int64, r io.Reader) (*staging.UploadResult, error) {
	return a.staging.ProcessUpload(filename, size, r)
}

func (a *App) GetUploadSession(id string) (*models.UploadSession, error) {
	return a.staging.GetSession(id)
}

func (a *App) GetStagingRecords(sessionID string, filter repositories.StagingFilter) ([]models.StagingRecord, error) {
	return a.staging.ListRecords(sessionID, filter)
}

// ReconcileStagingRecord applies one reviewed staging row to the catalog.
func (a *App) ReconcileStagingRecord(recordID int64) error {
	return a.staging.ReconcileRecord(recordID)
}
