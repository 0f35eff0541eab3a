package staging

import (
	"fmt"
	"io"
	"time"

	"catalogsync/internal/catalog/business/transform"
	"catalogsync/internal/catalog/business/validate"
	"catalogsync/internal/catalog/models"
	"catalogsync/internal/catalog/storage/repositories"
	"catalogsync/pkg/logger"

	"github.com/google/uuid"
)

// classifyBatchSize bounds the composite-key existence query per round trip.
const classifyBatchSize = 100

// StagingStore is the slice of the staging repository the service uses.
type StagingStore interface {
	CreateSession(session models.UploadSession) error
	GetSession(id string) (*models.UploadSession, error)
	FinishSession(id string, status models.SessionStatus, processed int) error
	CreateStagingRecords(records []models.StagingRecord) error
	GetByID(id int64) (*models.StagingRecord, error)
	ListBySession(sessionID string, filter repositories.StagingFilter) ([]models.StagingRecord, error)
	UpdateActions(ids []int64, action models.StagingAction) error
	MarkProcessed(id int64) error
	ValidKeys(sessionID string) ([]string, error)
	IncrementSessionProcessed(sessionID string, delta int) error
}

// CatalogWriter is the catalog surface reconciliation writes through.
type CatalogWriter interface {
	GetByCompositeKeys(keys []string) (map[string]*models.CatalogRecord, error)
	Upsert(record models.CatalogRecord) error
	MarkRemovedBySession(sessionID string, keepKeys []string) (int64, error)
}

// UploadResult is what the caller gets back from a file submission: the
// session handle plus the validation summary.
type UploadResult struct {
	SessionID string
	Summary   validate.Summary
	Removed   int64
}

// Service runs the upload-to-catalog pipeline: validate, stage, classify,
// reconcile, soft-delete. Invalid and corrected rows stop at staging and wait
// for operator review; only clean rows flow to the catalog automatically.
type Service struct {
	pipeline *validate.Pipeline
	store    StagingStore
	catalog  CatalogWriter
	log      logger.Logger

	now   func() time.Time
	newID func() string
}

func NewService(pipeline *validate.Pipeline, store StagingStore, catalog CatalogWriter, writer io.Writer) *Service {
	_log := logger.NewLogger(writer, "[StagingService]")
	return &Service{
		pipeline: pipeline,
		store:    store,
		catalog:  catalog,
		log:      _log,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// ProcessUpload ingests one bulk file end to end. Header-level problems
// reject the whole upload before any session exists; row-level problems are
// staged for review.
func (s *Service) ProcessUpload(filename string, size int64, r io.Reader) (*UploadResult, error) {
	processed, summary, err := s.pipeline.Process(r)
	if err != nil {
		return nil, fmt.Errorf("upload %s rejected: %w", filename, err)
	}

	session := models.UploadSession{
		ID:          s.newID(),
		Filename:    filename,
		Size:        size,
		Status:      models.SessionProcessing,
		TotalRows:   summary.Total,
		ValidRows:   summary.Valid,
		InvalidRows: summary.Invalid,
		Corrected:   summary.Corrected,
	}
	if err := s.store.CreateSession(session); err != nil {
		return nil, err
	}
	s.log.Log("session %s: %d rows (%d valid, %d invalid, %d corrected)",
		session.ID, summary.Total, summary.Valid, summary.Invalid, summary.Corrected)

	records := make([]models.StagingRecord, 0, len(processed))
	for _, p := range processed {
		rec := p.Record
		rec.SessionID = session.ID
		records = append(records, rec)
	}
	if err := s.store.CreateStagingRecords(records); err != nil {
		if ferr := s.store.FinishSession(session.ID, models.SessionFailed, 0); ferr != nil {
			s.log.Log("session %s: failed to mark failed: %v", session.ID, ferr)
		}
		return nil, err
	}

	// Every row's action must be resolved before anything reaches the
	// catalog; reconciling with unknown actions would leave review queues
	// mislabeled.
	if err := s.ClassifyActions(session.ID); err != nil {
		if ferr := s.store.FinishSession(session.ID, models.SessionFailed, 0); ferr != nil {
			s.log.Log("session %s: failed to mark failed: %v", session.ID, ferr)
		}
		return nil, fmt.Errorf("action classification failed: %w", err)
	}

	reconciled, err := s.ReconcileSession(session.ID)
	if err != nil {
		if ferr := s.store.FinishSession(session.ID, models.SessionFailed, reconciled); ferr != nil {
			s.log.Log("session %s: failed to mark failed: %v", session.ID, ferr)
		}
		return nil, err
	}

	removed, err := s.RemoveMissing(session.ID)
	if err != nil {
		s.log.Log("session %s: soft delete failed: %v", session.ID, err)
	}

	if err := s.store.FinishSession(session.ID, models.SessionCompleted, reconciled); err != nil {
		return nil, err
	}
	return &UploadResult{SessionID: session.ID, Summary: *summary, Removed: removed}, nil
}

// ClassifyActions resolves every staged row's action to insert or update by
// probing the catalog for its composite key, in batches.
func (s *Service) ClassifyActions(sessionID string) error {
	records, err := s.store.ListBySession(sessionID, repositories.StagingFilter{})
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += classifyBatchSize {
		end := start + classifyBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		keys := make([]string, 0, len(batch))
		for _, rec := range batch {
			if rec.CompositeKey != "" {
				keys = append(keys, rec.CompositeKey)
			}
		}
		existing, err := s.catalog.GetByCompositeKeys(keys)
		if err != nil {
			return err
		}

		var inserts, updates []int64
		for _, rec := range batch {
			if rec.CompositeKey == "" {
				continue
			}
			if existing[rec.CompositeKey] != nil {
				updates = append(updates, rec.ID)
			} else {
				inserts = append(inserts, rec.ID)
			}
		}
		if err := s.store.UpdateActions(updates, models.ActionUpdate); err != nil {
			return err
		}
		if err := s.store.UpdateActions(inserts, models.ActionInsert); err != nil {
			return err
		}
	}
	return nil
}

// ReconcileSession applies every row eligible for auto-sync: valid and not
// corrected. Corrected rows carry substituted values and stay staged until an
// operator reconciles them one by one.
func (s *Service) ReconcileSession(sessionID string) (int, error) {
	records, err := s.store.ListBySession(sessionID, repositories.StagingFilter{Status: models.StagingValid})
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, rec := range records {
		if rec.Corrected {
			continue
		}
		if err := s.applyRecord(rec); err != nil {
			s.log.Log("session %s line %d: reconcile failed: %v", sessionID, rec.LineNumber, err)
			continue
		}
		reconciled++
	}
	if reconciled > 0 {
		if err := s.store.IncrementSessionProcessed(sessionID, reconciled); err != nil {
			s.log.Log("session %s: failed to bump processed count: %v", sessionID, err)
		}
	}
	return reconciled, nil
}

// ReconcileRecord applies one staged row on operator request, typically after
// review of a corrected or re-validated row. Invalid rows stay put.
func (s *Service) ReconcileRecord(recordID int64) error {
	rec, err := s.store.GetByID(recordID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("staging record %d not found", recordID)
	}
	if rec.Status == models.StagingProcessed {
		return nil
	}
	if rec.Status != models.StagingValid {
		return fmt.Errorf("staging record %d is %s, cannot reconcile", recordID, rec.Status)
	}
	if err := s.applyRecord(*rec); err != nil {
		return err
	}
	if err := s.store.IncrementSessionProcessed(rec.SessionID, 1); err != nil {
		s.log.Log("session %s: failed to bump processed count: %v", rec.SessionID, err)
	}
	return nil
}

func (s *Service) applyRecord(rec models.StagingRecord) error {
	record := transform.FromStagingRecord(rec, s.now())
	if err := s.catalog.Upsert(record); err != nil {
		return err
	}
	return s.store.MarkProcessed(rec.ID)
}

// RemoveMissing soft-deletes upload-attributed catalog records whose key is
// absent from this session's valid rows. Records last touched by a sync run
// are never removed by an upload.
func (s *Service) RemoveMissing(sessionID string) (int64, error) {
	keep, err := s.store.ValidKeys(sessionID)
	if err != nil {
		return 0, err
	}
	removed, err := s.catalog.MarkRemovedBySession(sessionID, keep)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.Log("session %s: soft-removed %d records absent from upload", sessionID, removed)
	}
	return removed, nil
}

// GetSession exposes session progress to callers.
func (s *Service) GetSession(id string) (*models.UploadSession, error) {
	return s.store.GetSession(id)
}

// ListRecords exposes staged rows, filterable for review queues.
func (s *Service) ListRecords(sessionID string, filter repositories.StagingFilter) ([]models.StagingRecord, error) {
	return s.store.ListBySession(sessionID, filter)
}
