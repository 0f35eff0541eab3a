package staging

import (
	"errors"
	"io"
	"strings"
	"testing"

	"catalogsync/internal/catalog/business/validate"
	"catalogsync/internal/catalog/models"
	"catalogsync/internal/catalog/storage/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStagingStore struct {
	sessions map[string]*models.UploadSession
	records  []models.StagingRecord
	nextID   int64
}

func newFakeStagingStore() *fakeStagingStore {
	return &fakeStagingStore{sessions: make(map[string]*models.UploadSession)}
}

func (s *fakeStagingStore) CreateSession(session models.UploadSession) error {
	copied := session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *fakeStagingStore) GetSession(id string) (*models.UploadSession, error) {
	return s.sessions[id], nil
}

func (s *fakeStagingStore) FinishSession(id string, status models.SessionStatus, processed int) error {
	if sess, ok := s.sessions[id]; ok {
		sess.Status = status
		sess.Processed = processed
	}
	return nil
}

func (s *fakeStagingStore) CreateStagingRecords(records []models.StagingRecord) error {
	for _, rec := range records {
		s.nextID++
		rec.ID = s.nextID
		s.records = append(s.records, rec)
	}
	return nil
}

func (s *fakeStagingStore) GetByID(id int64) (*models.StagingRecord, error) {
	for i := range s.records {
		if s.records[i].ID == id {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *fakeStagingStore) ListBySession(sessionID string, filter repositories.StagingFilter) ([]models.StagingRecord, error) {
	var out []models.StagingRecord
	for _, rec := range s.records {
		if rec.SessionID != sessionID {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.NeedsReview != nil && rec.NeedsReview != *filter.NeedsReview {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *fakeStagingStore) UpdateActions(ids []int64, action models.StagingAction) error {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for i := range s.records {
		if set[s.records[i].ID] {
			s.records[i].Action = action
		}
	}
	return nil
}

func (s *fakeStagingStore) MarkProcessed(id int64) error {
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Status = models.StagingProcessed
		}
	}
	return nil
}

func (s *fakeStagingStore) ValidKeys(sessionID string) ([]string, error) {
	var keys []string
	for _, rec := range s.records {
		if rec.SessionID != sessionID {
			continue
		}
		if rec.Status == models.StagingValid || rec.Status == models.StagingProcessed {
			keys = append(keys, rec.CompositeKey)
		}
	}
	return keys, nil
}

func (s *fakeStagingStore) IncrementSessionProcessed(sessionID string, delta int) error {
	if sess, ok := s.sessions[sessionID]; ok {
		sess.Processed += delta
	}
	return nil
}

type fakeCatalogWriter struct {
	existing    map[string]*models.CatalogRecord
	classifyErr error
	upserted    []models.CatalogRecord
	keepKeys    []string
	removed     int64
}

func (c *fakeCatalogWriter) GetByCompositeKeys(keys []string) (map[string]*models.CatalogRecord, error) {
	if c.classifyErr != nil {
		return nil, c.classifyErr
	}
	out := make(map[string]*models.CatalogRecord)
	for _, key := range keys {
		if rec, ok := c.existing[key]; ok {
			out[key] = rec
		}
	}
	return out, nil
}

func (c *fakeCatalogWriter) Upsert(record models.CatalogRecord) error {
	c.upserted = append(c.upserted, record)
	return nil
}

func (c *fakeCatalogWriter) MarkRemovedBySession(_ string, keepKeys []string) (int64, error) {
	c.keepKeys = keepKeys
	return c.removed, nil
}

const uploadContent = `LineCode,PartNumber,PartNumberKey,PartName,QtyTotal,QtyEast,QtyCentral,QtyWest,UnitPrice
ABC,X-100,ABCX-100,Clean widget,6,3,2,1,9.99
abc, x-200 ,,Needs fixing,10,2,1,1,5.00
ABC,,ABCX-300,No part number,4,2,1,1,3.50
`

func newTestService(catalog *fakeCatalogWriter) (*Service, *fakeStagingStore) {
	store := newFakeStagingStore()
	svc := NewService(validate.NewPipeline(""), store, catalog, io.Discard)
	svc.newID = func() string { return "session-1" }
	return svc, store
}

func TestProcessUpload(t *testing.T) {
	catalog := &fakeCatalogWriter{
		existing: map[string]*models.CatalogRecord{"ABCX-100": {CompositeKey: "ABCX-100"}},
		removed:  2,
	}
	svc, store := newTestService(catalog)

	result, err := svc.ProcessUpload("upload.csv", 512, strings.NewReader(uploadContent))
	require.NoError(t, err)
	assert.Equal(t, "session-1", result.SessionID)
	assert.Equal(t, 3, result.Summary.Total)
	assert.Equal(t, 2, result.Summary.Valid)
	assert.Equal(t, 1, result.Summary.Invalid)
	assert.Equal(t, int64(2), result.Removed)

	// Only the clean valid row flows to the catalog automatically.
	require.Len(t, catalog.upserted, 1)
	assert.Equal(t, "X-100", catalog.upserted[0].PartNumber)
	require.NotNil(t, catalog.upserted[0].UploadSessionID)
	assert.Equal(t, "session-1", *catalog.upserted[0].UploadSessionID)

	// Actions were classified against the catalog.
	assert.Equal(t, models.ActionUpdate, store.records[0].Action)
	assert.Equal(t, models.ActionInsert, store.records[1].Action)

	// The clean row is processed; the corrected one still awaits review.
	assert.Equal(t, models.StagingProcessed, store.records[0].Status)
	assert.Equal(t, models.StagingValid, store.records[1].Status)
	assert.True(t, store.records[1].NeedsReview)
	assert.Equal(t, models.StagingInvalid, store.records[2].Status)

	session := store.sessions["session-1"]
	require.NotNil(t, session)
	assert.Equal(t, models.SessionCompleted, session.Status)

	// Soft deletion keeps every valid key from the upload.
	assert.Contains(t, catalog.keepKeys, "ABCX-100")
	assert.Contains(t, catalog.keepKeys, "ABCX-200")
	assert.NotContains(t, catalog.keepKeys, "ABCX-300")
}

func TestProcessUploadClassificationFailure(t *testing.T) {
	catalog := &fakeCatalogWriter{classifyErr: errors.New("db down")}
	svc, store := newTestService(catalog)

	_, err := svc.ProcessUpload("upload.csv", 512, strings.NewReader(uploadContent))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classification")

	// Nothing reaches the catalog while any action is still unresolved.
	assert.Empty(t, catalog.upserted)
	for _, rec := range store.records {
		assert.Equal(t, models.ActionUnknown, rec.Action)
		assert.NotEqual(t, models.StagingProcessed, rec.Status)
	}

	session := store.sessions["session-1"]
	require.NotNil(t, session)
	assert.Equal(t, models.SessionFailed, session.Status)
}

func TestProcessUploadRejectsMalformedHeader(t *testing.T) {
	catalog := &fakeCatalogWriter{existing: map[string]*models.CatalogRecord{}}
	svc, store := newTestService(catalog)

	_, err := svc.ProcessUpload("bad.csv", 10, strings.NewReader("PartName\nWidget\n"))
	require.Error(t, err)
	assert.Empty(t, store.sessions, "no session for a rejected upload")
	assert.Empty(t, store.records)
}

func TestReconcileRecord(t *testing.T) {
	catalog := &fakeCatalogWriter{existing: map[string]*models.CatalogRecord{}}
	svc, store := newTestService(catalog)

	_, err := svc.ProcessUpload("upload.csv", 512, strings.NewReader(uploadContent))
	require.NoError(t, err)

	// The corrected row reconciles on operator request.
	require.NoError(t, svc.ReconcileRecord(store.records[1].ID))
	require.Len(t, catalog.upserted, 2)
	assert.Equal(t, "X-200", catalog.upserted[1].PartNumber)
	assert.Equal(t, models.StagingProcessed, store.records[1].Status)

	// Reconciling it again is a no-op.
	require.NoError(t, svc.ReconcileRecord(store.records[1].ID))
	assert.Len(t, catalog.upserted, 2)

	// Invalid rows stay put.
	err = svc.ReconcileRecord(store.records[2].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestReconcileRecordMissing(t *testing.T) {
	catalog := &fakeCatalogWriter{existing: map[string]*models.CatalogRecord{}}
	svc, _ := newTestService(catalog)
	err := svc.ReconcileRecord(404)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
