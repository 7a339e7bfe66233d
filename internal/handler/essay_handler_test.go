package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haneul-lab/essay-feedback-api/internal/models"
	"github.com/haneul-lab/essay-feedback-api/internal/repository"
	"github.com/haneul-lab/essay-feedback-api/internal/service"
	"github.com/haneul-lab/essay-feedback-api/pkg/jobs"
	"github.com/haneul-lab/essay-feedback-api/pkg/storage"
)

type memoryEssayStore struct {
	mu      sync.Mutex
	records map[string]*models.EssayRecord
	order   []string
}

func newMemoryEssayStore() *memoryEssayStore {
	return &memoryEssayStore{records: map[string]*models.EssayRecord{}}
}

func (s *memoryEssayStore) put(record models.EssayRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ProcessID]; !exists {
		s.order = append(s.order, record.ProcessID)
	}
	record.CurrentStep = record.Status.Step()
	s.records[record.ProcessID] = &record
}

func (s *memoryEssayStore) List(ctx context.Context) ([]models.EssayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.EssayRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	return out, nil
}

func (s *memoryEssayStore) GetByProcessID(ctx context.Context, processID string) (*models.EssayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[processID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

func (s *memoryEssayStore) Insert(ctx context.Context, record *models.EssayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.ProcessID] = &clone
	s.order = append(s.order, record.ProcessID)
	return nil
}

func (s *memoryEssayStore) UpdateByProcessID(ctx context.Context, processID string, mutate repository.Mutator) (*models.EssayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[processID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	if err := mutate(&clone); err != nil {
		return nil, err
	}
	clone.UpdatedAt = time.Now().UTC()
	clone.CurrentStep = clone.Status.Step()
	s.records[processID] = &clone
	result := clone
	return &result, nil
}

func (s *memoryEssayStore) ListPendingDrafts(ctx context.Context, limit int) ([]models.EssayRecord, error) {
	return nil, nil
}

type noopDispatcher struct{}

func (noopDispatcher) Enqueue(job jobs.Job) error { return nil }

func newTestRouter(store *memoryEssayStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	essays := service.NewEssayService(service.EssayServiceDeps{
		Store:  store,
		Drafts: noopDispatcher{},
		Logger: zap.NewNop(),
	})
	h := NewEssayHandler(essays)

	router := gin.New()
	h.RegisterSubmissionRoutes(router)
	api := router.Group("/api")
	h.RegisterRoutes(api)
	return router
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitEndpointAcceptsEssay(t *testing.T) {
	store := newMemoryEssayStore()
	router := newTestRouter(store)

	rec := performJSON(t, router, http.MethodPost, "/submit", gin.H{"text": "오늘은 친구와 생각이 달랐다."})
	require.Equal(t, http.StatusCreated, rec.Code)

	var envelope struct {
		Data struct {
			ProcessID string `json:"processId"`
			Status    string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.ProcessID)
	assert.Equal(t, "received", envelope.Data.Status)
}

func TestAnalyzeAliasRoutesToSubmit(t *testing.T) {
	router := newTestRouter(newMemoryEssayStore())

	rec := performJSON(t, router, http.MethodPost, "/analyze", gin.H{"text": "본문"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestSubmitEndpointRejectsMissingText(t *testing.T) {
	router := newTestRouter(newMemoryEssayStore())

	rec := performJSON(t, router, http.MethodPost, "/submit", gin.H{})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestSubmitEndpointRejectsBlankText(t *testing.T) {
	router := newTestRouter(newMemoryEssayStore())

	rec := performJSON(t, router, http.MethodPost, "/submit", gin.H{"text": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "EMPTY_INPUT", envelope.Error.Code)
}

func TestGetEndpointReturnsRecord(t *testing.T) {
	store := newMemoryEssayStore()
	store.put(models.EssayRecord{ProcessID: "proc_1", Status: models.StatusReceived, StudentEssay: "글"})
	router := newTestRouter(store)

	rec := performJSON(t, router, http.MethodGet, "/api/essays/proc_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.EssayRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "proc_1", envelope.Data.ProcessID)
}

func TestGetEndpointNotFound(t *testing.T) {
	router := newTestRouter(newMemoryEssayStore())

	rec := performJSON(t, router, http.MethodGet, "/api/essays/proc_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEndpointReturnsAllRecords(t *testing.T) {
	store := newMemoryEssayStore()
	store.put(models.EssayRecord{ProcessID: "proc_1", Status: models.StatusReceived})
	store.put(models.EssayRecord{ProcessID: "proc_2", Status: models.StatusAIDrafted})
	router := newTestRouter(store)

	rec := performJSON(t, router, http.MethodGet, "/api/essays", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []models.EssayRecord   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, float64(2), envelope.Meta["count"])
}

func TestApproveEndpointConflictsBeforeDraft(t *testing.T) {
	store := newMemoryEssayStore()
	store.put(models.EssayRecord{ProcessID: "proc_1", Status: models.StatusReceived})
	router := newTestRouter(store)

	rec := performJSON(t, router, http.MethodPost, "/api/essays/approve", gin.H{
		"processId":     "proc_1",
		"finalFeedback": "최종 피드백",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApproveEndpointCompletesDraftedRecord(t *testing.T) {
	store := newMemoryEssayStore()
	store.put(models.EssayRecord{
		ProcessID:  "proc_1",
		Status:     models.StatusAIDrafted,
		AIFeedback: &models.AIFeedback{DraftFeedback: "초안"},
	})
	router := newTestRouter(store)

	rec := performJSON(t, router, http.MethodPost, "/api/essays/approve", gin.H{
		"processId":     "proc_1",
		"finalFeedback": "최종 피드백",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "completed", envelope.Data.Status)
}

func TestSendReportEndpoint(t *testing.T) {
	store := newMemoryEssayStore()
	store.put(models.EssayRecord{
		ProcessID: "proc_1",
		Status:    models.StatusCompleted,
		Teacher:   &models.TeacherCorrection{FinalFeedback: "최종"},
	})
	router := newTestRouter(store)

	rec := performJSON(t, router, http.MethodPost, "/api/essays/send-report", gin.H{"processId": "proc_1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "sent", envelope.Data.Status)
}

func TestDownloadReportRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	essays := service.NewEssayService(service.EssayServiceDeps{
		Store:  newMemoryEssayStore(),
		Drafts: noopDispatcher{},
		Files:  mustLocalStorage(t),
		Signer: storage.NewSignedURLSigner("test-secret", time.Hour),
		Logger: zap.NewNop(),
	})
	router := gin.New()
	api := router.Group("/api")
	NewEssayHandler(essays).RegisterRoutes(api)

	rec := performJSON(t, router, http.MethodGet, "/api/essays/report/not-a-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func mustLocalStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return files
}
