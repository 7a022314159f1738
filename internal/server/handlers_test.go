package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santiago/listing-enricher/internal/db"
	"github.com/santiago/listing-enricher/internal/enrichment"
	"github.com/santiago/listing-enricher/internal/extraction"
	"github.com/santiago/listing-enricher/internal/jobs"
)

type fakeExtractor struct {
	mu   sync.Mutex
	runs []extraction.Request
}

func (f *fakeExtractor) Extract(_ context.Context, _ jobs.Job, req extraction.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, req)
}

type fakeEnricher struct {
	mu          sync.Mutex
	runs        []enrichment.Request
	validateErr error
	models      []string
	modelsErr   error
}

func (f *fakeEnricher) Enrich(_ context.Context, _ jobs.Job, req enrichment.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, req)
}

func (f *fakeEnricher) ValidateModel(context.Context, string) error {
	return f.validateErr
}

func (f *fakeEnricher) ListModels(context.Context) ([]string, error) {
	return f.models, f.modelsErr
}

type fakeProductStore struct {
	product     *db.EnrichedProduct
	getErr      error
	items       []db.EnrichedProduct
	total       int
	searchErr   error
	lastFilters db.EnrichedProductFilters
}

func (f *fakeProductStore) GetEnrichedProduct(context.Context, string) (*db.EnrichedProduct, error) {
	return f.product, f.getErr
}

func (f *fakeProductStore) SearchEnrichedProducts(_ context.Context, filters db.EnrichedProductFilters) ([]db.EnrichedProduct, int, error) {
	f.lastFilters = filters
	return f.items, f.total, f.searchErr
}

func newTestServer(t *testing.T) (*Server, *fakeExtractor, *fakeEnricher, *fakeProductStore) {
	t.Helper()
	extractor := &fakeExtractor{}
	enricher := &fakeEnricher{models: []string{"gemini-2.0-flash", "gemini-2.5-pro"}}
	store := &fakeProductStore{}
	s := &Server{
		registry:  jobs.NewRegistry(),
		pool:      jobs.NewPool(2),
		extractor: extractor,
		enricher:  enricher,
		products:  store,
		validate:  validator.New(),
	}
	return s, extractor, enricher, store
}

func doRequest(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestExtractItems_InvalidBody(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/extract/items/descriptions", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtractItems_ValidationFailure(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/extract/items/descriptions", `{"item_ids":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "Validation failed")
}

func TestExtractItems_Enqueues(t *testing.T) {
	s, extractor, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/extract/items/descriptions", `{"item_ids":["MLA1","MLA2"]}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp JobEnqueueResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, jobs.StatusPending, resp.Status)
	assert.Equal(t, "Request enqueued successfully.", resp.Message)

	s.pool.Wait()
	require.Len(t, extractor.runs, 1)
	assert.Equal(t, []string{"MLA1", "MLA2"}, extractor.runs[0].ItemIDs)
}

func TestExtractItems_IdempotencyKeyDeduplicates(t *testing.T) {
	s, extractor, _, _ := newTestServer(t)
	headers := map[string]string{"Idempotency-Key": "batch-42"}

	first := doRequest(s, http.MethodPost, "/extract/items/descriptions", `{"item_ids":["MLA1"]}`, headers)
	assert.Equal(t, http.StatusAccepted, first.Code)

	second := doRequest(s, http.MethodPost, "/extract/items/descriptions", `{"item_ids":["MLA1"]}`, headers)
	assert.Equal(t, http.StatusOK, second.Code)

	var firstResp, secondResp JobEnqueueResponse
	decodeBody(t, first, &firstResp)
	decodeBody(t, second, &secondResp)
	assert.Equal(t, firstResp.JobID, secondResp.JobID)
	assert.Equal(t, "Request already enqueued.", secondResp.Message)

	s.pool.Wait()
	assert.Len(t, extractor.runs, 1)
}

func TestGetExtractJob_NotFound(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/extract/jobs/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListExtractJobs_SummariesOmitResult(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	job, _ := s.registry.Create("")
	s.registry.UpdateStatus(job.ID, jobs.Update{
		Status: jobs.StatusCompleted,
		Detail: "done",
		Result: []extraction.Result{{ID: "MLA1", Description: "text"}},
	})

	rec := doRequest(s, http.MethodGet, "/extract/jobs", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"result"`)

	var listed []JobSummaryResponse
	decodeBody(t, rec, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, job.ID, listed[0].ID)
	assert.Equal(t, jobs.StatusCompleted, listed[0].Status)
}

func TestGetExtractJob_IncludesResult(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	job, _ := s.registry.Create("")
	s.registry.UpdateStatus(job.ID, jobs.Update{
		Status: jobs.StatusCompleted,
		Detail: "done",
		Result: []extraction.Result{{ID: "MLA1", Description: "text"}},
	})

	rec := doRequest(s, http.MethodGet, "/extract/jobs/"+job.ID, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result"`)
	assert.Contains(t, rec.Body.String(), "MLA1")
}

func TestRunEnrichment_UnknownModel(t *testing.T) {
	s, _, enricher, _ := newTestServer(t)
	enricher.validateErr = &enrichment.ModelValidationError{
		Model:     "gemini-99",
		Available: []string{"gemini-2.0-flash"},
	}

	rec := doRequest(s, http.MethodPost, "/enrichment/run",
		`{"item_ids":["MLA1"],"model":"gemini-99"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Message         string   `json:"message"`
		AvailableModels []string `json:"available_models"`
	}
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Message, "gemini-99")
	assert.Equal(t, []string{"gemini-2.0-flash"}, body.AvailableModels)
	assert.Empty(t, enricher.runs)
}

func TestRunEnrichment_ValidateModelTransientError(t *testing.T) {
	s, _, enricher, _ := newTestServer(t)
	enricher.validateErr = errors.New("list models: connection reset")

	rec := doRequest(s, http.MethodPost, "/enrichment/run",
		`{"item_ids":["MLA1"],"model":"gemini-2.0-flash"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, enricher.runs)
}

func TestRunEnrichment_Enqueues(t *testing.T) {
	s, _, enricher, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/enrichment/run",
		`{"item_ids":["MLA1"],"model":"gemini-2.0-flash","tone":"formal","max_words":80}`, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	s.pool.Wait()
	require.Len(t, enricher.runs, 1)
	assert.Equal(t, "formal", enricher.runs[0].Tone)
	assert.Equal(t, 80, enricher.runs[0].MaxWords)
}

func TestRunEnrichment_MaxWordsOutOfRange(t *testing.T) {
	s, _, enricher, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/enrichment/run",
		`{"item_ids":["MLA1"],"model":"gemini-2.0-flash","max_words":5}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, enricher.runs)
}

func TestListModels(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/enrichment/models", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string][]string
	decodeBody(t, rec, &body)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-2.5-pro"}, body["models"])
}

func TestListModels_Error(t *testing.T) {
	s, _, enricher, _ := newTestServer(t)
	enricher.modelsErr = errors.New("boom")

	rec := doRequest(s, http.MethodGet, "/enrichment/models", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSearchEnrichedProducts_FilterParsing(t *testing.T) {
	s, _, _, store := newTestServer(t)
	store.items = []db.EnrichedProduct{{ID: 1, ItemID: "MLA1"}}
	store.total = 7

	rec := doRequest(s, http.MethodGet,
		"/enrichment/enriched?q=drill&created_from=2026-01-01&created_to=2026-02-01T12:00:00Z&limit=10&offset=20",
		"", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "drill", store.lastFilters.Query)
	assert.Equal(t, 10, store.lastFilters.Limit)
	assert.Equal(t, 20, store.lastFilters.Offset)
	require.NotNil(t, store.lastFilters.CreatedFrom)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), store.lastFilters.CreatedFrom.UTC())
	require.NotNil(t, store.lastFilters.CreatedTo)
	assert.Equal(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), store.lastFilters.CreatedTo.UTC())

	var body EnrichedProductListResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, 7, body.Count)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "MLA1", body.Items[0].ItemID)
}

func TestSearchEnrichedProducts_DefaultsAndEmpty(t *testing.T) {
	s, _, _, store := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/enrichment/enriched", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, store.lastFilters.Limit)

	var body EnrichedProductListResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, 0, body.Count)
	assert.NotNil(t, body.Items)
	assert.Empty(t, body.Items)
}

func TestSearchEnrichedProducts_BadParams(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	for _, query := range []string{
		"?limit=0",
		"?limit=9999",
		"?offset=-1",
		"?created_from=yesterday",
	} {
		rec := doRequest(s, http.MethodGet, "/enrichment/enriched"+query, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %s", query)
	}
}

func TestGetEnrichedProduct(t *testing.T) {
	s, _, _, store := newTestServer(t)
	store.product = &db.EnrichedProduct{
		ID:                  3,
		ItemID:              "MLA777",
		EnrichedDescription: "Taladro percutor de 650W.",
	}

	rec := doRequest(s, http.MethodGet, "/enrichment/enriched/MLA777", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "MLA777")
}

func TestGetEnrichedProduct_NotFound(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/enrichment/enriched/MLA0", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "MLA0")
}

func TestHealth(t *testing.T) {
	s, _, _, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}
