package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hockeytools/rules-engine/internal/core/domain"
	"github.com/hockeytools/rules-engine/internal/core/ports"
)

type fakeRetriever struct {
	result *domain.RetrievalContext
	err    error

	gotQuestion string
	gotCountry  string
}

func (f *fakeRetriever) AnswerContext(_ context.Context, question string, _ []ports.Turn, country string) (*domain.RetrievalContext, error) {
	f.gotQuestion = question
	f.gotCountry = country
	return f.result, f.err
}

type fakeRunReader struct {
	run *domain.IngestionRun
	err error
}

func (f *fakeRunReader) GetByID(context.Context, string) (*domain.IngestionRun, error) {
	return f.run, f.err
}

type fakeChunkStore struct {
	jurisdictions []string
	err           error
}

func (f *fakeChunkStore) VectorSearch(context.Context, domain.Scope, []float32, int) ([]domain.Chunk, error) {
	return nil, nil
}

func (f *fakeChunkStore) KeywordSearch(context.Context, domain.Scope, string, int) ([]domain.Chunk, error) {
	return nil, nil
}

func (f *fakeChunkStore) ReplaceScope(context.Context, domain.Scope, []domain.Chunk) error {
	return nil
}

func (f *fakeChunkStore) CountByScope(context.Context, domain.Scope) (int, error) {
	return 0, nil
}

func (f *fakeChunkStore) ListJurisdictions(context.Context) ([]string, error) {
	return f.jurisdictions, f.err
}

type fakeQueue struct {
	published []ports.IngestRequest
	err       error
}

func (f *fakeQueue) PublishIngestRequested(_ context.Context, req ports.IngestRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, req)
	return nil
}

func (f *fakeQueue) SubscribeIngestRequested(context.Context, func(context.Context, ports.IngestRequest) error) error {
	return nil
}

func newTestHandler(retriever *fakeRetriever, runs *fakeRunReader, store *fakeChunkStore, queue *fakeQueue) http.Handler {
	return NewRouter(retriever, runs, store, queue, nil, nil, "rules-api-test", nil).Handler()
}

func TestQueryEndpoint(t *testing.T) {
	retriever := &fakeRetriever{
		result: &domain.RetrievalContext{
			StandaloneQuestion: "What is a penalty corner?",
			Scope:              domain.Scope{Variant: "outdoor", Country: "GER"},
			RerankApplied:      true,
		},
	}
	handler := newTestHandler(retriever, &fakeRunReader{}, &fakeChunkStore{}, &fakeQueue{})

	body := `{"question":"What is a penalty corner?","country":"ger"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if retriever.gotCountry != "GER" {
		t.Fatalf("country must be upper-cased, got %q", retriever.gotCountry)
	}

	var resp domain.RetrievalContext
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Scope.Variant != "outdoor" {
		t.Fatalf("unexpected scope: %+v", resp.Scope)
	}
}

func TestQueryEndpointValidation(t *testing.T) {
	handler := newTestHandler(&fakeRetriever{}, &fakeRunReader{}, &fakeChunkStore{}, &fakeQueue{})

	cases := []struct {
		name string
		body string
	}{
		{"empty question", `{"question":"  "}`},
		{"invalid json", `{`},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestQueryEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrRetrieval, "retrieve", errors.New("both channels failed")), http.StatusBadGateway},
		{domain.WrapError(domain.ErrTemporary, "embed", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrAborted, "answer context", context.Canceled), http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		handler := newTestHandler(&fakeRetriever{err: tc.err}, &fakeRunReader{}, &fakeChunkStore{}, &fakeQueue{})
		req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"question":"q"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("error %v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestIngestEndpointPublishes(t *testing.T) {
	queue := &fakeQueue{}
	handler := newTestHandler(&fakeRetriever{}, &fakeRunReader{}, &fakeChunkStore{}, queue)

	body := `{"variant":"indoor","country":"ger","path":"/data/rulebooks/indoor-ger.pdf","replace":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected one published request, got %d", len(queue.published))
	}
	published := queue.published[0]
	if published.RunID == "" {
		t.Fatal("expected minted run id")
	}
	if published.Scope.Variant != "indoor" || published.Scope.Country != "GER" || !published.Replace {
		t.Fatalf("unexpected request: %+v", published)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp["run_id"] != published.RunID {
		t.Fatalf("response run_id %q does not match published %q", resp["run_id"], published.RunID)
	}
}

func TestIngestEndpointRejectsUnknownVariant(t *testing.T) {
	queue := &fakeQueue{}
	handler := newTestHandler(&fakeRetriever{}, &fakeRunReader{}, &fakeChunkStore{}, queue)

	body := `{"variant":"beach","path":"/data/rules.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(queue.published) != 0 {
		t.Fatal("invalid request must not reach the queue")
	}
}

func TestGetRunEndpoint(t *testing.T) {
	runs := &fakeRunReader{run: &domain.IngestionRun{ID: "run-1", Status: domain.RunSucceeded}}
	handler := newTestHandler(&fakeRetriever{}, runs, &fakeChunkStore{}, &fakeQueue{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var run domain.IngestionRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if run.ID != "run-1" || run.Status != domain.RunSucceeded {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestGetRunEndpointNotFound(t *testing.T) {
	runs := &fakeRunReader{err: domain.WrapError(domain.ErrRunNotFound, "get ingestion run", errors.New("no rows"))}
	handler := newTestHandler(&fakeRetriever{}, runs, &fakeChunkStore{}, &fakeQueue{})

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestJurisdictionsEndpoint(t *testing.T) {
	store := &fakeChunkStore{jurisdictions: []string{"ARG", "GER"}}
	handler := newTestHandler(&fakeRetriever{}, &fakeRunReader{}, store, &fakeQueue{})

	req := httptest.NewRequest(http.MethodGet, "/v1/jurisdictions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Jurisdictions []struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"jurisdictions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Jurisdictions) != 2 || resp.Jurisdictions[0].Code != "ARG" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(&fakeRetriever{}, &fakeRunReader{}, &fakeChunkStore{}, &fakeQueue{})

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/query"},
		{http.MethodGet, "/v1/ingest"},
		{http.MethodPost, "/v1/runs/run-1"},
		{http.MethodPost, "/v1/jurisdictions"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tc.method, tc.path, rec.Code)
		}
	}
}
