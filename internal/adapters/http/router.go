package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hockeytools/rules-engine/internal/config"
	"github.com/hockeytools/rules-engine/internal/core/domain"
	"github.com/hockeytools/rules-engine/internal/core/ports"
	"github.com/hockeytools/rules-engine/internal/observability/metrics"
)

type Router struct {
	retriever ports.ContextRetriever
	runs      ports.RunReader
	chunks    ports.ChunkStore
	queue     ports.IngestQueue
	variants  *config.Variants
	metrics   *metrics.HTTPServerMetrics
	service   string
	logger    *slog.Logger
}

func NewRouter(
	retriever ports.ContextRetriever,
	runs ports.RunReader,
	chunks ports.ChunkStore,
	queue ports.IngestQueue,
	variants *config.Variants,
	m *metrics.HTTPServerMetrics,
	service string,
	logger *slog.Logger,
) *Router {
	if variants == nil {
		variants = config.DefaultVariants()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		retriever: retriever,
		runs:      runs,
		chunks:    chunks,
		queue:     queue,
		variants:  variants,
		metrics:   m,
		service:   service,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.query)
	mux.HandleFunc("/v1/ingest", rt.requestIngest)
	mux.HandleFunc("/v1/runs/", rt.getRunByID)
	mux.HandleFunc("/v1/jurisdictions", rt.listJurisdictions)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type queryRequest struct {
	Question string       `json:"question"`
	History  []ports.Turn `json:"history,omitempty"`
	Country  string       `json:"country,omitempty"`
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	country := strings.ToUpper(strings.TrimSpace(req.Country))

	start := time.Now()
	result, err := rt.retriever.AnswerContext(r.Context(), req.Question, req.History, country)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= 500 {
			rt.logger.Error("query_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRetrieval(rt.service, *result, time.Since(start))
	}
	writeJSON(w, http.StatusOK, result)
}

type ingestRequestBody struct {
	Variant string `json:"variant"`
	Country string `json:"country,omitempty"`
	Path    string `json:"path"`
	Replace bool   `json:"replace,omitempty"`
}

// requestIngest validates the request, mints a run ID, and hands the work to
// the worker over the queue. The run row is created by the worker when it
// picks the request up, so a fresh run ID can briefly 404 on /v1/runs/{id}.
func (rt *Router) requestIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body ingestRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !rt.variants.Supported(body.Variant) {
		writeError(w, http.StatusBadRequest, "unknown variant: "+body.Variant)
		return
	}
	if strings.TrimSpace(body.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	country := strings.ToUpper(strings.TrimSpace(body.Country))

	req := ports.IngestRequest{
		RunID: uuid.NewString(),
		Scope: domain.Scope{
			Variant: body.Variant,
			Country: country,
		},
		Path:    body.Path,
		Replace: body.Replace,
	}
	if err := rt.queue.PublishIngestRequested(r.Context(), req); err != nil {
		status := mapErrorToHTTPStatus(err)
		rt.logger.Error("ingest_publish_failed", "request_id", requestIDFromContext(r.Context()), "scope", req.Scope.String(), "error", err)
		writeError(w, status, "failed to enqueue ingestion")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": req.RunID,
		"scope":  req.Scope.String(),
		"status": string(domain.RunRunning),
	})
}

func (rt *Router) getRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	run, err := rt.runs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) listJurisdictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	codes, err := rt.chunks.ListJurisdictions(r.Context())
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	type jurisdiction struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	out := make([]jurisdiction, 0, len(codes))
	for _, code := range codes {
		out = append(out, jurisdiction{
			Code: code,
			Name: rt.variants.JurisdictionLabel(code),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"jurisdictions": out})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
