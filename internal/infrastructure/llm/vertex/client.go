// Package vertex talks to a Vertex AI style model endpoint for embeddings and
// text generation. Both calls are idempotent, so transient failures are
// retried through the resilience executor; permanent ones surface immediately.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hockeytools/rules-engine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	HTTPTimeout time.Duration
	Executor    *resilience.Executor
}

func New(baseURL, apiKey, embedModel, genModel string, options Options) *Client {
	httpTimeout := options.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
		genModel:   genModel,
		httpClient: &http.Client{Timeout: httpTimeout},
		executor:   options.Executor,
	}
}

// Embedder implements ports.Embedder. The limiter paces batch calls so large
// ingestion runs stay under the endpoint's request quota instead of tripping
// rate limits and burning retries.
type Embedder struct {
	client  *Client
	limiter *rate.Limiter
}

func NewEmbedder(client *Client, requestsPerSecond float64) *Embedder {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 4
	}
	return &Embedder{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	instances := make([]map[string]any, 0, len(texts))
	for _, text := range texts {
		instances = append(instances, map[string]any{"content": text})
	}

	var response struct {
		Predictions []struct {
			Embeddings struct {
				Values []float32 `json:"values"`
			} `json:"embeddings"`
		} `json:"predictions"`
	}
	path := fmt.Sprintf("/v1/models/%s:predict", e.client.embedModel)
	if err := e.client.postJSON(ctx, path, map[string]any{"instances": instances}, &response, "embed"); err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(response.Predictions))
	for _, p := range response.Predictions {
		vectors = append(vectors, p.Embeddings.Values)
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

// Reasoner implements ports.Reasoner for contextualization and routing.
type Reasoner struct {
	client *Client
}

func NewReasoner(client *Client) *Reasoner {
	return &Reasoner{client: client}
}

func (r *Reasoner) Complete(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"contents": []map[string]any{
			{
				"role":  "user",
				"parts": []map[string]any{{"text": prompt}},
			},
		},
		"generationConfig": map[string]any{"temperature": 0},
	}

	var response struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	path := fmt.Sprintf("/v1/models/%s:generateContent", r.client.genModel)
	if err := r.client.postJSON(ctx, path, request, &response, "generate"); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, cand := range response.Candidates {
		for _, part := range cand.Content.Parts {
			b.WriteString(part.Text)
		}
		break
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("empty generation result")
	}
	return text, nil
}

func (c *Client) postJSON(ctx context.Context, path string, request any, response any, operation string) error {
	call := func(callCtx context.Context) error {
		return c.doPostJSON(callCtx, path, request, response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "vertex."+operation, call, classifyVertexError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func (c *Client) doPostJSON(ctx context.Context, path string, request any, response any, operation string) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vertex %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
