// Package semanticranker calls a semantic ranking endpoint to cross-encode
// (query, candidate) pairs. The orchestrator treats any failure here as
// soft: the fused ordering stands in for the refined one.
package semanticranker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hockeytools/rules-engine/internal/core/ports"
	"github.com/hockeytools/rules-engine/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	HTTPTimeout time.Duration
	Executor    *resilience.Executor
}

func New(baseURL, apiKey, model string, options Options) *Client {
	httpTimeout := options.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: httpTimeout},
		executor:   options.Executor,
	}
}

type rankRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type rankResponse struct {
	Records []struct {
		ID    string  `json:"id"`
		Score float64 `json:"score"`
	} `json:"records"`
}

func (c *Client) Rerank(ctx context.Context, query string, candidates []string) ([]ports.RerankScore, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	records := make([]rankRecord, len(candidates))
	for i, text := range candidates {
		records[i] = rankRecord{ID: strconv.Itoa(i), Content: text}
	}
	request := map[string]any{
		"model":   c.model,
		"query":   query,
		"records": records,
	}

	var response rankResponse
	call := func(callCtx context.Context) error {
		return c.doRank(callCtx, request, &response)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "rerank", call, classifyRankError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}

	scores := make([]ports.RerankScore, 0, len(response.Records))
	for _, record := range response.Records {
		index, err := strconv.Atoi(record.ID)
		if err != nil || index < 0 || index >= len(candidates) {
			return nil, fmt.Errorf("rank response references unknown record %q", record.ID)
		}
		scores = append(scores, ports.RerankScore{Index: index, Score: record.Score})
	}
	return scores, nil
}

func (c *Client) doRank(ctx context.Context, request any, response *rankResponse) error {
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal rank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rank", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create rank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{status: resp.Status, statusCode: resp.StatusCode, body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode rank response: %w", err)
	}
	return nil
}

type statusError struct {
	status     string
	statusCode int
	body       string
}

func (e *statusError) Error() string {
	if strings.TrimSpace(e.body) == "" {
		return fmt.Sprintf("rank status: %s", e.status)
	}
	return fmt.Sprintf("rank status: %s: %s", e.status, strings.TrimSpace(e.body))
}

func classifyRankError(err error) resilience.ErrorClassification {
	var statusErr *statusError
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.As(err, &statusErr):
		retryable := statusErr.statusCode == http.StatusTooManyRequests || statusErr.statusCode >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}
