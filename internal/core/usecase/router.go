package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hockeytools/rules-engine/internal/core/ports"
)

var variantTagPattern = regexp.MustCompile(`(?i)^\[VARIANT:\s*([a-z0-9]+)\s*\]\s*`)

// QueryRouter rewrites a user turn into a standalone question and picks the
// retrieval variant. The reasoning capability returns free text, so every
// answer is parsed defensively against the closed variant set; anything
// unparseable falls back to the configured default rather than propagating an
// invalid partition downstream.
type QueryRouter struct {
	reasoner ports.Reasoner
	variants ports.VariantCatalog
	fallback string
	timeout  time.Duration
	logger   *slog.Logger
}

func NewQueryRouter(reasoner ports.Reasoner, variants ports.VariantCatalog, fallback string, timeout time.Duration, logger *slog.Logger) *QueryRouter {
	if !variants.Supported(fallback) {
		fallback = "outdoor"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryRouter{
		reasoner: reasoner,
		variants: variants,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
}

// Contextualize folds the conversation history into a single self-contained
// question. The retrieval engine is stateless per call, so all pronouns and
// ellipsis must be resolved here. With no history, the question is already
// standalone.
func (r *QueryRouter) Contextualize(ctx context.Context, history []ports.Turn, question, country string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	prompt := buildContextualizationPrompt(history, question, r.variants.JurisdictionLabel(country))

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	standalone, err := r.reasoner.Complete(callCtx, prompt)
	if err != nil {
		return "", fmt.Errorf("contextualize: %w", err)
	}
	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		return question, nil
	}
	return standalone, nil
}

// Route returns exactly one supported variant for the standalone question.
// The [VARIANT: x] tag emitted by the contextualizer wins when present and
// valid; otherwise the reasoner is asked, and its output validated. Route
// never fails: ambiguity and reasoner errors resolve to the fallback variant.
func (r *QueryRouter) Route(ctx context.Context, standalone string) string {
	if tagged := r.parseVariantTag(standalone); tagged != "" {
		return tagged
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.reasoner.Complete(callCtx, buildRoutingPrompt(standalone, r.variants.Names()))
	if err != nil {
		r.logger.Warn("route_reasoner_failed", "error", err, "fallback", r.fallback)
		return r.fallback
	}

	if variant := r.parseVariantLabel(raw); variant != "" {
		return variant
	}

	r.logger.Warn("route_unparseable", "raw", raw, "fallback", r.fallback)
	return r.fallback
}

// StripVariantTag removes the routing tag so it never reaches the embedding
// model or the keyword channel.
func StripVariantTag(standalone string) string {
	return strings.TrimSpace(variantTagPattern.ReplaceAllString(standalone, ""))
}

func (r *QueryRouter) parseVariantTag(standalone string) string {
	match := variantTagPattern.FindStringSubmatch(standalone)
	if len(match) < 2 {
		return ""
	}
	variant := strings.ToLower(match[1])
	if r.variants.Supported(variant) {
		return variant
	}
	return ""
}

func (r *QueryRouter) parseVariantLabel(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, `"'.`)
	if r.variants.Supported(cleaned) {
		return cleaned
	}

	// The model sometimes wraps the label in prose; accept a single
	// unambiguous mention.
	var found string
	for _, name := range r.variants.Names() {
		if strings.Contains(cleaned, name) {
			if found != "" {
				return ""
			}
			found = name
		}
	}
	return found
}

func (r *QueryRouter) Fallback() string {
	return r.fallback
}
