package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/hockeytools/rules-engine/internal/core/ports"
)

func newTestRouter(reasoner *fakeReasoner) *QueryRouter {
	return NewQueryRouter(reasoner, fakeVariants{}, "outdoor", 0, nil)
}

func TestContextualizePassthroughWithoutHistory(t *testing.T) {
	reasoner := &fakeReasoner{}
	router := newTestRouter(reasoner)

	got, err := router.Contextualize(context.Background(), nil, "What is rule 9.12?", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "What is rule 9.12?" {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if reasoner.calls != 0 {
		t.Fatalf("no history must not call the reasoner, got %d calls", reasoner.calls)
	}
}

func TestContextualizeRewritesWithHistory(t *testing.T) {
	reasoner := &fakeReasoner{
		completeFn: func(context.Context, string) (string, error) {
			return "[VARIANT: indoor] How long does an indoor suspension last?", nil
		},
	}
	router := newTestRouter(reasoner)

	history := []ports.Turn{
		{Role: "user", Text: "What is a green card in indoor hockey?"},
		{Role: "assistant", Text: "A green card is a two minute suspension."},
	}
	got, err := router.Contextualize(context.Background(), history, "how long does it last?", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "[VARIANT: indoor] How long does an indoor suspension last?" {
		t.Fatalf("unexpected rewrite: %q", got)
	}
}

func TestContextualizeEmptyCompletionKeepsOriginal(t *testing.T) {
	reasoner := &fakeReasoner{
		completeFn: func(context.Context, string) (string, error) {
			return "   ", nil
		},
	}
	router := newTestRouter(reasoner)

	got, err := router.Contextualize(context.Background(), []ports.Turn{{Role: "user", Text: "hi"}}, "original question", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "original question" {
		t.Fatalf("expected original question, got %q", got)
	}
}

func TestRouteVariantTagWinsWithoutReasonerCall(t *testing.T) {
	reasoner := &fakeReasoner{}
	router := newTestRouter(reasoner)

	variant := router.Route(context.Background(), "[VARIANT: hockey5s] How many players per side?")
	if variant != "hockey5s" {
		t.Fatalf("expected hockey5s, got %q", variant)
	}
	if reasoner.calls != 0 {
		t.Fatalf("valid tag must short-circuit routing, got %d reasoner calls", reasoner.calls)
	}
}

func TestRouteInvalidTagFallsThroughToReasoner(t *testing.T) {
	reasoner := &fakeReasoner{
		completeFn: func(context.Context, string) (string, error) {
			return "indoor", nil
		},
	}
	router := newTestRouter(reasoner)

	variant := router.Route(context.Background(), "[VARIANT: beach] How many players?")
	if variant != "indoor" {
		t.Fatalf("expected indoor, got %q", variant)
	}
	if reasoner.calls != 1 {
		t.Fatalf("expected one reasoner call, got %d", reasoner.calls)
	}
}

func TestRouteParsesNoisyLabels(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"indoor", "indoor"},
		{" Indoor. ", "indoor"},
		{`"outdoor"`, "outdoor"},
		{"The variant is hockey5s", "hockey5s"},
		{"either indoor or outdoor", "outdoor"}, // ambiguous -> fallback
		{"beach hockey", "outdoor"},             // unknown -> fallback
		{"", "outdoor"},
	}

	for _, tc := range cases {
		reasoner := &fakeReasoner{
			completeFn: func(context.Context, string) (string, error) {
				return tc.raw, nil
			},
		}
		router := newTestRouter(reasoner)
		if got := router.Route(context.Background(), "some question"); got != tc.want {
			t.Errorf("raw %q: expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}

func TestRouteReasonerFailureFallsBack(t *testing.T) {
	reasoner := &fakeReasoner{
		completeFn: func(context.Context, string) (string, error) {
			return "", errors.New("model unavailable")
		},
	}
	router := newTestRouter(reasoner)

	if got := router.Route(context.Background(), "some question"); got != "outdoor" {
		t.Fatalf("expected fallback outdoor, got %q", got)
	}
}

func TestStripVariantTag(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"[VARIANT: indoor] How long is a suspension?", "How long is a suspension?"},
		{"[variant: outdoor]What is a free hit?", "What is a free hit?"},
		{"No tag here", "No tag here"},
		{"Mid-sentence [VARIANT: indoor] stays", "Mid-sentence [VARIANT: indoor] stays"},
	}
	for _, tc := range cases {
		if got := StripVariantTag(tc.in); got != tc.want {
			t.Errorf("StripVariantTag(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
