package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopchat-ai/shopchat/internal/llm"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

type stubLLM struct {
	content string
	model   string
	err     error
	calls   int
}

func (s *stubLLM) Chat(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	model := s.model
	if model == "" {
		model = "stub-model"
	}
	return &llm.ChatResponse{
		Content: s.content,
		Model:   model,
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (s *stubLLM) TestConnection(ctx context.Context) bool        { return true }
func (s *stubLLM) HealthCheck(ctx context.Context) map[string]any { return map[string]any{} }
func (s *stubLLM) Provider() string                               { return "stub" }
func (s *stubLLM) Model() string                                  { return "stub-model" }

func TestClassifier_PatternShortCircuit(t *testing.T) {
	client := &stubLLM{content: `{"intent": "general", "confidence": 0.9}`}
	c := NewClassifier(NewPatternMatcher(), logging.Default())

	result := c.Classify(context.Background(), client, "running shoes under $100", nil)

	if result.Intent != IntentProductSearch {
		t.Fatalf("intent = %s, want product_search", result.Intent)
	}
	if result.Provider != "pattern" {
		t.Fatalf("provider = %s, want pattern", result.Provider)
	}
	if client.calls != 0 {
		t.Fatalf("LLM called %d times for a high-confidence pattern match", client.calls)
	}
}

func TestClassifier_LLMFallbackOnMiss(t *testing.T) {
	client := &stubLLM{content: `Here you go: {"intent": "product_search", "confidence": 0.72, "entities": {"keywords": "gift ideas"}, "reasoning": "vague shopping ask"}`}
	c := NewClassifier(NewPatternMatcher(), logging.Default())

	result := c.Classify(context.Background(), client, "I have no idea what to get my sister", nil)

	if client.calls != 1 {
		t.Fatalf("LLM calls = %d, want 1", client.calls)
	}
	if result.Intent != IntentProductSearch {
		t.Fatalf("intent = %s, want product_search", result.Intent)
	}
	if result.Confidence != 0.72 {
		t.Fatalf("confidence = %.2f, want 0.72", result.Confidence)
	}
	if result.Entities.Keywords != "gift ideas" {
		t.Fatalf("keywords = %q, want %q", result.Entities.Keywords, "gift ideas")
	}
	if result.Provider != "stub" {
		t.Fatalf("provider = %s, want stub", result.Provider)
	}
	if !result.NeedsClarification() {
		t.Fatal("0.72 should need clarification")
	}
}

func TestClassifier_LLMErrorDegrades(t *testing.T) {
	client := &stubLLM{err: errors.New("boom")}
	c := NewClassifier(NewPatternMatcher(), logging.Default())

	result := c.Classify(context.Background(), client, "something ambiguous here today", nil)

	if result.Intent != IntentUnknown {
		t.Fatalf("intent = %s, want unknown", result.Intent)
	}
	if result.Confidence != 0 {
		t.Fatalf("confidence = %.2f, want 0", result.Confidence)
	}
	if result.Provider != "error" {
		t.Fatalf("provider = %s, want error", result.Provider)
	}
	if !result.NeedsClarification() {
		t.Fatal("failed classification must need clarification")
	}
}

func TestClassifier_InvalidIntentBecomesUnknown(t *testing.T) {
	client := &stubLLM{content: `{"intent": "buy_stocks", "confidence": 0.99}`}
	c := NewClassifier(NewPatternMatcher(), logging.Default())

	result := c.Classify(context.Background(), client, "something ambiguous here today", nil)
	if result.Intent != IntentUnknown {
		t.Fatalf("intent = %s, want unknown", result.Intent)
	}
}

func TestClassifier_ThresholdBoundary(t *testing.T) {
	below := ClassificationResult{Confidence: 0.79}
	if !below.NeedsClarification() {
		t.Fatal("0.79 must need clarification")
	}
	at := ClassificationResult{Confidence: 0.80}
	if at.NeedsClarification() {
		t.Fatal("0.80 must not need clarification")
	}
}

func TestReducedContext(t *testing.T) {
	convCtx := &Context{
		Channel: ChannelWidget,
		History: []Turn{
			{Role: "user", Content: "one"},
			{Role: "assistant", Content: "two"},
			{Role: "user", Content: "three"},
			{Role: "assistant", Content: "four"},
			{Role: "user", Content: "five"},
		},
	}
	got := reducedContext(convCtx)
	if !strings.HasPrefix(got, "Channel: widget\n") {
		t.Fatalf("missing channel line:\n%s", got)
	}
	for _, old := range []string{"one", "two"} {
		if strings.Contains(got, old) {
			t.Fatalf("reduced context kept old turn %q:\n%s", old, got)
		}
	}
	for _, recent := range []string{"three", "four", "five"} {
		if !strings.Contains(got, recent) {
			t.Fatalf("reduced context missing recent turn %q:\n%s", recent, got)
		}
	}
}
