package conversation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopchat-ai/shopchat/internal/llm"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

type memLedger struct {
	entries []UsageEntry
	err     error
}

func (l *memLedger) RecordUsage(ctx context.Context, entry UsageEntry) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCostFor(t *testing.T) {
	// 1000 prompt + 500 completion on gpt-4o-mini:
	// (1000*0.15 + 500*0.60) / 1e6 = 0.00045
	if got := CostFor("gpt-4o-mini", 1000, 500); !approx(got, 0.00045) {
		t.Fatalf("CostFor = %v, want 0.00045", got)
	}
	// Unknown models use the default rate instead of zero.
	if got := CostFor("mystery-model", 1000, 0); got == 0 {
		t.Fatal("unknown model priced at zero")
	}
	if got := CostFor("gpt-4o-mini", 0, 0); got != 0 {
		t.Fatalf("zero tokens cost %v", got)
	}
}

func TestTrackedClient_AccumulatesAcrossCalls(t *testing.T) {
	inner := &stubLLM{content: "ok", model: "gpt-4o-mini"}
	ledger := &memLedger{}
	tracked := NewTrackedClient(inner, "m-1", "psid-9", ledger, nil, logging.Default())

	for i := 0; i < 3; i++ {
		if _, err := tracked.Chat(context.Background(), []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}}); err != nil {
			t.Fatalf("Chat: %v", err)
		}
	}

	perCall := CostFor("gpt-4o-mini", 10, 5)
	if got := tracked.TotalCost(); !approx(got, 3*perCall) {
		t.Fatalf("TotalCost = %v, want %v", got, 3*perCall)
	}
	if tracked.Calls() != 3 {
		t.Fatalf("Calls = %d, want 3", tracked.Calls())
	}
	if len(ledger.entries) != 3 {
		t.Fatalf("ledger entries = %d, want 3", len(ledger.entries))
	}
	entry := ledger.entries[0]
	if entry.MerchantID != "m-1" || entry.Provider != "stub" || entry.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.SessionKey != "psid-9" {
		t.Fatalf("entry session key = %q, want psid-9", entry.SessionKey)
	}
	if !approx(entry.CostUSD, perCall) {
		t.Fatalf("entry cost = %v, want %v", entry.CostUSD, perCall)
	}
}

func TestTrackedClient_LedgerFailureDoesNotSurface(t *testing.T) {
	inner := &stubLLM{content: "ok", model: "gpt-4o-mini"}
	ledger := &memLedger{err: errors.New("db down")}
	tracked := NewTrackedClient(inner, "m-1", "sess-1", ledger, nil, logging.Default())

	if _, err := tracked.Chat(context.Background(), []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("ledger failure leaked: %v", err)
	}
	if tracked.TotalCost() == 0 {
		t.Fatal("running total should accumulate despite ledger failure")
	}
}

func TestTrackedClient_NoCostOnError(t *testing.T) {
	inner := &stubLLM{err: errors.New("rate limited")}
	tracked := NewTrackedClient(inner, "m-1", "sess-1", &memLedger{}, nil, logging.Default())

	if _, err := tracked.Chat(context.Background(), []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected provider error")
	}
	if tracked.TotalCost() != 0 {
		t.Fatalf("failed call accrued cost %v", tracked.TotalCost())
	}
	if tracked.Calls() != 0 {
		t.Fatal("failed call counted")
	}
}
