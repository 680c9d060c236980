package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/shopchat-ai/shopchat/internal/llm"
	"github.com/shopchat-ai/shopchat/internal/observability/metrics"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// modelPricing is USD per one million tokens.
type modelPricing struct {
	Input  float64
	Output float64
}

var pricingTable = map[string]modelPricing{
	"gpt-4o":           {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":      {Input: 0.15, Output: 0.60},
	"gpt-4.1-mini":     {Input: 0.40, Output: 1.60},
	"gemini-1.5-flash": {Input: 0.075, Output: 0.30},
	"gemini-1.5-pro":   {Input: 1.25, Output: 5.00},
	"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
	"anthropic.claude-3-5-haiku-20241022-v1:0":  {Input: 0.80, Output: 4.00},
	"anthropic.claude-3-5-sonnet-20241022-v2:0": {Input: 3.00, Output: 15.00},
}

// defaultPricing covers models missing from the table so cost tracking never
// silently records zero for a model we simply have not listed yet.
var defaultPricing = modelPricing{Input: 1.00, Output: 3.00}

// CostFor computes the dollar cost of a single LLM call.
func CostFor(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		pricing = defaultPricing
	}
	return (float64(promptTokens)*pricing.Input + float64(completionTokens)*pricing.Output) / 1_000_000
}

// CostLedger receives one entry per LLM call. Implementations must tolerate
// being called from request goroutines; failures are logged, never surfaced.
type CostLedger interface {
	RecordUsage(ctx context.Context, entry UsageEntry) error
}

// UsageEntry is one billable LLM call, attributed to the conversation it
// served via the channel-unified sender key.
type UsageEntry struct {
	MerchantID       string
	SessionKey       string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	OccurredAt       time.Time
}

// TrackedClient decorates an llm.Client with per-call cost accounting. It
// satisfies llm.Client so the rest of the pipeline never knows tracking is
// happening.
type TrackedClient struct {
	inner      llm.Client
	merchantID string
	sessionKey string
	ledger     CostLedger
	metrics    *metrics.PipelineMetrics
	logger     *logging.Logger

	mu    sync.Mutex
	total float64
	calls int
}

// NewTrackedClient wraps client. A nil ledger disables persistence but the
// in-memory running total still accumulates.
func NewTrackedClient(client llm.Client, merchantID, sessionKey string, ledger CostLedger, m *metrics.PipelineMetrics, logger *logging.Logger) *TrackedClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &TrackedClient{
		inner:      client,
		merchantID: merchantID,
		sessionKey: sessionKey,
		ledger:     ledger,
		metrics:    m,
		logger:     logger,
	}
}

func (t *TrackedClient) Chat(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatResponse, error) {
	started := time.Now()
	resp, err := t.inner.Chat(ctx, messages)
	t.metrics.ObserveLLMLatency(t.inner.Provider(), time.Since(started).Seconds())
	if err != nil {
		return nil, err
	}

	cost := CostFor(resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	t.mu.Lock()
	t.total += cost
	t.calls++
	t.mu.Unlock()

	t.metrics.ObserveLLMCost(t.inner.Provider(), resp.Model, cost)

	if t.ledger != nil {
		entry := UsageEntry{
			MerchantID:       t.merchantID,
			SessionKey:       t.sessionKey,
			Provider:         t.inner.Provider(),
			Model:            resp.Model,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			CostUSD:          cost,
			OccurredAt:       time.Now().UTC(),
		}
		if err := t.ledger.RecordUsage(ctx, entry); err != nil {
			t.logger.Warn("cost ledger write failed",
				"merchant_id", t.merchantID,
				"model", resp.Model,
				"error", err)
		}
	}

	return resp, nil
}

func (t *TrackedClient) TestConnection(ctx context.Context) bool {
	return t.inner.TestConnection(ctx)
}

func (t *TrackedClient) HealthCheck(ctx context.Context) map[string]any {
	return t.inner.HealthCheck(ctx)
}

func (t *TrackedClient) Provider() string { return t.inner.Provider() }
func (t *TrackedClient) Model() string    { return t.inner.Model() }

// TotalCost reports the dollars accumulated by this wrapper instance.
func (t *TrackedClient) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Calls reports how many successful LLM calls were tracked.
func (t *TrackedClient) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
