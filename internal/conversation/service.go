package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopchat-ai/shopchat/internal/llm"
	"github.com/shopchat-ai/shopchat/internal/merchants"
	"github.com/shopchat-ai/shopchat/internal/observability/metrics"
	"github.com/shopchat-ai/shopchat/internal/storefront"
	"github.com/shopchat-ai/shopchat/internal/tenancy"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// MerchantSource loads tenant configuration. *merchants.Store satisfies it.
type MerchantSource interface {
	Get(ctx context.Context, merchantID string) (*merchants.Merchant, error)
}

// ClientFactory builds an LLM client for a merchant's configured provider.
// *llm.Factory satisfies it.
type ClientFactory interface {
	Create(ctx context.Context, provider string, cfg llm.Config) (llm.Client, error)
}

// ProviderResolver picks the storefront implementation for a merchant.
type ProviderResolver interface {
	For(merchant *merchants.Merchant) storefront.Provider
}

// ExchangeRecorder persists a completed exchange. *Store satisfies it.
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, merchantID string, convCtx *Context, userMessage string, resp *Response) (string, error)
}

// ProcessRequest is one inbound message from any channel entrypoint.
type ProcessRequest struct {
	MerchantID string
	Channel    Channel
	SessionID  string
	Message    string

	// Messenger only.
	PlatformSenderID string

	// Preview only.
	UserID int64
}

// Service runs the unified conversation pipeline: load merchant, rebuild
// context, classify, dispatch to a handler, format, persist. Every channel
// entrypoint funnels through ProcessMessage.
type Service struct {
	merchants   MerchantSource
	factory     ClientFactory
	storefronts ProviderResolver
	classifier  *Classifier
	formatter   *Formatter
	contexts    *ContextStore
	recorder    ExchangeRecorder
	ledger      CostLedger
	metrics     *metrics.PipelineMetrics
	logger      *logging.Logger

	standbyProvider string
	standbyLLM      llm.Config

	handlers map[Intent]IntentHandler
	fallback IntentHandler
}

// ServiceConfig wires the pipeline's collaborators.
type ServiceConfig struct {
	Merchants   MerchantSource
	Factory     ClientFactory
	Storefronts ProviderResolver
	Classifier  *Classifier
	Formatter   *Formatter
	Contexts    *ContextStore
	Recorder    ExchangeRecorder
	Ledger      CostLedger
	Metrics     *metrics.PipelineMetrics
	Logger      *logging.Logger
	Notifier    HandoffNotifier

	// StandbyProvider and StandbyLLM name a platform-owned provider tried
	// when a merchant's own provider fails mid-reply. Empty disables it.
	StandbyProvider string
	StandbyLLM      llm.Config
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier(NewPatternMatcher(), cfg.Logger)
	}
	if cfg.Formatter == nil {
		cfg.Formatter = NewFormatter()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	s := &Service{
		merchants:   cfg.Merchants,
		factory:     cfg.Factory,
		storefronts: cfg.Storefronts,
		classifier:  cfg.Classifier,
		formatter:   cfg.Formatter,
		contexts:    cfg.Contexts,
		recorder:    cfg.Recorder,
		ledger:      cfg.Ledger,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,

		standbyProvider: cfg.StandbyProvider,
		standbyLLM:      cfg.StandbyLLM,
	}

	// A nil *ContextStore must stay a nil interface inside the handlers, or
	// the typed non-nil interface would dereference the nil store.
	var marker HandoffMarker
	var clearer ContextClearer
	if cfg.Contexts != nil {
		marker = cfg.Contexts
		clearer = cfg.Contexts
	}

	s.fallback = NewFallbackHandler(cfg.Formatter, 10, cfg.Logger)
	s.handlers = map[Intent]IntentHandler{
		IntentGreeting:          NewGreetingHandler(cfg.Formatter),
		IntentProductSearch:     NewSearchHandler(cfg.Formatter, 5),
		IntentCartView:          NewCartHandler(cfg.Formatter),
		IntentCartAdd:           NewCartHandler(cfg.Formatter),
		IntentCartRemove:        NewCartHandler(cfg.Formatter),
		IntentCartClear:         NewCartHandler(cfg.Formatter),
		IntentCheckout:          NewCheckoutHandler(cfg.Formatter),
		IntentOrderTracking:     NewOrderHandler(cfg.Formatter),
		IntentHumanHandoff:      NewHandoffHandler(cfg.Formatter, marker, cfg.Notifier, cfg.Logger),
		IntentClarification:     NewClarificationHandler(cfg.Formatter),
		IntentForgetPreferences: NewForgetHandler(cfg.Formatter, clearer, cfg.Logger),
	}
	return s
}

// RegisterHandler replaces the handler for an intent; used by tests and by
// deployments that extend the intent set.
func (s *Service) RegisterHandler(intent Intent, handler IntentHandler) {
	s.handlers[intent] = handler
}

// ProcessMessage runs one message through the pipeline and returns the
// channel-agnostic response. Persistence is best effort: a dead database
// loses the transcript entry, never the reply.
func (s *Service) ProcessMessage(ctx context.Context, req ProcessRequest) (*Response, error) {
	started := time.Now()

	merchant, err := s.merchants.Get(ctx, req.MerchantID)
	if err != nil {
		s.metrics.ObserveInbound(string(req.Channel), "error")
		return nil, fmt.Errorf("conversation: load merchant: %w", err)
	}
	if merchant == nil {
		s.metrics.ObserveInbound(string(req.Channel), "merchant_not_found")
		return nil, ErrMerchantNotFound
	}

	ctx = tenancy.WithMerchantID(ctx, merchant.ID)
	logger := s.logger.ForPipeline(merchant.ID, string(req.Channel))

	convCtx, state := s.rebuildContext(ctx, merchant.ID, req, logger)

	if state != nil && state.Handoff {
		// A human owns this session; the assistant stays quiet apart from
		// confirming the state so channels can render an appropriate notice.
		s.metrics.ObserveInbound(string(req.Channel), "handoff_active")
		resp := &Response{
			Message:  s.formatter.Format(merchant.ID, merchant.Personality, ResponseHandoff, nil),
			Intent:   IntentHumanHandoff,
			Metadata: map[string]string{"handoff": "active"},
		}
		s.appendAndPersist(ctx, merchant.ID, convCtx, state, req.Message, resp, logger)
		return resp, nil
	}

	client, closeClient, err := s.buildClient(ctx, merchant, convCtx.SenderKey())
	if err != nil {
		s.metrics.ObserveInbound(string(req.Channel), "error")
		return nil, fmt.Errorf("%w: %v", ErrLLMProvider, err)
	}
	defer closeClient()

	result := s.classifier.Classify(ctx, client, req.Message, convCtx)
	s.metrics.ObserveClassification(string(result.Intent), result.Provider)

	handlerReq := &HandlerRequest{
		Merchant: merchant,
		Context:  convCtx,
		Message:  req.Message,
		Result:   result,
		Store:    s.storefronts.For(merchant),
		Client:   client,
	}

	handler, name := s.selectHandler(result)
	s.metrics.ObserveHandler(name)

	resp, err := handler.Handle(ctx, handlerReq)
	if err != nil {
		s.metrics.ObserveInbound(string(req.Channel), "error")
		// Callers never see raw provider or handler errors; everything past
		// the merchant lookup collapses into the provider error kind.
		return nil, fmt.Errorf("%w: %v", ErrLLMProvider, err)
	}

	if resp.Intent == "" {
		resp.Intent = result.Intent
	}
	if resp.Confidence == 0 {
		resp.Confidence = result.Confidence
	}
	resp.ProcessingTimeMS = time.Since(started).Milliseconds()

	s.appendAndPersist(ctx, merchant.ID, convCtx, state, req.Message, resp, logger)
	s.metrics.ObserveInbound(string(req.Channel), "ok")
	return resp, nil
}

// rebuildContext loads session state and projects it into a fresh Context.
// A dead Redis degrades to a stateless exchange rather than an error.
func (s *Service) rebuildContext(ctx context.Context, merchantID string, req ProcessRequest, logger *logging.Logger) (*Context, *SessionState) {
	convCtx := &Context{
		Channel:          req.Channel,
		SessionID:        req.SessionID,
		MerchantID:       merchantID,
		PlatformSenderID: req.PlatformSenderID,
		UserID:           req.UserID,
		Metadata:         make(map[string]string),
	}

	if s.contexts == nil {
		return convCtx, nil
	}

	state, existed, err := s.contexts.Load(ctx, merchantID, convCtx.SenderKey())
	if err != nil {
		logger.Warn("session load failed, continuing stateless", "error", err)
		return convCtx, nil
	}

	convCtx.History = state.History
	convCtx.Metadata = state.Metadata
	convCtx.IsReturningShopper = existed && state.MessageCount > 0
	return convCtx, state
}

// buildClient constructs the merchant's LLM client, composes the platform
// standby provider when one is configured, and wraps the result with cost
// tracking. The returned close func releases provider resources (Gemini
// holds a connection).
func (s *Service) buildClient(ctx context.Context, merchant *merchants.Merchant, sessionKey string) (llm.Client, func(), error) {
	primary, err := s.factory.Create(ctx, merchant.LLMProvider, llm.Config{
		APIKey: merchant.LLMAPIKey,
		Model:  merchant.LLMModel,
	})
	if err != nil {
		return nil, nil, err
	}

	clients := []llm.Client{primary}
	client := primary
	if s.standbyProvider != "" && s.standbyLLM.APIKey != "" {
		standby, err := s.factory.Create(ctx, s.standbyProvider, s.standbyLLM)
		if err != nil {
			s.logger.Warn("standby LLM unavailable, continuing without it",
				"provider", s.standbyProvider, "error", err)
		} else {
			clients = append(clients, standby)
			client = llm.NewFallbackClient(primary, standby, s.logger.Logger)
		}
	}

	closeFn := func() {
		for _, c := range clients {
			if closer, ok := c.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}
	}
	tracked := NewTrackedClient(client, merchant.ID, sessionKey, s.ledger, s.metrics, s.logger)
	return tracked, closeFn, nil
}

// selectHandler applies the confidence policy: anything below the
// clarification threshold goes to the LLM fallback regardless of the
// classified intent, so a shaky cart_clear can never wipe a cart.
func (s *Service) selectHandler(result ClassificationResult) (IntentHandler, string) {
	if result.NeedsClarification() {
		return s.fallback, "fallback"
	}
	if handler, ok := s.handlers[result.Intent]; ok {
		return handler, string(result.Intent)
	}
	return s.fallback, "fallback"
}

// appendAndPersist updates the Redis session and writes the exchange to
// Postgres. Both are best effort.
func (s *Service) appendAndPersist(ctx context.Context, merchantID string, convCtx *Context, state *SessionState, userMessage string, resp *Response, logger *logging.Logger) {
	now := time.Now().UTC()

	if s.contexts != nil && state != nil {
		state.History = append(state.History,
			Turn{Role: "user", Content: userMessage, Timestamp: now},
			Turn{Role: "assistant", Content: resp.Message, Timestamp: now},
		)
		state.MessageCount++
		if len(resp.Products) > 0 {
			state.Metadata[metaLastProductID] = resp.Products[0].ID
			state.Metadata[metaLastProductTitle] = resp.Products[0].Title
		}
		// The forget handler deleted the session; re-saving the state here
		// would resurrect the data we just promised to drop.
		if resp.Intent != IntentForgetPreferences {
			if err := s.contexts.Save(ctx, merchantID, convCtx.SenderKey(), state); err != nil {
				logger.Warn("session save failed", "error", err)
			}
		}
	}

	if s.recorder != nil && resp.Intent != IntentForgetPreferences {
		if _, err := s.recorder.RecordExchange(ctx, merchantID, convCtx, userMessage, resp); err != nil {
			logger.Warn("exchange persistence failed", "error", err)
		}
	}
}
