package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shopchat-ai/shopchat/internal/billing"
	"github.com/shopchat-ai/shopchat/internal/channels/messenger"
	"github.com/shopchat-ai/shopchat/internal/conversation"
	httpmiddleware "github.com/shopchat-ai/shopchat/internal/http/middleware"
	"github.com/shopchat-ai/shopchat/internal/webchat"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Messenger *messenger.WebhookHandler
	Widget    *webchat.Handler

	// Preview harness: merchants try the bot against the mock storefront.
	Dispatcher conversation.Dispatcher

	// Operator endpoints.
	Billing       *billing.Ledger
	Contexts      *conversation.ContextStore
	Conversations *conversation.Store
	AdminToken    string

	MetricsHandler http.Handler

	CORSAllowedOrigins []string
	WidgetRateLimit    float64
	WidgetRateBurst    int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Messenger != nil {
		r.Route("/webhooks/messenger", func(r chi.Router) {
			r.Get("/", cfg.Messenger.HandleVerification)
			r.Post("/", cfg.Messenger.HandleInbound)
		})
	}

	if cfg.Widget != nil {
		r.Route("/widget", func(r chi.Router) {
			rate, burst := cfg.WidgetRateLimit, cfg.WidgetRateBurst
			if rate <= 0 {
				rate = 2
			}
			if burst <= 0 {
				burst = 10
			}
			r.Use(httpmiddleware.RateLimit(rate, burst))

			r.Post("/session", cfg.Widget.HandleSession)
			r.Post("/message", cfg.Widget.HandleMessage)
			r.Get("/ws", cfg.Widget.HandleWebSocket)
			r.Get("/history", cfg.Widget.HandleHistory)
		})
		// Served to every page load, so outside the rate limit.
		r.Get("/widget.js", cfg.Widget.HandleWidgetJS)
	}

	// Operator endpoints: the merchant-facing preview harness, usage
	// reporting and handoff controls.
	r.Route("/api", func(r chi.Router) {
		r.Use(requireAdminToken(cfg.AdminToken))

		if cfg.Dispatcher != nil {
			r.Post("/preview/message", handlePreview(cfg.Dispatcher, cfg.Logger))
		}
		if cfg.Billing != nil {
			r.Get("/billing/{merchantID}/usage", handleUsage(cfg.Billing, cfg.Logger))
		}
		if cfg.Contexts != nil {
			r.Post("/conversations/{merchantID}/{senderKey}/resume",
				handleResume(cfg.Contexts, cfg.Conversations, cfg.Logger))
		}
	})

	return r
}
