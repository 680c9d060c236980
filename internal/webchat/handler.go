package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/shopchat-ai/shopchat/internal/conversation"
	"github.com/shopchat-ai/shopchat/internal/merchants"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// MerchantDirectory resolves merchants for session bootstrap.
type MerchantDirectory interface {
	Get(ctx context.Context, merchantID string) (*merchants.Merchant, error)
}

// HistorySource reads persisted transcript messages.
type HistorySource interface {
	History(ctx context.Context, merchantID, senderKey string, limit int) ([]conversation.StoredMessage, error)
}

// Handler serves the embeddable chat widget: session bootstrap, the message
// endpoint, the WebSocket upgrade and the transcript history endpoint.
type Handler struct {
	merchants  MerchantDirectory
	dispatcher conversation.Dispatcher
	history    HistorySource
	tokens     *TokenIssuer
	widgetJS   []byte
	logger     *logging.Logger
}

// InboundMessage is what the widget sends over the WebSocket.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type        string        `json:"type"` // "message", "typing", "pong", "error"
	Text        string        `json:"text,omitempty"`
	Role        string        `json:"role,omitempty"`
	CheckoutURL string        `json:"checkout_url,omitempty"`
	Products    []ProductCard `json:"products,omitempty"`
	Timestamp   string        `json:"timestamp,omitempty"`
}

// ProductCard is the widget-facing projection of a product result.
type ProductCard struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	ImageURL string  `json:"image_url,omitempty"`
	URL      string  `json:"url,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a widget handler.
func NewHandler(directory MerchantDirectory, dispatcher conversation.Dispatcher, history HistorySource, tokens *TokenIssuer, widgetJS []byte, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		merchants:  directory,
		dispatcher: dispatcher,
		history:    history,
		tokens:     tokens,
		widgetJS:   widgetJS,
		logger:     logger,
	}
}

// HandleSession bootstraps a widget session: validates the embedding origin
// against the merchant's whitelist and issues a signed session token.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MerchantID string `json:"merchant_id"`
		SessionID  string `json:"session_id"` // returning visitors resume
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MerchantID == "" {
		http.Error(w, "merchant_id is required", http.StatusBadRequest)
		return
	}

	merchant, err := h.merchants.Get(r.Context(), req.MerchantID)
	if err != nil {
		h.logger.Error("webchat: merchant lookup failed", "error", err, "merchant_id", req.MerchantID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if merchant == nil {
		http.Error(w, "unknown merchant", http.StatusNotFound)
		return
	}

	if !originAllowed(r.Header.Get("Origin"), merchant.AllowedWidgetDomains) {
		h.logger.Warn("webchat: origin rejected",
			"merchant_id", req.MerchantID, "origin", r.Header.Get("Origin"))
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	token, err := h.tokens.Issue(merchant.ID, sessionID)
	if err != nil {
		h.logger.Error("webchat: token issue failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{
		"session_id": sessionID,
		"token":      token,
		"merchant":   merchant.Name,
	})
}

// HandleMessage is the HTTP endpoint the widget falls back to when the
// WebSocket is unavailable. It runs the pipeline synchronously and returns
// the reply.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	merchantID, sessionID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	resp, err := h.dispatcher.ProcessMessage(r.Context(), conversation.ProcessRequest{
		MerchantID: merchantID,
		Channel:    conversation.ChannelWidget,
		SessionID:  sessionID,
		Message:    req.Text,
	})
	if err != nil {
		// A vanished merchant (token outlives the account) is the caller's
		// problem, not ours.
		if errors.Is(err, conversation.ErrMerchantNotFound) {
			http.Error(w, "unknown merchant", http.StatusNotFound)
			return
		}
		h.logger.Error("webchat: pipeline failed", "error", err, "merchant_id", merchantID)
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}

	writeJSON(w, toOutbound(resp))
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging. The
// session token rides in the query string because browsers cannot set headers
// on WebSocket upgrades.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	merchantID, sessionID, err := h.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "invalid session"})
		return
	}

	logger := h.logger.With("merchant_id", merchantID, "session_id", sessionID)
	logger.Info("webchat: connection opened")

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			logger.Debug("webchat: connection closed", "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "typing"})

		resp, err := h.dispatcher.ProcessMessage(r.Context(), conversation.ProcessRequest{
			MerchantID: merchantID,
			Channel:    conversation.ChannelWidget,
			SessionID:  sessionID,
			Message:    msg.Text,
		})
		if err != nil {
			logger.Error("webchat: pipeline failed", "error", err)
			_ = websocket.JSON.Send(conn, OutboundMessage{
				Type: "error",
				Text: "Sorry, something went wrong. Please try again.",
			})
			continue
		}

		_ = websocket.JSON.Send(conn, toOutbound(resp))
	}
}

// HandleHistory returns the persisted transcript for the session bound to
// the presented token.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	merchantID, sessionID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if h.history == nil {
		writeJSON(w, map[string]interface{}{"messages": []HistoryMessage{}})
		return
	}

	msgs, err := h.history.History(r.Context(), merchantID, sessionID, 100)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{
			Role:      m.Role,
			Text:      m.Content,
			Timestamp: m.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, map[string]interface{}{"messages": history})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

// authorize extracts and verifies the bearer token, writing the error
// response itself when the token is missing or bad.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (merchantID, sessionID string, ok bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	merchantID, sessionID, err := h.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			http.Error(w, "invalid or expired session", http.StatusUnauthorized)
		} else {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return "", "", false
	}
	return merchantID, sessionID, true
}

func toOutbound(resp *conversation.Response) OutboundMessage {
	out := OutboundMessage{
		Type:        "message",
		Role:        "assistant",
		Text:        resp.Message,
		CheckoutURL: resp.CheckoutURL,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, p := range resp.Products {
		out.Products = append(out.Products, ProductCard{
			ID:       p.ID,
			Title:    p.Title,
			Price:    p.Price,
			Currency: p.Currency,
			ImageURL: p.ImageURL,
			URL:      p.URL,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
