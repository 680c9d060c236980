package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopchat-ai/shopchat/internal/billing"
	"github.com/shopchat-ai/shopchat/internal/conversation"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// handlePreview lets a merchant-side user exercise the pipeline before
// connecting a real channel. Preview sessions run against the mock
// storefront and are isolated per user.
func handlePreview(dispatcher conversation.Dispatcher, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MerchantID string `json:"merchant_id"`
			UserID     int64  `json:"user_id"`
			SessionID  string `json:"session_id"`
			Text       string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.MerchantID == "" || req.UserID == 0 || strings.TrimSpace(req.Text) == "" {
			http.Error(w, "merchant_id, user_id and text are required", http.StatusBadRequest)
			return
		}
		if req.SessionID == "" {
			req.SessionID = "preview"
		}

		resp, err := dispatcher.ProcessMessage(r.Context(), conversation.ProcessRequest{
			MerchantID: req.MerchantID,
			Channel:    conversation.ChannelPreview,
			SessionID:  req.SessionID,
			UserID:     req.UserID,
			Message:    req.Text,
		})
		if err != nil {
			if errors.Is(err, conversation.ErrMerchantNotFound) {
				http.Error(w, "unknown merchant", http.StatusNotFound)
				return
			}
			logger.Error("preview: pipeline failed", "error", err, "merchant_id", req.MerchantID)
			http.Error(w, "failed to process message", http.StatusInternalServerError)
			return
		}

		writeJSON(w, resp)
	}
}

// handleUsage returns month-to-date spend plus a per-model breakdown.
func handleUsage(ledger *billing.Ledger, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID := chi.URLParam(r, "merchantID")
		now := time.Now().UTC()

		summary, err := ledger.MonthToDate(r.Context(), merchantID, now)
		if err != nil {
			logger.Error("billing: usage query failed", "error", err, "merchant_id", merchantID)
			http.Error(w, "failed to load usage", http.StatusInternalServerError)
			return
		}

		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		breakdown, err := ledger.BreakdownByModel(r.Context(), merchantID, monthStart, monthStart.AddDate(0, 1, 0))
		if err != nil {
			logger.Error("billing: breakdown query failed", "error", err, "merchant_id", merchantID)
			http.Error(w, "failed to load usage", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"summary": summary,
			"models":  breakdown,
		})
	}
}

// handleResume ends a human handoff so the assistant answers again.
func handleResume(contexts *conversation.ContextStore, conversations *conversation.Store, logger *logging.Logger) http.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID := chi.URLParam(r, "merchantID")
		senderKey := chi.URLParam(r, "senderKey")

		if err := contexts.ResumeBot(r.Context(), merchantID, senderKey); err != nil {
			logger.Error("handoff: resume failed", "error", err, "merchant_id", merchantID)
			http.Error(w, "failed to resume", http.StatusInternalServerError)
			return
		}
		if conversations != nil {
			if err := conversations.UpdateStatus(r.Context(), merchantID, senderKey, conversation.StatusActive); err != nil {
				logger.Error("handoff: status update failed", "error", err, "merchant_id", merchantID)
			}
		}

		writeJSON(w, map[string]string{"status": conversation.StatusActive})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
