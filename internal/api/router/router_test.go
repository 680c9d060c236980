package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopchat-ai/shopchat/internal/channels/messenger"
	"github.com/shopchat-ai/shopchat/internal/conversation"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

type stubDispatcher struct {
	lastReq conversation.ProcessRequest
	resp    *conversation.Response
	err     error
}

func (s *stubDispatcher) ProcessMessage(ctx context.Context, req conversation.ProcessRequest) (*conversation.Response, error) {
	s.lastReq = req
	return s.resp, s.err
}

func (s *stubDispatcher) Shutdown(ctx context.Context) error { return nil }

func newTestRouter(dispatcher conversation.Dispatcher) http.Handler {
	return New(&Config{
		Logger:     logging.New("error"),
		Messenger:  messenger.NewWebhookHandler("verify-me", "app-secret", nil),
		Dispatcher: dispatcher,
		AdminToken: "ops-token",
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(&stubDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterMessengerVerification(t *testing.T) {
	router := newTestRouter(&stubDispatcher{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhooks/messenger?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "12345" {
		t.Errorf("expected challenge echoed, got %q", rr.Body.String())
	}
}

func TestRouterPreviewRequiresAdminToken(t *testing.T) {
	router := newTestRouter(&stubDispatcher{resp: &conversation.Response{Message: "hi"}})

	body := `{"merchant_id":"m-1","user_id":42,"text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/preview/message", strings.NewReader(body))
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterPreviewDispatches(t *testing.T) {
	dispatcher := &stubDispatcher{resp: &conversation.Response{Message: "Welcome to the preview!"}}
	router := newTestRouter(dispatcher)

	body := `{"merchant_id":"m-1","user_id":42,"text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/preview/message", strings.NewReader(body))
	req.Header.Set("X-Admin-Token", "ops-token")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	if dispatcher.lastReq.Channel != conversation.ChannelPreview {
		t.Errorf("expected preview channel, got %q", dispatcher.lastReq.Channel)
	}
	if dispatcher.lastReq.UserID != 42 {
		t.Errorf("expected user id 42, got %d", dispatcher.lastReq.UserID)
	}

	var resp conversation.Response
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != "Welcome to the preview!" {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestRouterPreviewValidatesBody(t *testing.T) {
	router := newTestRouter(&stubDispatcher{})

	body := `{"merchant_id":"m-1","text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/preview/message", strings.NewReader(body))
	req.Header.Set("X-Admin-Token", "ops-token")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestRouterPreviewUnknownMerchant(t *testing.T) {
	router := newTestRouter(&stubDispatcher{err: conversation.ErrMerchantNotFound})

	body := `{"merchant_id":"ghost","user_id":42,"text":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/preview/message", strings.NewReader(body))
	req.Header.Set("X-Admin-Token", "ops-token")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
