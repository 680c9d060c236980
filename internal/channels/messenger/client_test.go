package messenger

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopchat-ai/shopchat/internal/storefront"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("page-token")
	c.SetGraphAPIBase(srv.URL)
	return c
}

func TestClient_SendTextMessage(t *testing.T) {
	var got SendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("access_token") != "page-token" {
			t.Error("missing page access token")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(SendResponse{RecipientID: "psid-77", MessageID: "mid.123"})
	})

	resp, err := c.SendTextMessage(context.Background(), "psid-77", "hello there")
	if err != nil {
		t.Fatalf("SendTextMessage: %v", err)
	}
	if resp.MessageID != "mid.123" {
		t.Fatalf("message id = %q", resp.MessageID)
	}
	if got.Recipient.ID != "psid-77" || got.Message.Text != "hello there" {
		t.Fatalf("request = %+v", got)
	}
}

func TestClient_TruncatesLongText(t *testing.T) {
	var got SendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		json.NewEncoder(w).Encode(SendResponse{MessageID: "mid.1"})
	})

	if _, err := c.SendTextMessage(context.Background(), "psid-77", strings.Repeat("a", maxTextLength+50)); err != nil {
		t.Fatalf("SendTextMessage: %v", err)
	}
	if len(got.Message.Text) != maxTextLength {
		t.Fatalf("sent %d chars, want %d", len(got.Message.Text), maxTextLength)
	}
}

func TestClient_SendCheckoutButton(t *testing.T) {
	var got SendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		json.NewEncoder(w).Encode(SendResponse{MessageID: "mid.2"})
	})

	if _, err := c.SendCheckoutButton(context.Background(), "psid-77", "Ready to pay?", "https://shop.example/checkout"); err != nil {
		t.Fatalf("SendCheckoutButton: %v", err)
	}
	att := got.Message.Attachment
	if att == nil || att.Payload.TemplateType != "button" {
		t.Fatalf("attachment = %+v", att)
	}
	if len(att.Payload.Buttons) != 1 || att.Payload.Buttons[0].URL != "https://shop.example/checkout" {
		t.Fatalf("buttons = %+v", att.Payload.Buttons)
	}
}

func TestClient_SendProductCarousel(t *testing.T) {
	var got SendRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		json.NewEncoder(w).Encode(SendResponse{MessageID: "mid.3"})
	})

	products := make([]storefront.Product, 12)
	for i := range products {
		products[i] = storefront.Product{ID: "p", Title: "Trail Shoe", Price: 89.99, Currency: "USD"}
	}
	if _, err := c.SendProductCarousel(context.Background(), "psid-77", products); err != nil {
		t.Fatalf("SendProductCarousel: %v", err)
	}
	if n := len(got.Message.Attachment.Payload.Elements); n != 10 {
		t.Fatalf("carousel elements = %d, want capped at 10", n)
	}

	if _, err := c.SendProductCarousel(context.Background(), "psid-77", nil); err == nil {
		t.Fatal("expected error for empty carousel")
	}
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(SendResponse{Error: &SendError{
			Message: "Invalid OAuth access token", Code: 190,
		}})
	})

	_, err := c.SendTextMessage(context.Background(), "psid-77", "hi")
	if err == nil {
		t.Fatal("expected API error")
	}
	if !strings.Contains(err.Error(), "190") {
		t.Fatalf("error = %v, want Graph error code surfaced", err)
	}
}
