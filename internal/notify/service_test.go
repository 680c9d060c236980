package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/shopchat-ai/shopchat/internal/merchants"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

type stubDirectory struct {
	merchant *merchants.Merchant
}

func (s *stubDirectory) Get(ctx context.Context, merchantID string) (*merchants.Merchant, error) {
	return s.merchant, nil
}

func TestService_NotifyHandoff(t *testing.T) {
	sender := NewStubEmailSender(logging.Default())
	svc := NewService(sender, &stubDirectory{merchant: &merchants.Merchant{
		ID:          "m-1",
		Name:        "Acme Outdoors",
		NotifyEmail: "owner@acme.example",
	}}, logging.Default())

	err := svc.NotifyHandoff(context.Background(), "m-1", "Acme Outdoors", "widget", "sess-1", "talk to a human")
	if err != nil {
		t.Fatalf("NotifyHandoff: %v", err)
	}
	if len(sender.Sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.Sent))
	}
	msg := sender.Sent[0]
	if msg.To != "owner@acme.example" {
		t.Fatalf("to = %q", msg.To)
	}
	if !strings.Contains(msg.Body, "sess-1") || !strings.Contains(msg.Body, "talk to a human") {
		t.Fatalf("body missing context: %q", msg.Body)
	}
}

func TestService_NotifyHandoffNoEmailConfigured(t *testing.T) {
	sender := NewStubEmailSender(logging.Default())
	svc := NewService(sender, &stubDirectory{merchant: &merchants.Merchant{ID: "m-1"}}, logging.Default())

	if err := svc.NotifyHandoff(context.Background(), "m-1", "Acme", "widget", "sess-1", "help"); err != nil {
		t.Fatalf("NotifyHandoff: %v", err)
	}
	if len(sender.Sent) != 0 {
		t.Fatal("email sent without a notify address")
	}
}

func TestService_NotifyHandoffDisabled(t *testing.T) {
	svc := NewService(nil, nil, logging.Default())
	if err := svc.NotifyHandoff(context.Background(), "m-1", "Acme", "widget", "sess-1", "help"); err != nil {
		t.Fatalf("disabled sender errored: %v", err)
	}
}
