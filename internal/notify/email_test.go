package notify

import (
	"testing"

	"github.com/shopchat-ai/shopchat/pkg/logging"
)

func TestNewSendGridSender(t *testing.T) {
	if s := NewSendGridSender(SendGridConfig{}, logging.Default()); s != nil {
		t.Fatal("sender built without an API key")
	}

	s := NewSendGridSender(SendGridConfig{
		APIKey:    "SG.test",
		FromEmail: "alerts@shopchat.example",
	}, logging.Default())
	if s == nil {
		t.Fatal("sender not built")
	}
	if s.fromName != "ShopChat" {
		t.Fatalf("default from name = %q", s.fromName)
	}

	var _ EmailSender = s
}
