package conversation

import (
	"time"

	"github.com/shopchat-ai/shopchat/internal/storefront"
)

// Channel identifies which transport a conversation is happening on.
type Channel string

const (
	ChannelUnknown   Channel = ""
	ChannelWidget    Channel = "widget"
	ChannelMessenger Channel = "messenger"
	ChannelPreview   Channel = "preview"
)

// Turn is one prior exchange in the session history.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context is the channel-agnostic view of one inbound message.
// It is rebuilt per request from the persisted session state plus the new
// message; it is never stored as a blob.
type Context struct {
	Channel    Channel `json:"channel"`
	SessionID  string  `json:"session_id"`
	MerchantID string  `json:"merchant_id"`

	History []Turn `json:"history,omitempty"`

	// Messenger only: the page-scoped sender id.
	PlatformSenderID string `json:"platform_sender_id,omitempty"`

	// Preview only: the merchant-side user trying the bot.
	UserID int64 `json:"user_id,omitempty"`

	IsReturningShopper bool `json:"is_returning_shopper,omitempty"`

	// Open handler-specific state, e.g. clarification progress.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SenderKey returns the identifier used as the unified session key across
// channels. Messenger prefers the PSID; everything else uses the session id.
func (c *Context) SenderKey() string {
	if c.Channel == ChannelMessenger && c.PlatformSenderID != "" {
		return c.PlatformSenderID
	}
	return c.SessionID
}

// Response is the normalized result handed back to channel entrypoints.
// Entrypoints project only the fields relevant to their channel.
type Response struct {
	Message     string               `json:"message"`
	Intent      Intent               `json:"intent,omitempty"`
	Confidence  float64              `json:"confidence,omitempty"`
	CheckoutURL string               `json:"checkout_url,omitempty"`
	Fallback    bool                 `json:"fallback"`
	FallbackURL string               `json:"fallback_url,omitempty"`
	Products    []storefront.Product `json:"products,omitempty"`
	Cart        *storefront.Cart     `json:"cart,omitempty"`
	Order       *storefront.Order    `json:"order,omitempty"`
	Metadata    map[string]string    `json:"metadata,omitempty"`

	ProcessingTimeMS int64 `json:"processing_time_ms,omitempty"`
}
