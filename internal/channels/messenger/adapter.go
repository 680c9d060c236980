package messenger

import (
	"context"
	"time"

	"github.com/shopchat-ai/shopchat/internal/conversation"
	"github.com/shopchat-ai/shopchat/internal/merchants"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// processTimeout bounds one inbound message end to end, LLM included.
const processTimeout = 60 * time.Second

// PageResolver maps a Facebook page id to its merchant.
type PageResolver interface {
	GetByMessengerPage(ctx context.Context, pageID string) (*merchants.Merchant, error)
}

// GraphSender is the outbound surface of the Graph API client.
type GraphSender interface {
	SendTextMessage(ctx context.Context, recipientID, text string) (*SendResponse, error)
	SendCheckoutButton(ctx context.Context, recipientID, text, checkoutURL string) (*SendResponse, error)
}

// Adapter bridges parsed webhook messages into the conversation pipeline and
// sends replies back through the page's Graph API token.
type Adapter struct {
	merchants  PageResolver
	dispatcher conversation.Dispatcher
	logger     *logging.Logger

	// newSender builds the outbound client per merchant page token.
	// Overridable in tests.
	newSender func(pageToken string) GraphSender
}

func NewAdapter(resolver PageResolver, dispatcher conversation.Dispatcher, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		merchants:  resolver,
		dispatcher: dispatcher,
		logger:     logger,
		newSender:  func(pageToken string) GraphSender { return NewClient(pageToken) },
	}
}

// HandleMessage processes one inbound Messenger message. Errors are logged,
// never returned: the webhook already acked and Meta must not retry.
func (a *Adapter) HandleMessage(msg InboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	logger := a.logger.With("page_id", msg.PageID, "sender_id", msg.SenderID)

	merchant, err := a.merchants.GetByMessengerPage(ctx, msg.PageID)
	if err != nil {
		logger.Error("failed to resolve page merchant", "error", err)
		return
	}
	if merchant == nil {
		logger.Warn("webhook event for unknown page")
		return
	}

	text := msg.Text
	if msg.IsPostback && msg.PostbackPayload != "" {
		text = msg.PostbackPayload
	}
	if text == "" {
		return
	}

	resp, err := a.dispatcher.ProcessMessage(ctx, conversation.ProcessRequest{
		MerchantID:       merchant.ID,
		Channel:          conversation.ChannelMessenger,
		PlatformSenderID: msg.SenderID,
		Message:          text,
	})
	if err != nil {
		logger.Error("pipeline failed for messenger message", "error", err)
		return
	}
	if resp.Message == "" {
		return
	}

	sender := a.newSender(merchant.MessengerPageToken)
	if resp.CheckoutURL != "" {
		if _, err := sender.SendCheckoutButton(ctx, msg.SenderID, resp.Message, resp.CheckoutURL); err != nil {
			logger.Error("failed to send checkout button", "error", err)
		}
		return
	}
	if _, err := sender.SendTextMessage(ctx, msg.SenderID, resp.Message); err != nil {
		logger.Error("failed to send messenger reply", "error", err)
	}
}
