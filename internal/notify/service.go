package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/shopchat-ai/shopchat/internal/merchants"
	"github.com/shopchat-ai/shopchat/pkg/logging"
)

// MerchantDirectory resolves merchant contact details.
type MerchantDirectory interface {
	Get(ctx context.Context, merchantID string) (*merchants.Merchant, error)
}

// Service emails merchants when a shopper asks for a human. It implements
// the conversation pipeline's handoff notifier contract.
type Service struct {
	email     EmailSender
	merchants MerchantDirectory
	logger    *logging.Logger
}

// NewService creates a notification service. A nil email sender disables
// outbound mail; handoff marking still works without it.
func NewService(email EmailSender, directory MerchantDirectory, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:     email,
		merchants: directory,
		logger:    logger,
	}
}

// NotifyHandoff emails the merchant that a conversation needs a human.
func (s *Service) NotifyHandoff(ctx context.Context, merchantID, merchantName, channel, senderKey, lastMessage string) error {
	if s.email == nil {
		s.logger.Debug("notify: email disabled, skipping handoff alert", "merchant_id", merchantID)
		return nil
	}

	to := ""
	if s.merchants != nil {
		merchant, err := s.merchants.Get(ctx, merchantID)
		if err != nil {
			return fmt.Errorf("notify: resolve merchant %s: %w", merchantID, err)
		}
		if merchant != nil {
			to = merchant.NotifyEmail
		}
	}
	if to == "" {
		s.logger.Debug("notify: merchant has no notify email", "merchant_id", merchantID)
		return nil
	}

	body := fmt.Sprintf(
		"A shopper asked to speak with a human.\n\nStore: %s\nChannel: %s\nConversation: %s\nLast message: %q\nTime: %s\n\nThe assistant has paused for this conversation until you resume it from the dashboard.",
		merchantName, channel, senderKey, lastMessage, time.Now().UTC().Format(time.RFC1123),
	)

	msg := EmailMessage{
		To:      to,
		ToName:  merchantName,
		Subject: fmt.Sprintf("A shopper wants to talk to you (%s)", channel),
		Body:    body,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: handoff alert: %w", err)
	}
	return nil
}
