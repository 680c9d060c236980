package conversation

import (
	"fmt"
	"strings"
)

// Cart keys are namespaced per channel so the same shopper can carry
// independent carts on the widget and on Messenger. Format:
//
//	cart:{channel}:{identifier}
//
// Preview carts are additionally scoped by merchant so two staff members
// testing the same store do not trample each other.
func CartKeyForMessenger(psid string) string {
	return fmt.Sprintf("cart:%s:%s", ChannelMessenger, psid)
}

func CartKeyForWidget(sessionID string) string {
	return fmt.Sprintf("cart:%s:%s", ChannelWidget, sessionID)
}

func CartKeyForPreview(merchantID string, userID int64) string {
	return fmt.Sprintf("cart:%s:%s:%d", ChannelPreview, merchantID, userID)
}

// CartKeyForContext picks the key for a conversation context. A context with
// an unrecognized channel still gets a stable key under the "unknown"
// namespace so cart operations keep working instead of erroring.
func CartKeyForContext(ctx *Context) string {
	if ctx == nil {
		return "cart:unknown:"
	}
	switch ctx.Channel {
	case ChannelMessenger:
		// A messenger context without a PSID (not yet resolved) still needs
		// a key distinct per session, never a shared empty-identifier key.
		if ctx.PlatformSenderID == "" {
			return fmt.Sprintf("cart:%s:%s", ChannelMessenger, ctx.SessionID)
		}
		return CartKeyForMessenger(ctx.PlatformSenderID)
	case ChannelWidget:
		return CartKeyForWidget(ctx.SessionID)
	case ChannelPreview:
		return CartKeyForPreview(ctx.MerchantID, ctx.UserID)
	default:
		return fmt.Sprintf("cart:unknown:%s", ctx.SessionID)
	}
}

// ParseCartKey splits a cart key into channel and identifier. The identifier
// keeps any further colons (preview keys embed a merchant id).
func ParseCartKey(key string) (channel, identifier string, ok bool) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || parts[0] != "cart" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
