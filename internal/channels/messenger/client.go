package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopchat-ai/shopchat/internal/storefront"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v19.0"
	defaultHTTPTimeout  = 10 * time.Second

	// Messenger truncates longer texts; split before the API does it for us.
	maxTextLength = 2000
)

// Client sends messages via the Meta Graph API using a page access token.
type Client struct {
	pageAccessToken string
	graphAPIBase    string
	httpClient      *http.Client
}

// NewClient creates a Graph API client for one page.
func NewClient(pageAccessToken string) *Client {
	return &Client{
		pageAccessToken: pageAccessToken,
		graphAPIBase:    defaultGraphAPIBase,
		httpClient:      &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	c.graphAPIBase = base
}

// SendTextMessage sends a plain text message to the given PSID.
func (c *Client) SendTextMessage(ctx context.Context, recipientID, text string) (*SendResponse, error) {
	if len(text) > maxTextLength {
		text = text[:maxTextLength]
	}
	req := SendRequest{
		Recipient: SendRecipient{ID: recipientID},
		Message:   SendMessage{Text: text},
	}
	return c.send(ctx, req)
}

// SendCheckoutButton sends text with a checkout URL button.
func (c *Client) SendCheckoutButton(ctx context.Context, recipientID, text, checkoutURL string) (*SendResponse, error) {
	req := SendRequest{
		Recipient: SendRecipient{ID: recipientID},
		Message: SendMessage{
			Attachment: &Attachment{
				Type: "template",
				Payload: Payload{
					TemplateType: "button",
					Text:         text,
					Buttons: []Button{
						{Type: "web_url", Title: "Checkout", URL: checkoutURL},
					},
				},
			},
		},
	}
	return c.send(ctx, req)
}

// SendProductCarousel renders products as a generic template carousel.
// Messenger caps carousels at ten elements.
func (c *Client) SendProductCarousel(ctx context.Context, recipientID string, products []storefront.Product) (*SendResponse, error) {
	if len(products) == 0 {
		return nil, fmt.Errorf("messenger: empty product carousel")
	}
	if len(products) > 10 {
		products = products[:10]
	}

	elements := make([]Element, 0, len(products))
	for _, p := range products {
		element := Element{
			Title:    p.Title,
			Subtitle: fmt.Sprintf("%.2f %s", p.Price, p.Currency),
			ImageURL: p.ImageURL,
		}
		if p.URL != "" {
			element.Buttons = []Button{{Type: "web_url", Title: "View", URL: p.URL}}
		}
		elements = append(elements, element)
	}

	req := SendRequest{
		Recipient: SendRecipient{ID: recipientID},
		Message: SendMessage{
			Attachment: &Attachment{
				Type: "template",
				Payload: Payload{
					TemplateType: "generic",
					Elements:     elements,
				},
			},
		},
	}
	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("messenger: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/me/messages?access_token=%s", c.graphAPIBase, c.pageAccessToken)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("messenger: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("messenger: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("messenger: read response: %w", err)
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return nil, fmt.Errorf("messenger: unmarshal response: %w", err)
	}

	if sendResp.Error != nil {
		return &sendResp, fmt.Errorf("messenger: API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return &sendResp, fmt.Errorf("messenger: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return &sendResp, nil
}
