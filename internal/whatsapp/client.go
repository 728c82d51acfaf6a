// Package whatsapp is the WhatsApp Business (Graph) API adapter: outbound
// sends, media retrieval and inbound webhook parsing.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/wpp-platform/customer-service/pkg/errors"
	"github.com/wpp-platform/customer-service/pkg/logger"
	"github.com/wpp-platform/customer-service/pkg/metrics"
)

const (
	DefaultBaseURL  = "https://graph.facebook.com/v18.0"
	DefaultLanguage = "pt_BR"

	adapterName   = "whatsapp"
	maxMediaBytes = 100 << 20
)

// Config holds the Graph API credentials.
type Config struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	Timeout       time.Duration
}

// Client sends messages via the WhatsApp Business API.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
	logger        *logger.Logger
}

// NewClient creates a Graph API client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		accessToken:   cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        log.Named("whatsapp"),
	}
}

// SendMessage sends a text message. to is the digits-only WhatsApp id.
func (c *Client) SendMessage(ctx context.Context, to, text string) (*SendResult, error) {
	return c.send(ctx, "send_text", &SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &OutgoingText{Body: text},
	})
}

// SendTemplateMessage sends an approved template. An empty language code
// defaults to pt_BR.
func (c *Client) SendTemplateMessage(ctx context.Context, to, name, languageCode string, components []map[string]any) (*SendResult, error) {
	if languageCode == "" {
		languageCode = DefaultLanguage
	}
	return c.send(ctx, "send_template", &SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
		Template: &Template{
			Name:       name,
			Language:   TemplateLanguage{Code: languageCode},
			Components: components,
		},
	})
}

// SendInteractiveMessage sends a button or list message. interactive is the
// Graph API "interactive" object, passed through as is.
func (c *Client) SendInteractiveMessage(ctx context.Context, to string, interactive map[string]any) (*SendResult, error) {
	return c.send(ctx, "send_interactive", &SendMessageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive:      interactive,
	})
}

// MarkAsRead marks an inbound message as read.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	var resp SendMessageResponse
	err := c.do(ctx, "mark_read", http.MethodPost, c.messagesURL(), &SendMessageRequest{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	}, &resp)
	return err
}

// GetMediaURL resolves a media id to its short-lived download URL.
func (c *Client) GetMediaURL(ctx context.Context, mediaID string) (string, error) {
	var media MediaResponse
	if err := c.do(ctx, "get_media", http.MethodGet, c.baseURL+"/"+mediaID, nil, &media); err != nil {
		return "", err
	}
	if media.URL == "" {
		return "", apperrors.Adapter(adapterName, fmt.Errorf("media %s has no url", mediaID))
	}
	return media.URL, nil
}

// DownloadMedia fetches the bytes behind a media URL.
func (c *Client) DownloadMedia(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Adapter(adapterName, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordWhatsAppRequest("download_media", err)
		return nil, apperrors.Adapter(adapterName, fmt.Errorf("download media: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("download media: status %d", resp.StatusCode)
		metrics.RecordWhatsAppRequest("download_media", err)
		return nil, apperrors.Adapter(adapterName, err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	metrics.RecordWhatsAppRequest("download_media", err)
	if err != nil {
		return nil, apperrors.Adapter(adapterName, fmt.Errorf("read media: %w", err))
	}
	return data, nil
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
}

func (c *Client) send(ctx context.Context, op string, payload *SendMessageRequest) (*SendResult, error) {
	var resp SendMessageResponse
	if err := c.do(ctx, op, http.MethodPost, c.messagesURL(), payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, apperrors.Adapter(adapterName, errors.New("response carries no message id"))
	}

	result := &SendResult{MessageID: resp.Messages[0].ID}
	if len(resp.Contacts) > 0 {
		result.WaID = resp.Contacts[0].WaID
	}
	c.logger.Debug("message sent",
		zap.String("operation", op),
		zap.String("to", payload.To),
		zap.String("message_id", result.MessageID),
	)
	return result, nil
}

func (c *Client) do(ctx context.Context, op, method, url string, payload, out any) (err error) {
	defer func() { metrics.RecordWhatsAppRequest(op, err) }()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperrors.Adapter(adapterName, fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return apperrors.Adapter(adapterName, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("whatsapp request failed", zap.String("operation", op), zap.Error(err))
		return apperrors.Adapter(adapterName, fmt.Errorf("%s: %w", op, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Adapter(adapterName, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		c.logger.Warn("whatsapp api error",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg),
		)
		return apperrors.Adapter(adapterName, fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, msg))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apperrors.Adapter(adapterName, fmt.Errorf("unmarshal response: %w", err))
		}
	}
	return nil
}
