package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"oppwapay/internal/pkg/httpclient"
)

const defaultAPIBase = "https://api.telegram.org"

// BotAPI is a minimal Telegram Bot API client used to page operators when the
// gateway is unreachable during a refund.
type BotAPI struct {
	token   string
	chatID  string
	apiBase string
	client  *httpclient.Client
	logger  *zap.Logger
}

// NewBotAPI creates a new alerting client. An empty token or chat id yields a
// client whose Alert is a no-op.
func NewBotAPI(token, chatID string, logger *zap.Logger) *BotAPI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotAPI{
		token:   token,
		chatID:  chatID,
		apiBase: defaultAPIBase,
		client:  httpclient.New().WithTimeout(10 * time.Second),
		logger:  logger,
	}
}

// WithAPIBase points the client at another Bot API host.
func (b *BotAPI) WithAPIBase(base string) *BotAPI {
	b.apiBase = strings.TrimRight(base, "/")
	return b
}

// Enabled reports whether alerts will actually be delivered.
func (b *BotAPI) Enabled() bool {
	return b.token != "" && b.chatID != ""
}

// Call makes a raw API call to the Telegram Bot API.
func (b *BotAPI) Call(ctx context.Context, method string, params map[string]interface{}) (string, error) {
	url := fmt.Sprintf("%s/bot%s/%s", b.apiBase, b.token, method)
	resp, err := b.client.PostJSON(ctx, url, params)
	if err != nil {
		return "", fmt.Errorf("telegram API call %s failed: %w", method, err)
	}
	if resp.StatusCode >= 300 {
		return string(resp.Body), fmt.Errorf("telegram API call %s: status %d", method, resp.StatusCode)
	}
	return string(resp.Body), nil
}

// SendMessage sends a text message.
func (b *BotAPI) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	return b.Call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

// Alert implements payment.Alerter.
func (b *BotAPI) Alert(ctx context.Context, text string) error {
	if !b.Enabled() {
		b.logger.Debug("alert dropped, telegram not configured", zap.String("text", text))
		return nil
	}
	if _, err := b.SendMessage(ctx, b.chatID, text); err != nil {
		b.logger.Warn("failed to deliver alert", zap.Error(err))
		return err
	}
	return nil
}
