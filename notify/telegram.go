package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram sends messages through the Bot API.
type Telegram struct {
	api *tgbotapi.BotAPI
}

// NewTelegram connects to the Bot API with token.
func NewTelegram(token string) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{})
}

// NewTelegramWithEndpoint connects to a Bot API compatible server. endpoint
// is a format string taking the token and the method name.
func NewTelegramWithEndpoint(token, endpoint string, client *http.Client) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	slog.Info("telegram bot initialized", "username", api.Self.UserName)
	return &Telegram{api: api}, nil
}

// SendMessage sends text to chatID and returns the message id.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string, html bool) (int64, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if html {
		msg.ParseMode = tgbotapi.ModeHTML
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		slog.Warn("failed to send message", "chat_id", chatID, "error", err)
		return 0, err
	}
	return int64(sent.MessageID), nil
}
