package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"

	"waterwatch/internal/config"
	"waterwatch/internal/domain"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// TelegramTransport keeps one Telegram message per notification id.
// Params: bot client, chat id, message template, and last message id per notification id.
// Returns: Telegram transport where display replaces the previous message.
type TelegramTransport struct {
	client   *tgbot.Bot
	chatID   any
	template *template.Template

	mu       sync.Mutex
	messages map[string]int
}

// NewTelegramTransport creates Telegram transport.
// Params: Telegram notifier config.
// Returns: initialized transport or configuration error.
func NewTelegramTransport(cfg config.TelegramNotifier) (*TelegramTransport, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("telegram bot token is required")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram chat_id is required")
	}
	tmpl, err := parseTemplate("notify.telegram.template", cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("parse telegram template: %w", err)
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
		tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")),
	}
	client, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramTransport{
		client:   client,
		chatID:   normalizeChatID(cfg.ChatID),
		template: tmpl,
		messages: make(map[string]int),
	}, nil
}

// Name returns transport name.
func (t *TelegramTransport) Name() string {
	return "telegram"
}

// Display deletes the previous message for notification id and posts a new one.
// Params: context and notification payload.
// Returns: render/send error, ErrPermissionDenied for 401/403 responses.
func (t *TelegramTransport) Display(ctx context.Context, notification domain.Notification) error {
	text, err := renderMessage(t.template, notification)
	if err != nil {
		return err
	}
	if err := t.deletePrevious(ctx, notification.ID); err != nil {
		return err
	}

	sent, err := t.client.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:              t.chatID,
		Text:                text,
		ParseMode:           tgmodels.ParseModeHTML,
		DisableNotification: !notification.Critical && notification.Repeat,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", classifyTelegramError(err))
	}
	if sent == nil || sent.ID <= 0 {
		return errors.New("telegram send returned empty message id")
	}
	t.mu.Lock()
	t.messages[notification.ID] = sent.ID
	t.mu.Unlock()
	return nil
}

// Cancel deletes the message shown for notification id; unknown ids are a no-op.
// Params: context and notification id.
// Returns: delete error.
func (t *TelegramTransport) Cancel(ctx context.Context, id string) error {
	return t.deletePrevious(ctx, id)
}

func (t *TelegramTransport) deletePrevious(ctx context.Context, id string) error {
	t.mu.Lock()
	messageID, ok := t.messages[id]
	delete(t.messages, id)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := t.client.DeleteMessage(ctx, &tgbot.DeleteMessageParams{
		ChatID:    t.chatID,
		MessageID: messageID,
	})
	if err != nil && !errors.Is(err, tgbot.ErrorBadRequest) {
		// Bad request means the message is already gone.
		return fmt.Errorf("telegram delete: %w", classifyTelegramError(err))
	}
	return nil
}

// classifyTelegramError maps authorization failures onto ErrPermissionDenied.
func classifyTelegramError(err error) error {
	if errors.Is(err, tgbot.ErrorForbidden) || errors.Is(err, tgbot.ErrorUnauthorized) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
