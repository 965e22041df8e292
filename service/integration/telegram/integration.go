package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cardadmin/service/config"
	"cardadmin/service/delivery"
)

type Integration struct {
	client *Client
	chatID int64
	Sender *Sender
}

func NewIntegration(cfg *config.Config, logger *slog.Logger) (*Integration, error) {
	client, err := NewClient(cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}

	t := &Integration{client: client, chatID: cfg.TelegramChatID}
	if client != nil {
		t.Sender = NewSender(client, cfg.TelegramChatID, logger)
	}
	return t, nil
}

func (t *Integration) Name() string {
	return "telegram"
}

func (t *Integration) Start(ctx context.Context, logger *slog.Logger) error {
	bot, err := t.client.GetMe(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "Unauthorized") {
			return delivery.NewPermanentError(fmt.Errorf("telegram bot token rejected: %w", err))
		}
		return fmt.Errorf("telegram bot check failed: %w", err)
	}
	logger.Info("Telegram enabled", "bot", bot.Username, "chat_id", t.chatID)
	return nil
}

func (t *Integration) IsEnabled() bool {
	return t.client != nil
}

func (t *Integration) Health(ctx context.Context) (bool, string) {
	if !t.IsEnabled() {
		return false, ""
	}
	return t.client.Health(ctx)
}
