package telegram

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"cardadmin/service/delivery"
)

type messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Sender relays outcome toasts to the administrators' Telegram chat.
type Sender struct {
	client messenger
	chatID int64
	logger *slog.Logger
}

func NewSender(client messenger, chatID int64, logger *slog.Logger) *Sender {
	return &Sender{
		client: client,
		chatID: chatID,
		logger: logger,
	}
}

func (s *Sender) Send(ctx context.Context, toast delivery.Toast) error {
	if s.client == nil {
		return delivery.Permanentf("telegram integration not enabled")
	}
	if s.chatID == 0 {
		return delivery.Permanentf("no telegram chat configured")
	}

	if err := s.client.SendMessage(ctx, s.chatID, formatToast(toast)); err != nil {
		s.logger.Error("Failed to send telegram message", "chatID", s.chatID, "error", err)
		if isPermanentAPIError(err) {
			return delivery.NewPermanentError(err)
		}
		return err
	}

	return nil
}

func formatToast(toast delivery.Toast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n%s", html.EscapeString(toast.Title), html.EscapeString(toast.Message))
	if toast.NotificationID != 0 {
		fmt.Fprintf(&b, "\n\n<i>Уведомление #%d</i>", toast.NotificationID)
	}
	return b.String()
}

// Bot API answers 400/403 for a wrong chat or a bot removed from it.
func isPermanentAPIError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "chat not found") ||
		strings.Contains(msg, "bot was kicked") ||
		strings.Contains(msg, "bot was blocked")
}
