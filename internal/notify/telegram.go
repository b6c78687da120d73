package notify

import (
	"context"
	"fmt"

	"translink/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender is the part of the Bot API the notifier needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier messages recipients that linked a Telegram chat.
type TelegramNotifier struct {
	bot MessageSender
}

// NewTelegramNotifier connects to the Bot API with token.
func NewTelegramNotifier(token string, debug bool) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = debug
	return &TelegramNotifier{bot: bot}, nil
}

func NewTelegramNotifierWithSender(bot MessageSender) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

func (t *TelegramNotifier) Notify(_ context.Context, recipient *models.User, _ models.NotificationPayload, msg Message) error {
	if recipient.TelegramChatID == 0 {
		return ErrSkipped
	}
	out := tgbotapi.NewMessage(recipient.TelegramChatID, "*"+tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, msg.Subject)+"*\n\n"+
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, msg.Body))
	out.ParseMode = tgbotapi.ModeMarkdownV2
	out.DisableWebPagePreview = true

	if _, err := t.bot.Send(out); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", recipient.TelegramChatID, err)
	}
	return nil
}
