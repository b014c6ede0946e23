package notify

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

// telegramSender is the slice of the bot API the notifier needs.
type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramNotifier delivers notifications to a Telegram chat.
type TelegramNotifier struct {
	bot    telegramSender
	chatID int64
}

// NewTelegramNotifier creates a bot client and a notifier bound to one chat.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NewTelegramNotifierWithBot wires an existing sender (primarily for testing).
func NewTelegramNotifierWithBot(bot telegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

// Notify sends the notification as a single message.
func (n *TelegramNotifier) Notify(_ context.Context, subject, message string, severity books.Severity) error {
	text := fmt.Sprintf("[%s] %s\n%s", severity, subject, message)
	if _, err := n.bot.Send(&tele.Chat{ID: n.chatID}, text); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
