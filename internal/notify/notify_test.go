package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

type fakeTelegram struct {
	recipient tele.Recipient
	text      string
	err       error
}

func (f *fakeTelegram) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.recipient = to
	f.text, _ = what.(string)
	return &tele.Message{}, nil
}

func TestTelegramNotifierSendsToConfiguredChat(t *testing.T) {
	t.Parallel()

	bot := &fakeTelegram{}
	n := NewTelegramNotifierWithBot(bot, 42)

	err := n.Notify(context.Background(), "price alert", "dropped 20%", books.SeverityWarning)
	require.NoError(t, err)

	chat, ok := bot.recipient.(*tele.Chat)
	require.True(t, ok)
	require.Equal(t, int64(42), chat.ID)
	require.Contains(t, bot.text, "price alert")
	require.Contains(t, bot.text, "[warning]")
}

func TestTelegramNotifierWrapsSendError(t *testing.T) {
	t.Parallel()

	bot := &fakeTelegram{err: fmt.Errorf("api down")}
	n := NewTelegramNotifierWithBot(bot, 42)

	err := n.Notify(context.Background(), "s", "m", books.SeverityInfo)
	require.Error(t, err)
	require.Contains(t, err.Error(), "send telegram message")
}

func TestMemoryNotifierRecordsInOrder(t *testing.T) {
	t.Parallel()

	n := NewMemoryNotifier()
	require.NoError(t, n.Notify(context.Background(), "a", "first", books.SeverityInfo))
	require.NoError(t, n.Notify(context.Background(), "b", "second", books.SeverityWarning))

	sent := n.Sent()
	require.Len(t, sent, 2)
	require.Equal(t, "a", sent[0].Subject)
	require.Equal(t, books.SeverityWarning, sent[1].Severity)
}

func TestLogNotifierNeverFails(t *testing.T) {
	t.Parallel()

	n := NewLogNotifier(nil)
	require.NoError(t, n.Notify(context.Background(), "s", "m", books.SeverityInfo))
	require.NoError(t, n.Notify(context.Background(), "s", "m", books.SeverityWarning))
}
