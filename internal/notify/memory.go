package notify

import (
	"context"
	"sync"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

// Notification is one captured delivery.
type Notification struct {
	Subject  string
	Message  string
	Severity books.Severity
}

// MemoryNotifier records notifications in memory for tests.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification

	// Err, when set, is returned from every Notify call.
	Err error
}

// NewMemoryNotifier creates an empty in-memory notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Notify records the notification.
func (n *MemoryNotifier) Notify(_ context.Context, subject, message string, severity books.Severity) error {
	if n.Err != nil {
		return n.Err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Subject: subject, Message: message, Severity: severity})
	return nil
}

// Sent returns a copy of everything recorded so far.
func (n *MemoryNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.sent))
	copy(out, n.sent)
	return out
}
