package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

// pubsubTopic is the slice of the Pub/Sub topic API the notifier needs.
type pubsubTopic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSubNotifier publishes notifications to a Google Cloud Pub/Sub topic
// so downstream consumers can fan them out.
type PubSubNotifier struct {
	topic  pubsubTopic
	client *pubsub.Client
}

type pubsubEnvelope struct {
	Subject  string `json:"subject"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
	SentAt   string `json:"sent_at"`
}

// NewPubSubNotifier connects to Pub/Sub and binds the notifier to a topic.
func NewPubSubNotifier(ctx context.Context, projectID, topicName string) (*PubSubNotifier, error) {
	if projectID == "" || topicName == "" {
		return nil, fmt.Errorf("pubsub project id and topic name are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSubNotifier{topic: client.Topic(topicName), client: client}, nil
}

// NewPubSubNotifierWithTopic wires an existing topic (primarily for testing).
func NewPubSubNotifierWithTopic(topic pubsubTopic) *PubSubNotifier {
	return &PubSubNotifier{topic: topic}
}

// Notify publishes the notification as a JSON envelope and waits for the
// server acknowledgement.
func (n *PubSubNotifier) Notify(ctx context.Context, subject, message string, severity books.Severity) error {
	data, err := json.Marshal(pubsubEnvelope{
		Subject:  subject,
		Message:  message,
		Severity: string(severity),
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"severity": string(severity)},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close releases the Pub/Sub client, if this notifier owns one.
func (n *PubSubNotifier) Close() error {
	if n.client == nil {
		return nil
	}
	return n.client.Close()
}
