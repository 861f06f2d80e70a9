package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/tmcarr/heimdall/config"
)

// EventPublisher enqueues a queue event onto the transport
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// NATSPublisher publishes events to the JetStream stream used by the consumer
type NATSPublisher struct {
	js      nats.JetStreamContext
	subject string
}

func NewNATSPublisher(js nats.JetStreamContext, subject string) EventPublisher {
	return &NATSPublisher{js: js, subject: subject}
}

func (p *NATSPublisher) Publish(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal queue event: %w", err)
	}
	// Msg-Id gives the stream a dedup window against double publishes.
	_, err = p.js.Publish(p.subject, data,
		nats.MsgId(uuid.NewString()),
		nats.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to publish queue event: %w", err)
	}
	return nil
}

// ConnectQueue connects to NATS and ensures the event stream exists with the
// configured retry and dead-letter policy
func ConnectQueue(cfg config.QueueConfig) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to queue at %s: %w", cfg.URL, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to open jetstream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject, cfg.DeadLetterSub},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		// Publishes carry a Msg-Id; keep a dedup window for them.
		Duplicates: 2 * time.Minute,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
	}

	return nc, js, nil
}

// MockPublisher records published events for tests
type MockPublisher struct {
	Events []any
}

func (p *MockPublisher) Publish(_ context.Context, event any) error {
	p.Events = append(p.Events, event)
	return nil
}
