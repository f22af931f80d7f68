package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Outbox is the unpublished-event side of a store.
type Outbox interface {
	Unpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Worker drains the audit outbox to Kafka. Events stay in the outbox until
// the broker acknowledges them, so a broker outage delays publication but
// never loses the trail.
type Worker struct {
	outbox   Outbox
	client   *kgo.Client
	topic    string
	interval time.Duration
	batch    int
	log      *slog.Logger
}

// NewWorker connects to the brokers and ensures the audit topic exists.
func NewWorker(outbox Outbox, brokers []string, topic string, log *slog.Logger) (*Worker, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		outbox:   outbox,
		client:   client,
		topic:    topic,
		interval: 2 * time.Second,
		batch:    100,
		log:      log,
	}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	_, err := adm.CreateTopic(ctx, 1, -1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("ensure topic %s: %w", topic, err)
	}
	return nil
}

// Run drains the outbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.log.WarnContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	events, err := w.outbox.Unpublished(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	var published []uuid.UUID
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode audit event %s: %w", event.ID, err)
		}
		record := &kgo.Record{
			Topic: w.topic,
			// Key by tenant so one tenant's trail stays ordered within a
			// partition.
			Key:   []byte(event.TenantID.String()),
			Value: payload,
		}
		if err := w.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			break
		}
		published = append(published, event.ID)
	}

	if len(published) == 0 {
		return fmt.Errorf("no events published out of %d pending", len(events))
	}
	return w.outbox.MarkPublished(ctx, published)
}

// Close flushes and releases the Kafka client.
func (w *Worker) Close() {
	w.client.Close()
}
