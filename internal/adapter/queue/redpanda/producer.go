// Package redpanda moves audit events through Redpanda/Kafka.
//
// The API process publishes finished audit entries; the worker consumes them
// and persists each one idempotently before committing its offset.
package redpanda

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

// syncProducer is the part of *kgo.Client the publisher needs.
type syncProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// AuditPublisher implements domain.AuditSink by producing to a topic.
type AuditPublisher struct {
	client syncProducer
	closer func()
	ping   func(ctx context.Context) error
	topic  string
}

func kotelHooks() kgo.Opt {
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	return kgo.WithHooks(kotel.NewKotel(kotel.WithTracer(tracer)).Hooks()...)
}

// NewAuditPublisher connects to brokers and makes sure topic exists.
func NewAuditPublisher(ctx context.Context, brokers []string, topic string) (*AuditPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewAuditPublisher: no seed brokers provided")
	}
	if topic == "" {
		topic = TopicAudit
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewAuditPublisher: %w", err)
	}
	if err := EnsureTopic(ctx, client, topic, 3, 1); err != nil {
		slog.Warn("failed to ensure audit topic; it may already exist", slog.String("topic", topic), slog.Any("error", err))
	}
	slog.Info("redpanda audit publisher created", slog.Any("brokers", brokers), slog.String("topic", topic))
	return &AuditPublisher{client: client, closer: client.Close, ping: client.Ping, topic: topic}, nil
}

// Write publishes e keyed by conference id so one conference's events stay ordered.
func (p *AuditPublisher) Write(ctx context.Context, e domain.AuditEntry) error {
	b, err := EncodeAuditEntry(e)
	if err != nil {
		return fmt.Errorf("op=redpanda.Write: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.ConferenceID),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "audit_id", Value: []byte(e.ID)},
			{Key: "feature", Value: []byte(e.Feature)},
		},
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("op=redpanda.Write: %w", err)
	}
	return nil
}

// Ping checks that at least one broker answers.
func (p *AuditPublisher) Ping(ctx context.Context) error {
	if p.ping == nil {
		return fmt.Errorf("op=redpanda.Ping: client not connected")
	}
	if err := p.ping(ctx); err != nil {
		return fmt.Errorf("op=redpanda.Ping: %w", err)
	}
	return nil
}

// Close flushes and closes the client.
func (p *AuditPublisher) Close() error {
	if p.closer != nil {
		p.closer()
	}
	return nil
}
