package redpanda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fairyhunter13/confms-ai-service/internal/adapter/observability"
	"github.com/fairyhunter13/confms-ai-service/internal/domain"
)

// auditInserter is the repository side of the consumer.
type auditInserter interface {
	Insert(ctx context.Context, e domain.AuditEntry) error
}

// groupClient is the part of *kgo.Client the poll loop needs.
type groupClient interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

// AuditConsumer persists audit events and commits offsets only after a record is stored.
type AuditConsumer struct {
	client     groupClient
	repo       auditInserter
	maxElapsed time.Duration
}

// NewAuditConsumer joins groupID on topic with auto-commit disabled.
func NewAuditConsumer(brokers []string, groupID, topic string, repo auditInserter) (*AuditConsumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("op=redpanda.NewAuditConsumer: no seed brokers provided")
	}
	if topic == "" {
		topic = TopicAudit
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchMaxWait(time.Second),
		kotelHooks(),
	)
	if err != nil {
		return nil, fmt.Errorf("op=redpanda.NewAuditConsumer: %w", err)
	}
	slog.Info("redpanda audit consumer created", slog.Any("brokers", brokers), slog.String("group_id", groupID), slog.String("topic", topic))
	return newAuditConsumer(client, repo), nil
}

func newAuditConsumer(client groupClient, repo auditInserter) *AuditConsumer {
	return &AuditConsumer{client: client, repo: repo, maxElapsed: 30 * time.Second}
}

// Run polls until ctx is cancelled.
func (c *AuditConsumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("audit fetch error", slog.String("topic", topic), slog.Int("partition", int(partition)), slog.Any("error", err))
		})

		var done []*kgo.Record
		stop := false
		fetches.EachRecord(func(r *kgo.Record) {
			if stop {
				return
			}
			if err := c.HandleRecord(ctx, r); err != nil {
				// leave the offset uncommitted so the record is redelivered
				slog.Error("audit record not persisted", slog.Int64("offset", r.Offset), slog.Any("error", err))
				stop = true
				return
			}
			done = append(done, r)
		})
		if len(done) > 0 {
			if err := c.client.CommitRecords(ctx, done...); err != nil {
				slog.Error("audit offset commit failed", slog.Any("error", err))
			}
		}
		if stop {
			return fmt.Errorf("op=redpanda.Run: audit persistence failing")
		}
	}
}

// HandleRecord stores one record. Undecodable payloads are dropped with a log
// line and reported as handled so they never block the partition.
func (c *AuditConsumer) HandleRecord(ctx context.Context, r *kgo.Record) error {
	entry, err := DecodeAuditEntry(r.Value)
	if err != nil {
		slog.Warn("dropping malformed audit event", slog.String("topic", r.Topic), slog.Int64("offset", r.Offset), slog.Any("error", err))
		observability.AuditEvent("redpanda", "malformed")
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = c.maxElapsed
	op := func() error { return c.repo.Insert(ctx, entry) }
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		observability.AuditEvent("redpanda", "error")
		return fmt.Errorf("op=redpanda.HandleRecord: %w", err)
	}
	observability.AuditEvent("redpanda", "stored")
	return nil
}

// Close leaves the group.
func (c *AuditConsumer) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
