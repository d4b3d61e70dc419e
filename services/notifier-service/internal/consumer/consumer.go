package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/consultcrm/libs/db"
	"github.com/md-rashed-zaman/consultcrm/libs/kafkax"
	"github.com/md-rashed-zaman/consultcrm/libs/metrics"
	"github.com/md-rashed-zaman/consultcrm/services/notifier-service/internal/inbox"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler runs inside the transaction that records the event in the inbox.
// Returning an error rolls both back so the event is retried.
type Handler func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers     string
	GroupID     string
	Topics      []string
	MaxAttempts int
	Backoff     time.Duration
}

type Consumer struct {
	reader      Reader
	conn        db.DBTX
	inbox       *inbox.Repository
	handler     Handler
	logger      *slog.Logger
	metrics     *metrics.EventMetrics
	maxAttempts int
	backoff     time.Duration
}

var errDuplicate = errors.New("duplicate event")

func New(conn db.DBTX, inboxRepo *inbox.Repository, logger *slog.Logger, m *metrics.EventMetrics, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewWithReader(reader, conn, inboxRepo, logger, m, cfg, handler)
}

func NewWithReader(reader Reader, conn db.DBTX, inboxRepo *inbox.Repository, logger *slog.Logger, m *metrics.EventMetrics, cfg Config, handler Handler) *Consumer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Consumer{
		reader:      reader,
		conn:        conn,
		inbox:       inboxRepo,
		handler:     handler,
		logger:      logger,
		metrics:     m,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		c.Process(ctx, msg)
		if ctx.Err() != nil {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// Process handles one message, retrying with a linear backoff. After the
// last attempt the message is logged and dropped. It returns the outcome
// recorded in metrics: ok, duplicate or error.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) string {
	meta := kafkax.ExtractEventMeta(msg)
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message_id", meta.EventID),
		),
	)
	defer span.End()

	result := "ok"
	for attempt := 1; ; attempt++ {
		err := c.handle(ctxSpan, meta, msg)
		if err == nil {
			break
		}
		if errors.Is(err, errDuplicate) {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			result = "duplicate"
			break
		}
		span.RecordError(err)
		if attempt >= c.maxAttempts || ctx.Err() != nil {
			c.logger.Error("event dropped", "err", err, "event_id", meta.EventID, "event_type", meta.EventType, "attempts", attempt)
			span.SetStatus(codes.Error, err.Error())
			result = "error"
			break
		}
		c.logger.Warn("handler error; retrying", "err", err, "event_id", meta.EventID, "attempt", attempt)
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	c.metrics.ObserveConsumed(meta.EventType, result)
	return result
}

func (c *Consumer) handle(ctx context.Context, meta kafkax.EventMeta, msg kafka.Message) error {
	return db.InTx(ctx, c.conn, func(tx pgx.Tx) error {
		fresh, err := c.inbox.Record(ctx, tx, meta.EventID, meta.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			return errDuplicate
		}
		return c.handler(ctx, tx, msg)
	})
}
