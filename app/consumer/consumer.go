// Package consumer pulls queue events off the transport and feeds them to the event router
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tmcarr/heimdall/app/metrics"
	businessflow "github.com/tmcarr/heimdall/business_flow"
	"github.com/tmcarr/heimdall/config"
)

const fetchBatch = 16

// Consumer is the JetStream pull consumer driving the dispatch engine. Events
// that fail on a dependency are redelivered up to the stream's MaxDeliver and
// then parked on the dead-letter subject; business rejections are final.
type Consumer struct {
	js       nats.JetStreamContext
	cfg      config.QueueConfig
	router   *businessflow.EventRouter
	cache    *redis.Client
	dedupTTL time.Duration
	logger   *log.Logger
}

func NewConsumer(
	js nats.JetStreamContext,
	cfg config.QueueConfig,
	router *businessflow.EventRouter,
	cache *redis.Client,
	dedupTTL time.Duration,
	logger *log.Logger,
) *Consumer {
	if dedupTTL <= 0 {
		dedupTTL = 6 * time.Hour
	}
	return &Consumer{
		js:       js,
		cfg:      cfg,
		router:   router,
		cache:    cache,
		dedupTTL: dedupTTL,
		logger:   logger,
	}
}

// NewWorkerLogger builds the consumer logger writing to stdout and a rotating
// file, mirroring how the rest of the process logs
func NewWorkerLogger(cfg config.LoggingConfig) *log.Logger {
	var w io.Writer = os.Stdout
	if cfg.FilePath != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}
	return log.New(w, "consumer ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// Start launches the consume loop in a background goroutine and returns a
// stop function
func (c *Consumer) Start(parent context.Context) (func(), error) {
	sub, err := c.js.PullSubscribe(c.cfg.Subject, c.cfg.Durable,
		nats.AckWait(c.cfg.AckWait),
		nats.MaxDeliver(c.cfg.MaxDeliver),
		nats.ManualAck(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", c.cfg.Subject, err)
	}

	ctx, cancel := context.WithCancel(parent)
	go func() {
		c.logger.Printf("consumer: started on %s (durable %s)", c.cfg.Subject, c.cfg.Durable)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msgs, err := sub.Fetch(fetchBatch, nats.MaxWait(5*time.Second))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.Canceled) {
					continue
				}
				c.logger.Printf("consumer: fetch failed: %v", err)
				continue
			}
			for _, msg := range msgs {
				c.handle(ctx, msg)
			}
		}
	}()

	return func() {
		cancel()
		_ = sub.Drain()
	}, nil
}

func (c *Consumer) handle(ctx context.Context, msg *nats.Msg) {
	action := peekAction(msg.Data)

	if id := msg.Header.Get(nats.MsgIdHdr); id != "" && c.alreadySeen(ctx, id) {
		c.logger.Printf("consumer: duplicate event %s (%s), acking", id, action)
		metrics.EventsConsumed.WithLabelValues(action, metrics.OutcomeDuplicate).Inc()
		_ = msg.Ack()
		return
	}

	err := c.router.Route(ctx, msg.Data)
	if err == nil {
		c.markSeen(ctx, msg.Header.Get(nats.MsgIdHdr))
		metrics.EventsConsumed.WithLabelValues(action, metrics.OutcomeHandled).Inc()
		_ = msg.Ack()
		return
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		// Malformed or rejected events never become valid by retrying.
		c.logger.Printf("consumer: event rejected (%s): %v", action, err)
		metrics.EventsConsumed.WithLabelValues(action, metrics.OutcomeFailed).Inc()
		_ = msg.Ack()
		return
	}

	meta, metaErr := msg.Metadata()
	if metaErr == nil && int(meta.NumDelivered) >= c.cfg.MaxDeliver {
		c.logger.Printf("consumer: event exhausted %d deliveries (%s), dead-lettering: %v", meta.NumDelivered, action, err)
		if _, pubErr := c.js.Publish(c.cfg.DeadLetterSub, msg.Data); pubErr != nil {
			c.logger.Printf("consumer: dead-letter publish failed: %v", pubErr)
		}
		metrics.EventsConsumed.WithLabelValues(action, metrics.OutcomeFailed).Inc()
		_ = msg.Ack()
		return
	}

	c.logger.Printf("consumer: event failed (%s), redelivering: %v", action, err)
	_ = msg.Nak()
}

// alreadySeen checks the redis dedup guard. A nil cache disables the guard;
// the engine is idempotent without it, this just skips wasted work. Events are
// only marked after a successful handle so redeliveries of failed events pass.
func (c *Consumer) alreadySeen(ctx context.Context, id string) bool {
	if c.cache == nil {
		return false
	}
	n, err := c.cache.Exists(ctx, "event:"+id).Result()
	if err != nil {
		c.logger.Printf("consumer: dedup check failed for %s: %v", id, err)
		return false
	}
	return n > 0
}

func (c *Consumer) markSeen(ctx context.Context, id string) {
	if c.cache == nil || id == "" {
		return
	}
	if err := c.cache.Set(ctx, "event:"+id, 1, c.dedupTTL).Err(); err != nil {
		c.logger.Printf("consumer: dedup mark failed for %s: %v", id, err)
	}
}

func peekAction(raw []byte) string {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Action == "" {
		return "unknown"
	}
	return envelope.Action
}
