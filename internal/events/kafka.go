package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

var (
	ErrBufferFull      = errors.New("event buffer is full")
	ErrPublisherClosed = errors.New("event publisher is closed")
)

const headerEventType = "event_type"

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Buffer  int
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events in memory and writes them from a single goroutine, so a
// slow broker never stalls a cart or checkout operation.
type KafkaPublisher struct {
	w       messageWriter
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	inbox  chan queued
	done   chan struct{}
}

type queued struct {
	eventType string
	msg       kafka.Message
}

func NewKafkaPublisher(cfg KafkaConfig, m *metrics.Metrics, log zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newKafkaPublisher(w, cfg.Buffer, m, log)
}

func newKafkaPublisher(w messageWriter, buffer int, m *metrics.Metrics, log zerolog.Logger) *KafkaPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	p := &KafkaPublisher{
		w:       w,
		metrics: m,
		log:     logger.Component(log, "events"),
		inbox:   make(chan queued, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:     []byte(ev.Key),
		Value:   value,
		Time:    ev.At,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(ev.Type)}},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.inbox <- queued{eventType: ev.Type, msg: msg}:
		return nil
	default:
		logger.FromContext(ctx, p.log).Warn().Str("event_type", ev.Type).Msg("event buffer full, dropping event")
		p.metrics.EventPublished(ev.Type, ErrBufferFull)
		return ErrBufferFull
	}
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for q := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := p.w.WriteMessages(ctx, q.msg)
		cancel()
		if err != nil {
			p.log.Error().Err(err).Str("event_type", q.eventType).Msg("failed to publish event")
		}
		p.metrics.EventPublished(q.eventType, err)
	}
}

// Close flushes queued events and closes the writer. It is safe to call more than once.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	<-p.done
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
