package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/soundrent-backoffice/internal/events"
)

// Publisher sends events to a durable queue on the default exchange. The
// connection is opened lazily and reopened after a failure.
type Publisher struct {
	url   string
	queue string
	log   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a publisher for url and queue. An empty queue name
// selects DefaultQueue.
func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, queue: queue, log: log}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish marshals ev and sends it as a persistent message. Errors are
// logged and returned; callers on the request path ignore them.
func (p *Publisher) Publish(ctx context.Context, ev events.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal event failed", zap.Error(err))
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.Warn("rabbitmq unavailable", zap.Error(err))
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Name),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.resetLocked()
		p.log.Warn("publish failed", zap.String("event", string(ev.Name)), zap.Error(err))
		return err
	}
	return nil
}

// Forward subscribes the publisher to every bus event. Messages are sent
// from a single background goroutine so a slow broker never stalls a
// request; when the buffer is full the event is dropped and logged.
func (p *Publisher) Forward(ctx context.Context, bus *events.Bus, buffer int) (stop func()) {
	if buffer <= 0 {
		buffer = 256
	}
	in := make(chan events.Event, buffer)
	unsub := bus.Subscribe(func(_ context.Context, ev events.Event) {
		select {
		case in <- ev:
		default:
			p.log.Warn("event forward buffer full, dropping", zap.String("event", string(ev.Name)))
		}
	})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-in:
				pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				_ = p.Publish(pctx, ev)
				cancel()
			}
		}
	}()
	return func() {
		unsub()
		<-done
		p.Close()
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}
