// Package events publishes settled spins to a message broker.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/streadway/amqp"

	"github.com/Ashenafi-pixel/jackpot-royale/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Publisher receives every settled spin after it has been stored.
type Publisher interface {
	PublishSpin(ctx context.Context, s store.Spin) error
	Close() error
}

// Nop drops everything. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishSpin(context.Context, store.Spin) error { return nil }
func (Nop) Close() error                                  { return nil }

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP publishes JSON spin records to a durable queue on the default exchange.
type AMQP struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    channel
	queue string
}

func DialAMQP(url, queue string) (*AMQP, error) {
	if queue == "" {
		queue = "jackpot-royale.spins"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare %s: %w", queue, err)
	}
	return &AMQP{conn: conn, ch: ch, queue: queue}, nil
}

func newAMQP(ch channel, queue string) *AMQP {
	return &AMQP{ch: ch, queue: queue}
}

// Message builds the broker message for s.
func Message(s store.Spin) (amqp.Publishing, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return amqp.Publishing{}, err
	}
	ts := s.SettledAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    s.ID,
		Type:         "spin.settled",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    ts,
	}, nil
}

// PublishSpin is safe for concurrent use; the channel itself is not.
func (a *AMQP) PublishSpin(ctx context.Context, s store.Spin) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := Message(s)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ch.Publish("", a.queue, false, false, msg); err != nil {
		return fmt.Errorf("events: publish %s: %w", s.ID, err)
	}
	return nil
}

func (a *AMQP) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := a.ch.Close()
	if a.conn != nil {
		if cerr := a.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
