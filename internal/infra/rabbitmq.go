// README: RabbitMQ connection with auto-reconnect and JSON publishing.
package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dialAttempts  = 10
	dialWait      = 3 * time.Second
	reconnectBase = 5 * time.Second
	reconnectMax  = 60 * time.Second
)

// RabbitMQ wraps one connection and channel. Publishes go through a mutex so
// the reconnect monitor can swap the channel under running publishers.
type RabbitMQ struct {
	mu   sync.RWMutex
	conn *amqp091.Connection
	ch   *amqp091.Channel
	url  string
	done chan struct{}
	log  *zap.Logger
}

// NewRabbitMQ dials the broker, retrying while it comes up, and starts the
// reconnect monitor.
func NewRabbitMQ(url string, log *zap.Logger) (*RabbitMQ, error) {
	var conn *amqp091.Connection
	var ch *amqp091.Channel
	var err error

	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp091.Dial(url)
		if err == nil {
			ch, err = conn.Channel()
			if err == nil {
				break
			}
			conn.Close()
		}
		log.Warn("rabbitmq not ready, retrying",
			zap.Int("attempt", i+1), zap.Int("max", dialAttempts), zap.Error(err))
		time.Sleep(dialWait)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	r := &RabbitMQ{conn: conn, ch: ch, url: url, done: make(chan struct{}), log: log}
	go r.monitor()
	return r, nil
}

// DeclareTopicExchange declares a durable topic exchange.
func (r *RabbitMQ) DeclareTopicExchange(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ch.ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// Publish sends a persistent JSON message to the exchange.
func (r *RabbitMQ) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	r.mu.RLock()
	ch := r.ch
	r.mu.RUnlock()
	if ch == nil {
		return errors.New("rabbitmq channel not available")
	}
	err := ch.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	close(r.done)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// monitor watches for connection loss and redials with backoff, swapping the
// connection and channel in place.
func (r *RabbitMQ) monitor() {
	for {
		r.mu.RLock()
		conn := r.conn
		r.mu.RUnlock()

		notifyClose := make(chan *amqp091.Error)
		conn.NotifyClose(notifyClose)

		select {
		case <-r.done:
			return
		case err := <-notifyClose:
			if err == nil {
				// Closed cleanly.
				return
			}
			r.log.Warn("rabbitmq connection lost, reconnecting", zap.Error(err))
		}

		backoff := reconnectBase
		for {
			select {
			case <-r.done:
				return
			case <-time.After(backoff):
			}

			newConn, err := amqp091.Dial(r.url)
			if err == nil {
				newCh, chErr := newConn.Channel()
				if chErr == nil {
					r.mu.Lock()
					r.conn = newConn
					r.ch = newCh
					r.mu.Unlock()
					r.log.Info("rabbitmq reconnected")
					break
				}
				newConn.Close()
				err = chErr
			}

			r.log.Warn("rabbitmq reconnect failed",
				zap.Duration("retry_in", backoff), zap.Error(err))
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
		}
	}
}
