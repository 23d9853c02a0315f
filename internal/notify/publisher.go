package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/happening-registration/internal/model"
)

// ErrNotConnected is returned by Publish while the broker connection is
// down. The publisher keeps re-dialling in the background.
var ErrNotConnected = errors.New("rabbitmq publisher not connected")

const (
	defaultDialTimeout = 5 * time.Second
	maxReconnectDelay  = 30 * time.Second
)

// Publisher queues notification messages on a durable RabbitMQ queue.
// Publish never dials: a broken connection is restored by a background
// loop and publishes fail fast until it is back.
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	log         zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	reconnect chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPublisher connects to the broker, declares the queue and starts the
// reconnect loop.
func NewPublisher(url, queue string, log zerolog.Logger) (*Publisher, error) {
	p := newPublisher(url, queue, defaultDialTimeout, log)
	if err := p.connect(); err != nil {
		return nil, err
	}
	p.start()
	p.log.Info().Msg("rabbitmq publisher initialized")
	return p, nil
}

func newPublisher(url, queue string, dialTimeout time.Duration, log zerolog.Logger) *Publisher {
	return &Publisher{
		url:         url,
		queue:       queue,
		dialTimeout: dialTimeout,
		log:         log.With().Str("component", "publisher").Str("queue", queue).Logger(),
		reconnect:   make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (p *Publisher) start() {
	p.wg.Add(1)
	go p.reconnectLoop()
}

// connect dials the broker and swaps in the new connection. The dial and
// the AMQP handshake are bounded by p.dialTimeout.
func (p *Publisher) connect() error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := declareQueue(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		_ = ch.Close()
		_ = conn.Close()
		return ErrNotConnected
	default:
	}
	p.closeLocked()
	p.conn, p.ch = conn, ch
	return nil
}

// reconnectLoop re-dials whenever Publish finds the channel down, backing
// off between failed attempts.
func (p *Publisher) reconnectLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case <-p.reconnect:
		}

		delay := time.Second
		for {
			err := p.connect()
			if err == nil {
				p.log.Info().Msg("rabbitmq publisher reconnected")
				break
			}
			p.log.Warn().Err(err).Dur("retry_in", delay).Msg("rabbitmq reconnect failed")
			select {
			case <-p.done:
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxReconnectDelay)
		}
	}
}

func (p *Publisher) requestReconnect() {
	select {
	case p.reconnect <- struct{}{}:
	default:
	}
}

func declareQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return q, nil
}

// Publish queues msg as a persistent JSON message. It returns
// ErrNotConnected without blocking when the broker is unreachable.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil || ch.IsClosed() {
		p.requestReconnect()
		return ErrNotConnected
	}

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Kind),
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		p.requestReconnect()
		return fmt.Errorf("publish message: %w", err)
	}
	p.log.Debug().Str("id", msg.ID).Str("kind", string(msg.Kind)).Msg("message published")
	return nil
}

// SendConfirmation queues a confirmation for the registrant.
func (p *Publisher) SendConfirmation(ctx context.Context, sub model.Submission, slug string, position *int) error {
	return p.Publish(ctx, NewConfirmation(sub, slug, position))
}

// SendRegistrationsLink queues the registrations link for the organizer.
func (p *Publisher) SendRegistrationsLink(ctx context.Context, h model.Happening) error {
	return p.Publish(ctx, NewRegistrationsLink(h))
}

// Close stops the reconnect loop and releases the channel and connection.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	p.log.Info().Msg("rabbitmq publisher closed")
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
