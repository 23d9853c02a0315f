package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// errPermanent marks a message that can never be delivered.
var errPermanent = errors.New("permanent failure")

// Worker consumes notification messages and sends them as email.
type Worker struct {
	url      string
	queue    string
	prefetch int
	baseURL  string
	mailer   Mailer
	log      zerolog.Logger
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	URL      string
	Queue    string
	Prefetch int
	// BaseURL prefixes registrations links in organizer mail.
	BaseURL string
}

func NewWorker(cfg WorkerConfig, mailer Mailer, log zerolog.Logger) *Worker {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 10
	}
	return &Worker{
		url:      cfg.URL,
		queue:    cfg.Queue,
		prefetch: cfg.Prefetch,
		baseURL:  cfg.BaseURL,
		mailer:   mailer,
		log:      log.With().Str("component", "worker").Str("queue", cfg.Queue).Logger(),
	}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// back-off whenever the broker connection drops.
func (w *Worker) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		conn, err := amqp.Dial(w.url)
		if err != nil {
			w.log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		err = w.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			w.log.Info().Msg("worker stopped")
			return nil
		}
		w.log.Warn().Err(err).Msg("consume loop ended, reconnecting")
	}
}

func (w *Worker) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	if _, err := declareQueue(ch, w.queue); err != nil {
		return err
	}
	deliveries, err := ch.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	w.log.Info().Msg("started consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			w.settle(ctx, d)
		}
	}
}

// settle acks delivered messages and rejects the rest. A failed send is
// requeued once; undecodable messages are dropped immediately.
func (w *Worker) settle(ctx context.Context, d amqp.Delivery) {
	err := w.Handle(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, errPermanent):
		w.log.Error().Err(err).Str("message_id", d.MessageId).Msg("dropping message")
		_ = d.Nack(false, false)
	default:
		requeue := !d.Redelivered
		w.log.Warn().Err(err).Str("message_id", d.MessageId).Bool("requeue", requeue).Msg("failed to send message")
		_ = d.Nack(false, requeue)
	}
}

// Handle decodes one message body and mails it.
func (w *Worker) Handle(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", errPermanent, err)
	}
	mail, err := Compose(msg, w.baseURL)
	if err != nil {
		return fmt.Errorf("%w: %v", errPermanent, err)
	}
	if err := w.mailer.Send(ctx, mail); err != nil {
		return err
	}
	w.log.Info().Str("message_id", msg.ID).Str("kind", string(msg.Kind)).Str("email", msg.To).Msg("email sent")
	return nil
}
