package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config locates the broker and names the ride event queue.
type Config struct {
	Enabled bool
	URL     string
	Queue   string
	LogDir  string
}

// Publisher sends ride events to RabbitMQ. A nil or disabled Publisher
// silently drops events.
type Publisher struct {
	cfg Config
	log *slog.Logger
}

func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{cfg: cfg, log: logger.With("component", "rabbitmq-publisher")}
}

// Publish sends ev to the ride event queue. The connection is opened for
// the message and closed afterwards; the queue is declared durable and the
// message persistent so it survives broker restarts. Errors are logged and
// returned so the caller can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, ev RideEvent) error {
	if p == nil || !p.cfg.Enabled {
		return nil
	}
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		p.log.Warn("dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.cfg.Queue, // name
		true,        // durable
		false,       // autoDelete
		false,       // exclusive
		false,       // noWait
		nil,         // args
	); err != nil {
		p.log.Warn("queue declare failed", "queue", p.cfg.Queue, "err", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ch.PublishWithContext(ctx,
		"",          // default exchange
		p.cfg.Queue, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         ev.Type,
			MessageId:    ev.RideID + ":" + ev.Type + ":" + ev.OccurredAt.Format(time.RFC3339Nano),
			Body:         body,
		},
	); err != nil {
		p.log.Warn("publish failed", "type", ev.Type, "ride_id", ev.RideID, "err", err)
		return err
	}
	return nil
}
