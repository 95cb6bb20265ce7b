package ingest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/types"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends entries to the ingest exchange.
type Publisher struct {
	cfg  models.AMQPConfig
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(cfg models.AMQPConfig) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return &Publisher{cfg: cfg, conn: conn, ch: ch}, nil
}

// Publish sends one entry. Without an exchange the entry goes straight to
// the queue through the default exchange.
func (p *Publisher) Publish(ctx context.Context, entry types.LogEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	exchange, key := p.cfg.Exchange, p.cfg.RoutingKey
	if exchange == "" {
		key = p.cfg.Queue
	}

	return p.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    entry.ID,
	})
}

func (p *Publisher) Close() error {
	p.ch.Close()
	return p.conn.Close()
}
