package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"prompt-service/internal/interfaces"
	"prompt-service/internal/models"
)

const (
	// ExchangePromptUpdates - имя fanout exchange для событий изменения промптов.
	ExchangePromptUpdates = "prompt_updates"
)

var _ interfaces.PromptEventPublisher = (*RabbitMQPromptPublisher)(nil)

// RabbitMQPromptPublisher broadcasts prompt change events to the prompt_updates exchange.
// The connection is owned by the caller.
type RabbitMQPromptPublisher struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func NewRabbitMQPromptPublisher(conn *amqp091.Connection) (*RabbitMQPromptPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open a channel")
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	// Durable, чтобы exchange пережил перезапуск брокера.
	err = ch.ExchangeDeclare(
		ExchangePromptUpdates, // name
		"fanout",              // type
		true,                  // durable
		false,                 // auto-deleted
		false,                 // internal
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		_ = ch.Close()
		log.Error().Err(err).Str("exchange", ExchangePromptUpdates).Msg("Failed to declare exchange")
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", ExchangePromptUpdates, err)
	}

	log.Info().Str("exchange", ExchangePromptUpdates).Msg("Prompt update exchange declared successfully")
	return &RabbitMQPromptPublisher{conn: conn, ch: ch}, nil
}

// PublishPromptEvent publishes a prompt change event.
func (p *RabbitMQPromptPublisher) PublishPromptEvent(ctx context.Context, event models.PromptEvent) error {
	msg, err := newPublishing(event)
	if err != nil {
		log.Error().Err(err).Interface("event", event).Msg("Failed to marshal prompt event")
		return err
	}

	err = p.ch.PublishWithContext(ctx,
		ExchangePromptUpdates, // exchange
		"",                    // routing key (не используется для fanout)
		false,                 // mandatory
		false,                 // immediate
		msg,
	)
	if err != nil {
		log.Error().Err(err).Interface("event", event).Msg("Failed to publish prompt event")
		return fmt.Errorf("failed to publish prompt event: %w", err)
	}

	log.Debug().Str("messageId", msg.MessageId).Str("eventType", string(event.EventType)).Msg("Prompt event published")
	return nil
}

func newPublishing(event models.PromptEvent) (amqp091.Publishing, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal prompt event: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.OccurredAt,
		Type:         string(event.EventType),
		Body:         body,
	}, nil
}

// Close закрывает канал RabbitMQ.
func (p *RabbitMQPromptPublisher) Close() error {
	if p.ch != nil {
		return p.ch.Close()
	}
	return nil
}

// NoopPromptPublisher drops events. Used when RABBITMQ_URL is not configured.
type NoopPromptPublisher struct{}

func (NoopPromptPublisher) PublishPromptEvent(context.Context, models.PromptEvent) error { return nil }
