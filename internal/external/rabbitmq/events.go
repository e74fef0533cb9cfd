package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	models "github.com/glkeru/projxchange/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const queue = "entitlement_events"

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher отправляет события доступа в очередь
type RabbitPublisher struct {
	conn *amqp.Connection
	ch   channel
}

func NewRabbitPublisher(rabbiturl, rabbitport, rabbituser, rabbitpass string) (rabbit *RabbitPublisher, err error) {
	if rabbiturl == "" {
		return nil, fmt.Errorf("env RABBIT_URL is not set")
	}
	if rabbituser == "" {
		return nil, fmt.Errorf("env RABBIT_USER is not set")
	}

	rabbitconn := "amqp://" + rabbituser + ":" + rabbitpass + "@" + rabbiturl + ":" + rabbitport + "/entitlements"
	conn, err := amqp.Dial(rabbitconn)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitPublisher{conn, ch}, nil
}

func (r *RabbitPublisher) Close() {
	r.ch.Close()
	if r.conn != nil {
		r.conn.Close()
	}
}

func (r *RabbitPublisher) Publish(ctx context.Context, event models.EntitlementEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.ch.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID.String(),
			Type:         event.Type,
			Timestamp:    event.At,
			Body:         msg,
		})
}
