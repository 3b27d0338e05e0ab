package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net"
	"os"

	"podmarket/common/app"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublishFunc is the signature of PublishMessage; tests swap it through the app cache under {"RabbitMQ", "Publish"}.
type PublishFunc func(ctx context.Context, exchange, routingKey, contentType string, body []byte, headers amqp.Table) error

// Publish sends one message, or hands it to a fake injected in the context cache.
func Publish(ctx context.Context, exchange, routingKey, contentType string, body []byte, headers amqp.Table) error {
	publish, _ := app.GetCacheValue[PublishFunc](ctx, []any{"RabbitMQ", "Publish"}, PublishMessage)
	return publish(ctx, exchange, routingKey, contentType, body, headers)
}

func PublishJSON(ctx context.Context, exchange, routingKey string, payload any, headers amqp.Table) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not serialize RabbitMQ message:\n>>> %w", err)
	}
	return Publish(ctx, exchange, routingKey, "application/json", body, headers)
}

func PublishMessage(ctx context.Context, exchange, routingKey, contentType string, body []byte, headers amqp.Table) error {
	rHost := os.Getenv("RABBITMQ_HOST")
	rUser := os.Getenv("RABBITMQ_USER")
	rPass := os.Getenv("RABBITMQ_PASSWORD")
	if !(rHost != "" && rUser != "" && rPass != "") {
		return fmt.Errorf("invalid or incomplete RabbitMQ environment variables")
	}

	rUrl := fmt.Sprintf("amqp://%s:%s@%s", rUser, rPass, rHost)
	config := amqp.Config{
		Dial: func(network, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, network, addr)
		},
	}
	conn, err := amqp.DialConfig(rUrl, config)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ:\n>>> %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel to RabbitMQ:\n>>> %w", err)
	}
	defer ch.Close()

	allHeaders := amqp.Table{}
	maps.Copy(allHeaders, headers)

	err = ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  contentType,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Headers:      allHeaders,
	})
	if err != nil {
		return fmt.Errorf("failed to publish a message to RabbitMQ:\n>>> %w", err)
	}

	app.LoggerFromContext(ctx).Infow("published message to RabbitMQ", "exchange", exchange, "key", routingKey)

	return nil
}
