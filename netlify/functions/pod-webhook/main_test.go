package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"podmarket/common/app"
	"podmarket/common/helpers"
	"podmarket/common/orders"
	"podmarket/common/rabbitmq"

	"github.com/aws/aws-lambda-go/events"
	amqp "github.com/rabbitmq/amqp091-go"
)

func signed(body string) events.APIGatewayProxyRequest {
	mac := hmac.New(sha256.New, []byte("pod-secret"))
	mac.Write([]byte(body))
	return events.APIGatewayProxyRequest{
		Body:    body,
		Headers: map[string]string{"x-pod-signature": base64.StdEncoding.EncodeToString(mac.Sum(nil))},
	}
}

func TestHandler(t *testing.T) {
	defer helpers.TempEnvVars(map[string]string{"POD_WEBHOOK_SECRET": "pod-secret"})()

	tests := []struct {
		Title      string
		Request    events.APIGatewayProxyRequest
		WantStatus int
		WantOrder  orders.Status
	}{
		{
			Title:      "shipped",
			Request:    signed(`{"event":"order_status_updated","orderReferenceId":"o1","fulfillmentStatus":"shipped"}`),
			WantStatus: 200,
			WantOrder:  orders.StatusShipped,
		},
		{
			Title:      "unsigned",
			Request:    events.APIGatewayProxyRequest{Body: `{"event":"order_status_updated","orderReferenceId":"o1","fulfillmentStatus":"shipped"}`},
			WantStatus: 401,
			WantOrder:  orders.StatusInProduction,
		},
		{
			Title:      "no reference",
			Request:    signed(`{"event":"order_status_updated"}`),
			WantStatus: 400,
			WantOrder:  orders.StatusInProduction,
		},
		{
			Title:      "backwards status",
			Request:    signed(`{"event":"order_status_updated","orderReferenceId":"o1","fulfillmentStatus":"pending_approval"}`),
			WantStatus: 200,
			WantOrder:  orders.StatusInProduction,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			store := orders.NewMemoryStore()
			store.Orders["o1"] = &orders.Order{ID: "o1", BusinessID: "b1", Source: orders.SourceEtsy, Status: orders.StatusInProduction, PayoutStatus: orders.PayoutNone}
			ctx := app.ContextWithCache(context.Background())
			defer app.SetCacheValue(ctx, []any{"Orders", "Store"}, orders.Store(store))()
			defer app.SetCacheValue(ctx, []any{"RabbitMQ", "Publish"}, rabbitmq.PublishFunc(func(context.Context, string, string, string, []byte, amqp.Table) error {
				return nil
			}))()

			response, err := handler(ctx, tt.Request)
			if err != nil {
				t.Fatalf("handler() error = %v", err)
			}
			if response.StatusCode != tt.WantStatus {
				t.Errorf("status = %d, want %d (%s)", response.StatusCode, tt.WantStatus, response.Body)
			}
			if got := store.Orders["o1"].Status; got != tt.WantOrder {
				t.Errorf("order status = %s, want %s", got, tt.WantOrder)
			}
		})
	}
}
