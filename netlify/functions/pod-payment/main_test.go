package main

import (
	"context"
	"encoding/json"
	"testing"

	"podmarket/common/app"
	"podmarket/common/helpers"
	"podmarket/common/orders"

	"github.com/aws/aws-lambda-go/events"
)

func TestHandler(t *testing.T) {
	defer helpers.TempEnvVars(map[string]string{"MOCK_PROVIDER": "true"})()
	customer := "cust-1"

	tests := []struct {
		Title      string
		Body       string
		Status     orders.Status
		WantStatus int
	}{
		{"pays pending order", `{"order_id":"o1"}`, orders.StatusPendingPayment, 200},
		{"missing order id", `{}`, orders.StatusPendingPayment, 400},
		{"unknown field", `{"order_id":"o1","amount":1}`, orders.StatusPendingPayment, 400},
		{"unknown order", `{"order_id":"o2"}`, orders.StatusPendingPayment, 404},
		{"already paid", `{"order_id":"o1"}`, orders.StatusPaid, 409},
	}
	for _, tt := range tests {
		t.Run(tt.Title, func(t *testing.T) {
			store := orders.NewMemoryStore()
			store.Orders["o1"] = &orders.Order{ID: "o1", BusinessID: "b1", CustomerID: &customer, Source: orders.SourceStorefront, Status: tt.Status, Currency: "EUR", TotalCents: 1999}
			ctx := app.ContextWithCache(context.Background())
			ctx = app.ContextWithUser(ctx, &app.User{ID: customer, Role: app.RoleCustomer})
			defer app.SetCacheValue(ctx, []any{"Orders", "Store"}, orders.Store(store))()

			response, err := handler(ctx, events.APIGatewayProxyRequest{Body: tt.Body})
			if err != nil {
				t.Fatalf("handler() error = %v", err)
			}
			if response.StatusCode != tt.WantStatus {
				t.Fatalf("status = %d, want %d (%s)", response.StatusCode, tt.WantStatus, response.Body)
			}
			if tt.WantStatus == 200 {
				var body map[string]any
				json.Unmarshal([]byte(response.Body), &body)
				if body["client_secret"] != "pi_mock_o1_secret" || body["amount"] != float64(1999) || body["currency"] != "eur" {
					t.Errorf("unexpected body %s", response.Body)
				}
			}
		})
	}
}
