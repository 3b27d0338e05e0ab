package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"podmarket/common/app"
	"podmarket/common/helpers"
	"podmarket/common/orders"
	"podmarket/common/payments"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

type distributeRequest struct {
	OrderID string `json:"order_id"`
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	var req distributeRequest
	if strings.TrimSpace(request.Body) != "" {
		if err := helpers.DecodeAndValidate(request.Body, &req); err != nil {
			return app.NetlifyLogAndResponse(400, err.Error(), err)
		}
	}

	result, err := payments.Distribute(ctx, req.OrderID, time.Now().UTC())
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return app.NetlifyLogAndResponse(404, "Order not found", err)
	case errors.Is(err, orders.ErrInvalidState):
		return app.NetlifyLogAndResponse(409, "Order payout is not ready", err)
	case err != nil:
		return app.NetlifyLogAndResponse(500, "Error distributing payouts", err)
	}
	return app.NetlifyLogAndJsonResponse(200, result, nil)
}

func main() {
	lambda.Start(app.Chain("payments-distribute", app.AuthMiddleware, handler))
}
