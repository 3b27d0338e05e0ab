package main

import (
	"context"
	"errors"

	"podmarket/common/app"
	"podmarket/common/helpers"
	"podmarket/common/orders"
	"podmarket/common/payments"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

type paymentRequest struct {
	OrderID string `json:"order_id" validate:"required"`
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	var req paymentRequest
	if err := helpers.DecodeAndValidate(request.Body, &req); err != nil {
		return app.NetlifyLogAndResponse(400, err.Error(), err)
	}

	payment, err := payments.StartPayment(ctx, req.OrderID)
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return app.NetlifyLogAndResponse(404, "Order not found", err)
	case errors.Is(err, orders.ErrForbidden):
		return app.NetlifyLogAndResponse(403, "Order belongs to someone else", err)
	case errors.Is(err, orders.ErrInvalidState):
		return app.NetlifyLogAndResponse(409, "Order cannot be paid", err)
	case errors.Is(err, orders.ErrConflict):
		return app.NetlifyLogAndResponse(409, "Order changed, please retry", err)
	case err != nil:
		return app.NetlifyLogAndResponse(500, "Error starting payment", err)
	}
	return app.NetlifyJsonResponse(200, payment)
}

func main() {
	lambda.Start(app.Chain("pod-payment", app.RequireRole(app.RoleCustomer, app.RoleBusiness), handler))
}
