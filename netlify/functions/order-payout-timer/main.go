package main

import (
	"context"
	"time"

	"podmarket/common/app"
	"podmarket/common/orders"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	result, err := orders.RunPayoutTimer(
		ctx,
		time.Now().UTC(),
		app.EnvDuration("AUTO_DELIVER_DAYS", 24*time.Hour, 21*24*time.Hour),
		app.EnvDuration("PAYOUT_HOLD_DAYS", 24*time.Hour, 7*24*time.Hour),
	)
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error running payout timer", err)
	}
	return app.NetlifyLogAndJsonResponse(200, result, nil)
}

func main() {
	lambda.Start(app.Chain("order-payout-timer", app.AuthMiddleware, handler))
}
