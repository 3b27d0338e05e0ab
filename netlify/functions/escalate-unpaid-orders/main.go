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
	grace := app.EnvDuration("ESCALATION_GRACE_HOURS", time.Hour, 72*time.Hour)
	result, err := orders.RunEscalation(ctx, time.Now().UTC(), grace)
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error escalating unpaid orders", err)
	}
	return app.NetlifyLogAndJsonResponse(200, result, nil)
}

func main() {
	lambda.Start(app.Chain("escalate-unpaid-orders", app.AuthMiddleware, handler))
}
