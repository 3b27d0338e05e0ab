package main

import (
	"context"
	"time"

	"podmarket/common/app"
	"podmarket/common/payments"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	event, err := payments.ConstructEvent(request)
	if err != nil {
		return app.NetlifyLogAndResponse(400, "Error! Invalid Stripe webhook", err)
	}

	result, err := payments.HandleEvent(ctx, event, time.Now().UTC())
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error processing Stripe event", err)
	}
	return app.NetlifyLogAndJsonResponse(200, map[string]string{"event": string(event.Type), "result": result}, nil)
}

func main() {
	lambda.Start(app.Chain("payments-webhook", nil, handler))
}
