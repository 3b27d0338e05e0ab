package main

import (
	"context"
	"time"

	"podmarket/common/app"
	"podmarket/common/pod"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	if err := pod.ValidateWebhook(request); err != nil {
		return app.NetlifyLogAndResponse(401, "Error! Invalid provider webhook", err)
	}

	event, err := pod.ParseWebhook(request.Body)
	if err != nil {
		return app.NetlifyLogAndResponse(400, "Invalid webhook body", err)
	}

	result, err := pod.HandleWebhook(ctx, event, time.Now().UTC())
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error processing provider webhook", err)
	}
	return app.NetlifyLogAndJsonResponse(200, map[string]string{"order_id": event.OrderReferenceID, "result": result}, nil)
}

func main() {
	lambda.Start(app.Chain("pod-webhook", nil, handler))
}
