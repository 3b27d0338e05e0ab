package main

import (
	"context"
	"errors"
	"time"

	"podmarket/common/app"
	"podmarket/common/business"
	"podmarket/common/etsy"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	b, err := business.ForUser(ctx)
	if errors.Is(err, business.ErrNoBusiness) {
		return app.NetlifyLogAndResponse(403, "Only businesses can connect an Etsy shop", err)
	}
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error loading business", err)
	}

	url, err := etsy.StartOAuth(ctx, b.ID, time.Now().UTC())
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error starting Etsy authorization", err)
	}
	return app.NetlifyJsonResponse(200, map[string]string{"url": url})
}

func main() {
	lambda.Start(app.Chain("etsy-oauth-start", app.RequireRole(app.RoleBusiness), handler))
}
