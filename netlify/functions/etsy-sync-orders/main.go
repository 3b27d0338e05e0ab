package main

import (
	"context"
	"errors"
	"time"

	"podmarket/common/app"
	"podmarket/common/business"
	"podmarket/common/etsy"
	"podmarket/common/helpers"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	b, err := business.ForUser(ctx)
	if errors.Is(err, business.ErrNoBusiness) {
		return app.NetlifyLogAndResponse(403, "Only businesses can sync Etsy orders", err)
	}
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error loading business", err)
	}

	result, err := etsy.SyncOrders(ctx, b.ID, time.Now().UTC())
	var httpErr *helpers.HTTPError
	switch {
	case errors.Is(err, etsy.ErrNotConnected):
		return app.NetlifyLogAndResponse(409, "Connect an Etsy shop first", err)
	case errors.As(err, &httpErr):
		return app.NetlifyLogAndResponse(502, "Error fetching Etsy orders", err)
	case err != nil:
		return app.NetlifyLogAndJsonResponse(500, map[string]any{"error": "Error syncing Etsy orders", "partial": result}, err)
	}
	return app.NetlifyLogAndJsonResponse(200, result, nil)
}

func main() {
	lambda.Start(app.Chain("etsy-sync-orders", app.RequireRole(app.RoleBusiness), handler))
}
