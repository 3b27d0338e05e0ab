package main

import (
	"context"
	"errors"
	"time"

	"podmarket/common/app"
	"podmarket/common/business"
	"podmarket/common/catalog"
	"podmarket/common/etsy"
	"podmarket/common/helpers"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	var req etsy.ListingRequest
	if err := helpers.DecodeAndValidate(request.Body, &req); err != nil {
		return app.NetlifyLogAndResponse(400, err.Error(), err)
	}

	b, err := business.ForUser(ctx)
	if errors.Is(err, business.ErrNoBusiness) {
		return app.NetlifyLogAndResponse(403, "Only businesses can publish listings", err)
	}
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error loading business", err)
	}

	result, err := etsy.PublishListing(ctx, b.ID, req, time.Now().UTC())
	var httpErr *helpers.HTTPError
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		return app.NetlifyLogAndResponse(404, "Product not found", err)
	case errors.Is(err, etsy.ErrNotOwner):
		return app.NetlifyLogAndResponse(403, "Product belongs to another business", err)
	case errors.Is(err, etsy.ErrNoDesign):
		return app.NetlifyLogAndResponse(422, "Product has no design", err)
	case errors.Is(err, etsy.ErrNotConnected):
		return app.NetlifyLogAndResponse(409, "Connect an Etsy shop first", err)
	case errors.As(err, &httpErr):
		return app.NetlifyLogAndResponse(502, "Etsy rejected the listing", err)
	case err != nil:
		return app.NetlifyLogAndResponse(500, "Error publishing listing", err)
	}
	return app.NetlifyLogAndJsonResponse(200, result, nil)
}

func main() {
	lambda.Start(app.Chain("etsy-publish-listing", app.RequireRole(app.RoleBusiness), handler))
}
