package main

import (
	"context"
	"errors"
	"time"

	"podmarket/common/app"
	"podmarket/common/business"
	"podmarket/common/designs"
	"podmarket/common/helpers"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	var req designs.GenerateRequest
	if err := helpers.DecodeAndValidate(request.Body, &req); err != nil {
		return app.NetlifyLogAndResponse(400, err.Error(), err)
	}

	b, err := business.ForUser(ctx)
	if errors.Is(err, business.ErrNoBusiness) {
		return app.NetlifyLogAndResponse(403, "Only businesses can create designs", err)
	}
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error loading business", err)
	}

	design, err := designs.GenerateDesign(ctx, b.ID, req, time.Now().UTC())
	if err != nil {
		return app.NetlifyLogAndResponse(502, "Error generating design", err)
	}
	return app.NetlifyLogAndJsonResponse(201, design, nil)
}

func main() {
	lambda.Start(app.Chain("design-generate", app.RequireRole(app.RoleBusiness), handler))
}
