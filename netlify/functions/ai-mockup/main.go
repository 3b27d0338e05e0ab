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
	var req designs.MockupRequest
	if err := helpers.DecodeAndValidate(request.Body, &req); err != nil {
		return app.NetlifyLogAndResponse(400, err.Error(), err)
	}

	b, err := business.ForUser(ctx)
	if errors.Is(err, business.ErrNoBusiness) {
		return app.NetlifyLogAndResponse(403, "Only businesses can create mockups", err)
	}
	if err != nil {
		return app.NetlifyLogAndResponse(500, "Error loading business", err)
	}

	mockup, err := designs.CreateMockup(ctx, b.ID, req, time.Now().UTC())
	switch {
	case errors.Is(err, designs.ErrDesignNotFound):
		return app.NetlifyLogAndResponse(404, "Design not found", err)
	case errors.Is(err, designs.ErrNotOwner):
		return app.NetlifyLogAndResponse(403, "Design belongs to another business", err)
	case err != nil:
		return app.NetlifyLogAndResponse(502, "Error generating mockup", err)
	}
	return app.NetlifyLogAndJsonResponse(201, mockup, nil)
}

func main() {
	lambda.Start(app.Chain("ai-mockup", app.RequireRole(app.RoleBusiness), handler))
}
