package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"podmarket/common/app"
	"podmarket/common/etsy"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
	params := request.QueryStringParameters
	if reason := params["error"]; reason != "" {
		return app.NetlifyLogAndResponse(400, "Etsy authorization was declined", fmt.Errorf("etsy returned %s: %s", reason, params["error_description"]))
	}
	code, state := params["code"], params["state"]
	if code == "" || state == "" {
		return app.NetlifyLogAndResponse(400, "Missing code or state", nil)
	}

	conn, err := etsy.CompleteOAuth(ctx, code, state, time.Now().UTC())
	switch {
	case errors.Is(err, etsy.ErrUnknownState):
		return app.NetlifyLogAndResponse(404, "Unknown authorization state", err)
	case errors.Is(err, etsy.ErrStateExpired):
		return app.NetlifyLogAndResponse(410, "Authorization expired, please try again", err)
	case err != nil:
		return app.NetlifyLogAndResponse(502, "Error connecting Etsy shop", err)
	}

	if redirect := os.Getenv("ETSY_SUCCESS_REDIRECT"); redirect != "" {
		target, err := url.Parse(redirect)
		if err != nil {
			return app.NetlifyLogAndResponse(500, "Invalid redirect configuration", err)
		}
		query := target.Query()
		query.Set("shop_id", fmt.Sprint(conn.ShopID))
		target.RawQuery = query.Encode()
		return app.NetlifyRedirect(target.String())
	}
	return app.NetlifyJsonResponse(200, map[string]any{"connected": true, "shop_id": conn.ShopID})
}

func main() {
	lambda.Start(app.Chain("etsy-oauth-callback", nil, handler))
}
