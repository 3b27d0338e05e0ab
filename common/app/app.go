package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime/trace"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

const defaultTimeout = 9500 * time.Millisecond

type NetlifyFunction func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error)

// Chain wraps a handler with the middlewares every function runs behind.
// auth may be nil for public endpoints that validate their callers themselves (webhooks, OAuth callbacks).
func Chain(name string, auth func(NetlifyFunction) NetlifyFunction, handler NetlifyFunction) NetlifyFunction {
	inner := handler
	if auth != nil {
		inner = auth(inner)
	}
	return ProfilingMiddleware(
		TimeoutMiddleware(CacheMiddleware(FunctionNameMiddleware(name, CorsMiddleware(CheckEnvMiddleware(inner))))),
		name,
	)
}

func AuthMiddleware(function NetlifyFunction) NetlifyFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		expectedToken := os.Getenv("AUTH_KEY")
		if expectedToken == "" {
			return NetlifyResponse(http.StatusUnauthorized, "Unauthorized")
		}
		token := Header(request, "authorization")
		if token != fmt.Sprintf("Bearer %s", expectedToken) {
			return NetlifyResponse(http.StatusUnauthorized, "Unauthorized")
		}

		return function(ctx, request)
	}
}

func CheckEnvMiddleware(function NetlifyFunction) NetlifyFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		currentEnv := os.Getenv("ENV")
		disabledEnvs := os.Getenv("ENV_DISABLE")
		if currentEnv == "" || (disabledEnvs != "" && slices.Contains(strings.Split(disabledEnvs, ","), currentEnv)) {
			return NetlifyResponse(http.StatusNotFound, "Not Found")
		}

		return function(ctx, request)
	}
}

// CorsMiddleware answers preflight requests; the allowed origin itself is added by NetlifyResponseWithHeaders.
func CorsMiddleware(function NetlifyFunction) NetlifyFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		if request.HTTPMethod == http.MethodOptions {
			return NetlifyResponseWithHeaders(http.StatusNoContent, "", map[string]string{
				"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
				"Access-Control-Allow-Headers": "authorization, content-type",
			})
		}
		return function(ctx, request)
	}
}

func ProfilingMiddleware(function NetlifyFunction, filename string) NetlifyFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		if os.Getenv("PROFILING") == "1" && os.Getenv("ENV") == "LOCAL" {
			path := os.Getenv("PROFILING_PATH")
			if path != "" && !strings.HasSuffix(path, "/") {
				path += "/"
			}
			traceFile := path + filename + ".out"
			f, err := os.Create(traceFile)
			if err != nil {
				Logger().Warnw("could not create trace profile", "file", traceFile, "error", err)
			} else {
				defer f.Close()
				if err := trace.Start(f); err != nil {
					Logger().Warnw("could not start trace profile", "file", traceFile, "error", err)
				} else {
					defer trace.Stop()
					Logger().Infow("tracing on", "file", traceFile)
				}
			}
		}

		return function(ctx, request)
	}
}

func TimeoutMiddleware(function NetlifyFunction) NetlifyFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		timeout := EnvDuration("FUNCTION_TIMEOUT_MS", time.Millisecond, defaultTimeout)
		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type result struct {
			Response *events.APIGatewayProxyResponse
			Error    error
		}

		resultChan := make(chan result, 1)

		go func() {
			response, err := function(timeoutCtx, request)
			resultChan <- result{
				Response: response,
				Error:    err,
			}
		}()

		select {
		case res := <-resultChan:
			return res.Response, res.Error
		case <-timeoutCtx.Done():
			return NetlifyLogAndResponse(http.StatusGatewayTimeout, "Request timed out", timeoutCtx.Err())
		}
	}
}

// Header looks a request header up case-insensitively; Netlify lowercases them but local runners may not.
func Header(request events.APIGatewayProxyRequest, name string) string {
	if v, ok := request.Headers[name]; ok {
		return v
	}
	for k, v := range request.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func NetlifyResponseWithHeaders(statusCode int, body string, headers map[string]string) (*events.APIGatewayProxyResponse, error) {
	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		if headers == nil {
			headers = map[string]string{}
		}
		headers["Access-Control-Allow-Origin"] = origin
	}
	return &events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       body,
		Headers:    headers,
	}, nil
}

func NetlifyResponse(statusCode int, body string) (*events.APIGatewayProxyResponse, error) {
	return NetlifyResponseWithHeaders(statusCode, body, nil)
}

func NetlifyRedirect(location string) (*events.APIGatewayProxyResponse, error) {
	return NetlifyResponseWithHeaders(http.StatusFound, "", map[string]string{"Location": location})
}

func NetlifyJsonResponse(statusCode int, data any) (*events.APIGatewayProxyResponse, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		Logger().Errorw("error marshalling Netlify JSON response", "error", err)
		return NetlifyResponse(http.StatusInternalServerError, "Internal Error")
	}
	return NetlifyResponseWithHeaders(statusCode, string(jsonData), map[string]string{
		"Content-Type": "application/json",
	})
}

func logBodyAndError(statusCode int, body any, err error) {
	switch {
	case err != nil && statusCode >= 500:
		Logger().Errorw(fmt.Sprint(body), "status", statusCode, "error", err)
	case err != nil:
		Logger().Warnw(fmt.Sprint(body), "status", statusCode, "error", err)
	default:
		Logger().Infow(fmt.Sprint(body), "status", statusCode)
	}
}

func NetlifyLogAndResponse(statusCode int, body string, err error) (*events.APIGatewayProxyResponse, error) {
	logBodyAndError(statusCode, body, err)
	return NetlifyResponse(statusCode, body)
}

func NetlifyLogAndJsonResponse(statusCode int, body any, err error) (*events.APIGatewayProxyResponse, error) {
	logBodyAndError(statusCode, body, err)
	return NetlifyJsonResponse(statusCode, body)
}
