package app

import (
	"context"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

const functionContextKey = contextKey("function-name")

var (
	loggerOnce sync.Once
	logger     *zap.SugaredLogger
)

// Logger returns the process-wide logger. Functions are short-lived, so it is built once per cold start.
func Logger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		var base *zap.Logger
		var err error
		if os.Getenv("ENV") == "LOCAL" {
			base, err = zap.NewDevelopment()
		} else {
			base, err = zap.NewProduction()
		}
		if err != nil {
			base = zap.NewNop()
		}
		logger = base.Sugar()
	})
	return logger
}

// LoggerFromContext returns the logger enriched with the running function and the authenticated user, if any.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	l := Logger()
	if name, ok := ctx.Value(functionContextKey).(string); ok && name != "" {
		l = l.With("function", name)
	}
	if user, ok := UserFromContext(ctx); ok {
		l = l.With("user_id", user.ID)
	}
	return l
}

func FunctionNameMiddleware(name string, function NetlifyFunction) NetlifyFunction {
	return func(ctx context.Context, request events.APIGatewayProxyRequest) (*events.APIGatewayProxyResponse, error) {
		return function(context.WithValue(ctx, functionContextKey, name), request)
	}
}
