package main

import (
	"context"
	"errors"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/function61/gokit/logex"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"github.com/function61/lambda-heartbeat/pkg/lambdautils"
	"log"
	"net/http"
)

func lambdaHandler() {
	logger := logex.StandardLogger()

	// clients are set up once per container. monitor state is never cached, every
	// invocation reads and writes through the store.
	app, err := getApp(context.Background(), logger)

	lambda.StartHandler(lambdautils.NewMultiEventTypeHandler(newLambdaEventHandler(app, err, logger)))
}

// appErr != nil => setup failed, every invocation fails (details only to log)
func newLambdaEventHandler(
	app *app,
	appErr error,
	logger *log.Logger,
) func(context.Context, interface{}) ([]byte, error) {
	var restApi http.Handler
	if appErr != nil {
		logex.Levels(logger).Error.Printf("setup failed: %v", appErr)

		restApi = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			noCacheHeaders(w)
			handleJsonOutput(w, http.StatusInternalServerError, map[string]string{
				"error": hbdomain.ErrStoreUnavailable.Error(),
			})
		})
	} else {
		restApi = newRestApi(app.handler, app.keys, logex.Prefix("restapi", logger))
	}

	return func(ctx context.Context, polymorphicEvent interface{}) ([]byte, error) {
		switch event := polymorphicEvent.(type) {
		case *events.CloudWatchEvent:
			if appErr != nil {
				return nil, appErr
			}

			return nil, handleCloudwatchScheduledEvent(ctx, app, event.Time)
		case *events.APIGatewayProxyRequest:
			return lambdautils.ServeApiGatewayProxyRequest(
				ctx,
				event,
				restApi)
		default:
			return nil, errors.New("cannot identify type of request")
		}
	}
}
