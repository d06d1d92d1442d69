package lambdautils

import (
	"context"
	"encoding/json"
	"github.com/apex/gateway"
	"github.com/aws/aws-lambda-go/events"
	"net/http"
)

// runs an API Gateway proxy request through a regular http.Handler (the same router the
// standalone server uses) and returns the marshaled proxy response
func ServeApiGatewayProxyRequest(
	ctx context.Context,
	proxyRequest *events.APIGatewayProxyRequest,
	handler http.Handler,
) ([]byte, error) {
	req, err := gateway.NewRequest(ctx, *proxyRequest)
	if err != nil { // undecodable body
		return json.Marshal(&events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Headers:    map[string]string{"Content-Type": "text/plain"},
			Body:       err.Error(),
		})
	}

	rec := gateway.NewResponse()
	handler.ServeHTTP(rec, req)

	res := rec.End()
	return json.Marshal(&res)
}
