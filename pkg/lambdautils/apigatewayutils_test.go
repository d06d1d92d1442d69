package lambdautils

import (
	"context"
	"encoding/json"
	"github.com/aws/aws-lambda-go/events"
	"github.com/function61/gokit/assert"
	"net/http"
	"testing"
)

func TestServeApiGatewayProxyRequest(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery))
	})

	res := serve(t, &events.APIGatewayProxyRequest{
		HTTPMethod:            http.MethodPost,
		Path:                  "/heartbeat/job",
		QueryStringParameters: map[string]string{"interval": "5m"},
	}, handler)

	assert.Assert(t, res.StatusCode == http.StatusAccepted)
	assert.EqualString(t, res.Body, "POST /heartbeat/job?interval=5m")
}

func TestServeApiGatewayProxyRequestUndecodableBody(t *testing.T) {
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	res := serve(t, &events.APIGatewayProxyRequest{
		HTTPMethod:      http.MethodPost,
		Path:            "/heartbeat/job",
		Body:            "not base64!",
		IsBase64Encoded: true,
	}, handler)

	assert.Assert(t, res.StatusCode == http.StatusBadRequest)
	assert.Assert(t, !called)
}

func serve(t *testing.T, req *events.APIGatewayProxyRequest, handler http.Handler) events.APIGatewayProxyResponse {
	t.Helper()

	resJson, err := ServeApiGatewayProxyRequest(context.Background(), req, handler)
	assert.Ok(t, err)

	res := events.APIGatewayProxyResponse{}
	assert.Ok(t, json.Unmarshal(resJson, &res))

	return res
}
