package lambdautils

import (
	"context"
	"fmt"
	"github.com/aws/aws-lambda-go/events"
	"github.com/function61/gokit/assert"
	"testing"
)

func TestIdentifiesEventTypes(t *testing.T) {
	tcs := []struct {
		input  string
		output string
	}{
		{
			`{"httpMethod": "GET", "path": "/monitors"}`,
			"api gateway GET /monitors",
		},
		{
			`{"detail-type": "Scheduled Event", "source": "aws.events"}`,
			"scheduled aws.events",
		},
		{
			`{"Records": [{"EventSource": "aws:sns"}]}`,
			"error: cannot identify type of request",
		},
		{
			`[]`,
			"error: json: cannot unmarshal array into Go value of type lambdautils.eventTypeProbe",
		},
	}

	for _, tc := range tcs {
		tc := tc // pin
		t.Run(tc.output, func(t *testing.T) {
			handler := NewMultiEventTypeHandler(func(ctx context.Context, polymorphicEvent interface{}) ([]byte, error) {
				switch event := polymorphicEvent.(type) {
				case *events.APIGatewayProxyRequest:
					return []byte(fmt.Sprintf("api gateway %s %s", event.HTTPMethod, event.Path)), nil
				case *events.CloudWatchEvent:
					return []byte("scheduled " + event.Source), nil
				default:
					return nil, fmt.Errorf("unexpected %T", event)
				}
			})

			output, err := handler.Invoke(context.Background(), []byte(tc.input))
			if err != nil {
				output = []byte("error: " + err.Error())
			}

			assert.EqualString(t, string(output), tc.output)
		})
	}
}
