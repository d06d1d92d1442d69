// Client for the heartbeat REST API, for jobs that ping their monitor
package heartbeatclient

import (
	"context"
	"github.com/function61/gokit/ezhttp"
	"github.com/function61/lambda-heartbeat/pkg/hbdomain"
	"net/url"
)

type Client struct {
	baseUrl string
	apiKey  string
}

func New(baseUrl string, apiKey string) *Client {
	return &Client{baseUrl, apiKey}
}

// interval == "" keeps the monitor's current interval
func (c *Client) Ping(ctx context.Context, slug string, interval string) (*hbdomain.Summary, error) {
	endpoint := c.baseUrl + "/heartbeat/" + url.PathEscape(slug)
	if interval != "" {
		endpoint += "?" + url.Values{"interval": {interval}}.Encode()
	}

	return c.postForSummary(ctx, endpoint)
}

func (c *Client) Fail(ctx context.Context, slug string) (*hbdomain.Summary, error) {
	return c.postForSummary(ctx, c.baseUrl+"/heartbeat/"+url.PathEscape(slug)+"/fail")
}

func (c *Client) Pause(ctx context.Context, slug string) (*hbdomain.Summary, error) {
	return c.postForSummary(ctx, c.baseUrl+"/monitors/"+url.PathEscape(slug)+"/pause")
}

func (c *Client) Unpause(ctx context.Context, slug string) (*hbdomain.Summary, error) {
	return c.postForSummary(ctx, c.baseUrl+"/monitors/"+url.PathEscape(slug)+"/unpause")
}

func (c *Client) Delete(ctx context.Context, slug string) error {
	_, err := ezhttp.Del(
		ctx,
		c.baseUrl+"/monitors/"+url.PathEscape(slug),
		ezhttp.AuthBearer(c.apiKey))
	return err
}

func (c *Client) List(ctx context.Context) ([]hbdomain.Summary, error) {
	summaries := []hbdomain.Summary{}
	if _, err := ezhttp.Get(
		ctx,
		c.baseUrl+"/monitors",
		ezhttp.AuthBearer(c.apiKey),
		ezhttp.RespondsJson(&summaries, true),
	); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (c *Client) postForSummary(ctx context.Context, endpoint string) (*hbdomain.Summary, error) {
	sum := &hbdomain.Summary{}
	if _, err := ezhttp.Post(
		ctx,
		endpoint,
		ezhttp.AuthBearer(c.apiKey),
		ezhttp.RespondsJson(sum, true),
	); err != nil {
		return nil, err
	}

	return sum, nil
}
