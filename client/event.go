package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xraph/courier"
	"github.com/xraph/courier/api"
	"github.com/xraph/courier/webhook"
)

// Trigger fires event with data at every matching subscriber and returns
// the ids of the created deliveries.
func (c *Client) Trigger(ctx context.Context, event string, data any) ([]string, error) {
	var out struct {
		Deliveries []string `json:"deliveries"`
	}
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/v1/events/" + url.PathEscape(event),
		body:   data,
	}, &out)
	return out.Deliveries, err
}

// Deliveries returns recent deliveries, newest first. An empty
// subscriberID covers all subscribers; limit 0 uses the daemon default.
func (c *Client) Deliveries(ctx context.Context, subscriberID string, limit int) ([]webhook.DeliverySnapshot, error) {
	q := url.Values{}
	if subscriberID != "" {
		q.Set("subscriber", subscriberID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/deliveries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []webhook.DeliverySnapshot
	_, err := c.do(ctx, call{method: http.MethodGet, path: path}, &out)
	return out, err
}

// Delivery returns one delivery.
func (c *Client) Delivery(ctx context.Context, deliveryID string) (webhook.DeliverySnapshot, error) {
	var d webhook.DeliverySnapshot
	_, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/v1/deliveries/" + url.PathEscape(deliveryID),
		notFound: courier.ErrDeliveryNotFound,
	}, &d)
	return d, err
}

// DeliveryStats returns aggregate delivery statistics.
func (c *Client) DeliveryStats(ctx context.Context) (webhook.Stats, error) {
	var st webhook.Stats
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/v1/deliveries/stats"}, &st)
	return st, err
}

// Stats returns the daemon's combined job and delivery statistics.
func (c *Client) Stats(ctx context.Context) (api.StatsResponse, error) {
	var st api.StatsResponse
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/v1/stats"}, &st)
	return st, err
}
