package client

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/webhook"
)

// Subscription is the writable part of a webhook subscription.
type Subscription struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

// SubscriptionInfo is a subscription as reported by the daemon. Secrets
// are never returned.
type SubscriptionInfo struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Signed    bool      `json:"signed"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func subscriptionPath(subscriberID string) string {
	return "/v1/subscriptions/" + url.PathEscape(subscriberID)
}

// PutSubscription creates or replaces a subscription.
func (c *Client) PutSubscription(ctx context.Context, subscriberID string, sub Subscription) (SubscriptionInfo, error) {
	var info SubscriptionInfo
	_, err := c.do(ctx, call{method: http.MethodPut, path: subscriptionPath(subscriberID), body: sub}, &info)
	return info, err
}

// GetSubscription returns one subscription.
func (c *Client) GetSubscription(ctx context.Context, subscriberID string) (SubscriptionInfo, error) {
	var info SubscriptionInfo
	_, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     subscriptionPath(subscriberID),
		notFound: courier.ErrSubscriptionNotFound,
	}, &info)
	return info, err
}

// ListSubscriptions returns every subscription, active or not.
func (c *Client) ListSubscriptions(ctx context.Context) ([]SubscriptionInfo, error) {
	var subs []SubscriptionInfo
	_, err := c.do(ctx, call{method: http.MethodGet, path: "/v1/subscriptions"}, &subs)
	return subs, err
}

// Unsubscribe deactivates a subscription. It can be reactivated with
// PutSubscription.
func (c *Client) Unsubscribe(ctx context.Context, subscriberID string) error {
	_, err := c.do(ctx, call{
		method:   http.MethodDelete,
		path:     subscriptionPath(subscriberID),
		notFound: courier.ErrSubscriptionNotFound,
	}, nil)
	return err
}

// Purge removes a subscription entirely. It fails with
// courier.ErrSubscriptionInUse while deliveries still reference it.
func (c *Client) Purge(ctx context.Context, subscriberID string) error {
	_, err := c.do(ctx, call{
		method:   http.MethodDelete,
		path:     subscriptionPath(subscriberID) + "?purge=true",
		notFound: courier.ErrSubscriptionNotFound,
		conflict: courier.ErrSubscriptionInUse,
	}, nil)
	return err
}

// SubscriptionStats returns delivery statistics for one subscriber.
func (c *Client) SubscriptionStats(ctx context.Context, subscriberID string) (webhook.Stats, error) {
	var st webhook.Stats
	_, err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     subscriptionPath(subscriberID) + "/stats",
		notFound: courier.ErrSubscriptionNotFound,
	}, &st)
	return st, err
}
