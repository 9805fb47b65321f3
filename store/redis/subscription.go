package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/webhook"
)

// SaveSubscription stores s as a Hash and indexes its id.
func (s *Store) SaveSubscription(ctx context.Context, sub *webhook.Subscription) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.subscription(sub.ID), subscriptionToMap(sub))
	pipe.SAdd(ctx, s.keys.subscriptionIDs(), sub.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: save subscription: %w", err)
	}
	return nil
}

// GetSubscription retrieves a subscription by id.
func (s *Store) GetSubscription(ctx context.Context, subscriberID string) (*webhook.Subscription, error) {
	vals, err := s.client.HGetAll(ctx, s.keys.subscription(subscriberID)).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: get subscription: %w", err)
	}
	if len(vals) == 0 {
		return nil, courier.ErrSubscriptionNotFound
	}
	return mapToSubscription(vals), nil
}

// DeleteSubscription removes a subscription and its index entry.
func (s *Store) DeleteSubscription(ctx context.Context, subscriberID string) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.keys.subscription(subscriberID))
	pipe.SRem(ctx, s.keys.subscriptionIDs(), subscriberID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: delete subscription: %w", err)
	}
	if del.Val() == 0 {
		return courier.ErrSubscriptionNotFound
	}
	return nil
}

// ListSubscriptions returns every stored subscription ordered by id. Index
// entries whose Hash is gone are skipped.
func (s *Store) ListSubscriptions(ctx context.Context) ([]*webhook.Subscription, error) {
	ids, err := s.client.SMembers(ctx, s.keys.subscriptionIDs()).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: list subscriptions smembers: %w", err)
	}
	sort.Strings(ids)

	subs := make([]*webhook.Subscription, 0, len(ids))
	for _, subID := range ids {
		vals, err := s.client.HGetAll(ctx, s.keys.subscription(subID)).Result()
		if err != nil {
			return nil, fmt.Errorf("courier/redis: list subscriptions get %s: %w", subID, err)
		}
		if len(vals) == 0 {
			s.logger.Warn("dangling subscription index entry", slog.String("subscriber_id", subID))
			continue
		}
		subs = append(subs, mapToSubscription(vals))
	}
	return subs, nil
}

func subscriptionToMap(sub *webhook.Subscription) map[string]interface{} {
	return map[string]interface{}{
		"id":         sub.ID,
		"url":        sub.URL,
		"events":     marshalJSON(sub.Events),
		"secret":     sub.Secret,
		"active":     strconv.FormatBool(sub.Active),
		"created_at": sub.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": sub.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func mapToSubscription(m map[string]string) *webhook.Subscription {
	active, _ := strconv.ParseBool(m["active"])                   //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	return &webhook.Subscription{
		ID:        m["id"],
		URL:       m["url"],
		Events:    unmarshalStrings(m["events"]),
		Secret:    m["secret"],
		Active:    active,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// marshalJSON is a helper to marshal to JSON string.
func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v) //nolint:errcheck // marshal should not fail for basic types
	return string(b)
}

// unmarshalStrings parses a JSON array of strings.
func unmarshalStrings(s string) []string {
	if s == "" || s == "null" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s), &out) //nolint:errcheck // best-effort parse from trusted Redis data
	return out
}
