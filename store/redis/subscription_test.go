package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/courier"
	"github.com/xraph/courier/store/redis"
	"github.com/xraph/courier/webhook"
)

func newStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.New(client), mr
}

func TestStore_Ping(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	created := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	sub := &webhook.Subscription{
		ID:        "S1",
		URL:       "https://example.com/hook",
		Events:    []string{"nft.minted", "passport.created"},
		Secret:    "s3cret",
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, s.SaveSubscription(ctx, sub))

	assert.True(t, mr.Exists("courier:subscription:S1"))
	ok, err := mr.SIsMember("courier:subscription_ids", "S1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetSubscription(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, sub.URL, got.URL)
	assert.Equal(t, sub.Events, got.Events)
	assert.Equal(t, sub.Secret, got.Secret)
	assert.True(t, got.Active)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.SaveSubscription(ctx, &webhook.Subscription{ID: "S1", URL: "http://a", Events: []string{"e"}, Active: true}))
	require.NoError(t, s.SaveSubscription(ctx, &webhook.Subscription{ID: "S1", URL: "http://b", Events: []string{"e"}}))

	subs, err := s.ListSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "http://b", subs[0].URL)
	assert.False(t, subs[0].Active)
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.GetSubscription(context.Background(), "nope")
	assert.ErrorIs(t, err, courier.ErrSubscriptionNotFound)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	require.NoError(t, s.SaveSubscription(ctx, &webhook.Subscription{ID: "S1", URL: "http://a", Events: []string{"e"}}))
	require.NoError(t, s.DeleteSubscription(ctx, "S1"))

	assert.False(t, mr.Exists("courier:subscription:S1"))
	assert.ErrorIs(t, s.DeleteSubscription(ctx, "S1"), courier.ErrSubscriptionNotFound)
}

func TestStore_ListSortedSkipsDangling(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	for _, subID := range []string{"c", "a", "b"} {
		require.NoError(t, s.SaveSubscription(ctx, &webhook.Subscription{ID: subID, URL: "http://" + subID, Events: []string{"e"}}))
	}
	_, err := mr.SAdd("courier:subscription_ids", "ghost")
	require.NoError(t, err)

	subs, err := s.ListSubscriptions(ctx)
	require.NoError(t, err)
	ids := make([]string, len(subs))
	for i, sub := range subs {
		ids[i] = sub.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestStore_BacksRegistry(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	reg := webhook.NewRegistry(nil, webhook.WithStore(s))
	_, err := reg.Subscribe(ctx, "S1", "http://a", []string{"passport.created"}, "k")
	require.NoError(t, err)
	_, err = reg.Subscribe(ctx, "S2", "http://b", []string{"passport.created"}, "")
	require.NoError(t, err)
	require.NoError(t, reg.Unsubscribe(ctx, "S2"))

	restored := webhook.NewRegistry(nil, webhook.WithStore(s))
	require.NoError(t, restored.Load(ctx))

	matches := restored.Match("passport.created")
	require.Len(t, matches, 1)
	assert.Equal(t, "S1", matches[0].ID)
	assert.Equal(t, "k", matches[0].Secret)
	assert.Len(t, restored.List(), 2)
}

func TestStore_Namespace(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	blue := redis.New(client, redis.WithNamespace("blue"))
	green := redis.New(client)
	assert.Equal(t, "blue", blue.Namespace())
	assert.Equal(t, redis.DefaultNamespace, green.Namespace())

	require.NoError(t, blue.SaveSubscription(ctx, &webhook.Subscription{
		ID: "S1", URL: "http://a", Events: []string{"x"}, Active: true,
	}))
	assert.True(t, mr.Exists("blue:subscription:S1"))
	assert.False(t, mr.Exists("courier:subscription:S1"))

	subs, err := green.ListSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
