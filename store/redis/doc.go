// Package redis persists webhook subscriptions in Redis so they survive a
// restart. It implements webhook.SubscriptionStore: every subscription is a
// Hash under courier:subscription:{id}, and a Set indexes the ids for
// enumeration.
//
// The caller owns the Redis client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	store := redis.New(client)
//	if err := store.Ping(ctx); err != nil { ... }
//
//	reg := webhook.NewRegistry(logger, webhook.WithStore(store))
package redis
