package redis

// Redis key layout. Every key starts with the store's namespace, which
// defaults to DefaultNamespace:
//
//	{ns}:subscription:{id}   Hash   one subscription
//	{ns}:subscription_ids    Set    ids of all subscriptions

// DefaultNamespace prefixes every key unless WithNamespace overrides it.
const DefaultNamespace = "courier"

type keys struct{ ns string }

func (k keys) subscription(id string) string { return k.ns + ":subscription:" + id }

func (k keys) subscriptionIDs() string { return k.ns + ":subscription_ids" }
