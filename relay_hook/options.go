package relayhook

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc replaces the data of one event type. It receives the default
// payload, one of the job or schedule payload structs, and returns what
// subscribers see under "data".
type PayloadFunc func(args any) (any, error)

// WithEvents relays only the listed event names, e.g.
// WithEvents(EventJobFailed, EventScheduleFired). The default relays all of
// AllEvents.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithPayloadFunc sets the payload builder for eventType.
func WithPayloadFunc(eventType string, fn PayloadFunc) Option {
	return func(h *Extension) {
		if h.payloads == nil {
			h.payloads = make(map[string]PayloadFunc)
		}
		h.payloads[eventType] = fn
	}
}

// WithSkipKinds stops lifecycle events of the named job kinds from being
// relayed. webhook.KindDeliver is always skipped; subscribers would
// otherwise be notified about their own deliveries.
func WithSkipKinds(kinds ...string) Option {
	return func(h *Extension) {
		for _, k := range kinds {
			h.skip[k] = true
		}
	}
}
