package webhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/xraph/courier/job"
)

// KindTrigger is the job kind, on an application engine, that triggers a
// webhook event. Scheduling it makes an event recurring.
const KindTrigger = "webhook.trigger"

// TriggerInput is the payload of a KindTrigger job.
type TriggerInput struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// TriggerDefinition returns the KindTrigger job definition bound to d.
// The job result is the list of delivery ids.
func (d *Dispatcher) TriggerDefinition(opts ...job.Option) *job.Definition[TriggerInput, []string] {
	return job.NewDefinition(KindTrigger, func(ctx context.Context, in TriggerInput) ([]string, error) {
		if in.Event == "" {
			return nil, errors.New("webhook trigger: event is required")
		}
		return d.Trigger(ctx, in.Event, in.Data)
	}, opts...)
}
