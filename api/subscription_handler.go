package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/courier/webhook"
)

// PutSubscriptionRequest is the body of PUT /v1/subscriptions/{id}.
type PutSubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}

// SubscriptionResponse describes a subscription without its secret.
type SubscriptionResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Signed    bool      `json:"signed"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSubscriptionResponse(s webhook.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:        s.ID,
		URL:       s.URL,
		Events:    s.Events,
		Signed:    s.Secret != "",
		Active:    s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (a *API) listSubscriptions(w http.ResponseWriter, _ *http.Request) {
	subs := a.dispatcher.Registry().List()
	out := make([]SubscriptionResponse, len(subs))
	for i, s := range subs {
		out[i] = toSubscriptionResponse(s)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) getSubscription(w http.ResponseWriter, r *http.Request) {
	s, err := a.dispatcher.Registry().Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(s))
}

func (a *API) putSubscription(w http.ResponseWriter, r *http.Request) {
	var req PutSubscriptionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	s, err := a.dispatcher.Registry().Subscribe(r.Context(), chi.URLParam(r, "id"), req.URL, req.Events, req.Secret)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionResponse(s))
}

// deleteSubscription deactivates a subscription, or removes it entirely
// with ?purge=true.
func (a *API) deleteSubscription(w http.ResponseWriter, r *http.Request) {
	reg := a.dispatcher.Registry()
	subscriberID := chi.URLParam(r, "id")

	var err error
	if r.URL.Query().Get("purge") == "true" {
		err = reg.Purge(r.Context(), subscriberID)
	} else {
		err = reg.Unsubscribe(r.Context(), subscriberID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) subscriptionStats(w http.ResponseWriter, r *http.Request) {
	subscriberID := chi.URLParam(r, "id")
	if _, err := a.dispatcher.Registry().Get(subscriberID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.dispatcher.SubscriberStats(subscriberID))
}
