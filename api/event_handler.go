package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// TriggerEventResponse lists the deliveries created for an event.
type TriggerEventResponse struct {
	Event      string   `json:"event"`
	Deliveries []string `json:"deliveries"`
}

// triggerEvent fans the request body out to the event's subscribers. The
// body is the event data and must be JSON.
func (a *API) triggerEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, badRequest("read body: %v", err))
		return
	}
	if len(body) == 0 {
		body = []byte("null")
	}
	if !json.Valid(body) {
		writeError(w, badRequest("event data must be valid JSON"))
		return
	}

	event := chi.URLParam(r, "event")
	ids, err := a.dispatcher.Trigger(r.Context(), event, json.RawMessage(body))
	if err != nil && len(ids) == 0 {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusAccepted, TriggerEventResponse{Event: event, Deliveries: ids})
}

// listDeliveries returns recent deliveries, newest first. Query
// parameters: subscriber, limit.
func (a *API) listDeliveries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, badRequest("invalid limit %q", v))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, a.dispatcher.Recent(q.Get("subscriber"), limit))
}

func (a *API) deliveryStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.dispatcher.Stats())
}

func (a *API) getDelivery(w http.ResponseWriter, r *http.Request) {
	d, err := a.dispatcher.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
