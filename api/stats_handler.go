package api

import (
	"net/http"

	"github.com/xraph/courier/webhook"
	"github.com/xraph/courier/worker"
)

// StatsResponse combines job and delivery statistics.
type StatsResponse struct {
	Jobs       worker.Stats  `json:"jobs"`
	Deliveries webhook.Stats `json:"deliveries"`
}

func (a *API) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Jobs:       a.eng.Stats(),
		Deliveries: a.dispatcher.Stats(),
	})
}
