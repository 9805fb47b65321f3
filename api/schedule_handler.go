package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/courier/cron"
)

// PutScheduleRequest is the body of PUT /v1/schedules/{name}.
type PutScheduleRequest struct {
	Schedule    string          `json:"schedule"`
	JobName     string          `json:"job_name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
	Paused      bool            `json:"paused,omitempty"`
}

// RunScheduleResponse is returned by POST /v1/schedules/{name}/run.
type RunScheduleResponse struct {
	JobID string `json:"job_id"`
}

func (a *API) registerScheduleRoutes(r chi.Router) {
	if a.scheduler == nil {
		return
	}
	r.Get("/schedules", a.listSchedules)
	r.Get("/schedules/{name}", a.getSchedule)
	r.Put("/schedules/{name}", a.putSchedule)
	r.Delete("/schedules/{name}", a.deleteSchedule)
	r.Post("/schedules/{name}/run", a.runSchedule)
	r.Post("/schedules/{name}/pause", a.pauseSchedule(true))
	r.Post("/schedules/{name}/resume", a.pauseSchedule(false))
}

// listSchedules returns every entry with its next run time.
func (a *API) listSchedules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.scheduler.Entries())
}

func (a *API) getSchedule(w http.ResponseWriter, r *http.Request) {
	e, err := a.scheduler.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) putSchedule(w http.ResponseWriter, r *http.Request) {
	var req PutScheduleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	e, err := a.scheduler.Set(cron.Entry{
		Name:        chi.URLParam(r, "name"),
		Schedule:    req.Schedule,
		JobName:     req.JobName,
		Payload:     req.Payload,
		Priority:    req.Priority,
		MaxAttempts: req.MaxAttempts,
		Paused:      req.Paused,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *API) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := a.scheduler.Remove(chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runSchedule submits the entry's job now, outside its schedule.
func (a *API) runSchedule(w http.ResponseWriter, r *http.Request) {
	jobID, err := a.scheduler.RunNow(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, RunScheduleResponse{JobID: jobID})
}

func (a *API) pauseSchedule(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := a.scheduler.Pause(chi.URLParam(r, "name"), paused)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}
