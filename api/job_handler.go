package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/courier"
	"github.com/xraph/courier/job"
)

// SubmitJobRequest is the body of POST /v1/jobs.
type SubmitJobRequest struct {
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload"`
	Priority    *job.Priority   `json:"priority,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

// SubmitJobResponse is returned when a job is accepted.
type SubmitJobResponse struct {
	ID string `json:"id"`
}

// JobResultResponse carries the result of a finished job, or the status of
// one that has not finished.
type JobResultResponse struct {
	ID     string    `json:"id"`
	Status job.State `json:"status"`
	Result any       `json:"result,omitempty"`
}

func (a *API) submitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, badRequest("name is required"))
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("null")
	}

	var opts []job.Option
	if req.Priority != nil {
		opts = append(opts, job.WithPriority(*req.Priority))
	}
	if req.MaxAttempts > 0 {
		opts = append(opts, job.WithMaxAttempts(req.MaxAttempts))
	}

	jobID, err := a.eng.SubmitRaw(r.Context(), req.Name, req.Payload, opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitJobResponse{ID: jobID})
}

// listJobs returns jobs by state: pending (default), running, completed or
// failed.
func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	pool := a.eng.Pool()
	var snaps []job.Snapshot
	switch state := r.URL.Query().Get("state"); job.State(state) {
	case "", job.StatePending:
		snaps = pool.Pending()
	case job.StateRunning:
		snaps = pool.Running()
	case job.StateCompleted:
		snaps = pool.Completed()
	case job.StateFailed:
		snaps = pool.Failed()
	default:
		writeError(w, badRequest("unknown state %q", state))
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	snap, err := a.eng.Record(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// getJobResult answers 200 with the result, 202 while the job is still in
// progress and 409 once it has failed.
func (a *API) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	result, err := a.eng.Result(jobID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, JobResultResponse{ID: jobID, Status: job.StateCompleted, Result: result})
	case errors.Is(err, courier.ErrNotReady):
		st, _ := a.eng.Status(jobID) //nolint:errcheck // the job was found just above
		writeJSON(w, http.StatusAccepted, JobResultResponse{ID: jobID, Status: st})
	default:
		writeError(w, err)
	}
}
