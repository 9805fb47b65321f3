package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/xraph/courier"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

// writeError maps courier sentinel errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, courier.ErrJobNotFound),
		errors.Is(err, courier.ErrSubscriptionNotFound),
		errors.Is(err, courier.ErrDeliveryNotFound),
		errors.Is(err, courier.ErrScheduleNotFound):
		return http.StatusNotFound
	case errors.Is(err, courier.ErrUnknownJobKind),
		errors.Is(err, courier.ErrInvalidSubscription),
		errors.Is(err, courier.ErrInvalidSchedule),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, courier.ErrRetryExhausted),
		errors.Is(err, courier.ErrSubscriptionInUse):
		return http.StatusConflict
	case errors.Is(err, courier.ErrPoolStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeBody decodes a bounded JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}
