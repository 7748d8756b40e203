package api

import (
	"encoding/json"
	"net/http"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
)

type RescheduleRequest struct {
	DateTime string `json:"date_time"`
}

type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind onto the HTTP status the Result is sent with.
func statusFor(kind appointment.ErrorKind) int {
	switch kind {
	case appointment.KindValidation:
		return http.StatusBadRequest
	case appointment.KindNotFound:
		return http.StatusNotFound
	case appointment.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &appointment.Error{Kind: appointment.KindValidation, Message: "request body must be valid JSON: " + err.Error()}
	}
	return nil
}
