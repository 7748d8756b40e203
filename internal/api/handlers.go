package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/therapy-scheduling/internal/appointment"
	"github.com/hackgods/therapy-scheduling/internal/fixtures"
	"github.com/hackgods/therapy-scheduling/pkg/logging"
)

type handlers struct {
	svc      *appointment.Service
	fixtures *fixtures.Store
	logger   *logging.Logger
}

// respond writes value or err in the Result shape. Internal failures are
// logged here because their message never reaches the client.
func respond[T any](h *handlers, w http.ResponseWriter, r *http.Request, okStatus int, value T, err error) {
	status := okStatus
	if err != nil {
		kind := appointment.KindOf(err)
		status = statusFor(kind)
		if kind == appointment.KindInternal {
			h.logger.Error("request failed",
				"path", r.URL.Path,
				"request_id", GetRequestID(r.Context()),
				"error", err,
			)
		}
	}
	writeJSON(w, status, appointment.ResultOf(value, err))
}

func badRequest(msg string) error {
	return &appointment.Error{Kind: appointment.KindValidation, Message: msg}
}

// Patients

func (h *handlers) listPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.svc.ListPatients(r.Context())
	respond(h, w, r, http.StatusOK, patients, err)
}

func (h *handlers) getPatient(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPatient(r.Context(), chi.URLParam(r, "id"))
	respond(h, w, r, http.StatusOK, p, err)
}

func (h *handlers) registerPatient(w http.ResponseWriter, r *http.Request) {
	var req appointment.RegisterPatientRequest
	if err := decodeJSON(r, &req); err != nil {
		respond[*appointment.Patient](h, w, r, http.StatusCreated, nil, err)
		return
	}
	p, err := h.svc.RegisterPatient(r.Context(), req)
	respond(h, w, r, http.StatusCreated, p, err)
}

func (h *handlers) patientBuckets(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Buckets(r.Context(), chi.URLParam(r, "id"))
	respond(h, w, r, http.StatusOK, b, err)
}

// Therapists

func (h *handlers) listTherapists(w http.ResponseWriter, r *http.Request) {
	therapists, err := h.svc.ListTherapists(r.Context())
	respond(h, w, r, http.StatusOK, therapists, err)
}

func (h *handlers) getTherapist(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTherapist(r.Context(), chi.URLParam(r, "id"))
	respond(h, w, r, http.StatusOK, t, err)
}

func (h *handlers) therapistSlots(w http.ResponseWriter, r *http.Request) {
	minutes := 0
	if raw := r.URL.Query().Get("duration"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond[[]appointment.Slot](h, w, r, http.StatusOK, nil, badRequest("duration must be a whole number of minutes"))
			return
		}
		minutes = n
	}
	slots, err := h.svc.AvailableSlots(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("date"), minutes)
	respond(h, w, r, http.StatusOK, slots, err)
}

// Appointments

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appts, err := h.svc.ListAppointments(r.Context(), q.Get("patient_id"), q.Get("therapist_id"))
	respond(h, w, r, http.StatusOK, appts, err)
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
	respond(h, w, r, http.StatusOK, a, err)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointment.CreateAppointmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respond[*appointment.Appointment](h, w, r, http.StatusCreated, nil, err)
		return
	}
	a, err := h.svc.CreateAppointment(r.Context(), req)
	respond(h, w, r, http.StatusCreated, a, err)
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.CancelAppointment(r.Context(), chi.URLParam(r, "id"))
	respond(h, w, r, http.StatusOK, a, err)
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respond[*appointment.Appointment](h, w, r, http.StatusOK, nil, err)
		return
	}
	a, err := h.svc.RescheduleAppointment(r.Context(), chi.URLParam(r, "id"), req.DateTime)
	respond(h, w, r, http.StatusOK, a, err)
}

func (h *handlers) completeAppointment(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.CompleteAppointment(r.Context(), chi.URLParam(r, "id"))
	respond(h, w, r, http.StatusOK, a, err)
}

func (h *handlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		respond[*appointment.Feedback](h, w, r, http.StatusCreated, nil, err)
		return
	}
	fb, err := h.svc.SubmitFeedback(r.Context(), appointment.FeedbackRequest{
		AppointmentID: chi.URLParam(r, "id"),
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	respond(h, w, r, http.StatusCreated, fb, err)
}

// Waiting list

func (h *handlers) listWaitingList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.ListWaitingList(r.Context(), r.URL.Query().Get("patient_id"))
	respond(h, w, r, http.StatusOK, entries, err)
}

func (h *handlers) addToWaitingList(w http.ResponseWriter, r *http.Request) {
	var req appointment.WaitingListRequest
	if err := decodeJSON(r, &req); err != nil {
		respond[*appointment.WaitingListEntry](h, w, r, http.StatusCreated, nil, err)
		return
	}
	entry, err := h.svc.AddToWaitingList(r.Context(), req)
	respond(h, w, r, http.StatusCreated, entry, err)
}

func (h *handlers) removeFromWaitingList(w http.ResponseWriter, r *http.Request) {
	err := h.svc.RemoveFromWaitingList(r.Context(), chi.URLParam(r, "id"))
	respond(h, w, r, http.StatusOK, err == nil, err)
}

// Fixture feeds

func (h *handlers) listPosts(w http.ResponseWriter, r *http.Request) {
	respond(h, w, r, http.StatusOK, h.fixtures.Posts(), nil)
}

func (h *handlers) listConversations(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("patient_id")
	if raw == "" {
		respond(h, w, r, http.StatusOK, h.fixtures.Conversations(), nil)
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respond[[]fixtures.Conversation](h, w, r, http.StatusOK, nil, badRequest("patient_id must be a valid UUID"))
		return
	}
	respond(h, w, r, http.StatusOK, h.fixtures.ConversationsForPatient(id), nil)
}
