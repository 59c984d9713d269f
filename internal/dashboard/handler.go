package dashboard

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/curasync/portal/internal/clinicapi"
	"github.com/curasync/portal/internal/session"
	"github.com/curasync/portal/pkg/logging"
)

// Handler serves the dashboard JSON API. Every route expects a signed-in
// user in the request context.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a dashboard HTTP handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger.Component("dashboard")}
}

// Register mounts the dashboard routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/header", h.GetHeader)
	r.Get("/dashboard/patient", h.GetPatientDashboard)
	r.Post("/appointments", h.BookAppointment)
	r.Delete("/appointments/{appointmentID}", h.CancelAppointment)
	r.Get("/doctors/{doctorID}/availability", h.GetDoctorAvailability)
}

// NoticeResponse carries the user-visible outcome of an action.
type NoticeResponse struct {
	Notice      string                 `json:"notice"`
	Appointment *clinicapi.Appointment `json:"appointment,omitempty"`
}

// GetHeader returns the header strip for the signed-in user.
// GET /api/header
func (h *Handler) GetHeader(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, Header(*user))
}

// GetPatientDashboard returns the full patient dashboard.
// GET /api/dashboard/patient
func (h *Handler) GetPatientDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentPatient(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.svc.LoadPatient(r.Context(), *user))
}

// BookAppointment books an appointment for the signed-in patient.
// POST /api/appointments
func (h *Handler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentPatient(w, r)
	if !ok {
		return
	}

	var form BookingForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		http.Error(w, `{"error": "invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Book(r.Context(), *user, form)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "missing or invalid fields",
				"fields": verr.Fields,
				"notice": NoticeBookFailed,
			})
			return
		}
		h.logger.Error("failed to book appointment", "user_id", user.ID, "error", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": NoticeBookFailed, "notice": NoticeBookFailed})
		return
	}
	h.writeJSON(w, http.StatusCreated, NoticeResponse{Notice: NoticeBooked, Appointment: &appt})
}

// CancelAppointment deletes one of the patient's appointments. The browser
// confirms first and signals it with ?confirm=true or X-Confirm: true.
// DELETE /api/appointments/{appointmentID}
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentPatient(w, r)
	if !ok {
		return
	}
	appointmentID := chi.URLParam(r, "appointmentID")
	if appointmentID == "" {
		http.Error(w, `{"error": "appointment_id required"}`, http.StatusBadRequest)
		return
	}

	err := h.svc.Cancel(r.Context(), *user, appointmentID, confirmed(r))
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, NoticeResponse{Notice: NoticeCancelled})
	case errors.Is(err, ErrConfirmationRequired):
		h.writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "confirmation required",
			"prompt": "Are you sure you want to cancel this appointment?",
		})
	case errors.Is(err, ErrAppointmentNotCancellable):
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": "appointment is not scheduled", "notice": NoticeCancelFailed})
	case errors.Is(err, ErrAppointmentNotFound):
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": NoticeCancelFailed, "notice": NoticeCancelFailed})
	default:
		h.logger.Error("failed to cancel appointment", "user_id", user.ID, "appointment_id", appointmentID, "error", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": NoticeCancelFailed, "notice": NoticeCancelFailed})
	}
}

// GetDoctorAvailability returns one doctor's slots and leave dates.
// GET /api/doctors/{doctorID}/availability
func (h *Handler) GetDoctorAvailability(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentUser(w, r); !ok {
		return
	}
	doctorID := chi.URLParam(r, "doctorID")
	h.writeJSON(w, http.StatusOK, h.svc.DoctorAvailability(r.Context(), doctorID))
}

func confirmed(r *http.Request) bool {
	for _, raw := range []string{r.URL.Query().Get("confirm"), r.Header.Get("X-Confirm")} {
		if v, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil && v {
			return true
		}
	}
	return false
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (*clinicapi.User, bool) {
	user, ok := session.UserFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error": "not signed in"}`, http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

func (h *Handler) currentPatient(w http.ResponseWriter, r *http.Request) (*clinicapi.User, bool) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return nil, false
	}
	if user.Role != clinicapi.RolePatient {
		http.Error(w, `{"error": "patient access only"}`, http.StatusForbidden)
		return nil, false
	}
	return user, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
