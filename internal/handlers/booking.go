package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/booking"
	"github.com/whiskerwell/scheduling/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type createAppointmentRequest struct {
	PetID      int64  `json:"pet_id"`
	CategoryID int64  `json:"category_id"`
	SubtypeID  int64  `json:"subtype_id"`
	Date       string `json:"date"`
	TimeOfDay  string `json:"time_of_day"`
	Notes      string `json:"notes"`
	Origin     string `json:"origin"`
}

type createAppointmentResponse struct {
	AppointmentID int64 `json:"appointment_id"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	origin := model.OriginWeb
	if strings.TrimSpace(req.Origin) == string(model.OriginMobile) {
		origin = model.OriginMobile
	}

	actor := authz.FromRequest(r)
	id, err := h.svc.Book(r.Context(), actor, booking.BookRequest{
		PetID:      req.PetID,
		CategoryID: optionalID(req.CategoryID),
		SubtypeID:  optionalID(req.SubtypeID),
		Date:       strings.TrimSpace(req.Date),
		TimeOfDay:  strings.TrimSpace(req.TimeOfDay),
		Notes:      strings.TrimSpace(req.Notes),
		Origin:     origin,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createAppointmentResponse{AppointmentID: id})
}

type completeRequest struct {
	AppointmentIDs []int64 `json:"appointment_ids"`
	AdministeredBy string  `json:"administered_by"`
	DueDate        string  `json:"due_date"`
}

// Complete marks a batch of appointments completed, recording who
// administered the service and an optional follow-up due date.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	var due *time.Time
	if raw := strings.TrimSpace(req.DueDate); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "invalid due_date", http.StatusBadRequest)
			return
		}
		due = &d
	}

	actor := authz.FromRequest(r)
	if err := h.svc.Complete(r.Context(), actor, req.AppointmentIDs, strings.TrimSpace(req.AdministeredBy), due); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"completed": len(req.AppointmentIDs)})
}

func optionalID(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}
