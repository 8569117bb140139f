package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/reminder"
)

type RemindersHandler struct {
	dispatcher *reminder.Dispatcher
	logger     *slog.Logger
}

func NewRemindersHandler(dispatcher *reminder.Dispatcher, logger *slog.Logger) *RemindersHandler {
	return &RemindersHandler{dispatcher: dispatcher, logger: logger}
}

type remindRequest struct {
	AppointmentID int64 `json:"appointment_id"`
}

type remindResponse struct {
	SMSSent     bool   `json:"sms_sent"`
	SMSReason   string `json:"sms_reason,omitempty"`
	EmailSent   bool   `json:"email_sent"`
	EmailReason string `json:"email_reason,omitempty"`
	SMSToday    int    `json:"sms_sent_today"`
	EmailToday  int    `json:"email_sent_today"`
}

// Send fires an on-demand reminder for one appointment over whatever
// channels the throttle still allows today.
func (h *RemindersHandler) Send(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req remindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.AppointmentID <= 0 {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	actor := authz.FromRequest(r)
	res, err := h.dispatcher.Dispatch(r.Context(), actor, req.AppointmentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, remindResponse{
		SMSSent:     res.SMSSent,
		SMSReason:   res.SMSReason,
		EmailSent:   res.EmailSent,
		EmailReason: res.EmailReason,
		SMSToday:    res.SMSSentToday,
		EmailToday:  res.EmailToday,
	})
}
