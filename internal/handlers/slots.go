package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/whiskerwell/scheduling/internal/booking"
)

type SlotsHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewSlotsHandler(svc *booking.Service, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{svc: svc, logger: logger}
}

type slotItem struct {
	TimeOfDay string `json:"time_of_day"`
	Available bool   `json:"available"`
}

// List returns the whole grid for one day, taken and free slots alike.
func (h *SlotsHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}

	slots, err := h.svc.Availability(r.Context(), date)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{TimeOfDay: s.TimeOfDay, Available: s.Available})
	}
	writeJSON(w, http.StatusOK, items)
}
