package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/draft"
)

type DraftsHandler struct {
	cart   *draft.Cart
	logger *slog.Logger
}

func NewDraftsHandler(cart *draft.Cart, logger *slog.Logger) *DraftsHandler {
	return &DraftsHandler{cart: cart, logger: logger}
}

type draftItemPayload struct {
	PetID      int64  `json:"pet_id"`
	CategoryID int64  `json:"category_id"`
	SubtypeID  int64  `json:"subtype_id,omitempty"`
	Date       string `json:"date"`
	TimeOfDay  string `json:"time_of_day"`
	Notes      string `json:"notes,omitempty"`
	GroupKey   string `json:"group_key,omitempty"`
}

type saveDraftsRequest struct {
	Items []draftItemPayload `json:"items"`
}

// SaveOrList dispatches on method: POST stages drafts, GET lists the
// caller's cart.
func (h *DraftsHandler) SaveOrList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.save(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DraftsHandler) save(w http.ResponseWriter, r *http.Request) {
	var req saveDraftsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	items := make([]draft.Item, 0, len(req.Items))
	for _, p := range req.Items {
		items = append(items, draft.Item{
			PetID:      p.PetID,
			CategoryID: p.CategoryID,
			SubtypeID:  p.SubtypeID,
			Date:       strings.TrimSpace(p.Date),
			TimeOfDay:  strings.TrimSpace(p.TimeOfDay),
			Notes:      strings.TrimSpace(p.Notes),
			GroupKey:   strings.TrimSpace(p.GroupKey),
		})
	}

	actor := authz.FromRequest(r)
	ids, err := h.cart.Save(r.Context(), actor, items)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"draft_ids": ids})
}

type draftListItem struct {
	DraftID    int64  `json:"draft_id"`
	PetID      int64  `json:"pet_id"`
	CategoryID int64  `json:"category_id"`
	SubtypeID  int64  `json:"subtype_id,omitempty"`
	Date       string `json:"date"`
	TimeOfDay  string `json:"time_of_day"`
	Notes      string `json:"notes,omitempty"`
	GroupKey   string `json:"group_key"`
}

func (h *DraftsHandler) list(w http.ResponseWriter, r *http.Request) {
	actor := authz.FromRequest(r)
	drafts, err := h.cart.List(r.Context(), actor)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]draftListItem, 0, len(drafts))
	for _, d := range drafts {
		item := draftListItem{
			DraftID:    d.ID,
			PetID:      d.PetID,
			CategoryID: d.CategoryID,
			Date:       d.ScheduledOn.Format("2006-01-02"),
			TimeOfDay:  d.TimeOfDay,
			Notes:      d.Notes,
			GroupKey:   d.GroupKey,
		}
		if d.SubtypeID != nil {
			item.SubtypeID = *d.SubtypeID
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

type removeDraftRequest struct {
	DraftID int64 `json:"draft_id"`
}

func (h *DraftsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req removeDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.DraftID <= 0 {
		http.Error(w, "draft_id required", http.StatusBadRequest)
		return
	}

	actor := authz.FromRequest(r)
	if err := h.cart.Remove(r.Context(), actor, req.DraftID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": req.DraftID})
}

type convertDraftsRequest struct {
	GroupKeys []string `json:"group_keys"`
}

type convertDraftsResponse struct {
	Groups    map[string]int64 `json:"groups"`
	Converted int              `json:"converted"`
	Skipped   []string         `json:"skipped,omitempty"`
}

// Convert commits staged draft groups into real bookings.
func (h *DraftsHandler) Convert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req convertDraftsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	keys := make([]string, 0, len(req.GroupKeys))
	for _, k := range req.GroupKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}

	actor := authz.FromRequest(r)
	res, err := h.cart.Convert(r.Context(), actor, keys)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, convertDraftsResponse{
		Groups:    res.GroupIDs,
		Converted: res.Converted,
		Skipped:   res.Skipped,
	})
}
