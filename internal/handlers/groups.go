package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/group"
	"github.com/whiskerwell/scheduling/internal/model"
)

type GroupsHandler struct {
	coord  *group.Coordinator
	logger *slog.Logger
}

func NewGroupsHandler(coord *group.Coordinator, logger *slog.Logger) *GroupsHandler {
	return &GroupsHandler{coord: coord, logger: logger}
}

type groupItemPayload struct {
	AppointmentID int64  `json:"appointment_id,omitempty"`
	PetID         int64  `json:"pet_id"`
	CategoryID    int64  `json:"category_id"`
	SubtypeID     int64  `json:"subtype_id,omitempty"`
	Date          string `json:"date"`
	TimeOfDay     string `json:"time_of_day"`
	Notes         string `json:"notes,omitempty"`
	Status        string `json:"status,omitempty"`
}

func (p groupItemPayload) toItem() group.Item {
	return group.Item{
		AppointmentID: p.AppointmentID,
		PetID:         p.PetID,
		CategoryID:    p.CategoryID,
		SubtypeID:     p.SubtypeID,
		Date:          strings.TrimSpace(p.Date),
		TimeOfDay:     strings.TrimSpace(p.TimeOfDay),
		Notes:         strings.TrimSpace(p.Notes),
		Status:        strings.TrimSpace(p.Status),
	}
}

type createGroupRequest struct {
	Items  []groupItemPayload `json:"items"`
	Notes  string             `json:"notes"`
	Origin string             `json:"origin"`
}

// CreateOrList dispatches on method: POST books a group, GET lists groups
// with their members, DELETE removes a group and its members outright.
func (h *GroupsHandler) CreateOrList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *GroupsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	actor := authz.FromRequest(r)
	if err := h.coord.Delete(r.Context(), actor, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (h *GroupsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	items := make([]group.Item, 0, len(req.Items))
	for _, p := range req.Items {
		items = append(items, p.toItem())
	}

	origin := model.OriginWeb
	if strings.TrimSpace(req.Origin) == string(model.OriginMobile) {
		origin = model.OriginMobile
	}

	actor := authz.FromRequest(r)
	id, err := h.coord.Create(r.Context(), actor, items, strings.TrimSpace(req.Notes), origin)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"group_id": id})
}

type groupMemberItem struct {
	AppointmentID int64  `json:"appointment_id"`
	PetID         int64  `json:"pet_id"`
	CategoryID    int64  `json:"category_id,omitempty"`
	SubtypeID     int64  `json:"subtype_id,omitempty"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
}

type groupListItem struct {
	GroupID   int64             `json:"group_id"`
	StartAt   string            `json:"start_at"`
	Status    string            `json:"status"`
	Notes     string            `json:"notes,omitempty"`
	Finalized bool              `json:"finalized"`
	Members   []groupMemberItem `json:"members"`
}

func (h *GroupsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 200)
	groups, err := h.coord.List(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	items := make([]groupListItem, 0, len(groups))
	for _, g := range groups {
		item := groupListItem{
			GroupID:   g.Group.ID,
			StartAt:   g.Group.StartAt.Format("2006-01-02 15:04"),
			Status:    string(g.Group.Status),
			Notes:     g.Group.Notes,
			Finalized: g.Group.Status == model.GroupStatusFinalized,
		}
		for _, m := range g.Members {
			member := groupMemberItem{
				AppointmentID: m.ID,
				PetID:         m.PetID,
				Status:        string(m.Status),
				Notes:         m.Notes,
			}
			if m.CategoryID != nil {
				member.CategoryID = *m.CategoryID
			}
			if m.SubtypeID != nil {
				member.SubtypeID = *m.SubtypeID
			}
			item.Members = append(item.Members, member)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

type editGroupRequest struct {
	GroupID   int64              `json:"group_id"`
	Date      string             `json:"date"`
	TimeOfDay string             `json:"time_of_day"`
	Notes     string             `json:"notes"`
	Items     []groupItemPayload `json:"items"`
}

// Edit replaces a group's schedule and membership in one shot.
func (h *GroupsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req editGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.GroupID <= 0 {
		http.Error(w, "group_id required", http.StatusBadRequest)
		return
	}

	items := make([]group.Item, 0, len(req.Items))
	for _, p := range req.Items {
		items = append(items, p.toItem())
	}

	actor := authz.FromRequest(r)
	if err := h.coord.Edit(r.Context(), actor, req.GroupID, strings.TrimSpace(req.Date), strings.TrimSpace(req.TimeOfDay), strings.TrimSpace(req.Notes), items); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"group_id": req.GroupID})
}

type cancelGroupRequest struct {
	GroupID int64 `json:"group_id"`
	Confirm bool  `json:"confirm"`
}

// Cancel runs the two-step group cancellation. Owners request; staff
// confirm by setting confirm.
func (h *GroupsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.GroupID <= 0 {
		http.Error(w, "group_id required", http.StatusBadRequest)
		return
	}

	actor := authz.FromRequest(r)
	var err error
	status := string(model.StatusCancellationRequested)
	if req.Confirm {
		err = h.coord.ConfirmCancellation(r.Context(), actor, req.GroupID)
		status = string(model.StatusCancelled)
	} else {
		err = h.coord.RequestCancellation(r.Context(), actor, req.GroupID)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

type finalizeRequest struct {
	GroupIDs []int64 `json:"group_ids"`
}

func (h *GroupsHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	actor := authz.FromRequest(r)
	n, err := h.coord.Finalize(r.Context(), actor, req.GroupIDs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"finalized": n})
}
