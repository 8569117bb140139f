package handlers

import (
	"log/slog"
	"net/http"

	"github.com/whiskerwell/scheduling/internal/audit"
	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/schederr"
)

type AuditHandler struct {
	repo   *audit.Repository
	logger *slog.Logger
}

func NewAuditHandler(repo *audit.Repository, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{repo: repo, logger: logger}
}

// List returns the most recent trail entries, staff only.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	actor := authz.FromRequest(r)
	if !actor.IsStaff() {
		writeError(w, h.logger, schederr.Forbidden("only staff may read the audit trail"))
		return
	}

	events, err := h.repo.ListRecent(r.Context(), parseLimit(r, 50, 200))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
