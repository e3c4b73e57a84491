package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/vitaliisemenov/msg-store/internal/api/errors"
	"github.com/vitaliisemenov/msg-store/internal/config"
)

// groupDefaultsRequest is the POST /api/group-defaults body.
type groupDefaultsRequest struct {
	Priority    *uint32 `json:"priority"`
	MaxByteSize *uint64 `json:"maxByteSize"`
}

// groupDefaultsResponse mirrors a defaults record.
type groupDefaultsResponse struct {
	Priority    uint32  `json:"priority"`
	MaxByteSize *uint64 `json:"maxByteSize,omitempty"`
}

// GetGroupDefaults handles GET /api/group-defaults?priority=.
func (h *Handlers) GetGroupDefaults(w http.ResponseWriter, r *http.Request) {
	priority, apiErr := parsePriority(r)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}
	resp := groupDefaultsResponse{Priority: priority}
	if d, ok := h.store.GetGroupDefaults(priority); ok {
		resp.MaxByteSize = d.MaxByteSize
	}
	writeJSON(w, resp)
}

// SetGroupDefaults handles POST /api/group-defaults. Lowering a cap
// below the group's current usage prunes its oldest messages.
func (h *Handlers) SetGroupDefaults(w http.ResponseWriter, r *http.Request) {
	var req groupDefaultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Priority == nil {
		apierrors.WriteError(w, apierrors.ValidationError("body must be {\"priority\": n, \"maxByteSize\": n}"))
		return
	}

	if err := h.store.UpdateGroupDefaults(r.Context(), *req.Priority, req.MaxByteSize); err != nil {
		apierrors.WriteError(w, apierrors.FromStoreError(err))
		return
	}
	h.persistConfig(func(c *config.Config) { c.SetGroupMax(*req.Priority, req.MaxByteSize) })
	writeJSON(w, groupDefaultsResponse{Priority: *req.Priority, MaxByteSize: req.MaxByteSize})
}

// DeleteGroupDefaults handles DELETE /api/group-defaults?priority=.
func (h *Handlers) DeleteGroupDefaults(w http.ResponseWriter, r *http.Request) {
	priority, apiErr := parsePriority(r)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}
	h.store.DeleteGroupDefaults(priority)
	h.persistConfig(func(c *config.Config) { c.RemoveGroup(priority) })
	writeJSON(w, map[string]uint32{"priority": priority})
}
