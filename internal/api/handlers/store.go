package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/vitaliisemenov/msg-store/internal/api/errors"
	"github.com/vitaliisemenov/msg-store/internal/config"
)

// storeGroupSummary is one group row of the store introspection.
type storeGroupSummary struct {
	Priority    uint32  `json:"priority"`
	ByteSize    uint64  `json:"byteSize"`
	MaxByteSize *uint64 `json:"maxByteSize,omitempty"`
	MsgCount    uint64  `json:"msgCount"`
}

// storeResponse is the GET /api/store shape.
type storeResponse struct {
	ByteSize    uint64                  `json:"byteSize"`
	MaxByteSize *uint64                 `json:"maxByteSize,omitempty"`
	MsgCount    uint64                  `json:"msgCount"`
	GroupCount  uint64                  `json:"groupCount"`
	Groups      []storeGroupSummary     `json:"groups,omitempty"`
	Defaults    []groupDefaultsResponse `json:"groupDefaults,omitempty"`
}

// storeUpdateRequest is the PUT /api/store body; a null maxByteSize
// removes the cap.
type storeUpdateRequest struct {
	MaxByteSize *uint64 `json:"maxByteSize"`
}

// GetStore handles GET /api/store.
func (h *Handlers) GetStore(w http.ResponseWriter, r *http.Request) {
	info := h.store.Info()
	resp := storeResponse{
		ByteSize:    info.ByteSize,
		MaxByteSize: info.MaxByteSize,
		MsgCount:    info.MsgCount,
		GroupCount:  info.GroupCount,
	}
	for _, g := range info.Groups {
		resp.Groups = append(resp.Groups, storeGroupSummary{
			Priority:    g.Priority,
			ByteSize:    g.ByteSize,
			MaxByteSize: g.MaxByteSize,
			MsgCount:    g.MsgCount,
		})
	}
	for p, d := range info.Defaults {
		resp.Defaults = append(resp.Defaults, groupDefaultsResponse{Priority: p, MaxByteSize: d.MaxByteSize})
	}
	writeJSON(w, resp)
}

// UpdateStore handles PUT /api/store. Lowering the cap below current
// usage prunes lowest-priority-then-oldest messages to fit.
func (h *Handlers) UpdateStore(w http.ResponseWriter, r *http.Request) {
	var req storeUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, apierrors.ValidationError("body must be {\"maxByteSize\": n | null}"))
		return
	}

	if err := h.store.UpdateStoreMax(r.Context(), req.MaxByteSize); err != nil {
		apierrors.WriteError(w, apierrors.FromStoreError(err))
		return
	}
	h.persistConfig(func(c *config.Config) { c.SetStoreMax(req.MaxByteSize) })
	h.GetStore(w, r)
}
