package handlers

import (
	"net/http"

	apierrors "github.com/vitaliisemenov/msg-store/internal/api/errors"
)

// groupMsg is one message entry of a group introspection response.
type groupMsg struct {
	UUID     string `json:"uuid"`
	ByteSize uint64 `json:"byteSize"`
}

// groupResponse is the group introspection shape.
type groupResponse struct {
	Priority    uint32     `json:"priority"`
	ByteSize    uint64     `json:"byteSize"`
	MaxByteSize *uint64    `json:"maxByteSize,omitempty"`
	MsgCount    uint64     `json:"msgCount"`
	Messages    []groupMsg `json:"messages,omitempty"`
}

// GetGroup handles GET /api/group?priority=&includeMsgData=. An empty or
// absent group reports zero counts rather than an error.
func (h *Handlers) GetGroup(w http.ResponseWriter, r *http.Request) {
	priority, apiErr := parsePriority(r)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}

	resp := groupResponse{Priority: priority}
	if d, ok := h.store.GetGroupDefaults(priority); ok {
		resp.MaxByteSize = d.MaxByteSize
	}
	if info := h.store.GetGroup(priority); info != nil {
		resp.ByteSize = info.ByteSize
		resp.MaxByteSize = info.MaxByteSize
		resp.MsgCount = info.MsgCount
		if r.URL.Query().Get("includeMsgData") == "true" {
			for _, id := range info.IDs {
				m, err := h.store.Get(r.Context(), nil, &id, false)
				if err != nil || m == nil {
					continue
				}
				resp.Messages = append(resp.Messages, groupMsg{UUID: id.String(), ByteSize: m.Size})
			}
		}
	}
	writeJSON(w, resp)
}

// DeleteGroup handles DELETE /api/group?priority=.
func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	priority, apiErr := parsePriority(r)
	if apiErr != nil {
		apierrors.WriteError(w, apiErr)
		return
	}
	if err := h.store.DeleteGroup(r.Context(), priority); err != nil {
		apierrors.WriteError(w, apierrors.FromStoreError(err))
		return
	}
	writeJSON(w, map[string]uint32{"priority": priority})
}
