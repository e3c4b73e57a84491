package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/vitaliisemenov/msg-store/internal/api/errors"
	"github.com/vitaliisemenov/msg-store/internal/core"
)

// statsResponse mirrors the lifetime counters.
type statsResponse struct {
	Inserted uint64 `json:"inserted"`
	Deleted  uint64 `json:"deleted"`
	Pruned   uint64 `json:"pruned"`
}

// statsUpdateRequest is the PUT /api/stats body. With add=true the
// fields are signed deltas; otherwise absolute replacements, absent
// fields keeping their current value.
type statsUpdateRequest struct {
	Add      bool   `json:"add"`
	Inserted *int64 `json:"inserted"`
	Deleted  *int64 `json:"deleted"`
	Pruned   *int64 `json:"pruned"`
}

// GetStats handles GET /api/stats.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	s := h.store.Stats()
	writeJSON(w, statsResponse{Inserted: s.Inserted, Deleted: s.Deleted, Pruned: s.Pruned})
}

// UpdateStats handles PUT /api/stats.
func (h *Handlers) UpdateStats(w http.ResponseWriter, r *http.Request) {
	var req statsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.WriteError(w, apierrors.ValidationError("malformed stats body"))
		return
	}

	if req.Add {
		var inserted, deleted, pruned int64
		if req.Inserted != nil {
			inserted = *req.Inserted
		}
		if req.Deleted != nil {
			deleted = *req.Deleted
		}
		if req.Pruned != nil {
			pruned = *req.Pruned
		}
		h.store.AddStats(inserted, deleted, pruned)
	} else {
		cur := h.store.Stats()
		if req.Inserted != nil {
			if *req.Inserted < 0 {
				apierrors.WriteError(w, apierrors.ValidationError("counters cannot be set negative"))
				return
			}
			cur.Inserted = uint64(*req.Inserted)
		}
		if req.Deleted != nil {
			if *req.Deleted < 0 {
				apierrors.WriteError(w, apierrors.ValidationError("counters cannot be set negative"))
				return
			}
			cur.Deleted = uint64(*req.Deleted)
		}
		if req.Pruned != nil {
			if *req.Pruned < 0 {
				apierrors.WriteError(w, apierrors.ValidationError("counters cannot be set negative"))
				return
			}
			cur.Pruned = uint64(*req.Pruned)
		}
		h.store.SetStats(core.Stats{Inserted: cur.Inserted, Deleted: cur.Deleted, Pruned: cur.Pruned})
	}

	s := h.store.Stats()
	writeJSON(w, statsResponse{Inserted: s.Inserted, Deleted: s.Deleted, Pruned: s.Pruned})
}

// ResetStats handles DELETE /api/stats.
func (h *Handlers) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.store.ResetStats()
	writeJSON(w, statsResponse{})
}
