// Package handlers implements the HTTP surface of the message store:
// message insert/fetch/delete, group and defaults administration,
// statistics, and store-wide introspection.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/vitaliisemenov/msg-store/internal/api/errors"
	"github.com/vitaliisemenov/msg-store/internal/config"
	"github.com/vitaliisemenov/msg-store/internal/core"
)

// Handlers fans HTTP requests into the store facade.
type Handlers struct {
	store  *core.Store
	cfg    *config.Config
	logger *slog.Logger
}

// New wires the handler set.
func New(store *core.Store, cfg *config.Config, logger *slog.Logger) *Handlers {
	return &Handlers{store: store, cfg: cfg, logger: logger}
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// persistConfig writes administrative cap changes back to the config
// file when self-persist is enabled. A write failure is logged, not
// surfaced: the in-memory change already took effect.
func (h *Handlers) persistConfig(mutate func(*config.Config)) {
	if h.cfg == nil || !h.cfg.SelfPersist() {
		return
	}
	mutate(h.cfg)
	if err := h.cfg.Save(); err != nil {
		h.logger.Error("config self-persist failed", "error", err)
	}
}

// parsePriority reads a required priority query parameter.
func parsePriority(r *http.Request) (uint32, *apierrors.APIError) {
	raw := r.URL.Query().Get("priority")
	if raw == "" {
		return 0, apierrors.ValidationError("priority is required")
	}
	p, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || uint32(p) > core.MaxPriority {
		return 0, apierrors.ValidationError("priority must be an integer in [0, 2147483647]")
	}
	return uint32(p), nil
}
