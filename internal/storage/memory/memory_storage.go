// Package memory implements core.MsgStorage with an in-process map.
// Nothing is durable: restart, crash, or pod eviction loses every
// payload. Use for development, tests, or deployments that accept a
// volatile buffer.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/vitaliisemenov/msg-store/internal/core"
)

// MsgStorage is a map-backed persistence backend keyed by id text form.
// Thread-safe.
type MsgStorage struct {
	mu     sync.RWMutex
	msgs   map[string][]byte
	logger *slog.Logger
}

// NewMsgStorage creates the in-memory backend.
func NewMsgStorage(logger *slog.Logger) *MsgStorage {
	logger.Warn("in-memory message storage created, payloads will NOT survive a restart")
	return &MsgStorage{
		msgs:   make(map[string][]byte),
		logger: logger,
	}
}

// Add stores a copy of payload under id.
func (m *MsgStorage) Add(_ context.Context, id core.ID, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(payload))
	copy(cp, payload)
	m.msgs[id.String()] = cp
	return nil
}

// Get returns the payload for id, or core.ErrMsgNotFound.
func (m *MsgStorage) Get(_ context.Context, id core.ID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payload, ok := m.msgs[id.String()]
	if !ok {
		return nil, core.ErrMsgNotFound
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	return cp, nil
}

// Del removes the payload for id, or returns core.ErrMsgNotFound.
func (m *MsgStorage) Del(_ context.Context, id core.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.msgs[id.String()]; !ok {
		return core.ErrMsgNotFound
	}
	delete(m.msgs, id.String())
	return nil
}

// Fetch enumerates stored messages ascending in id total order.
func (m *MsgStorage) Fetch(_ context.Context) ([]core.FetchedMsg, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]core.FetchedMsg, 0, len(m.msgs))
	for key, payload := range m.msgs {
		id, err := core.ParseID(key)
		if err != nil {
			return nil, err
		}
		out = append(out, core.FetchedMsg{ID: id, Size: uint64(len(payload))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Before(out[j].ID) })
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (m *MsgStorage) Close() error { return nil }

// Len reports the number of stored messages. Test helper.
func (m *MsgStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.msgs)
}
