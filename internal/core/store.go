// Package core implements the priority message store engine: identifier
// allocation, the group/index bookkeeping, budget-driven eviction, and
// the facade that coordinates persistence and blob backends around the
// index lock.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// StoreObserver receives gauge and counter updates alongside store
// operations. Implementations live in pkg/metrics; the engine never
// names a concrete metrics backend.
type StoreObserver interface {
	RecordState(byteSize, msgCount, groupCount uint64)
	RecordInserted(n uint64)
	RecordDeleted(n uint64)
	RecordPruned(n uint64)
}

// BlobMeta is the small record the persistence backend keeps for a
// blob-backed message so recovery never scans the blob store for sizes.
type BlobMeta struct {
	FileSize uint64 `json:"fileSize"`
	FileName string `json:"fileName,omitempty"`
}

// Msg is the result of a retrieval: the id, the accounted size, and
// either the payload bytes or a blob marker for streamed messages.
type Msg struct {
	ID       ID
	Size     uint64
	Payload  []byte
	Blob     bool
	FileName string
}

// GroupInfo is a group introspection snapshot.
type GroupInfo struct {
	Priority    uint32
	ByteSize    uint64
	MaxByteSize *uint64
	MsgCount    uint64
	IDs         []ID
}

// StoreInfo is a store-wide introspection snapshot.
type StoreInfo struct {
	ByteSize    uint64
	MaxByteSize *uint64
	MsgCount    uint64
	GroupCount  uint64
	Groups      []GroupInfo
	Defaults    map[uint32]GroupDefaults
}

// StoreConfig carries the engine's startup parameters.
type StoreConfig struct {
	NodeID      uint16
	MaxByteSize *uint64
	// Groups seeds per-priority defaults before recovery runs.
	Groups map[uint32]*uint64
	// CacheSize bounds the payload read cache; zero disables it.
	CacheSize int
}

// Store is the public facade over the engine. It owns the single
// exclusive lock all index reads and mutations run behind. Streamed blob
// writes and payload reads happen outside it; the persistence write of a
// non-streamed payload happens under it, before the index mutation.
type Store struct {
	mu       sync.Mutex
	idx      *index
	ids      *IDFactory
	stats    Stats
	db       MsgStorage
	blob     BlobStorage // nil when file storage is not configured
	blobMeta map[ID]BlobMeta
	cache    *lru.Cache[string, []byte]
	logger   *slog.Logger
	observer StoreObserver
}

// NewStore wires the engine to its backends. blob may be nil; observer
// may be nil.
func NewStore(cfg StoreConfig, db MsgStorage, blob BlobStorage, logger *slog.Logger, observer StoreObserver) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("msg storage backend is required")
	}
	s := &Store{
		idx:      newIndex(cfg.MaxByteSize),
		ids:      NewIDFactory(cfg.NodeID),
		db:       db,
		blob:     blob,
		blobMeta: make(map[ID]BlobMeta),
		logger:   logger,
		observer: observer,
	}
	for priority, max := range cfg.Groups {
		s.idx.setGroupMax(priority, max)
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, []byte](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("payload cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Add inserts a payload at the given priority, evicting lower-ranked
// messages first when a budget requires it. The persistence write and
// the eviction deletes land before any index mutation, so a backend
// failure leaves the in-memory state unchanged.
func (s *Store) Add(ctx context.Context, priority uint32, payload []byte) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := uint64(len(payload))
	victims, err := s.idx.planInsert(priority, size)
	if err != nil {
		return ID{}, err
	}
	id, err := s.ids.New(priority)
	if err != nil {
		return ID{}, err
	}
	if err := s.deleteBackends(ctx, victims); err != nil {
		return ID{}, err
	}
	if err := s.db.Add(ctx, id, payload); err != nil {
		return ID{}, &PersistenceError{Op: "add", ID: id.String(), Cause: err}
	}

	s.applyEvictions(victims)
	s.idx.insert(id, size)
	s.stats.Add(1, 0, 0)
	if s.cache != nil {
		s.cache.Add(id.String(), payload)
	}
	if s.observer != nil {
		s.observer.RecordInserted(1)
	}
	s.recordState()

	s.logger.Debug("message inserted",
		"uuid", id.String(),
		"priority", priority,
		"byte_size", size,
		"pruned", len(victims),
	)
	return id, nil
}

// AddStream reserves capacity for a streamed payload under the lock,
// then writes the bytes to the blob store with the lock released. The
// producer-declared size is authoritative for accounting. A blob failure
// or a short stream rolls the reservation back; a concurrent Get during
// the streaming window may observe the id and then miss the payload,
// which callers treat as a normal race.
func (s *Store) AddStream(ctx context.Context, priority uint32, declaredSize uint64, fileName string, r io.Reader) (ID, error) {
	if s.blob == nil {
		return ID{}, ErrFileStorageDisabled
	}

	// Reserve: admission, eviction, metadata write, index mutation.
	s.mu.Lock()
	victims, err := s.idx.planInsert(priority, declaredSize)
	if err != nil {
		s.mu.Unlock()
		return ID{}, err
	}
	id, err := s.ids.New(priority)
	if err != nil {
		s.mu.Unlock()
		return ID{}, err
	}
	if err := s.deleteBackends(ctx, victims); err != nil {
		s.mu.Unlock()
		return ID{}, err
	}
	meta := BlobMeta{FileSize: declaredSize, FileName: fileName}
	record, _ := json.Marshal(meta)
	if err := s.db.Add(ctx, id, record); err != nil {
		s.mu.Unlock()
		return ID{}, &PersistenceError{Op: "add", ID: id.String(), Cause: err}
	}
	s.applyEvictions(victims)
	s.idx.insert(id, declaredSize)
	s.blobMeta[id] = meta
	s.stats.Add(1, 0, 0)
	if s.observer != nil {
		s.observer.RecordInserted(1)
	}
	s.recordState()
	s.mu.Unlock()

	// Stream outside the lock.
	n, streamErr := s.blob.Add(ctx, id, fileName, r)
	if streamErr == nil && uint64(n) < declaredSize {
		streamErr = &PersistenceError{Op: "add", ID: id.String(), Cause: &ShortStreamError{
			ID:       id.String(),
			Declared: declaredSize,
			Actual:   uint64(n),
		}}
	}
	if streamErr == nil {
		s.logger.Debug("message streamed to file storage",
			"uuid", id.String(),
			"priority", priority,
			"declared_size", declaredSize,
			"actual_size", n,
		)
		return id, nil
	}

	// Commit failed: remove the phantom id and refund the reservation.
	s.mu.Lock()
	if _, ok := s.idx.remove(id); ok {
		delete(s.blobMeta, id)
		s.stats.Add(-1, 0, 0)
	}
	s.recordState()
	s.mu.Unlock()

	if err := s.db.Del(ctx, id); err != nil && !errors.Is(err, ErrMsgNotFound) {
		s.logger.Error("rollback: metadata delete failed", "uuid", id.String(), "error", err)
	}
	if err := s.blob.Del(ctx, id); err != nil && !errors.Is(err, ErrMsgNotFound) {
		s.logger.Error("rollback: partial blob delete failed", "uuid", id.String(), "error", err)
	}
	s.logger.Warn("streamed insert rolled back", "uuid", id.String(), "error", streamErr)

	var blobErr *BlobError
	if errors.As(streamErr, &blobErr) {
		return ID{}, streamErr
	}
	var perr *PersistenceError
	if errors.As(streamErr, &perr) {
		return ID{}, streamErr
	}
	return ID{}, &BlobError{Op: "add", ID: id.String(), Cause: streamErr}
}

// Get answers a retrieval query without mutating state. All arguments
// are optional: an id is a direct probe, a priority selects the group
// endpoint, neither selects across groups highest priority first (lowest
// when reversed). A nil result with a nil error means no match.
func (s *Store) Get(ctx context.Context, priority *uint32, id *ID, reverse bool) (*Msg, error) {
	s.mu.Lock()
	found, ok := s.idx.get(priority, id, reverse)
	if !ok {
		s.mu.Unlock()
		return nil, nil
	}
	size := s.idx.sizes[found]
	meta, isBlob := s.blobMeta[found]
	s.mu.Unlock()

	msg := &Msg{ID: found, Size: size}
	if isBlob {
		msg.Blob = true
		msg.FileName = meta.FileName
		return msg, nil
	}

	// Payload fetch happens outside the lock.
	key := found.String()
	if s.cache != nil {
		if payload, hit := s.cache.Get(key); hit {
			msg.Payload = payload
			return msg, nil
		}
	}
	payload, err := s.db.Get(ctx, found)
	if err != nil {
		if errors.Is(err, ErrMsgNotFound) {
			return nil, ErrMsgNotFound
		}
		return nil, &PersistenceError{Op: "get", ID: key, Cause: err}
	}
	if s.cache != nil {
		s.cache.Add(key, payload)
	}
	msg.Payload = payload
	return msg, nil
}

// OpenBlob opens the streamed payload of a blob-backed message.
func (s *Store) OpenBlob(ctx context.Context, id ID) (io.ReadCloser, error) {
	if s.blob == nil {
		return nil, ErrFileStorageDisabled
	}
	r, err := s.blob.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMsgNotFound) {
			return nil, ErrMsgNotFound
		}
		return nil, &BlobError{Op: "get", ID: id.String(), Cause: err}
	}
	return r, nil
}

// Del removes one message explicitly. Counted as deleted, not pruned.
func (s *Store) Del(ctx context.Context, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.idx.has(id) {
		return ErrMsgNotFound
	}
	if err := s.deleteBackends(ctx, []msgEntry{{id: id, size: s.idx.sizes[id]}}); err != nil {
		return err
	}
	s.idx.remove(id)
	delete(s.blobMeta, id)
	if s.cache != nil {
		s.cache.Remove(id.String())
	}
	s.stats.Add(0, 1, 0)
	if s.observer != nil {
		s.observer.RecordDeleted(1)
	}
	s.recordState()
	s.logger.Debug("message deleted", "uuid", id.String())
	return nil
}

// GetGroup returns a group snapshot, or nil when the group is empty.
func (s *Store) GetGroup(priority uint32) *GroupInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupInfoLocked(priority)
}

// DeleteGroup removes every message of one priority. Counted as deleted.
func (s *Store) DeleteGroup(ctx context.Context, priority uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.idx.groupEntries(priority)
	if len(entries) == 0 {
		return nil
	}
	if err := s.deleteBackends(ctx, entries); err != nil {
		return err
	}
	for _, e := range entries {
		s.idx.remove(e.id)
		delete(s.blobMeta, e.id)
		if s.cache != nil {
			s.cache.Remove(e.id.String())
		}
	}
	s.stats.Add(0, int64(len(entries)), 0)
	if s.observer != nil {
		s.observer.RecordDeleted(uint64(len(entries)))
	}
	s.recordState()
	s.logger.Info("group deleted", "priority", priority, "msg_count", len(entries))
	return nil
}

// UpdateStoreMax replaces the store-wide byte cap and prunes newly-excess
// messages, lowest priority first. Administrative: the priority inversion
// check does not apply.
func (s *Store) UpdateStoreMax(ctx context.Context, max *uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idx.setStoreMax(max)
	return s.shrinkLocked(ctx, s.idx.planStoreShrink())
}

// UpdateGroupDefaults sets the per-priority cap. The default persists
// across group emptiness; lowering it below current usage prunes the
// group's oldest messages.
func (s *Store) UpdateGroupDefaults(ctx context.Context, priority uint32, max *uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.idx.setGroupMax(priority, max)
	return s.shrinkLocked(ctx, s.idx.planGroupShrink(priority))
}

// GetGroupDefaults returns the defaults record for a priority.
func (s *Store) GetGroupDefaults(priority uint32) (GroupDefaults, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.idx.defaults[priority]
	return d, ok
}

// DeleteGroupDefaults drops the defaults record and uncaps the live group.
func (s *Store) DeleteGroupDefaults(priority uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idx.clearGroupDefaults(priority)
}

// Stats returns a copy of the counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Get()
}

// SetStats replaces the counters wholesale.
func (s *Store) SetStats(v Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Set(v)
}

// AddStats applies signed deltas, saturating at the numeric bounds.
func (s *Store) AddStats(inserted, deleted, pruned int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Add(inserted, deleted, pruned)
}

// ResetStats zeroes the counters.
func (s *Store) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.Reset()
}

// Info returns a store-wide snapshot for introspection.
func (s *Store) Info() StoreInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := StoreInfo{
		ByteSize:    s.idx.byteSize,
		MaxByteSize: s.idx.maxByteSize,
		MsgCount:    s.idx.msgCount,
		GroupCount:  uint64(len(s.idx.priorities)),
		Defaults:    make(map[uint32]GroupDefaults, len(s.idx.defaults)),
	}
	for p, d := range s.idx.defaults {
		info.Defaults[p] = d
	}
	for _, p := range s.idx.priorities {
		if gi := s.groupInfoLocked(p); gi != nil {
			info.Groups = append(info.Groups, *gi)
		}
	}
	return info
}

// Recover rebuilds the index from the persistence backend, replaying
// messages in id total order through the admission path so that caps
// lowered across a restart still win. Messages that no longer fit are
// deleted from the backend and counted as pruned.
func (s *Store) Recover(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blobNames := make(map[ID]string)
	if s.blob != nil {
		entries, err := s.blob.List(ctx)
		if err != nil {
			return &BlobError{Op: "list", Cause: err}
		}
		for _, e := range entries {
			blobNames[e.ID] = e.Name
		}
	}

	msgs, err := s.db.Fetch(ctx)
	if err != nil {
		return &PersistenceError{Op: "fetch", Cause: err}
	}

	recovered, dropped := 0, 0
	for _, m := range msgs {
		size := m.Size
		var meta *BlobMeta
		if _, isBlob := blobNames[m.ID]; isBlob {
			record, err := s.db.Get(ctx, m.ID)
			if err != nil {
				return &PersistenceError{Op: "get", ID: m.ID.String(), Cause: err}
			}
			var bm BlobMeta
			if err := json.Unmarshal(record, &bm); err != nil {
				return &PersistenceError{Op: "get", ID: m.ID.String(),
					Cause: fmt.Errorf("corrupt blob metadata: %w", err)}
			}
			meta = &bm
			size = bm.FileSize
		}

		victims, err := s.idx.planInsert(m.ID.Priority, size)
		if err != nil {
			if !IsAdmissionError(err) {
				return err
			}
			// Caps shrank while the process was down; the message no
			// longer fits.
			if derr := s.deleteBackends(ctx, []msgEntry{{id: m.ID, size: size}}); derr != nil {
				return derr
			}
			s.stats.Add(0, 0, 1)
			dropped++
			continue
		}
		if err := s.deleteBackends(ctx, victims); err != nil {
			return err
		}
		s.applyEvictions(victims)
		s.idx.insert(m.ID, size)
		if meta != nil {
			s.blobMeta[m.ID] = *meta
		}
		s.stats.Add(1, 0, 0)
		recovered++
	}

	// Blobs with no metadata record are orphans from an interrupted
	// streamed insert; sweep them.
	for id := range blobNames {
		if !s.idx.has(id) {
			if err := s.blob.Del(ctx, id); err != nil && !errors.Is(err, ErrMsgNotFound) {
				s.logger.Warn("orphan blob sweep failed", "uuid", id.String(), "error", err)
			}
		}
	}

	s.recordState()
	s.logger.Info("store recovered",
		"messages", recovered,
		"dropped", dropped,
		"byte_size", s.idx.byteSize,
		"groups", len(s.idx.priorities),
	)
	return nil
}

// NodeID returns the identifier factory's node value.
func (s *Store) NodeID() uint16 {
	return s.ids.Node()
}

// FileStorageEnabled reports whether a blob backend is configured.
func (s *Store) FileStorageEnabled() bool {
	return s.blob != nil
}

// deleteBackends removes the victims' payloads from the persistence
// backend (and blobs, where present). Runs before any index mutation so
// a failure leaves the in-memory state unchanged.
func (s *Store) deleteBackends(ctx context.Context, victims []msgEntry) error {
	for _, v := range victims {
		if err := s.db.Del(ctx, v.id); err != nil && !errors.Is(err, ErrMsgNotFound) {
			return &PersistenceError{Op: "del", ID: v.id.String(), Cause: err}
		}
		if _, isBlob := s.blobMeta[v.id]; isBlob {
			if err := s.blob.Del(ctx, v.id); err != nil && !errors.Is(err, ErrMsgNotFound) {
				return &BlobError{Op: "del", ID: v.id.String(), Cause: err}
			}
		}
	}
	return nil
}

// applyEvictions drops victims from the index and counts them as pruned.
func (s *Store) applyEvictions(victims []msgEntry) {
	for _, v := range victims {
		s.idx.remove(v.id)
		delete(s.blobMeta, v.id)
		if s.cache != nil {
			s.cache.Remove(v.id.String())
		}
	}
	if n := len(victims); n > 0 {
		s.stats.Add(0, 0, int64(n))
		if s.observer != nil {
			s.observer.RecordPruned(uint64(n))
		}
	}
}

// shrinkLocked prunes the victims of an administrative cap change.
func (s *Store) shrinkLocked(ctx context.Context, victims []msgEntry) error {
	if len(victims) == 0 {
		s.recordState()
		return nil
	}
	if err := s.deleteBackends(ctx, victims); err != nil {
		return err
	}
	s.applyEvictions(victims)
	s.recordState()
	s.logger.Info("cap change pruned messages", "pruned", len(victims))
	return nil
}

func (s *Store) groupInfoLocked(priority uint32) *GroupInfo {
	g, ok := s.idx.groups[priority]
	if !ok {
		return nil
	}
	info := &GroupInfo{
		Priority:    priority,
		ByteSize:    g.byteSize,
		MaxByteSize: g.maxByteSize,
		MsgCount:    uint64(len(g.msgs)),
	}
	for _, e := range g.msgs {
		info.IDs = append(info.IDs, e.id)
	}
	return info
}

func (s *Store) recordState() {
	if s.observer != nil {
		s.observer.RecordState(s.idx.byteSize, s.idx.msgCount, uint64(len(s.idx.priorities)))
	}
}
