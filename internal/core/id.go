package core

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxPriority is the highest priority a message may carry.
const MaxPriority uint32 = 1<<31 - 1

// ID uniquely names a message. The tuple orders messages store-wide:
// priority descending, then creation time ascending, then sequence,
// then node. IDs are immutable once created.
type ID struct {
	Priority  uint32
	Timestamp int64 // milliseconds since epoch
	Sequence  uint16
	Node      uint16
}

// String renders the dashed text form "p-t-s-n" used as the persistence key.
func (id ID) String() string {
	return fmt.Sprintf("%d-%d-%d-%d", id.Priority, id.Timestamp, id.Sequence, id.Node)
}

// Before reports whether id orders strictly before other: higher priority
// first, then older, then lower sequence, then lower node.
func (id ID) Before(other ID) bool {
	if id.Priority != other.Priority {
		return id.Priority > other.Priority
	}
	if id.Timestamp != other.Timestamp {
		return id.Timestamp < other.Timestamp
	}
	if id.Sequence != other.Sequence {
		return id.Sequence < other.Sequence
	}
	return id.Node < other.Node
}

// ParseID parses the dashed text form produced by String.
func ParseID(s string) (ID, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 4 {
		return ID{}, fmt.Errorf("%w: id %q must have 4 dash-separated fields", ErrMalformedID, s)
	}
	priority, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil || uint32(priority) > MaxPriority {
		return ID{}, fmt.Errorf("%w: bad priority in %q", ErrMalformedID, s)
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || ts < 0 {
		return ID{}, fmt.Errorf("%w: bad timestamp in %q", ErrMalformedID, s)
	}
	seq, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return ID{}, fmt.Errorf("%w: bad sequence in %q", ErrMalformedID, s)
	}
	node, err := strconv.ParseUint(parts[3], 10, 16)
	if err != nil {
		return ID{}, fmt.Errorf("%w: bad node in %q", ErrMalformedID, s)
	}
	return ID{
		Priority:  uint32(priority),
		Timestamp: ts,
		Sequence:  uint16(seq),
		Node:      uint16(node),
	}, nil
}

// IDFactory allocates IDs. The (timestamp, sequence) pair is assigned
// under a mutex so two allocations on the same node never collide and
// always order by allocation time. Producers sharing a backend must run
// with distinct node values.
type IDFactory struct {
	mu     sync.Mutex
	node   uint16
	lastMs int64
	seq    uint16
	now    func() time.Time
}

// NewIDFactory creates a factory bound to a process-wide node identifier.
func NewIDFactory(node uint16) *IDFactory {
	return &IDFactory{node: node, now: time.Now}
}

// New allocates an identifier for the given priority. Two successive calls
// with the same priority return ids with the first ordered before the
// second. The sequence counter resets each millisecond and rolls over
// within one.
func (f *IDFactory) New(priority uint32) (ID, error) {
	if priority > MaxPriority {
		return ID{}, fmt.Errorf("%w: priority %d out of range", ErrMalformedID, priority)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ms := f.now().UnixMilli()
	if ms == f.lastMs {
		f.seq++
	} else {
		f.lastMs = ms
		f.seq = 0
	}

	return ID{
		Priority:  priority,
		Timestamp: ms,
		Sequence:  f.seq,
		Node:      f.node,
	}, nil
}

// Node returns the factory's node identifier.
func (f *IDFactory) Node() uint16 {
	return f.node
}
