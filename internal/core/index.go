package core

import "sort"

// GroupDefaults carries the per-priority cap that outlives group
// emptiness. A group picks its cap up from the defaults record when it is
// lazily created.
type GroupDefaults struct {
	MaxByteSize *uint64
}

// index is the aggregate order over all resident messages: the group map,
// the defaults map, and the reverse id map. Every method must run under
// the store lock; the index itself holds no mutex.
type index struct {
	byteSize    uint64
	maxByteSize *uint64
	msgCount    uint64
	groups      map[uint32]*group
	defaults    map[uint32]GroupDefaults
	priorities  []uint32       // ascending priorities of nonempty groups
	sizes       map[ID]uint64  // resident ids and their accounted sizes
}

func newIndex(maxByteSize *uint64) *index {
	return &index{
		maxByteSize: maxByteSize,
		groups:      make(map[uint32]*group),
		defaults:    make(map[uint32]GroupDefaults),
		sizes:       make(map[ID]uint64),
	}
}

// groupCap resolves the effective cap for a priority: the live group's
// cap when the group exists, the defaults record otherwise.
func (x *index) groupCap(priority uint32) *uint64 {
	if g, ok := x.groups[priority]; ok {
		return g.maxByteSize
	}
	if d, ok := x.defaults[priority]; ok {
		return d.MaxByteSize
	}
	return nil
}

// planInsert runs the admission algorithm for an incoming (priority,
// size) pair and returns the eviction set required to admit it. The
// index is not mutated. Errors: ErrExceedsGroupMax, ErrExceedsStoreMax,
// ErrLacksPriority.
func (x *index) planInsert(priority uint32, size uint64) ([]msgEntry, error) {
	if gcap := x.groupCap(priority); gcap != nil && size > *gcap {
		return nil, ErrExceedsGroupMax
	}
	if x.maxByteSize != nil && size > *x.maxByteSize {
		return nil, ErrExceedsStoreMax
	}

	groupNeed := int64(0)
	if gcap := x.groupCap(priority); gcap != nil {
		cur := uint64(0)
		if g, ok := x.groups[priority]; ok {
			cur = g.byteSize
		}
		groupNeed = int64(cur) + int64(size) - int64(*gcap)
	}
	storeNeed := int64(0)
	if x.maxByteSize != nil {
		storeNeed = int64(x.byteSize) + int64(size) - int64(*x.maxByteSize)
	}
	if groupNeed <= 0 && storeNeed <= 0 {
		return nil, nil
	}

	// Walk in eviction order, taking a candidate only when it reduces a
	// deficit that is still open: any message frees store bytes, only
	// messages of the incoming priority free group bytes.
	var victims []msgEntry
walk:
	for _, p := range x.priorities {
		for _, e := range x.groups[p].msgs {
			if groupNeed <= 0 && storeNeed <= 0 {
				break walk
			}
			if storeNeed <= 0 && e.id.Priority != priority {
				continue
			}
			victims = append(victims, e)
			storeNeed -= int64(e.size)
			if e.id.Priority == priority {
				groupNeed -= int64(e.size)
			}
		}
	}

	// The store never sacrifices a strictly more important message for a
	// less important newcomer. Equal priority is fine: older goes first.
	for _, v := range victims {
		if v.id.Priority > priority {
			return nil, ErrLacksPriority
		}
	}
	return victims, nil
}

// planGroupShrink returns the oldest messages of one group that must go
// for the group to fit its cap again. Administrative: no priority
// inversion check.
func (x *index) planGroupShrink(priority uint32) []msgEntry {
	g, ok := x.groups[priority]
	if !ok || g.maxByteSize == nil || g.byteSize <= *g.maxByteSize {
		return nil
	}
	need := int64(g.byteSize) - int64(*g.maxByteSize)
	var victims []msgEntry
	for _, e := range g.msgs {
		if need <= 0 {
			break
		}
		victims = append(victims, e)
		need -= int64(e.size)
	}
	return victims
}

// planStoreShrink returns the eviction-order walk that brings the whole
// store back under its cap. Administrative: no priority inversion check.
func (x *index) planStoreShrink() []msgEntry {
	if x.maxByteSize == nil || x.byteSize <= *x.maxByteSize {
		return nil
	}
	need := int64(x.byteSize) - int64(*x.maxByteSize)
	return x.walkEvictionOrder(func(e msgEntry) bool {
		if need <= 0 {
			return false
		}
		need -= int64(e.size)
		return true
	})
}

// walkEvictionOrder visits resident messages lowest priority first,
// oldest first within a priority (the mirror of retrieval order),
// collecting entries while accept keeps returning true.
func (x *index) walkEvictionOrder(accept func(msgEntry) bool) []msgEntry {
	var out []msgEntry
	for _, p := range x.priorities {
		for _, e := range x.groups[p].msgs {
			if !accept(e) {
				return out
			}
			out = append(out, e)
		}
	}
	return out
}

// insert adds id to its group, creating the group lazily with the cap
// from the defaults record.
func (x *index) insert(id ID, size uint64) {
	g, ok := x.groups[id.Priority]
	if !ok {
		g = newGroup(id.Priority)
		if d, has := x.defaults[id.Priority]; has {
			g.maxByteSize = d.MaxByteSize
		}
		x.groups[id.Priority] = g
		x.addPriority(id.Priority)
	}
	g.insert(id, size)
	x.sizes[id] = size
	x.byteSize += size
	x.msgCount++
}

// remove deletes id, destroying its group when the last message leaves.
// Returns the accounted size and whether the id was resident.
func (x *index) remove(id ID) (uint64, bool) {
	size, ok := x.sizes[id]
	if !ok {
		return 0, false
	}
	g := x.groups[id.Priority]
	g.remove(id)
	if g.empty() {
		delete(x.groups, id.Priority)
		x.dropPriority(id.Priority)
	}
	delete(x.sizes, id)
	x.byteSize -= size
	x.msgCount--
	return size, true
}

// has reports residency of id.
func (x *index) has(id ID) bool {
	_, ok := x.sizes[id]
	return ok
}

// get answers the ordering query. With an id it is a membership probe;
// with a priority it returns the group endpoint; with neither it scans
// priorities from the top (bottom when reversed) and returns the first
// nonempty group's oldest (newest when reversed) id.
func (x *index) get(priority *uint32, id *ID, reverse bool) (ID, bool) {
	if id != nil {
		if x.has(*id) {
			return *id, true
		}
		return ID{}, false
	}
	if priority != nil {
		g, ok := x.groups[*priority]
		if !ok {
			return ID{}, false
		}
		if reverse {
			return g.peekNewest()
		}
		return g.peekOldest()
	}
	if len(x.priorities) == 0 {
		return ID{}, false
	}
	if reverse {
		return x.groups[x.priorities[0]].peekNewest()
	}
	return x.groups[x.priorities[len(x.priorities)-1]].peekOldest()
}

// setStoreMax replaces the store-wide cap.
func (x *index) setStoreMax(max *uint64) {
	x.maxByteSize = max
}

// setGroupMax records a defaults entry and applies the cap to the live
// group if one exists. Defaults outlive group emptiness.
func (x *index) setGroupMax(priority uint32, max *uint64) {
	x.defaults[priority] = GroupDefaults{MaxByteSize: max}
	if g, ok := x.groups[priority]; ok {
		g.maxByteSize = max
	}
}

// clearGroupDefaults drops the defaults record and uncaps the live group.
func (x *index) clearGroupDefaults(priority uint32) {
	delete(x.defaults, priority)
	if g, ok := x.groups[priority]; ok {
		g.maxByteSize = nil
	}
}

// groupEntries returns the ordered entries of one group, or nil.
func (x *index) groupEntries(priority uint32) []msgEntry {
	g, ok := x.groups[priority]
	if !ok {
		return nil
	}
	out := make([]msgEntry, len(g.msgs))
	copy(out, g.msgs)
	return out
}

func (x *index) addPriority(p uint32) {
	i := sort.Search(len(x.priorities), func(i int) bool { return x.priorities[i] >= p })
	x.priorities = append(x.priorities, 0)
	copy(x.priorities[i+1:], x.priorities[i:])
	x.priorities[i] = p
}

func (x *index) dropPriority(p uint32) {
	i := sort.Search(len(x.priorities), func(i int) bool { return x.priorities[i] >= p })
	if i < len(x.priorities) && x.priorities[i] == p {
		x.priorities = append(x.priorities[:i], x.priorities[i+1:]...)
	}
}
