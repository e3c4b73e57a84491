package core

import "sort"

// msgEntry pairs an id with its accounted size inside a group sequence.
type msgEntry struct {
	id   ID
	size uint64
}

// group is the per-priority bookkeeping record: the ordered id sequence,
// the resident byte count, and the optional per-group cap. Groups do not
// enforce their own cap; enforcement lives in the index so that the
// insert/evict pair stays transactional.
type group struct {
	priority    uint32
	byteSize    uint64
	maxByteSize *uint64
	msgs        []msgEntry // ordered by id total order, oldest first
}

func newGroup(priority uint32) *group {
	return &group{priority: priority}
}

// insert places id into the ordered sequence and adds size. Live inserts
// always append (the factory hands out monotone ids); recovery may replay
// ids out of position, so the slot is located by binary search.
func (g *group) insert(id ID, size uint64) {
	e := msgEntry{id: id, size: size}
	n := len(g.msgs)
	if n == 0 || g.msgs[n-1].id.Before(id) {
		g.msgs = append(g.msgs, e)
	} else {
		i := sort.Search(n, func(i int) bool { return id.Before(g.msgs[i].id) })
		g.msgs = append(g.msgs, msgEntry{})
		copy(g.msgs[i+1:], g.msgs[i:])
		g.msgs[i] = e
	}
	g.byteSize += size
}

// remove deletes id from the sequence and subtracts its size. Removing a
// non-member is a no-op returning false.
func (g *group) remove(id ID) bool {
	i := sort.Search(len(g.msgs), func(i int) bool { return !g.msgs[i].id.Before(id) })
	if i >= len(g.msgs) || g.msgs[i].id != id {
		return false
	}
	g.byteSize -= g.msgs[i].size
	g.msgs = append(g.msgs[:i], g.msgs[i+1:]...)
	return true
}

// peekOldest returns the first id of the sequence without mutating.
func (g *group) peekOldest() (ID, bool) {
	if len(g.msgs) == 0 {
		return ID{}, false
	}
	return g.msgs[0].id, true
}

// peekNewest returns the last id of the sequence without mutating.
func (g *group) peekNewest() (ID, bool) {
	if len(g.msgs) == 0 {
		return ID{}, false
	}
	return g.msgs[len(g.msgs)-1].id, true
}

func (g *group) empty() bool {
	return len(g.msgs) == 0
}
