package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u64(v uint64) *uint64 { return &v }

// seedIndex inserts ids with synthetic timestamps so ordering is under
// test control.
func seedIndex(x *index, entries ...msgEntry) {
	for _, e := range entries {
		x.insert(e.id, e.size)
	}
}

func TestIndexInvariants(t *testing.T) {
	x := newIndex(nil)
	seedIndex(x,
		msgEntry{id: gid(1, 10), size: 4},
		msgEntry{id: gid(2, 20), size: 6},
		msgEntry{id: gid(1, 30), size: 2},
	)

	assert.Equal(t, uint64(12), x.byteSize)
	assert.Equal(t, uint64(3), x.msgCount)
	assert.Equal(t, []uint32{1, 2}, x.priorities)

	var groupTotal uint64
	var groupMsgs uint64
	for _, g := range x.groups {
		groupTotal += g.byteSize
		groupMsgs += uint64(len(g.msgs))
		for _, e := range g.msgs {
			size, ok := x.sizes[e.id]
			require.True(t, ok, "every group member appears in the reverse map")
			assert.Equal(t, e.size, size)
		}
	}
	assert.Equal(t, x.byteSize, groupTotal)
	assert.Equal(t, x.msgCount, groupMsgs)
}

func TestIndexRemove_DestroysEmptyGroup(t *testing.T) {
	x := newIndex(nil)
	seedIndex(x, msgEntry{id: gid(5, 1), size: 3})

	size, ok := x.remove(gid(5, 1))
	require.True(t, ok)
	assert.Equal(t, uint64(3), size)
	assert.Empty(t, x.priorities)
	assert.Empty(t, x.groups)

	_, ok = x.remove(gid(5, 1))
	assert.False(t, ok)
}

func TestPlanInsert_NoCapsNoEvictions(t *testing.T) {
	x := newIndex(nil)
	victims, err := x.planInsert(1, 1<<40)
	require.NoError(t, err)
	assert.Empty(t, victims)
}

func TestPlanInsert_ExceedsStoreMax(t *testing.T) {
	x := newIndex(u64(10))
	_, err := x.planInsert(1, 11)
	assert.ErrorIs(t, err, ErrExceedsStoreMax)
}

func TestPlanInsert_ExceedsGroupMax(t *testing.T) {
	x := newIndex(nil)
	x.setGroupMax(1, u64(10))
	_, err := x.planInsert(1, 11)
	assert.ErrorIs(t, err, ErrExceedsGroupMax)

	// A cap on another group does not apply.
	victims, err := x.planInsert(2, 11)
	require.NoError(t, err)
	assert.Empty(t, victims)
}

func TestPlanInsert_GroupDefaultAppliesToEmptyGroup(t *testing.T) {
	x := newIndex(nil)
	x.setGroupMax(1, u64(10))
	x.setGroupMax(2, u64(20))

	_, err := x.planInsert(1, 11)
	assert.ErrorIs(t, err, ErrExceedsGroupMax)

	victims, err := x.planInsert(2, 11)
	require.NoError(t, err)
	assert.Empty(t, victims)
}

func TestPlanInsert_EvictsOldestSamePriority(t *testing.T) {
	x := newIndex(u64(10))
	seedIndex(x,
		msgEntry{id: gid(1, 10), size: 4},
		msgEntry{id: gid(1, 20), size: 4},
	)

	victims, err := x.planInsert(1, 4)
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, gid(1, 10), victims[0].id, "oldest of equal priority goes first")
}

func TestPlanInsert_EvictsLowestPriorityFirst(t *testing.T) {
	x := newIndex(u64(10))
	seedIndex(x,
		msgEntry{id: gid(2, 10), size: 4},
		msgEntry{id: gid(1, 20), size: 4},
	)

	victims, err := x.planInsert(3, 8)
	require.NoError(t, err)
	require.Len(t, victims, 2)
	assert.Equal(t, gid(1, 20), victims[0].id, "lowest priority evicts first regardless of age")
	assert.Equal(t, gid(2, 10), victims[1].id)
}

func TestPlanInsert_LacksPriority(t *testing.T) {
	x := newIndex(u64(10))
	seedIndex(x,
		msgEntry{id: gid(2, 10), size: 6},
		msgEntry{id: gid(2, 20), size: 4},
	)

	_, err := x.planInsert(1, 4)
	assert.ErrorIs(t, err, ErrLacksPriority)

	// Equal priority is allowed: older evicted first.
	victims, err := x.planInsert(2, 4)
	require.NoError(t, err)
	require.Len(t, victims, 1)
	assert.Equal(t, gid(2, 10), victims[0].id)
}

func TestPlanInsert_GroupCapWalksOnlyThatGroupDeficit(t *testing.T) {
	x := newIndex(nil)
	x.setGroupMax(2, u64(10))
	seedIndex(x,
		msgEntry{id: gid(1, 5), size: 100}, // other group, no store cap
		msgEntry{id: gid(2, 10), size: 6},
		msgEntry{id: gid(2, 20), size: 4},
	)

	victims, err := x.planInsert(2, 4)
	require.NoError(t, err)
	// Messages outside the capped group free no group bytes; with no
	// store deficit open they are skipped, not sacrificed.
	require.Len(t, victims, 1)
	assert.Equal(t, gid(2, 10), victims[0].id)
}

func TestPlanStoreShrink(t *testing.T) {
	x := newIndex(nil)
	seedIndex(x,
		msgEntry{id: gid(2, 10), size: 4},
		msgEntry{id: gid(1, 20), size: 4},
	)
	x.setStoreMax(u64(5))

	victims := x.planStoreShrink()
	require.Len(t, victims, 1)
	assert.Equal(t, gid(1, 20), victims[0].id, "administrative shrink prunes any priority")

	x.setStoreMax(u64(100))
	assert.Empty(t, x.planStoreShrink(), "never evicts below an already-satisfied cap")
}

func TestPlanGroupShrink(t *testing.T) {
	x := newIndex(nil)
	seedIndex(x,
		msgEntry{id: gid(1, 10), size: 4},
		msgEntry{id: gid(1, 20), size: 4},
		msgEntry{id: gid(2, 30), size: 4},
	)
	x.setGroupMax(1, u64(4))

	victims := x.planGroupShrink(1)
	require.Len(t, victims, 1)
	assert.Equal(t, gid(1, 10), victims[0].id, "oldest of the group goes first")
	assert.Empty(t, x.planGroupShrink(2), "uncapped group never shrinks")
}

func TestIndexGet(t *testing.T) {
	x := newIndex(nil)
	seedIndex(x,
		msgEntry{id: gid(1, 10), size: 1},
		msgEntry{id: gid(1, 20), size: 1},
		msgEntry{id: gid(2, 30), size: 1},
		msgEntry{id: gid(2, 40), size: 1},
	)

	// No filter: highest priority, oldest first.
	id, ok := x.get(nil, nil, false)
	require.True(t, ok)
	assert.Equal(t, gid(2, 30), id)

	// Reversed: newest within lowest priority.
	id, ok = x.get(nil, nil, true)
	require.True(t, ok)
	assert.Equal(t, gid(1, 20), id)

	// Priority filter.
	p := uint32(1)
	id, ok = x.get(&p, nil, false)
	require.True(t, ok)
	assert.Equal(t, gid(1, 10), id)
	id, ok = x.get(&p, nil, true)
	require.True(t, ok)
	assert.Equal(t, gid(1, 20), id)

	// Absent group.
	p = 9
	_, ok = x.get(&p, nil, false)
	assert.False(t, ok)

	// Direct id probe wins over other filters.
	probe := gid(1, 20)
	id, ok = x.get(&p, &probe, false)
	require.True(t, ok)
	assert.Equal(t, probe, id)

	missing := gid(3, 1)
	_, ok = x.get(nil, &missing, false)
	assert.False(t, ok)
}

func TestClearGroupDefaults_UncapsLiveGroup(t *testing.T) {
	x := newIndex(nil)
	x.setGroupMax(1, u64(10))
	seedIndex(x, msgEntry{id: gid(1, 10), size: 4})

	x.clearGroupDefaults(1)
	_, hasDefault := x.defaults[1]
	assert.False(t, hasDefault)
	assert.Nil(t, x.groups[1].maxByteSize)

	victims, err := x.planInsert(1, 100)
	require.NoError(t, err)
	assert.Empty(t, victims)
}
