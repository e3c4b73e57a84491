package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDString_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   ID
	}{
		{"zero", ID{}},
		{"typical", ID{Priority: 2, Timestamp: 1700000000123, Sequence: 7, Node: 3}},
		{"max_priority", ID{Priority: MaxPriority, Timestamp: 1, Sequence: 65535, Node: 65535}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParseID(tt.id.String())
			require.NoError(t, err)
			assert.Equal(t, tt.id, parsed)
		})
	}
}

func TestParseID_Malformed(t *testing.T) {
	for _, s := range []string{
		"",
		"1-2-3",
		"1-2-3-4-5",
		"x-2-3-4",
		"1-x-3-4",
		"1-2-70000-4",
		"4294967295-2-3-4", // priority above MaxPriority
	} {
		_, err := ParseID(s)
		assert.ErrorIs(t, err, ErrMalformedID, "input %q", s)
	}
}

func TestIDBefore_TotalOrder(t *testing.T) {
	a := ID{Priority: 2, Timestamp: 100}
	b := ID{Priority: 1, Timestamp: 50}
	assert.True(t, a.Before(b), "higher priority orders first")
	assert.False(t, b.Before(a))

	older := ID{Priority: 1, Timestamp: 50}
	newer := ID{Priority: 1, Timestamp: 60}
	assert.True(t, older.Before(newer), "older orders first within a priority")

	seqA := ID{Priority: 1, Timestamp: 50, Sequence: 0}
	seqB := ID{Priority: 1, Timestamp: 50, Sequence: 1}
	assert.True(t, seqA.Before(seqB))

	nodeA := ID{Priority: 1, Timestamp: 50, Sequence: 1, Node: 0}
	nodeB := ID{Priority: 1, Timestamp: 50, Sequence: 1, Node: 1}
	assert.True(t, nodeA.Before(nodeB))
	assert.False(t, nodeA.Before(nodeA), "irreflexive")
}

func TestIDFactory_MonotoneWithinMillisecond(t *testing.T) {
	f := NewIDFactory(7)
	f.now = func() time.Time { return time.UnixMilli(1000) }

	a, err := f.New(5)
	require.NoError(t, err)
	b, err := f.New(5)
	require.NoError(t, err)

	assert.True(t, a.Before(b), "successive ids order by allocation")
	assert.Equal(t, a.Timestamp, b.Timestamp)
	assert.Equal(t, a.Sequence+1, b.Sequence)
	assert.Equal(t, uint16(7), a.Node)
}

func TestIDFactory_SequenceResetsAcrossMilliseconds(t *testing.T) {
	f := NewIDFactory(0)
	ms := int64(1000)
	f.now = func() time.Time { return time.UnixMilli(ms) }

	a, _ := f.New(1)
	b, _ := f.New(1)
	ms = 1001
	c, _ := f.New(1)

	assert.Equal(t, uint16(0), a.Sequence)
	assert.Equal(t, uint16(1), b.Sequence)
	assert.Equal(t, uint16(0), c.Sequence)
	assert.True(t, b.Before(c))
}

func TestIDFactory_RejectsOutOfRangePriority(t *testing.T) {
	f := NewIDFactory(0)
	_, err := f.New(MaxPriority + 1)
	assert.ErrorIs(t, err, ErrMalformedID)
}
