package leveldb_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/msg-store/internal/core"
	"github.com/vitaliisemenov/msg-store/internal/storage/leveldb"
)

func newTestStorage(t *testing.T) *leveldb.MsgStorage {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := leveldb.NewMsgStorage(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testID(priority uint32, ts int64) core.ID {
	return core.ID{Priority: priority, Timestamp: ts, Node: 1}
}

func TestAddGetDel(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	id := testID(1, 100)

	require.NoError(t, s.Add(ctx, id, []byte("payload")))

	payload, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(payload))

	require.NoError(t, s.Del(ctx, id))
	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, core.ErrMsgNotFound)
	assert.ErrorIs(t, s.Del(ctx, id), core.ErrMsgNotFound)
}

func TestFetch_SurvivesReopenInTotalOrder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	dir := t.TempDir()
	ctx := context.Background()

	s, err := leveldb.NewMsgStorage(dir, logger)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, testID(1, 200), []byte("old-low")))
	require.NoError(t, s.Add(ctx, testID(10, 100), []byte("hi")))
	require.NoError(t, s.Add(ctx, testID(1, 100), []byte("low")))
	require.NoError(t, s.Close())

	s, err = leveldb.NewMsgStorage(dir, logger)
	require.NoError(t, err)
	defer s.Close()

	msgs, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	// Lexicographic key order would put "1-..." before "10-..."; the
	// fetch contract is id total order instead.
	assert.Equal(t, testID(10, 100), msgs[0].ID)
	assert.Equal(t, testID(1, 100), msgs[1].ID)
	assert.Equal(t, testID(1, 200), msgs[2].ID)
}
