// Package leveldb implements core.MsgStorage on an embedded LevelDB
// database. Values are opaque payload bytes (or the blob metadata record
// for file-backed messages) keyed by id text form; durability and
// crash-safety are LevelDB's.
package leveldb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/vitaliisemenov/msg-store/internal/core"
)

// MsgStorage is the LevelDB-backed persistence backend.
type MsgStorage struct {
	db     *leveldb.DB
	path   string
	logger *slog.Logger
}

// NewMsgStorage opens (or creates) the database at path.
func NewMsgStorage(path string, logger *slog.Logger) (*MsgStorage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	logger.Info("leveldb message storage opened", "path", path)
	return &MsgStorage{db: db, path: path, logger: logger}, nil
}

// Add durably stores payload under id.
func (l *MsgStorage) Add(_ context.Context, id core.ID, payload []byte) error {
	return l.db.Put([]byte(id.String()), payload, nil)
}

// Get returns the payload for id, or core.ErrMsgNotFound.
func (l *MsgStorage) Get(_ context.Context, id core.ID) ([]byte, error) {
	payload, err := l.db.Get([]byte(id.String()), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, core.ErrMsgNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Del removes the payload for id, or returns core.ErrMsgNotFound.
func (l *MsgStorage) Del(_ context.Context, id core.ID) error {
	key := []byte(id.String())
	if _, err := l.db.Get(key, nil); errors.Is(err, leveldb.ErrNotFound) {
		return core.ErrMsgNotFound
	} else if err != nil {
		return err
	}
	return l.db.Delete(key, nil)
}

// Fetch scans every key and returns (id, size) pairs ascending in id
// total order. LevelDB iterates keys lexicographically, which is not the
// id order, so the scan is sorted before returning.
func (l *MsgStorage) Fetch(_ context.Context) ([]core.FetchedMsg, error) {
	var out []core.FetchedMsg
	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		id, err := core.ParseID(string(iter.Key()))
		if err != nil {
			l.logger.Warn("skipping foreign key in leveldb", "key", string(iter.Key()))
			continue
		}
		out = append(out, core.FetchedMsg{ID: id, Size: uint64(len(iter.Value()))})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Before(out[j].ID) })
	return out, nil
}

// Close closes the underlying database.
func (l *MsgStorage) Close() error {
	return l.db.Close()
}
