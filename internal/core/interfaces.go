package core

import (
	"context"
	"io"
)

// Storage interfaces following the same capability-set style as the rest
// of the service: the engine never names a concrete backend, backends are
// chosen at process start by the storage factory.

// FetchedMsg is one entry of a startup recovery scan.
type FetchedMsg struct {
	ID   ID
	Size uint64
}

// MsgStorage is the persistence contract the store drives. Each call is
// atomic from the store's perspective; durability is the backend's
// problem. Implementations must be safe for concurrent use.
type MsgStorage interface {
	// Add durably associates payload bytes with id.
	Add(ctx context.Context, id ID, payload []byte) error

	// Get returns the payload for id, or ErrMsgNotFound.
	Get(ctx context.Context, id ID) ([]byte, error)

	// Del removes the payload for id, or returns ErrMsgNotFound.
	Del(ctx context.Context, id ID) error

	// Fetch enumerates every persisted message ascending in id total
	// order for startup recovery. Size is the stored value length; for
	// blob-backed messages the store replaces it with the metadata size.
	Fetch(ctx context.Context) ([]FetchedMsg, error)

	// Close releases backend resources.
	Close() error
}

// BlobEntry is one entry of a blob store recovery listing.
type BlobEntry struct {
	ID   ID
	Name string
}

// BlobStorage stores large streamed payloads outside the persistence
// backend, addressed by id text form plus an optional original file name.
// Implementations must be safe for concurrent use.
type BlobStorage interface {
	// Add streams r to the blob addressed by id and returns the byte
	// count actually written.
	Add(ctx context.Context, id ID, name string, r io.Reader) (int64, error)

	// Get opens the blob for reading, or returns ErrMsgNotFound.
	Get(ctx context.Context, id ID) (io.ReadCloser, error)

	// Del removes the blob, or returns ErrMsgNotFound.
	Del(ctx context.Context, id ID) error

	// List enumerates stored blobs for recovery.
	List(ctx context.Context) ([]BlobEntry, error)
}
