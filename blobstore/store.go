// Package blobstore abstracts where archive artifacts live.
//
// An index archive is a small set of named immutable blobs. The archive
// reader and writer only depend on this package's interfaces, so archives
// can be kept on the local file system, in memory (tests), or in object
// storage interchangeably.
package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a named blob does not exist.
//
// Implementations return an error satisfying errors.Is(err, ErrNotFound);
// the default maps to os.ErrNotExist so local stores need no translation.
var ErrNotFound = os.ErrNotExist

// Store provides access to named blobs.
type Store interface {
	// Open opens an existing blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates (or replaces) a blob. The data becomes visible to
	// Open only after the returned handle is closed successfully.
	Create(ctx context.Context, name string) (WritableBlob, error)
}

// Blob is a read-only handle to an immutable blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the blob length in bytes.
	Size() int64
}

// WritableBlob is a write-once handle. Close commits the blob; a writer that
// hit an error must Abort instead, so a failed write never replaces or
// creates the blob under its final name.
type WritableBlob interface {
	io.Writer
	io.Closer
	// Sync flushes buffered data to durable storage where the backend
	// supports it; otherwise it is a no-op.
	Sync() error
	// Abort discards everything written so far and leaves the final name
	// untouched. Aborting after a successful Close is a no-op.
	Abort() error
}

// Mappable is an optional Blob capability for zero-copy access to the
// underlying bytes. The slice is valid until the blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}

// ReadAll reads an entire blob into memory, using the zero-copy path when
// the blob supports it. The returned slice may alias blob memory and is
// valid only until the blob is closed.
func ReadAll(b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		return m.Bytes()
	}
	data := make([]byte, b.Size())
	if _, err := io.ReadFull(io.NewSectionReader(b, 0, b.Size()), data); err != nil {
		return nil, err
	}
	return data, nil
}
