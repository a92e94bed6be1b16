package blobstore

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/mzkit/fragindex/internal/mmap"
)

// LocalStore keeps blobs as files under a root directory.
//
// Reads are memory-mapped, which is the cheapest access pattern for the
// decode-whole-file reads the archive performs. Writes go through a temp
// file and an atomic rename, so a crashed write never leaves a partial
// artifact behind under the blob's final name.
type LocalStore struct {
	root string
}

// NewLocalStore returns a store rooted at dir. The directory is created on
// first Create.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{root: dir}
}

// Root returns the root directory.
func (s *LocalStore) Root() string { return s.root }

// Open opens the named file as a memory-mapped blob.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Create starts an atomic write of the named file.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.root, name+".tmp-*")
	if err != nil {
		return nil, err
	}
	_ = tmp.Chmod(0o644)
	return &localWritableBlob{
		f:     tmp,
		buf:   bufio.NewWriterSize(tmp, 256*1024),
		final: filepath.Join(s.root, name),
	}, nil
}

type localBlob struct {
	m *mmap.File
}

func (b *localBlob) ReadAt(p []byte, off int64) (int, error) { return b.m.ReadAt(p, off) }
func (b *localBlob) Size() int64                             { return b.m.Size() }
func (b *localBlob) Bytes() ([]byte, error)                  { return b.m.Bytes(), nil }
func (b *localBlob) Close() error                            { return b.m.Close() }

type localWritableBlob struct {
	f     *os.File
	buf   *bufio.Writer
	final string
	done  bool
}

func (w *localWritableBlob) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *localWritableBlob) Sync() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.f.Sync()
}

// Abort closes and removes the temp file; the final name is left untouched.
func (w *localWritableBlob) Abort() error {
	if w.done {
		return nil
	}
	w.done = true

	err := w.f.Close()
	if rerr := os.Remove(w.f.Name()); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Close flushes, fsyncs and renames the temp file into place. On failure the
// temp file is removed and the final name is left untouched.
func (w *localWritableBlob) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	tmpName := w.f.Name()
	cleanup := func(err error) error {
		_ = w.f.Close()
		_ = os.Remove(tmpName)
		return err
	}

	if err := w.buf.Flush(); err != nil {
		return cleanup(err)
	}
	if err := w.f.Sync(); err != nil {
		return cleanup(err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, w.final); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	// Best-effort directory sync so the rename survives a crash.
	if d, err := os.Open(filepath.Dir(w.final)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
