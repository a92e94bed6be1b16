// Package archive persists search indexes as compact binary columnar files.
//
// An index maps onto three artifacts in one blob store: a metadata archive
// (a single record describing the bin envelope), a parents archive (one
// batch holding every parent), and an entries archive (one batch per
// non-empty mass bin). Batches carry an opaque segment id; for entries it is
// the bin enumeration index at write time, and reload groups entries by that
// token without reinterpreting it. The protocol is generic: any record type
// with a BatchCodec can be archived without the format knowing its shape.
package archive

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies fragindex archive files (ASCII "FXI1").
	MagicNumber = 0x46584931
	// Version is the current archive format version.
	Version = 0x00010000

	headerSize      = 16
	batchHeaderSize = 16
)

// Kind tags the role of an archive file within an index directory.
type Kind uint8

const (
	KindMetadata Kind = 1
	KindParents  Kind = 2
	KindEntries  Kind = 3
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindMetadata:
		return "metadata"
	case KindParents:
		return "parents"
	case KindEntries:
		return "entries"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	// ErrInvalidMagic is returned when a file does not start with the
	// archive magic number.
	ErrInvalidMagic = errors.New("invalid magic number")
	// ErrInvalidVersion is returned for unsupported format versions.
	ErrInvalidVersion = errors.New("unsupported format version")
	// ErrInvalidKind is returned when an archive file carries a different
	// role than the reader expects.
	ErrInvalidKind = errors.New("unexpected archive kind")
	// ErrSchemaMismatch is returned when the on-disk column count does not
	// match the reader's schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// ErrArtifactNotFound is returned when a required archive file is absent.
// Artifact names the missing file.
type ErrArtifactNotFound struct {
	Artifact string
	cause    error
}

func (e *ErrArtifactNotFound) Error() string {
	return fmt.Sprintf("archive artifact %q not found", e.Artifact)
}

func (e *ErrArtifactNotFound) Unwrap() error { return e.cause }

// ErrMalformedArchive is returned when an artifact exists but its content
// fails to decode. The underlying failure is available via errors.Unwrap.
type ErrMalformedArchive struct {
	Artifact string
	cause    error
}

func (e *ErrMalformedArchive) Error() string {
	return fmt.Sprintf("archive artifact %q is malformed: %v", e.Artifact, e.cause)
}

func (e *ErrMalformedArchive) Unwrap() error { return e.cause }

// ErrChecksumMismatch is returned when a batch fails CRC verification.
type ErrChecksumMismatch struct {
	Expected uint32
	Actual   uint32
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}
