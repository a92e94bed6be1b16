package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mzkit/fragindex/blobstore"
	"github.com/mzkit/fragindex/index"
)

// WriteOptions configures a WriteIndex call.
type WriteOptions struct {
	// Compression is applied to the parents and entries artifacts. Metadata
	// is always stored raw so a reader can inspect it with minimal work.
	Compression Compression

	// Logger receives per-artifact progress records.
	Logger *slog.Logger
}

// DefaultWriteOptions contains the default configuration options for WriteIndex.
var DefaultWriteOptions = WriteOptions{
	Compression: DefaultCompression,
}

// WithCompression selects the codec and level for the data artifacts.
func WithCompression(c Compression) func(o *WriteOptions) {
	return func(o *WriteOptions) { o.Compression = c }
}

// WithLogger sets the logger used for progress records.
func WithLogger(logger *slog.Logger) func(o *WriteOptions) {
	return func(o *WriteOptions) { o.Logger = logger }
}

// WriteIndex persists an index as three artifacts in the store, in a fixed
// order: metadata first, then parents, then entries. Entry batches carry the
// index's segment ids so a reload can regroup them without knowing the
// binning scheme.
func WriteIndex[T index.Record, P index.Record](
	ctx context.Context,
	store blobstore.Store,
	si *index.SearchIndex[T, P],
	entries BatchCodec[T],
	parents BatchCodec[P],
	optFns ...func(o *WriteOptions),
) error {
	opts := DefaultWriteOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	meta := Metadata{
		BinsPerDalton: si.BinsPerDalton(),
		MaxItemMass:   si.MaxItemMass(),
	}
	err := writeArchive(ctx, store, KindMetadata, MetadataCodec{}, NoCompression,
		func(emit func(items []Metadata, segmentID uint64) error) error {
			return emit([]Metadata{meta}, 0)
		})
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "wrote index metadata",
		slog.Int("bins_per_dalton", int(meta.BinsPerDalton)),
		slog.Float64("max_item_mass", float64(meta.MaxItemMass)))

	err = writeArchive(ctx, store, KindParents, parents, opts.Compression,
		func(emit func(items []P, segmentID uint64) error) error {
			return emit(si.Parents(), 0)
		})
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "wrote index parents", slog.Int("count", si.NumParents()))

	err = writeArchive(ctx, store, KindEntries, entries, opts.Compression,
		func(emit func(items []T, segmentID uint64) error) error {
			for segment, items := range si.Segments() {
				if err := emit(items, segment); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "wrote index entries", slog.Int("count", si.NumEntries()))

	return nil
}

// writeArchive streams one artifact: header, then every batch the produce
// callback emits. The blob is committed only when every batch went out; on
// any failure it is aborted, so a half-written artifact never replaces a
// previously-good one under its final name.
func writeArchive[T any](
	ctx context.Context,
	store blobstore.Store,
	kind Kind,
	codec BatchCodec[T],
	compression Compression,
	produce func(emit func(items []T, segmentID uint64) error) error,
) (err error) {
	blob, err := store.Create(ctx, codec.ArchiveName())
	if err != nil {
		return fmt.Errorf("creating %q: %w", codec.ArchiveName(), err)
	}
	defer func() {
		if err != nil {
			_ = blob.Abort()
			return
		}
		if cerr := blob.Close(); cerr != nil {
			err = fmt.Errorf("closing %q: %w", codec.ArchiveName(), cerr)
		}
	}()

	w, err := NewWriter(blob, kind, codec.Schema(), compression)
	if err != nil {
		return fmt.Errorf("writing %q: %w", codec.ArchiveName(), err)
	}

	emit := func(items []T, segmentID uint64) error {
		batch, err := codec.EncodeBatch(items, segmentID)
		if err != nil {
			return fmt.Errorf("encoding %q segment %d: %w", codec.ArchiveName(), segmentID, err)
		}
		if err := w.WriteBatch(batch); err != nil {
			return fmt.Errorf("writing %q segment %d: %w", codec.ArchiveName(), segmentID, err)
		}
		return nil
	}

	err = produce(emit)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing %q writer: %w", codec.ArchiveName(), cerr)
	}
	return err
}

// ReadIndex loads all three artifacts and assembles a searchable index. The
// result reports index.Unsorted; callers that want the binary-search fast
// path call Sort on it.
func ReadIndex[T index.Record, P index.Record](
	ctx context.Context,
	store blobstore.Store,
	entries BatchCodec[T],
	parents BatchCodec[P],
) (*index.SearchIndex[T, P], error) {
	meta, err := ReadMetadata(ctx, store)
	if err != nil {
		return nil, err
	}

	parentRecords, err := readAll(ctx, store, KindParents, parents)
	if err != nil {
		return nil, err
	}

	segments := make(map[uint64][]T)
	err = readArchive(ctx, store, KindEntries, entries, func(items []T, segmentID uint64) error {
		segments[segmentID] = append(segments[segmentID], items...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	si, err := index.FromParts(meta.BinsPerDalton, meta.MaxItemMass, parentRecords, segments)
	if err != nil {
		return nil, &ErrMalformedArchive{Artifact: entries.ArchiveName(), cause: err}
	}
	return si, nil
}

// ReadMetadata loads only the metadata artifact.
func ReadMetadata(ctx context.Context, store blobstore.Store) (Metadata, error) {
	var meta Metadata
	found := false
	err := readArchive(ctx, store, KindMetadata, MetadataCodec{}, func(items []Metadata, _ uint64) error {
		if found {
			return errors.New("metadata archive holds more than one batch")
		}
		meta = items[0]
		found = true
		return nil
	})
	if err != nil {
		return Metadata{}, err
	}
	if !found {
		return Metadata{}, &ErrMalformedArchive{Artifact: MetadataArchiveName, cause: errors.New("metadata archive holds no batch")}
	}
	return meta, nil
}

func readAll[T any](ctx context.Context, store blobstore.Store, kind Kind, codec BatchCodec[T]) ([]T, error) {
	var out []T
	err := readArchive(ctx, store, kind, codec, func(items []T, _ uint64) error {
		out = append(out, items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readArchive opens one artifact and feeds every decoded batch to consume, in
// write order.
func readArchive[T any](
	ctx context.Context,
	store blobstore.Store,
	kind Kind,
	codec BatchCodec[T],
	consume func(items []T, segmentID uint64) error,
) error {
	name := codec.ArchiveName()
	blob, err := store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return &ErrArtifactNotFound{Artifact: name, cause: err}
		}
		return fmt.Errorf("opening %q: %w", name, err)
	}
	defer blob.Close()

	r, err := NewReader(blobReader(blob), kind, codec.Schema())
	if err != nil {
		return &ErrMalformedArchive{Artifact: name, cause: err}
	}

	for {
		batch, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &ErrMalformedArchive{Artifact: name, cause: err}
		}

		items, segmentID, err := codec.DecodeBatch(batch)
		if err != nil {
			return &ErrMalformedArchive{Artifact: name, cause: err}
		}
		if err := consume(items, segmentID); err != nil {
			return &ErrMalformedArchive{Artifact: name, cause: err}
		}
	}
}

// blobReader adapts a blob to sequential reading, using the mapped bytes
// directly when the blob supports it.
func blobReader(b blobstore.Blob) io.Reader {
	if m, ok := b.(blobstore.Mappable); ok {
		if data, err := m.Bytes(); err == nil {
			return bytes.NewReader(data)
		}
	}
	return bufio.NewReaderSize(io.NewSectionReader(b, 0, b.Size()), 1<<20)
}
