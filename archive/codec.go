package archive

import (
	"fmt"
)

// BatchCodec converts between a record slice and a columnar batch. Codecs
// decide the archive file name and schema for their record type; the framing
// layer stays generic.
type BatchCodec[T any] interface {
	// Schema returns the column layout for T. The same pointer must be
	// returned on every call.
	Schema() *Schema

	// ArchiveName is the blob name records of T are stored under.
	ArchiveName() string

	// EncodeBatch converts items into one batch tagged with segmentID.
	EncodeBatch(items []T, segmentID uint64) (*Batch, error)

	// DecodeBatch converts a batch back into records and returns the
	// segment id the batch was written with.
	DecodeBatch(b *Batch) ([]T, uint64, error)
}

// Metadata is the single record of the metadata archive. It carries the bin
// envelope an index was built with, which is all that is needed to plan
// queries against the other artifacts.
type Metadata struct {
	BinsPerDalton uint32
	MaxItemMass   float32
}

// MetadataArchiveName is the blob name of the metadata artifact.
const MetadataArchiveName = "metadata.fxi"

var metadataSchema = NewSchema(
	Column{Name: "bins_per_dalton", Type: ColumnUint32},
	Column{Name: "max_item_mass", Type: ColumnFloat32},
)

// MetadataCodec archives the index envelope. The metadata artifact always
// holds exactly one record in one batch.
type MetadataCodec struct{}

func (MetadataCodec) Schema() *Schema     { return metadataSchema }
func (MetadataCodec) ArchiveName() string { return MetadataArchiveName }

func (MetadataCodec) EncodeBatch(items []Metadata, segmentID uint64) (*Batch, error) {
	if len(items) != 1 {
		return nil, fmt.Errorf("archive: metadata batch must hold exactly one record, got %d", len(items))
	}
	b := NewBatch(metadataSchema, segmentID, 1)
	if err := b.SetUint32s("bins_per_dalton", []uint32{items[0].BinsPerDalton}); err != nil {
		return nil, err
	}
	if err := b.SetFloat32s("max_item_mass", []float32{items[0].MaxItemMass}); err != nil {
		return nil, err
	}
	return b, nil
}

func (MetadataCodec) DecodeBatch(b *Batch) ([]Metadata, uint64, error) {
	if b.Rows() != 1 {
		return nil, 0, fmt.Errorf("archive: metadata batch must hold exactly one record, got %d", b.Rows())
	}
	bpd, err := b.Uint32s("bins_per_dalton")
	if err != nil {
		return nil, 0, err
	}
	maxMass, err := b.Float32s("max_item_mass")
	if err != nil {
		return nil, 0, err
	}
	return []Metadata{{BinsPerDalton: bpd[0], MaxItemMass: maxMass[0]}}, b.SegmentID(), nil
}
