package archive

import (
	"github.com/mzkit/fragindex/model"
)

// FragmentArchiveName is the blob name of the fragment entries artifact.
const FragmentArchiveName = "fragments.fxi"

var fragmentSchema = NewSchema(
	Column{Name: "mass", Type: ColumnFloat32},
	Column{Name: "parent_id", Type: ColumnUint32},
	Column{Name: "series", Type: ColumnUint8},
	Column{Name: "ordinal", Type: ColumnUint16},
)

// FragmentCodec archives model.Fragment records, one batch per mass bin.
type FragmentCodec struct{}

func (FragmentCodec) Schema() *Schema     { return fragmentSchema }
func (FragmentCodec) ArchiveName() string { return FragmentArchiveName }

func (FragmentCodec) EncodeBatch(items []model.Fragment, segmentID uint64) (*Batch, error) {
	masses := make([]float32, len(items))
	parents := make([]uint32, len(items))
	series := make([]uint8, len(items))
	ordinals := make([]uint16, len(items))
	for i, f := range items {
		masses[i] = f.FragmentMass
		parents[i] = f.Parent
		series[i] = uint8(f.Series)
		ordinals[i] = f.Ordinal
	}

	b := NewBatch(fragmentSchema, segmentID, len(items))
	if err := b.SetFloat32s("mass", masses); err != nil {
		return nil, err
	}
	if err := b.SetUint32s("parent_id", parents); err != nil {
		return nil, err
	}
	if err := b.SetUint8s("series", series); err != nil {
		return nil, err
	}
	if err := b.SetUint16s("ordinal", ordinals); err != nil {
		return nil, err
	}
	return b, nil
}

func (FragmentCodec) DecodeBatch(b *Batch) ([]model.Fragment, uint64, error) {
	masses, err := b.Float32s("mass")
	if err != nil {
		return nil, 0, err
	}
	parents, err := b.Uint32s("parent_id")
	if err != nil {
		return nil, 0, err
	}
	series, err := b.Uint8s("series")
	if err != nil {
		return nil, 0, err
	}
	ordinals, err := b.Uint16s("ordinal")
	if err != nil {
		return nil, 0, err
	}

	items := make([]model.Fragment, b.Rows())
	for i := range items {
		items[i] = model.Fragment{
			FragmentMass: masses[i],
			Parent:       parents[i],
			Series:       model.Series(series[i]),
			Ordinal:      ordinals[i],
		}
	}
	return items, b.SegmentID(), nil
}
