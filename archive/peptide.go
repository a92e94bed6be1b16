package archive

import (
	"github.com/mzkit/fragindex/model"
)

// PeptideArchiveName is the blob name of the parents artifact.
const PeptideArchiveName = "peptides.fxi"

var peptideSchema = NewSchema(
	Column{Name: "mass", Type: ColumnFloat32},
	Column{Name: "id", Type: ColumnUint32},
	Column{Name: "aux0", Type: ColumnUint16},
	Column{Name: "aux1", Type: ColumnUint16},
	Column{Name: "sequence", Type: ColumnString},
)

// PeptideCodec archives model.Peptide records. Parents go out as a single
// batch so a reload sees them in their original mass-ascending order.
type PeptideCodec struct{}

func (PeptideCodec) Schema() *Schema     { return peptideSchema }
func (PeptideCodec) ArchiveName() string { return PeptideArchiveName }

func (PeptideCodec) EncodeBatch(items []model.Peptide, segmentID uint64) (*Batch, error) {
	masses := make([]float32, len(items))
	ids := make([]uint32, len(items))
	aux0 := make([]uint16, len(items))
	aux1 := make([]uint16, len(items))
	sequences := make([]string, len(items))
	for i, p := range items {
		masses[i] = p.PeptideMass
		ids[i] = p.ID
		aux0[i] = p.Aux0
		aux1[i] = p.Aux1
		sequences[i] = p.Sequence
	}

	b := NewBatch(peptideSchema, segmentID, len(items))
	if err := b.SetFloat32s("mass", masses); err != nil {
		return nil, err
	}
	if err := b.SetUint32s("id", ids); err != nil {
		return nil, err
	}
	if err := b.SetUint16s("aux0", aux0); err != nil {
		return nil, err
	}
	if err := b.SetUint16s("aux1", aux1); err != nil {
		return nil, err
	}
	if err := b.SetStrings("sequence", sequences); err != nil {
		return nil, err
	}
	return b, nil
}

func (PeptideCodec) DecodeBatch(b *Batch) ([]model.Peptide, uint64, error) {
	masses, err := b.Float32s("mass")
	if err != nil {
		return nil, 0, err
	}
	ids, err := b.Uint32s("id")
	if err != nil {
		return nil, 0, err
	}
	aux0, err := b.Uint16s("aux0")
	if err != nil {
		return nil, 0, err
	}
	aux1, err := b.Uint16s("aux1")
	if err != nil {
		return nil, 0, err
	}
	sequences, err := b.Strings("sequence")
	if err != nil {
		return nil, 0, err
	}

	items := make([]model.Peptide, b.Rows())
	for i := range items {
		items[i] = model.Peptide{
			PeptideMass: masses[i],
			ID:          ids[i],
			Aux0:        aux0[i],
			Aux1:        aux1[i],
			Sequence:    sequences[i],
		}
	}
	return items, b.SegmentID(), nil
}
