package archive

import (
	"fmt"
)

// ColumnType is the storage type of one column.
type ColumnType uint8

const (
	ColumnFloat32 ColumnType = iota + 1
	ColumnUint32
	ColumnUint16
	ColumnUint8
	ColumnString
)

// String implements fmt.Stringer.
func (t ColumnType) String() string {
	switch t {
	case ColumnFloat32:
		return "float32"
	case ColumnUint32:
		return "uint32"
	case ColumnUint16:
		return "uint16"
	case ColumnUint8:
		return "uint8"
	case ColumnString:
		return "string"
	default:
		return fmt.Sprintf("column(%d)", uint8(t))
	}
}

// Column describes one column of a schema.
type Column struct {
	Name string
	Type ColumnType
}

// Schema describes the column layout of an archive. Column order is the
// on-disk order.
type Schema struct {
	columns []Column
	byName  map[string]int
}

// NewSchema builds a schema from the given columns. Column names must be
// unique; this is a programming error, so NewSchema panics on duplicates.
func NewSchema(columns ...Column) *Schema {
	byName := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := byName[c.Name]; dup {
			panic(fmt.Sprintf("archive: duplicate column %q", c.Name))
		}
		byName[c.Name] = i
	}
	return &Schema{columns: columns, byName: byName}
}

// Columns returns the schema's columns in on-disk order.
func (s *Schema) Columns() []Column { return s.columns }

// NumColumns returns the number of columns.
func (s *Schema) NumColumns() int { return len(s.columns) }

func (s *Schema) lookup(name string, typ ColumnType) (int, error) {
	i, ok := s.byName[name]
	if !ok {
		return 0, fmt.Errorf("archive: schema has no column %q", name)
	}
	if s.columns[i].Type != typ {
		return 0, fmt.Errorf("archive: column %q is %s, not %s", name, s.columns[i].Type, typ)
	}
	return i, nil
}

// Batch is one decoded record batch: a segment id plus one value slice per
// schema column.
type Batch struct {
	schema    *Schema
	segmentID uint64
	rows      int
	cols      []any
}

// NewBatch creates an empty batch for the schema with the given segment id
// and row count. Every column must be populated with exactly rows values
// before the batch is written.
func NewBatch(schema *Schema, segmentID uint64, rows int) *Batch {
	return &Batch{
		schema:    schema,
		segmentID: segmentID,
		rows:      rows,
		cols:      make([]any, schema.NumColumns()),
	}
}

// SegmentID returns the opaque segment id the batch was written with.
func (b *Batch) SegmentID() uint64 { return b.segmentID }

// Rows returns the number of rows in the batch.
func (b *Batch) Rows() int { return b.rows }

func setColumn[V any](b *Batch, name string, typ ColumnType, vals []V) error {
	i, err := b.schema.lookup(name, typ)
	if err != nil {
		return err
	}
	if len(vals) != b.rows {
		return fmt.Errorf("archive: column %q has %d values, batch has %d rows", name, len(vals), b.rows)
	}
	b.cols[i] = vals
	return nil
}

func column[V any](b *Batch, name string, typ ColumnType) ([]V, error) {
	i, err := b.schema.lookup(name, typ)
	if err != nil {
		return nil, err
	}
	vals, ok := b.cols[i].([]V)
	if !ok {
		return nil, fmt.Errorf("archive: column %q is not populated", name)
	}
	return vals, nil
}

// SetFloat32s populates a float32 column.
func (b *Batch) SetFloat32s(name string, vals []float32) error {
	return setColumn(b, name, ColumnFloat32, vals)
}

// SetUint32s populates a uint32 column.
func (b *Batch) SetUint32s(name string, vals []uint32) error {
	return setColumn(b, name, ColumnUint32, vals)
}

// SetUint16s populates a uint16 column.
func (b *Batch) SetUint16s(name string, vals []uint16) error {
	return setColumn(b, name, ColumnUint16, vals)
}

// SetUint8s populates a uint8 column.
func (b *Batch) SetUint8s(name string, vals []uint8) error {
	return setColumn(b, name, ColumnUint8, vals)
}

// SetStrings populates a string column.
func (b *Batch) SetStrings(name string, vals []string) error {
	return setColumn(b, name, ColumnString, vals)
}

// Float32s returns a populated float32 column.
func (b *Batch) Float32s(name string) ([]float32, error) {
	return column[float32](b, name, ColumnFloat32)
}

// Uint32s returns a populated uint32 column.
func (b *Batch) Uint32s(name string) ([]uint32, error) {
	return column[uint32](b, name, ColumnUint32)
}

// Uint16s returns a populated uint16 column.
func (b *Batch) Uint16s(name string) ([]uint16, error) {
	return column[uint16](b, name, ColumnUint16)
}

// Uint8s returns a populated uint8 column.
func (b *Batch) Uint8s(name string) ([]uint8, error) {
	return column[uint8](b, name, ColumnUint8)
}

// Strings returns a populated string column.
func (b *Batch) Strings(name string) ([]string, error) {
	return column[string](b, name, ColumnString)
}
