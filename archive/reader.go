package archive

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// Reader decodes the batches of one archive file in write order.
type Reader struct {
	r      io.Reader
	schema *Schema
}

// NewReader validates the archive header against the expected kind and
// schema and returns a Reader positioned at the first batch.
func NewReader(r io.Reader, kind Kind, schema *Schema) (*Reader, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading archive header: %w", err)
	}

	if binary.LittleEndian.Uint32(header[0:4]) != MagicNumber {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(header[4:8]) != Version {
		return nil, ErrInvalidVersion
	}
	if Kind(header[8]) != kind {
		return nil, fmt.Errorf("%w: expected %s, file is %s", ErrInvalidKind, kind, Kind(header[8]))
	}
	if cols := binary.LittleEndian.Uint16(header[12:14]); int(cols) != schema.NumColumns() {
		return nil, fmt.Errorf("%w: expected %d columns, file has %d", ErrSchemaMismatch, schema.NumColumns(), cols)
	}

	return &Reader{r: r, schema: schema}, nil
}

// Next decodes the next batch. It returns io.EOF after the last batch.
func (r *Reader) Next() (*Batch, error) {
	var batchHeader [batchHeaderSize]byte
	if _, err := io.ReadFull(r.r, batchHeader[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading batch header: %w", err)
	}

	segmentID := binary.LittleEndian.Uint64(batchHeader[0:8])
	rows := int(binary.LittleEndian.Uint32(batchHeader[8:12]))
	codec := CompressionCodec(batchHeader[12])

	batch := NewBatch(r.schema, segmentID, rows)
	crc := crc32.NewIEEE()
	for i, col := range r.schema.Columns() {
		payload, err := r.readColumn(codec, col, rows)
		if err != nil {
			return nil, fmt.Errorf("reading column %q: %w", col.Name, err)
		}
		_, _ = crc.Write(payload)

		vals, err := decodeColumn(col.Type, payload, rows)
		if err != nil {
			return nil, fmt.Errorf("decoding column %q: %w", col.Name, err)
		}
		batch.cols[i] = vals
	}

	var sum [4]byte
	if _, err := io.ReadFull(r.r, sum[:]); err != nil {
		return nil, fmt.Errorf("reading batch checksum: %w", err)
	}
	if expected := binary.LittleEndian.Uint32(sum[:]); expected != crc.Sum32() {
		return nil, &ErrChecksumMismatch{Expected: expected, Actual: crc.Sum32()}
	}

	return batch, nil
}

// readColumn returns the decoded (uncompressed) payload of one column.
func (r *Reader) readColumn(codec CompressionCodec, col Column, rows int) ([]byte, error) {
	var frame [8]byte
	if _, err := io.ReadFull(r.r, frame[:]); err != nil {
		return nil, err
	}
	rawLen := int(binary.LittleEndian.Uint32(frame[0:4]))
	compressedLen := int(binary.LittleEndian.Uint32(frame[4:8]))

	if minLen := minColumnSize(col.Type, rows); rawLen < minLen {
		return nil, fmt.Errorf("payload of %d bytes is too short for %d rows", rawLen, rows)
	}

	if compressedLen == 0 {
		payload := make([]byte, rawLen)
		if _, err := io.ReadFull(r.r, payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r.r, compressed); err != nil {
		return nil, err
	}
	return decompress(codec, compressed, rawLen)
}

func minColumnSize(typ ColumnType, rows int) int {
	switch typ {
	case ColumnFloat32, ColumnUint32:
		return 4 * rows
	case ColumnUint16:
		return 2 * rows
	case ColumnUint8:
		return rows
	case ColumnString:
		return 4 * (rows + 1)
	default:
		return 0
	}
}

func decodeColumn(typ ColumnType, payload []byte, rows int) (any, error) {
	switch typ {
	case ColumnFloat32:
		vals := make([]float32, rows)
		for i := range vals {
			bits := binary.LittleEndian.Uint32(payload[4*i:])
			vals[i] = math.Float32frombits(bits)
		}
		return vals, nil
	case ColumnUint32:
		vals := make([]uint32, rows)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint32(payload[4*i:])
		}
		return vals, nil
	case ColumnUint16:
		vals := make([]uint16, rows)
		for i := range vals {
			vals[i] = binary.LittleEndian.Uint16(payload[2*i:])
		}
		return vals, nil
	case ColumnUint8:
		vals := make([]uint8, rows)
		copy(vals, payload)
		return vals, nil
	case ColumnString:
		base := 4 * (rows + 1)
		bytes := payload[base:]
		vals := make([]string, rows)
		prev := binary.LittleEndian.Uint32(payload[0:4])
		for i := range vals {
			next := binary.LittleEndian.Uint32(payload[4*(i+1):])
			if next < prev || int(next) > len(bytes) {
				return nil, fmt.Errorf("corrupt string offsets at row %d", i)
			}
			vals[i] = string(bytes[prev:next])
			prev = next
		}
		return vals, nil
	default:
		return nil, fmt.Errorf("unknown column type %d", typ)
	}
}
