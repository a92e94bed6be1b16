package archive

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/mzkit/fragindex/internal/conv"
)

// Writer streams record batches into one archive file. The file header is
// written on construction; every batch is framed, checksummed and compressed
// independently so readers can decode segment by segment.
type Writer struct {
	w      io.Writer
	schema *Schema
	comp   *compressor
}

// NewWriter writes the archive header for the given kind and schema and
// returns a Writer ready to accept batches.
func NewWriter(w io.Writer, kind Kind, schema *Schema, compression Compression) (*Writer, error) {
	comp, err := newCompressor(compression)
	if err != nil {
		return nil, err
	}

	wide, err := conv.IntToUint32(schema.NumColumns())
	if err != nil {
		return nil, err
	}
	cols, err := conv.Uint32ToUint16(wide)
	if err != nil {
		return nil, fmt.Errorf("archive: too many columns: %w", err)
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint32(header[0:4], MagicNumber)
	binary.LittleEndian.PutUint32(header[4:8], Version)
	header[8] = uint8(kind)
	binary.LittleEndian.PutUint16(header[12:14], cols)
	if _, err := w.Write(header[:]); err != nil {
		return nil, err
	}

	return &Writer{w: w, schema: schema, comp: comp}, nil
}

// WriteBatch appends one batch. Every schema column must be populated with
// exactly Rows values.
func (w *Writer) WriteBatch(b *Batch) error {
	if b.schema != w.schema {
		return ErrSchemaMismatch
	}

	rows, err := conv.IntToUint32(b.Rows())
	if err != nil {
		return err
	}

	payloads := make([][]byte, w.schema.NumColumns())
	crc := crc32.NewIEEE()
	for i, col := range w.schema.Columns() {
		if b.cols[i] == nil {
			return fmt.Errorf("archive: column %q is not populated", col.Name)
		}
		payloads[i] = encodeColumn(col.Type, b.cols[i])
		_, _ = crc.Write(payloads[i])
	}

	var batchHeader [batchHeaderSize]byte
	binary.LittleEndian.PutUint64(batchHeader[0:8], b.SegmentID())
	binary.LittleEndian.PutUint32(batchHeader[8:12], rows)
	batchHeader[12] = uint8(w.comp.compression.Codec)
	if _, err := w.w.Write(batchHeader[:]); err != nil {
		return err
	}

	for _, raw := range payloads {
		compressed, err := w.comp.compress(raw)
		if err != nil {
			return err
		}

		rawLen, err := conv.IntToUint32(len(raw))
		if err != nil {
			return err
		}
		compressedLen, err := conv.IntToUint32(len(compressed))
		if err != nil {
			return err
		}

		var frame [8]byte
		binary.LittleEndian.PutUint32(frame[0:4], rawLen)
		binary.LittleEndian.PutUint32(frame[4:8], compressedLen)
		if _, err := w.w.Write(frame[:]); err != nil {
			return err
		}

		payload := compressed
		if payload == nil {
			payload = raw
		}
		if _, err := w.w.Write(payload); err != nil {
			return err
		}
	}

	var sum [4]byte
	binary.LittleEndian.PutUint32(sum[:], crc.Sum32())
	_, err = w.w.Write(sum[:])
	return err
}

// Close releases codec state. It does not close the underlying writer.
func (w *Writer) Close() error {
	return w.comp.close()
}

func encodeColumn(typ ColumnType, vals any) []byte {
	switch typ {
	case ColumnFloat32:
		v := vals.([]float32)
		buf := make([]byte, 4*len(v))
		for i, f := range v {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
		}
		return buf
	case ColumnUint32:
		v := vals.([]uint32)
		buf := make([]byte, 4*len(v))
		for i, u := range v {
			binary.LittleEndian.PutUint32(buf[4*i:], u)
		}
		return buf
	case ColumnUint16:
		v := vals.([]uint16)
		buf := make([]byte, 2*len(v))
		for i, u := range v {
			binary.LittleEndian.PutUint16(buf[2*i:], u)
		}
		return buf
	case ColumnUint8:
		v := vals.([]uint8)
		buf := make([]byte, len(v))
		copy(buf, v)
		return buf
	case ColumnString:
		// Offsets followed by the concatenated bytes, so row i is
		// bytes[offsets[i]:offsets[i+1]].
		v := vals.([]string)
		total := 0
		for _, s := range v {
			total += len(s)
		}
		buf := make([]byte, 4*(len(v)+1)+total)
		off := uint32(0)
		for i, s := range v {
			binary.LittleEndian.PutUint32(buf[4*i:], off)
			off += uint32(len(s))
		}
		binary.LittleEndian.PutUint32(buf[4*len(v):], off)
		pos := 4 * (len(v) + 1)
		for _, s := range v {
			pos += copy(buf[pos:], s)
		}
		return buf
	default:
		panic(fmt.Sprintf("archive: unknown column type %d", typ))
	}
}
