// Package wire implements the little-endian fixed-width binary codec shared by
// every on-disk artifact the pipeline produces: the input triples file, the
// per-level outcome and refines-mapping files, and the condensed summary
// graph, interval map and local-to-global map that the condenser emits.
//
// All multi-byte fields are little-endian. Field widths are fixed and do not
// depend on the values they carry, matching the teacher's own fixed-width
// record reader in internal/parser/hprof/core_reader.go -- only the
// endianness and widths differ, since this wire format is independent of that
// one.
package wire

import (
	"bufio"
	"io"

	apperrors "github.com/stratabisim/stratabisim/pkg/errors"
)

// Field widths in bytes, per the external interface definition.
const (
	EntityWidth           = 5
	PredicateWidth        = 4
	BlockWidth            = 4
	BlockOrSingletonWidth = 5
	KTypeWidth            = 2
)

// SingletonSentinel is the refines-edge child id meaning "one or more
// singletons were produced by this parent".
const SingletonSentinel int64 = 0

// Reader streams fixed-width little-endian fields from an underlying byte
// stream, reusing a small scratch buffer the way core_reader.go reuses
// byteBuf across calls.
type Reader struct {
	r       *bufio.Reader
	scratch [8]byte
}

// NewReader wraps r with a 64KB buffer, matching the teacher's buffer size.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*1024)}
}

func (r *Reader) readFixed(n int) ([]byte, error) {
	buf := r.scratch[:n]
	_, err := io.ReadFull(r.r, buf)
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.CodeIO, "read fixed-width field", err)
	}
	return buf, nil
}

func leUint(buf []byte) uint64 {
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

// ReadEntity reads a 5-byte unsigned little-endian vertex id.
func (r *Reader) ReadEntity() (int64, error) {
	buf, err := r.readFixed(EntityWidth)
	if err != nil {
		return 0, err
	}
	return int64(leUint(buf)), nil
}

// ReadPredicate reads a 4-byte unsigned little-endian edge label.
func (r *Reader) ReadPredicate() (int64, error) {
	buf, err := r.readFixed(PredicateWidth)
	if err != nil {
		return 0, err
	}
	return int64(leUint(buf)), nil
}

// ReadBlock reads a 4-byte unsigned little-endian block id.
func (r *Reader) ReadBlock() (int64, error) {
	buf, err := r.readFixed(BlockWidth)
	if err != nil {
		return 0, err
	}
	return int64(leUint(buf)), nil
}

// ReadBlockOrSingleton reads a 5-byte signed, sign-extended little-endian
// field encoding the BlockOrSingleton union (positive = block, negative =
// singleton vertex tag).
func (r *Reader) ReadBlockOrSingleton() (int64, error) {
	buf, err := r.readFixed(BlockOrSingletonWidth)
	if err != nil {
		return 0, err
	}
	v := leUint(buf)
	// Sign-extend from bit 39 (5 bytes = 40 bits).
	const signBit = uint64(1) << 39
	if v&signBit != 0 {
		v |= 0xFFFFFF0000000000
	}
	return int64(v), nil
}

// ReadKType reads a 2-byte unsigned little-endian level number.
func (r *Reader) ReadKType() (int, error) {
	buf, err := r.readFixed(KTypeWidth)
	if err != nil {
		return 0, err
	}
	return int(leUint(buf)), nil
}

// Writer emits fixed-width little-endian fields, buffering the way the
// teacher's writer helpers do.
type Writer struct {
	w       *bufio.Writer
	scratch [8]byte
}

// NewWriter wraps w with a 64KB buffer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriterSize(w, 64*1024)}
}

func (w *Writer) writeFixed(v uint64, n int) error {
	buf := w.scratch[:n]
	for i := 0; i < n; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	_, err := w.w.Write(buf)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "write fixed-width field", err)
	}
	return nil
}

// WriteEntity writes a 5-byte unsigned little-endian vertex id.
func (w *Writer) WriteEntity(v int64) error { return w.writeFixed(uint64(v), EntityWidth) }

// WritePredicate writes a 4-byte unsigned little-endian edge label.
func (w *Writer) WritePredicate(v int64) error { return w.writeFixed(uint64(v), PredicateWidth) }

// WriteBlock writes a 4-byte unsigned little-endian block id.
func (w *Writer) WriteBlock(v int64) error { return w.writeFixed(uint64(v), BlockWidth) }

// WriteBlockOrSingleton writes a 5-byte signed little-endian field. Negative
// values are two's-complement encoded over 40 bits.
func (w *Writer) WriteBlockOrSingleton(v int64) error {
	return w.writeFixed(uint64(v)&0xFFFFFFFFFF, BlockOrSingletonWidth)
}

// WriteKType writes a 2-byte unsigned little-endian level number.
func (w *Writer) WriteKType(v int) error { return w.writeFixed(uint64(v), KTypeWidth) }

// Flush flushes any buffered output to the underlying writer.
func (w *Writer) Flush() error {
	if err := w.w.Flush(); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "flush writer", err)
	}
	return nil
}

// IsEOF reports whether err is a clean end-of-stream signal (no partial
// record was consumed). Any other error -- including io.ErrUnexpectedEOF,
// which indicates a truncated record -- is reported back to the caller.
func IsEOF(err error) bool {
	return err == io.EOF
}

// ErrTruncated wraps an io.ErrUnexpectedEOF into the file-format error kind.
func ErrTruncated(context string) error {
	return apperrors.Wrap(apperrors.CodeFileFormat, "unexpected EOF in "+context, io.ErrUnexpectedEOF)
}
