package binread

import (
	"encoding/binary"
	"fmt"
)

// BoundsError describes a read that would run past the end of a buffer.
type BoundsError struct {
	Offset int
	Want   int
	Size   int
	What   string
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("read of %d bytes at offset %d exceeds buffer size %d while reading %s",
		e.Want, e.Offset, e.Size, e.What)
}

// Reader is a cursor over an in-memory buffer.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at off.
func NewReader(buf []byte, off int) *Reader {
	return &Reader{buf: buf, off: off}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.off >= len(r.buf) {
		return 0
	}
	return len(r.buf) - r.off
}

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(off int) { r.off = off }

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int, what string) error {
	if n < 0 || r.off+n > len(r.buf) {
		return &BoundsError{Offset: r.off, Want: n, Size: len(r.buf), What: what}
	}
	r.off += n
	return nil
}

// ReadN returns the next n bytes as a sub-slice of the buffer.
func (r *Reader) ReadN(n int, what string) ([]byte, error) {
	if n < 0 || r.off < 0 || r.off+n > len(r.buf) {
		return nil, &BoundsError{Offset: r.off, Want: n, Size: len(r.buf), What: what}
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8(what string) (uint8, error) {
	b, err := r.ReadN(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint24 reads a big-endian 24-bit integer.
func (r *Reader) Uint24(what string) (uint32, error) {
	b, err := r.ReadN(3, what)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// Uint32 reads a big-endian 32-bit integer.
func (r *Reader) Uint32(what string) (uint32, error) {
	b, err := r.ReadN(4, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64 reads a big-endian 64-bit integer.
func (r *Reader) Uint64(what string) (uint64, error) {
	b, err := r.ReadN(8, what)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Vint reads an EBML variable-length integer at the cursor.
func (r *Reader) Vint(mask bool, what string) (Vint, error) {
	v, ok := ReadVint(r.buf, r.off, mask)
	if !ok {
		return Vint{}, &BoundsError{Offset: r.off, Want: 1, Size: len(r.buf), What: what}
	}
	r.off += v.Len
	return v, nil
}
