package binread

import (
	"encoding/binary"
	"iter"
)

// Box is an ISO-BMFF box located inside a buffer.
type Box struct {
	Type      string
	Start     int // offset of the size field
	End       int // exclusive end, clamped to the iteration range
	Header    int // 8 or 16 bytes
	DataStart int
	Clamped   bool // declared size ran past the iteration range
}

// Size returns the clamped box length including its header.
func (b Box) Size() int { return b.End - b.Start }

// IterBoxes yields the boxes laid out back to back in buf[start:end]. A size of
// 1 means a 64-bit size follows the type, a size of 0 means the box runs to
// end. Iteration stops at the first malformed header.
func IterBoxes(buf []byte, start, end int) iter.Seq[Box] {
	if end > len(buf) {
		end = len(buf)
	}
	return func(yield func(Box) bool) {
		off := start
		for off >= 0 && off+8 <= end {
			size := uint64(binary.BigEndian.Uint32(buf[off:]))
			typ := string(buf[off+4 : off+8])
			header := 8
			switch size {
			case 1:
				if off+16 > end {
					return
				}
				size = binary.BigEndian.Uint64(buf[off+8:])
				header = 16
			case 0:
				size = uint64(end - off)
			}
			if size < uint64(header) {
				return
			}
			boxEnd, clamped := end, true
			if size <= uint64(end-off) {
				boxEnd, clamped = off+int(size), false
			}
			if !yield(Box{Type: typ, Start: off, End: boxEnd, Header: header, DataStart: off + header, Clamped: clamped}) {
				return
			}
			off = boxEnd
		}
	}
}

// FindChild returns the first box of the given type inside buf[start:end].
func FindChild(buf []byte, start, end int, typ string) (Box, bool) {
	for b := range IterBoxes(buf, start, end) {
		if b.Type == typ {
			return b, true
		}
	}
	return Box{}, false
}
