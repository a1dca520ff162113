package binread

// Vint is a decoded EBML variable-length integer.
type Vint struct {
	Len     int
	Value   uint64
	Unknown bool // all value bits set; only meaningful for masked size fields
}

// ReadVint decodes the vint starting at off. The encoded length is taken from
// the position of the leading set bit of the first byte. With mask set the
// length marker is stripped from the value (size fields); without it the
// marker is kept (element IDs). It reports false when the buffer is too short
// or the first byte is zero.
func ReadVint(b []byte, off int, mask bool) (Vint, bool) {
	if off < 0 || off >= len(b) {
		return Vint{}, false
	}
	first := b[off]
	if first == 0 {
		return Vint{}, false
	}
	n := 1
	for marker := byte(0x80); first&marker == 0; marker >>= 1 {
		n++
	}
	if off+n > len(b) {
		return Vint{}, false
	}

	var v uint64
	if mask {
		v = uint64(first & (0xFF >> n))
	} else {
		v = uint64(first)
	}
	for i := 1; i < n; i++ {
		v = v<<8 | uint64(b[off+i])
	}

	out := Vint{Len: n, Value: v}
	if mask {
		out.Unknown = v == (uint64(1)<<(7*n))-1
	}
	return out, true
}

// EncodeVint encodes v as a size-field vint of the smallest length that can
// hold it without colliding with the unknown-size sentinel.
func EncodeVint(v uint64) []byte {
	n := 1
	for n < 8 && v >= (uint64(1)<<(7*n))-1 {
		n++
	}
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	out[0] |= 0x80 >> (n - 1)
	return out
}

// UnknownSize returns the one-byte unknown-size vint.
func UnknownSize() []byte { return []byte{0xFF} }
