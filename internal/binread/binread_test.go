package binread

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestVintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 126, 127, 128, 16382, 16383, 1 << 20, 1<<35 + 7, 1<<49 - 3}

	for _, v := range values {
		enc := EncodeVint(v)
		got, ok := ReadVint(enc, 0, true)
		if !ok {
			t.Fatalf("ReadVint failed for %d (encoded %x)", v, enc)
		}
		if got.Value != v {
			t.Errorf("Expected value %d, got %d", v, got.Value)
		}
		if got.Len != len(enc) {
			t.Errorf("Expected length %d, got %d", len(enc), got.Len)
		}
		if got.Unknown {
			t.Errorf("Value %d should not decode as unknown size", v)
		}
	}
}

func TestVintUnknownSize(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
	}{
		{"one byte", []byte{0xFF}},
		{"two bytes", []byte{0x7F, 0xFF}},
		{"four bytes", []byte{0x1F, 0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := ReadVint(tt.in, 0, true)
			if !ok {
				t.Fatal("Expected successful read")
			}
			if !v.Unknown {
				t.Errorf("Expected unknown-size flag for %x", tt.in)
			}
		})
	}
}

func TestVintUnmaskedKeepsMarker(t *testing.T) {
	id := []byte{0x18, 0x53, 0x80, 0x67}
	v, ok := ReadVint(id, 0, false)
	if !ok {
		t.Fatal("Expected successful read")
	}
	if v.Value != 0x18538067 || v.Len != 4 {
		t.Errorf("Expected 0x18538067/4, got %#x/%d", v.Value, v.Len)
	}
}

func TestVintTruncated(t *testing.T) {
	if _, ok := ReadVint([]byte{0x40}, 0, true); ok {
		t.Error("Expected failure for truncated two-byte vint")
	}
	if _, ok := ReadVint([]byte{0x00, 0x01}, 0, true); ok {
		t.Error("Expected failure for zero leading byte")
	}
	if _, ok := ReadVint([]byte{0x81}, 5, true); ok {
		t.Error("Expected failure for offset past end")
	}
}

func box(typ string, payload []byte) []byte {
	b := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint32(b, uint32(len(b)))
	copy(b[4:], typ)
	copy(b[8:], payload)
	return b
}

func TestIterBoxes(t *testing.T) {
	var buf []byte
	buf = append(buf, box("ftyp", []byte("M4A "))...)

	// extended 64-bit size
	ext := make([]byte, 16+4)
	binary.BigEndian.PutUint32(ext, 1)
	copy(ext[4:], "free")
	binary.BigEndian.PutUint64(ext[8:], uint64(len(ext)))
	buf = append(buf, ext...)

	// size zero runs to the end
	tail := make([]byte, 8+10)
	copy(tail[4:], "mdat")
	buf = append(buf, tail...)

	var got []Box
	for b := range IterBoxes(buf, 0, len(buf)) {
		got = append(got, b)
	}

	if len(got) != 3 {
		t.Fatalf("Expected 3 boxes, got %d", len(got))
	}
	if got[0].Type != "ftyp" || got[0].Header != 8 || got[0].Size() != 12 {
		t.Errorf("Unexpected first box: %+v", got[0])
	}
	if got[1].Type != "free" || got[1].Header != 16 || got[1].DataStart != got[1].Start+16 {
		t.Errorf("Unexpected extended box: %+v", got[1])
	}
	if got[2].Type != "mdat" || got[2].End != len(buf) {
		t.Errorf("Unexpected to-end box: %+v", got[2])
	}
}

func TestIterBoxesStopsOnMalformed(t *testing.T) {
	buf := box("moov", nil)
	buf = append(buf, 0, 0, 0, 4, 'b', 'a', 'd', '!')

	count := 0
	for range IterBoxes(buf, 0, len(buf)) {
		count++
	}
	if count != 1 {
		t.Errorf("Expected iteration to stop after 1 box, got %d", count)
	}
}

func TestFindChildNested(t *testing.T) {
	inner := box("udta", box("meta", []byte{1, 2, 3, 4}))
	outer := box("moov", inner)

	moov, ok := FindChild(outer, 0, len(outer), "moov")
	if !ok {
		t.Fatal("moov not found")
	}
	udta, ok := FindChild(outer, moov.DataStart, moov.End, "udta")
	if !ok {
		t.Fatal("udta not found")
	}
	if _, ok := FindChild(outer, udta.DataStart, udta.End, "meta"); !ok {
		t.Error("meta not found")
	}
	if _, ok := FindChild(outer, udta.DataStart, udta.End, "ilst"); ok {
		t.Error("Expected ilst to be absent")
	}
}

func TestSynchsafe(t *testing.T) {
	if got := Synchsafe32([]byte{0x00, 0x00, 0x02, 0x01}); got != 257 {
		t.Errorf("Expected 257, got %d", got)
	}
	for _, v := range []uint32{0, 127, 128, 49990, 1<<28 - 1} {
		if got := Synchsafe32(EncodeSynchsafe32(v)); got != v {
			t.Errorf("Synchsafe round trip: expected %d, got %d", v, got)
		}
	}
}

func TestReaderBounds(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, 0)

	v, err := r.Uint24("header")
	if err != nil {
		t.Fatalf("Failed to read uint24: %v", err)
	}
	if v != 0x010203 {
		t.Errorf("Expected 0x010203, got %#x", v)
	}

	_, err = r.Uint32("size")
	var be *BoundsError
	if !errors.As(err, &be) {
		t.Fatalf("Expected BoundsError, got %v", err)
	}
	if be.Offset != 3 || be.What != "size" {
		t.Errorf("Unexpected bounds error: %+v", be)
	}
	if r.Offset() != 3 {
		t.Errorf("Failed read should not advance cursor, got offset %d", r.Offset())
	}
}
