package binread

// Synchsafe32 decodes a 4-byte ID3 synch-safe integer (7 bits per byte, big
// endian). The top bit of each byte is ignored.
func Synchsafe32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0]&0x7F)<<21 | uint32(b[1]&0x7F)<<14 | uint32(b[2]&0x7F)<<7 | uint32(b[3]&0x7F)
}

// EncodeSynchsafe32 is the inverse of Synchsafe32 for values below 2^28.
func EncodeSynchsafe32(v uint32) []byte {
	return []byte{
		byte(v>>21) & 0x7F,
		byte(v>>14) & 0x7F,
		byte(v>>7) & 0x7F,
		byte(v) & 0x7F,
	}
}
