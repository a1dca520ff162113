// Package embedded extracts cover art stored inside audio containers.
//
// Three containers are parsed directly from bounded byte windows:
//
//   - MP3: ID3v2.2 PIC and ID3v2.3/2.4 APIC frames
//   - M4A/MP4: the iTunes covr atom under moov/udta/meta/ilst
//   - MKA/MKV/WebM: Matroska attachments, with a Motion-JPEG fallback
//
// FLAC and Ogg pictures are read through github.com/dhowden/tag.
//
// Nothing is ever decoded here; callers receive raw image bytes plus the
// MIME type declared by the container or sniffed from the payload.
package embedded
