package record

import "encoding/binary"

// A hint record mirrors a data record minus the value: the 15-byte data
// header, the key bytes, then an 8-byte little-endian trailer holding the
// value's byte offset inside the compacted data file. Replaying hint records
// rebuilds a file's index contribution without touching the data file; the
// record's own offset is recovered as trailer minus header minus key.

// HintTrailerLen is the encoded size of the value-offset trailer.
const HintTrailerLen = 8

// HintLen returns the encoded size of the hint record for a data header.
func HintLen(h Header) int {
	return HeaderLen + int(h.KeySize) + HintTrailerLen
}

// EncodeHint serializes a hint record for a copied data record whose value
// starts at valueOffset in the compacted file.
func EncodeHint(h Header, key []byte, valueOffset uint64) []byte {
	buf := make([]byte, HintLen(h))
	h.marshalInto(buf)
	copy(buf[HeaderLen:], key)
	binary.LittleEndian.PutUint64(buf[HeaderLen+len(key):], valueOffset)
	return buf
}

// DecodeHintTrailer reads the value offset out of the trailer bytes.
func DecodeHintTrailer(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[:HintTrailerLen])
}

// RecordOffsetFromValueOffset maps a hint trailer back to the offset of the
// record header it belongs to.
func RecordOffsetFromValueOffset(h Header, valueOffset uint64) uint64 {
	return valueOffset - HeaderLen - uint64(h.KeySize)
}
