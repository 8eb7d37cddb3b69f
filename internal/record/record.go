// Package record implements the on-disk record format: a fixed 15-byte
// header followed by the key bytes and the value bytes. All multi-byte
// fields are little-endian and the header carries no padding, so the layout
// is bit-exact across platforms:
//
//	offset 0      tombstone   1 byte   0 live, 1 deletion marker
//	offset 1      timestamp   8 bytes  seconds since the Unix epoch
//	offset 9      key_size    2 bytes
//	offset 11     value_size  4 bytes
//
// Tombstones carry value_size 0, timestamp 0 and no value bytes. The codec
// performs no I/O and allocates nothing beyond the returned buffer.
package record

import (
	"encoding/binary"
	"math"

	"github.com/iamNilotpal/cask/pkg/errors"
)

const (
	// HeaderLen is the fixed encoded size of a record header.
	HeaderLen = 15

	// MaxKeySize is the largest encodable key. The full 16-bit range is not
	// usable: one value stays reserved so every key length has an encoding
	// distinct from the sentinel.
	MaxKeySize = math.MaxUint16 - 1

	// MaxValueSize is the largest encodable value, with the same reservation
	// applied to the 32-bit range.
	MaxValueSize = math.MaxUint32 - 1
)

// Tombstone marker values.
const (
	NotDeleted byte = 0
	Deleted    byte = 1
)

// Header holds the decoded fixed-layout fields of a record.
type Header struct {
	Tombstone byte
	Timestamp uint64
	KeySize   uint16
	ValueSize uint32
}

// IsTombstone reports whether this header marks a deletion.
func (h Header) IsTombstone() bool {
	return h.Tombstone == Deleted
}

// DataLen is the number of bytes following the header: key plus value.
func (h Header) DataLen() int {
	return int(h.KeySize) + int(h.ValueSize)
}

// RecordLen is the total on-disk size of the record this header describes.
func (h Header) RecordLen() int {
	return HeaderLen + h.DataLen()
}

// Valid reports whether the header is structurally sound on its own: a
// recognized tombstone marker, a non-zero key size, and for tombstones an
// empty value.
func (h Header) Valid() bool {
	if h.Tombstone != NotDeleted && h.Tombstone != Deleted {
		return false
	}
	if h.KeySize == 0 {
		return false
	}
	if h.Tombstone == Deleted && h.ValueSize != 0 {
		return false
	}
	return true
}

func (h Header) marshalInto(b []byte) {
	b[0] = h.Tombstone
	binary.LittleEndian.PutUint64(b[1:9], h.Timestamp)
	binary.LittleEndian.PutUint16(b[9:11], h.KeySize)
	binary.LittleEndian.PutUint32(b[11:15], h.ValueSize)
}

// DecodeHeader interprets the first HeaderLen bytes of b as a record header.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, errors.NewStorageError(
			nil, errors.ErrorCodeCorruption, "Record header truncated",
		).WithDetail("have", len(b)).WithDetail("want", HeaderLen)
	}

	return Header{
		Tombstone: b[0],
		Timestamp: binary.LittleEndian.Uint64(b[1:9]),
		KeySize:   binary.LittleEndian.Uint16(b[9:11]),
		ValueSize: binary.LittleEndian.Uint32(b[11:15]),
	}, nil
}

func checkKey(key []byte) error {
	if len(key) == 0 {
		return errors.NewCodecError(
			nil, errors.ErrorCodeCodec, "Key must not be empty",
		).WithKeySize(0)
	}
	if len(key) > MaxKeySize {
		return errors.NewCodecError(
			nil, errors.ErrorCodeCodec, "Key exceeds the maximum encodable length",
		).WithKeySize(len(key)).WithDetail("max", MaxKeySize)
	}
	return nil
}

// Encode serializes a live record for the given key, value and timestamp.
func Encode(key, value []byte, timestamp uint64) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if len(value) > MaxValueSize {
		return nil, errors.NewCodecError(
			nil, errors.ErrorCodeCodec, "Value exceeds the maximum encodable length",
		).WithValueSize(len(value)).WithDetail("max", MaxValueSize)
	}

	header := Header{
		Tombstone: NotDeleted,
		Timestamp: timestamp,
		KeySize:   uint16(len(key)),
		ValueSize: uint32(len(value)),
	}

	buf := make([]byte, header.RecordLen())
	header.marshalInto(buf)
	copy(buf[HeaderLen:], key)
	copy(buf[HeaderLen+len(key):], value)
	return buf, nil
}

// EncodeTombstone serializes a deletion marker for the given key. Tombstones
// carry no value and a zero timestamp.
func EncodeTombstone(key []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	header := Header{
		Tombstone: Deleted,
		Timestamp: 0,
		KeySize:   uint16(len(key)),
		ValueSize: 0,
	}

	buf := make([]byte, header.RecordLen())
	header.marshalInto(buf)
	copy(buf[HeaderLen:], key)
	return buf, nil
}
