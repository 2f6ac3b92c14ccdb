// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

package packets

import (
	"bytes"
	"encoding/binary"
	"io"
	"unicode/utf8"
	"unsafe"
)

// bytesToString provides a zero-alloc no-copy byte to string conversion.
// via https://github.com/golang/go/issues/25484#issuecomment-391415660
func bytesToString(bs []byte) string {
	return *(*string)(unsafe.Pointer(&bs))
}

// decodeUint16 extracts the value of two bytes from a byte array.
func decodeUint16(buf []byte, offset int) (uint16, int, error) {
	if len(buf) < offset+2 {
		return 0, 0, ErrOffsetUintOutOfRange
	}

	return binary.BigEndian.Uint16(buf[offset : offset+2]), offset + 2, nil
}

// decodeUint32 extracts the value of four bytes from a byte array.
func decodeUint32(buf []byte, offset int) (uint32, int, error) {
	if len(buf) < offset+4 {
		return 0, 0, ErrOffsetUintOutOfRange
	}

	return binary.BigEndian.Uint32(buf[offset : offset+4]), offset + 4, nil
}

// decodeString extracts a length-prefixed UTF-8 string from a byte array,
// beginning at an offset.
func decodeString(buf []byte, offset int) (string, int, error) {
	b, n, err := decodeBytes(buf, offset)
	if err != nil {
		return "", 0, err
	}

	if !validUTF8(b) { // [MQTT-1.5.4-1] [MQTT-3.1.3-5]
		return "", 0, ErrOffsetStrInvalidUTF8
	}

	return bytesToString(b), n, nil
}

// validUTF8 checks if the byte array contains valid UTF-8 characters and
// no embedded NUL.
func validUTF8(b []byte) bool {
	return utf8.Valid(b) && bytes.IndexByte(b, 0x00) == -1 // [MQTT-1.5.4-1] [MQTT-1.5.4-2]
}

// decodeBytes extracts a length-prefixed byte array from a byte array,
// beginning at an offset. Used primarily for message payloads.
func decodeBytes(buf []byte, offset int) ([]byte, int, error) {
	length, next, err := decodeUint16(buf, offset)
	if err != nil {
		return nil, 0, err
	}

	if next+int(length) > len(buf) {
		return nil, 0, ErrOffsetBytesOutOfRange
	}

	return buf[next : next+int(length)], next + int(length), nil
}

// decodeByte extracts the value of a byte from a byte array.
func decodeByte(buf []byte, offset int) (byte, int, error) {
	if len(buf) <= offset {
		return 0, 0, ErrOffsetByteOutOfRange
	}
	return buf[offset], offset + 1, nil
}

// decodeByteBool extracts the value of a byte from a byte array and
// returns it as a bool.
func decodeByteBool(buf []byte, offset int) (bool, int, error) {
	if len(buf) <= offset {
		return false, 0, ErrOffsetBoolOutOfRange
	}
	return 1&buf[offset] > 0, offset + 1, nil
}

// encodeBool returns a byte instead of a bool.
func encodeBool(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// encodeBytes encodes a byte array as a length-prefixed byte array. Used
// primarily for message payloads.
func encodeBytes(val []byte) []byte {
	// In most circumstances the number of bytes being encoded is small.
	// Setting the cap to a low amount allows us to account for those
	// without triggering allocation growth on append unless we need to.
	buf := make([]byte, 2, 32)
	binary.BigEndian.PutUint16(buf, uint16(len(val)))
	return append(buf, val...)
}

// encodeUint16 encodes a uint16 value to a byte array.
func encodeUint16(val uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, val)
	return buf
}

// encodeUint32 encodes a uint32 value to a byte array.
func encodeUint32(val uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, val)
	return buf
}

// encodeString encodes a string as a length-prefixed byte array.
func encodeString(val string) []byte {
	buf := make([]byte, 2, 32)
	binary.BigEndian.PutUint16(buf, uint16(len(val)))
	return append(buf, []byte(val)...)
}

// encodeLength writes a variable byte integer. [MQTT-1.5.5-1]
func encodeLength(b *bytes.Buffer, length int64) {
	for {
		eb := byte(length % 128)
		length /= 128
		if length > 0 {
			eb |= 0x80
		}
		b.WriteByte(eb)
		if length == 0 {
			break
		}
	}
}

// DecodeLength reads a variable byte integer, returning the decoded value
// and the number of bytes consumed. It rejects a fifth continuation byte
// and any value above MaxVarint. [MQTT-1.5.5-1]
func DecodeLength(b io.ByteReader) (n, bu int, err error) {
	var multiplier uint32
	var value uint32
	bu = 1
	for {
		eb, err := b.ReadByte()
		if err != nil {
			return 0, bu, err
		}

		value |= uint32(eb&127) << multiplier
		if value > MaxVarint || bu > 4 {
			return 0, bu, ErrMalformedVarint
		}

		if (eb & 128) == 0 {
			break
		}

		multiplier += 7
		bu++
	}

	return int(value), bu, nil
}

// ReadVarint reads a variable byte integer from the front of buf, returning
// the decoded value and the number of header bytes it occupied.
func ReadVarint(buf []byte) (n, bu int, err error) {
	r := bytes.NewReader(buf)
	n, bu, err = DecodeLength(r)
	if err != nil {
		if err == io.EOF {
			return 0, 0, ErrNeedMoreData
		}
		return 0, 0, err
	}
	return n, bu, nil
}

// WriteVarint appends a variable byte integer encoding of n to buf. It
// refuses values above MaxVarint; the caller is responsible for never
// constructing a remaining-length this large.
func WriteVarint(buf *bytes.Buffer, n int) error {
	if n < 0 || n > MaxVarint {
		return ErrOversizedVarint
	}
	encodeLength(buf, int64(n))
	return nil
}

// ReadUtf8 reads a length-prefixed UTF-8 string from buf at offset,
// returning the string and the offset of the byte following it.
func ReadUtf8(buf []byte, offset int) (string, int, error) {
	return decodeString(buf, offset)
}

// skipProperties skips an MQTT5 property block — a varint length
// followed by that many opaque bytes — at offset, returning the
// offset of the first byte following it. Property content is never
// interpreted. [SPEC_FULL §3.1]
func skipProperties(buf []byte, offset int) (int, error) {
	if offset > len(buf) {
		return 0, ErrOffsetBytesOutOfRange
	}
	n, bu, err := ReadVarint(buf[offset:])
	if err != nil {
		if err == ErrNeedMoreData {
			return 0, ErrMalformedVarint
		}
		return 0, err
	}
	next := offset + bu + n
	if next > len(buf) {
		return 0, ErrOffsetBytesOutOfRange
	}
	return next, nil
}

// WriteUtf8 appends a length-prefixed encoding of s. It refuses strings
// whose byte length would overflow the 16-bit length prefix.
func WriteUtf8(buf *bytes.Buffer, s string) error {
	if len(s) > MaxUtf8Len {
		return ErrOversizedString
	}
	buf.Write(encodeString(s))
	return nil
}
