// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

import "bytes"

// FixedHeader is the two-to-five byte header present on every control
// packet: a kind nibble, a flags nibble, and a variable byte integer
// giving the length of everything that follows it.
type FixedHeader struct {
	Kind      Kind
	Dup       bool
	Qos       byte
	Retain    bool
	Remaining int
}

// flagsByte packs Dup/Qos/Retain into the low nibble of the header byte,
// applying the fixed reserved-flag values mandated for non-Publish
// packets. [MQTT-2.2.2-1] [MQTT-2.2.2-2]
func (fh *FixedHeader) flagsByte() byte {
	switch fh.Kind {
	case Publish:
		var b byte
		if fh.Dup {
			b |= 1 << 3
		}
		b |= fh.Qos << 1
		if fh.Retain {
			b |= 1
		}
		return b
	case Pubrel, Subscribe, Unsubscribe:
		return 0b0010
	default:
		return 0
	}
}

// Encode writes the fixed header to buf. The caller is responsible for
// having already set Remaining to the exact length of the variable
// header plus payload that will follow.
func (fh *FixedHeader) Encode(buf *bytes.Buffer) error {
	buf.WriteByte(byte(fh.Kind)<<4 | fh.flagsByte())
	return WriteVarint(buf, fh.Remaining)
}

// decodeFlags unpacks the low nibble of the header byte into Dup/Qos/
// Retain, validating it against what the packet kind allows.
func (fh *FixedHeader) decodeFlags(flags byte) error {
	switch fh.Kind {
	case Publish:
		fh.Dup = flags&(1<<3) > 0
		fh.Qos = (flags >> 1) & 0x03
		fh.Retain = flags&1 > 0
		if fh.Qos > QoS2 {
			return ErrMalformedQoS
		}
		if fh.Qos == QoS0 && fh.Dup {
			return ErrInvalidFlags
		}
	case Pubrel, Subscribe, Unsubscribe:
		if flags != 0b0010 {
			return ErrInvalidFlags
		}
	default:
		if flags != 0 {
			return ErrInvalidFlags
		}
	}
	return nil
}

// decodeHeaderByte splits the leading byte of a packet into its kind
// and flags nibbles and validates the kind is one of the fourteen wire
// kinds.
func decodeHeaderByte(b byte) (kind Kind, flags byte, err error) {
	kind = Kind(b >> 4)
	flags = b & 0x0F
	if kind < Connect || kind > Disconnect {
		return 0, 0, ErrInvalidKind
	}
	return kind, flags, nil
}

// ReadFixedHeader parses a fixed header from the front of buf. It
// returns ErrNeedMoreData (queue left untouched by the caller) if buf
// does not yet contain a complete header, and the number of bytes the
// header itself occupied so the caller can locate the variable header.
func ReadFixedHeader(buf []byte) (fh FixedHeader, headerLen int, err error) {
	if len(buf) < 2 {
		return FixedHeader{}, 0, ErrNeedMoreData
	}

	kind, flags, err := decodeHeaderByte(buf[0])
	if err != nil {
		return FixedHeader{}, 0, err
	}

	remaining, lenBytes, err := ReadVarint(buf[1:])
	if err != nil {
		return FixedHeader{}, 0, err
	}

	fh.Kind = kind
	fh.Remaining = remaining
	if err := fh.decodeFlags(flags); err != nil {
		return FixedHeader{}, 0, err
	}

	return fh, 1 + lenBytes, nil
}
