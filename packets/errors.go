// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

import (
	"errors"
)

var (
	// ErrNeedMoreData indicates the queue does not yet contain a
	// complete frame. The queue is left untouched; the caller should
	// retry once more bytes have arrived. It is not a protocol error.
	ErrNeedMoreData = errors.New("need more data")

	// ErrMalformedVarint indicates a variable byte integer used more
	// than four bytes, or its fifth continuation bit was set.
	ErrMalformedVarint = errors.New("malformed packet: variable byte integer")

	// ErrOversizedVarint indicates a value larger than MaxVarint was
	// passed to WriteVarint.
	ErrOversizedVarint = errors.New("value exceeds maximum variable byte integer")

	// ErrOversizedString indicates a string longer than MaxUtf8Len was
	// passed to WriteUtf8.
	ErrOversizedString = errors.New("string exceeds maximum length-prefixed size")

	// CONNECT
	ErrMalformedProtocolName    = errors.New("malformed packet: protocol name")
	ErrMalformedProtocolVersion = errors.New("malformed packet: protocol version")
	ErrMalformedFlags           = errors.New("malformed packet: flags")
	ErrMalformedKeepalive       = errors.New("malformed packet: keepalive")
	ErrMalformedClientID        = errors.New("malformed packet: client id")
	ErrMalformedWillTopic       = errors.New("malformed packet: will topic")
	ErrMalformedWillMessage     = errors.New("malformed packet: will message")
	ErrMalformedUsername        = errors.New("malformed packet: username")
	ErrMalformedPassword        = errors.New("malformed packet: password")

	// CONNACK
	ErrMalformedSessionPresent = errors.New("malformed packet: session present")
	ErrMalformedReturnCode     = errors.New("malformed packet: return code")

	// PUBLISH
	ErrMalformedTopic    = errors.New("malformed packet: topic name")
	ErrMalformedPacketID = errors.New("malformed packet: packet id")

	// SUBSCRIBE
	ErrMalformedQoS = errors.New("malformed packet: qos")

	// PACKETS
	ErrProtocolViolation     = errors.New("protocol violation")
	ErrOffsetStrOutOfRange   = errors.New("offset string out of range")
	ErrOffsetBytesOutOfRange = errors.New("offset bytes out of range")
	ErrOffsetByteOutOfRange  = errors.New("offset byte out of range")
	ErrOffsetBoolOutOfRange  = errors.New("offset bool out of range")
	ErrOffsetUintOutOfRange  = errors.New("offset uint out of range")
	ErrOffsetStrInvalidUTF8  = errors.New("offset string invalid utf8")

	// ErrInvalidFlags indicates a reserved fixed-header flag nibble
	// carried a non-zero value where the protocol mandates zero, or a
	// mandatory-0b0010 packet (PubRel, Subscribe, Unsubscribe) carried
	// something else. [MQTT-2.2.2-1] [MQTT-2.2.2-2]
	ErrInvalidFlags = errors.New("invalid flags set for packet")

	// ErrInvalidKind indicates a fixed-header high nibble outside 1..14.
	ErrInvalidKind = errors.New("invalid packet kind")

	ErrMissingPacketID = errors.New("missing packet id")
	ErrSurplusPacketID = errors.New("surplus packet id")
)

// validateQoS ensures the QoS byte is within the correct range.
func validateQoS(qos byte) bool {
	return qos <= QoS2
}
