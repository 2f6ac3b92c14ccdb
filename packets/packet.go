// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package packets implements the MQTT 3.1/3.1.1/5.0 control packet wire
// format: fixed header framing, a single tagged-variant packet type, and
// canonical per-kind encode/decode.
package packets

import "bytes"

// Packet is the tagged variant covering all fourteen control packet
// kinds plus the no-op sentinel (Kind == None). Instead of a packet
// interface with one struct per kind, every field that any kind can
// carry is flattened onto this one struct; Kind is the discriminant
// and callers switch on it rather than on a concrete Go type.
type Packet struct {
	FixedHeader FixedHeader

	// CONNECT
	ProtocolVersion byte
	CleanSession    bool
	WillFlag        bool
	WillQos         byte
	WillRetain      bool
	UsernameFlag    bool
	PasswordFlag    bool
	Keepalive       uint16
	ClientID        string
	WillTopic       string
	WillMessage     []byte
	Username        string
	Password        []byte

	// CONNACK
	SessionPresent bool
	ReasonCode     byte

	// PUBLISH
	TopicName string
	Payload   []byte

	// PUBACK / PUBREC / PUBREL / PUBCOMP / SUBACK / UNSUBACK / SUBSCRIBE / UNSUBSCRIBE
	PacketID uint16

	// SUBSCRIBE / UNSUBSCRIBE
	Topics []string
	Qoss   []byte

	// SUBACK
	ReturnCodes []byte
}

// Kind returns the packet's discriminant, a shorthand for
// pk.FixedHeader.Kind.
func (pk *Packet) Kind() Kind {
	return pk.FixedHeader.Kind
}

// Decode parses exactly one complete frame from the front of queue. It
// returns ErrNeedMoreData (queue untouched by the caller) when queue
// does not yet hold a complete frame. When the fixed header itself is
// invalid (bad kind, flags or varint) the consumed count is 0. When the
// body fails to decode, the returned consumed count is still the frame
// length the fixed header declared, since those bytes belong to the
// malformed frame and the connection is expected to close rather than
// retry.
//
// protocolLevel is the level negotiated by this connection's Connect
// packet (ProtocolV311 before one has arrived); at ProtocolV5, Publish
// and Subscribe bodies carry an opaque property block that is skipped
// rather than interpreted. [SPEC_FULL §3.1]
func Decode(queue []byte, protocolLevel byte) (pk Packet, consumed int, err error) {
	fh, headerLen, err := ReadFixedHeader(queue)
	if err != nil {
		return Packet{}, 0, err
	}

	total := headerLen + fh.Remaining
	if len(queue) < total {
		return Packet{}, 0, ErrNeedMoreData
	}

	pk = Packet{FixedHeader: fh}
	body := queue[headerLen:total]
	if err := pk.decodeBody(body, protocolLevel); err != nil {
		return Packet{}, total, err
	}

	return pk, total, nil
}

// decodeBody dispatches to the per-kind body decoder. The fixed header
// has already been parsed and validated; body is exactly fh.Remaining
// bytes, no more, no less.
func (pk *Packet) decodeBody(body []byte, protocolLevel byte) error {
	switch pk.FixedHeader.Kind {
	case Connect:
		return pk.decodeConnect(body)
	case Connack:
		return pk.decodeConnack(body)
	case Publish:
		return pk.decodePublish(body, protocolLevel)
	case Puback, Pubrec, Pubrel, Pubcomp, Unsuback:
		return pk.decodePacketIDOnly(body)
	case Subscribe:
		return pk.decodeSubscribe(body, protocolLevel)
	case Suback:
		return pk.decodeSuback(body)
	case Unsubscribe:
		return pk.decodeUnsubscribe(body)
	case Pingreq, Pingresp, Disconnect:
		return pk.decodeEmpty(body)
	default:
		return ErrInvalidKind
	}
}

// Encode serialises pk to its canonical wire form. Encoding the no-op
// sentinel (Kind == None) writes nothing.
func (pk *Packet) Encode(buf *bytes.Buffer) error {
	if pk.FixedHeader.Kind == None {
		return nil
	}

	body := new(bytes.Buffer)
	if err := pk.encodeBody(body); err != nil {
		return err
	}

	pk.FixedHeader.Remaining = body.Len()
	if err := pk.FixedHeader.Encode(buf); err != nil {
		return err
	}

	buf.Write(body.Bytes())
	return nil
}

// encodeBody dispatches to the per-kind body encoder.
func (pk *Packet) encodeBody(body *bytes.Buffer) error {
	switch pk.FixedHeader.Kind {
	case Connect:
		return pk.encodeConnect(body)
	case Connack:
		return pk.encodeConnack(body)
	case Publish:
		return pk.encodePublish(body)
	case Puback, Pubrec, Pubrel, Pubcomp, Unsuback:
		return pk.encodePacketIDOnly(body)
	case Subscribe:
		return pk.encodeSubscribe(body)
	case Suback:
		return pk.encodeSuback(body)
	case Unsubscribe:
		return pk.encodeUnsubscribe(body)
	case Pingreq, Pingresp, Disconnect:
		return nil
	default:
		return ErrInvalidKind
	}
}

// decodeEmpty enforces the fixed zero body size for PingReq, PingResp
// and Disconnect.
func (pk *Packet) decodeEmpty(body []byte) error {
	if len(body) != 0 {
		return ErrProtocolViolation
	}
	return nil
}

// decodePacketIDOnly enforces the fixed two-byte body (a packet id) for
// PubAck, PubRec, PubRel, PubComp and UnsubAck.
func (pk *Packet) decodePacketIDOnly(body []byte) error {
	if len(body) != 2 {
		return ErrMalformedPacketID
	}
	id, _, err := decodeUint16(body, 0)
	if err != nil {
		return err
	}
	pk.PacketID = id
	return nil
}

// encodePacketIDOnly writes the two-byte packet id body shared by
// PubAck, PubRec, PubRel, PubComp and UnsubAck.
func (pk *Packet) encodePacketIDOnly(body *bytes.Buffer) error {
	body.Write(encodeUint16(pk.PacketID))
	return nil
}
