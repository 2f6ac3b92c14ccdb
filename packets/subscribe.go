// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

import (
	"bytes"
	"fmt"
)

// encodeSubscribe writes a Subscribe packet body: packet id followed by
// one (topic, requested-qos) pair per filter. [MQTT-2.3.1-1]
func (pk *Packet) encodeSubscribe(buf *bytes.Buffer) error {
	if pk.PacketID == 0 {
		return ErrMissingPacketID
	}
	if len(pk.Topics) == 0 {
		return ErrProtocolViolation
	}

	buf.Write(encodeUint16(pk.PacketID))
	for i, topic := range pk.Topics {
		buf.Write(encodeString(topic))
		buf.WriteByte(pk.Qoss[i])
	}

	return nil
}

// decodeSubscribe parses a Subscribe packet body. At ProtocolV5 an
// opaque property block follows the packet id, immediately before the
// topic filter list; its bytes are skipped, never interpreted.
// [SPEC_FULL §3.1]
func (pk *Packet) decodeSubscribe(body []byte, protocolLevel byte) error {
	var offset int
	var err error

	pk.PacketID, offset, err = decodeUint16(body, 0)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedPacketID, err)
	}

	if protocolLevel == ProtocolV5 {
		offset, err = skipProperties(body, offset)
		if err != nil {
			return err
		}
	}

	for offset < len(body) {
		var topic string
		topic, offset, err = decodeString(body, offset)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedTopic, err)
		}
		pk.Topics = append(pk.Topics, topic)

		var qos byte
		qos, offset, err = decodeByte(body, offset)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedQoS, err)
		}
		if !validateQoS(qos) {
			return ErrMalformedQoS
		}
		pk.Qoss = append(pk.Qoss, qos)
	}

	if len(pk.Topics) == 0 {
		return ErrProtocolViolation
	}

	return nil
}

// encodeUnsubscribe writes an Unsubscribe packet body: packet id
// followed by one topic filter per entry. [MQTT-2.3.1-1]
func (pk *Packet) encodeUnsubscribe(buf *bytes.Buffer) error {
	if pk.PacketID == 0 {
		return ErrMissingPacketID
	}
	if len(pk.Topics) == 0 {
		return ErrProtocolViolation
	}

	buf.Write(encodeUint16(pk.PacketID))
	for _, topic := range pk.Topics {
		buf.Write(encodeString(topic))
	}

	return nil
}

// decodeUnsubscribe parses an Unsubscribe packet body.
func (pk *Packet) decodeUnsubscribe(body []byte) error {
	var offset int
	var err error

	pk.PacketID, offset, err = decodeUint16(body, 0)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedPacketID, err)
	}

	for offset < len(body) {
		var topic string
		topic, offset, err = decodeString(body, offset)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedTopic, err)
		}
		pk.Topics = append(pk.Topics, topic)
	}

	if len(pk.Topics) == 0 {
		return ErrProtocolViolation
	}

	return nil
}
