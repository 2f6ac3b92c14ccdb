// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

import (
	"bytes"
	"fmt"
)

// encodePublish writes a Publish packet body. [MQTT-2.3.1-5]
func (pk *Packet) encodePublish(buf *bytes.Buffer) error {
	topicName := encodeString(pk.TopicName)

	var packetID []byte
	if pk.FixedHeader.Qos > 0 {
		// [MQTT-2.3.1-1]
		if pk.PacketID == 0 {
			return ErrMissingPacketID
		}
		packetID = encodeUint16(pk.PacketID)
	} else if pk.PacketID != 0 {
		return ErrSurplusPacketID
	}

	buf.Write(topicName)
	buf.Write(packetID)
	buf.Write(pk.Payload)

	return nil
}

// decodePublish parses a Publish packet body. The packet id field is
// present iff the fixed header's QoS is non-zero. At ProtocolV5 an
// opaque property block follows, immediately before the payload; its
// bytes are skipped, never interpreted. [MQTT-2.3.1-5] [SPEC_FULL §3.1]
func (pk *Packet) decodePublish(body []byte, protocolLevel byte) error {
	var offset int
	var err error

	pk.TopicName, offset, err = decodeString(body, 0)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedTopic, err)
	}

	if pk.FixedHeader.Qos > 0 {
		pk.PacketID, offset, err = decodeUint16(body, offset)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedPacketID, err)
		}
	}

	if protocolLevel == ProtocolV5 {
		offset, err = skipProperties(body, offset)
		if err != nil {
			return err
		}
	}

	if offset < len(body) {
		pk.Payload = body[offset:]
	}

	return nil
}
