// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

import (
	"bytes"
	"fmt"
)

// encodeSuback writes a SubAck packet body: packet id followed by one
// return code per requested topic.
func (pk *Packet) encodeSuback(buf *bytes.Buffer) error {
	buf.Write(encodeUint16(pk.PacketID))
	buf.Write(pk.ReturnCodes)
	return nil
}

// decodeSuback parses a SubAck packet body.
func (pk *Packet) decodeSuback(body []byte) error {
	if len(body) < 2 {
		return ErrProtocolViolation
	}

	var offset int
	var err error

	pk.PacketID, offset, err = decodeUint16(body, 0)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedPacketID, err)
	}

	pk.ReturnCodes = body[offset:]

	return nil
}

// SubAck builds the SubAck response to a Subscribe request, deriving
// one return code per requested topic by clamping its QoS to 0..2.
// [MQTT-3.9.3-2]
func SubAck(req Packet) Packet {
	codes := make([]byte, len(req.Qoss))
	for i, qos := range req.Qoss {
		if qos > QoS2 {
			qos = QoS2
		}
		codes[i] = QosCodes[qos].Code
	}

	return Packet{
		FixedHeader: FixedHeader{Kind: Suback},
		PacketID:    req.PacketID,
		ReturnCodes: codes,
	}
}
