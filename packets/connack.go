// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

import (
	"bytes"
	"fmt"
)

// encodeConnack writes a ConnAck packet body: session-present flag and
// reason code, always exactly 2 bytes.
func (pk *Packet) encodeConnack(buf *bytes.Buffer) error {
	buf.WriteByte(encodeBool(pk.SessionPresent))
	buf.WriteByte(pk.ReasonCode)
	return nil
}

// decodeConnack parses a ConnAck packet body.
func (pk *Packet) decodeConnack(body []byte) error {
	if len(body) != 2 {
		return ErrMalformedSessionPresent
	}

	var offset int
	var err error

	pk.SessionPresent, offset, err = decodeByteBool(body, 0)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedSessionPresent, err)
	}

	pk.ReasonCode, _, err = decodeByte(body, offset)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedReturnCode, err)
	}

	return nil
}

// ConnAck builds a ConnAck response as required by the service truth
// table: session-present always 0, reason always success.
func ConnAck() Packet {
	return Packet{
		FixedHeader: FixedHeader{Kind: Connack},
		ReasonCode:  CodeSuccess.Code,
	}
}
