// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

import (
	"bytes"
	"fmt"
)

var protocolNameV31 = []byte("MQIsdp")
var protocolNameV311OrV5 = []byte("MQTT")

// protocolName returns the wire bytes for the packet's protocol level.
// [MQTT-3.1.2-1]
func protocolName(version byte) []byte {
	if version == ProtocolV31 {
		return protocolNameV31
	}
	return protocolNameV311OrV5
}

// encodeConnect writes a Connect packet body.
func (pk *Packet) encodeConnect(buf *bytes.Buffer) error {
	protoName := encodeBytes(protocolName(pk.ProtocolVersion))
	keepalive := encodeUint16(pk.Keepalive)
	clientID := encodeString(pk.ClientID)

	flag := encodeBool(pk.CleanSession)<<1 |
		encodeBool(pk.WillFlag)<<2 |
		pk.WillQos<<3 |
		encodeBool(pk.WillRetain)<<5 |
		encodeBool(pk.PasswordFlag)<<6 |
		encodeBool(pk.UsernameFlag)<<7

	var willTopic, willMessage, username, password []byte
	if pk.WillFlag {
		willTopic = encodeString(pk.WillTopic)
		willMessage = encodeBytes(pk.WillMessage)
	}
	if pk.UsernameFlag {
		username = encodeString(pk.Username)
	}
	if pk.PasswordFlag {
		password = encodeBytes(pk.Password)
	}

	buf.Write(protoName)
	buf.WriteByte(pk.ProtocolVersion)
	buf.WriteByte(flag)
	buf.Write(keepalive)
	buf.Write(clientID)
	buf.Write(willTopic)
	buf.Write(willMessage)
	buf.Write(username)
	buf.Write(password)

	return nil
}

// decodeConnect parses a Connect packet body and validates it against
// the protocol-name and reserved-bit invariants. [MQTT-3.1.2-3]
func (pk *Packet) decodeConnect(body []byte) error {
	var offset int
	var err error

	name, offset, err := decodeBytes(body, 0)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedProtocolName, err)
	}

	pk.ProtocolVersion, offset, err = decodeByte(body, offset)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedProtocolVersion, err)
	}

	switch pk.ProtocolVersion {
	case ProtocolV31:
		if !bytes.Equal(name, protocolNameV31) {
			return ErrMalformedProtocolName
		}
	case ProtocolV311, ProtocolV5:
		if !bytes.Equal(name, protocolNameV311OrV5) {
			return ErrMalformedProtocolName
		}
	default:
		return ErrMalformedProtocolVersion
	}

	flags, offset, err := decodeByte(body, offset)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedFlags, err)
	}
	if flags&0x01 != 0 {
		return ErrInvalidFlags // reserved bit must be 0 [MQTT-3.1.2-3]
	}
	pk.CleanSession = 1&(flags>>1) > 0
	pk.WillFlag = 1&(flags>>2) > 0
	pk.WillQos = 3 & (flags >> 3)
	pk.WillRetain = 1&(flags>>5) > 0
	pk.PasswordFlag = 1&(flags>>6) > 0
	pk.UsernameFlag = 1&(flags>>7) > 0

	if pk.WillQos > QoS2 {
		return ErrMalformedQoS
	}

	pk.Keepalive, offset, err = decodeUint16(body, offset)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedKeepalive, err)
	}

	pk.ClientID, offset, err = decodeString(body, offset)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedClientID, err)
	}

	if pk.WillFlag {
		pk.WillTopic, offset, err = decodeString(body, offset)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedWillTopic, err)
		}

		var willMessage []byte
		willMessage, offset, err = decodeBytes(body, offset)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedWillMessage, err)
		}
		pk.WillMessage = willMessage
	}

	if pk.UsernameFlag {
		pk.Username, offset, err = decodeString(body, offset)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedUsername, err)
		}
	}

	if pk.PasswordFlag {
		var password []byte
		password, _, err = decodeBytes(body, offset)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrMalformedPassword, err)
		}
		pk.Password = password
	}

	return nil
}
