// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

// Builders per kind are convenience constructors only; they are not
// part of the wire contract.

// NewConnect builds a minimal Connect packet.
func NewConnect(version byte, clientID string, keepalive uint16, cleanSession bool) Packet {
	return Packet{
		FixedHeader:     FixedHeader{Kind: Connect},
		ProtocolVersion: version,
		ClientID:        clientID,
		Keepalive:       keepalive,
		CleanSession:    cleanSession,
	}
}

// NewPublish builds a Publish packet. packetID must be non-zero when
// qos is greater than 0, and must be 0 otherwise.
func NewPublish(topic string, qos byte, retain bool, packetID uint16, payload []byte) Packet {
	return Packet{
		FixedHeader: FixedHeader{Kind: Publish, Qos: qos, Retain: retain},
		TopicName:   topic,
		PacketID:    packetID,
		Payload:     payload,
	}
}

// PubAck builds a PubAck response to a QoS 1 Publish.
func PubAck(packetID uint16) Packet {
	return Packet{FixedHeader: FixedHeader{Kind: Puback}, PacketID: packetID}
}

// PubRec builds a PubRec response to a QoS 2 Publish.
func PubRec(packetID uint16) Packet {
	return Packet{FixedHeader: FixedHeader{Kind: Pubrec}, PacketID: packetID}
}

// PubRel builds a PubRel, the middle leg of the QoS 2 handshake.
// [MQTT-2.2.2-2] its flags are fixed at 0b0010.
func PubRel(packetID uint16) Packet {
	return Packet{FixedHeader: FixedHeader{Kind: Pubrel}, PacketID: packetID}
}

// PubComp builds the final PubComp acknowledgement of a QoS 2 handshake.
func PubComp(packetID uint16) Packet {
	return Packet{FixedHeader: FixedHeader{Kind: Pubcomp}, PacketID: packetID}
}

// NewSubscribe builds a Subscribe request from parallel topic/QoS
// slices.
func NewSubscribe(packetID uint16, topics []string, qoss []byte) Packet {
	return Packet{
		FixedHeader: FixedHeader{Kind: Subscribe},
		PacketID:    packetID,
		Topics:      topics,
		Qoss:        qoss,
	}
}

// NewUnsubscribe builds an Unsubscribe request.
func NewUnsubscribe(packetID uint16, topics []string) Packet {
	return Packet{
		FixedHeader: FixedHeader{Kind: Unsubscribe},
		PacketID:    packetID,
		Topics:      topics,
	}
}

// UnsubAck builds the UnsubAck response to an Unsubscribe request.
func UnsubAck(packetID uint16) Packet {
	return Packet{FixedHeader: FixedHeader{Kind: Unsuback}, PacketID: packetID}
}

// PingReq builds a PingReq keep-alive probe.
func PingReq() Packet {
	return Packet{FixedHeader: FixedHeader{Kind: Pingreq}}
}

// PingResp builds the PingResp reply to a PingReq.
func PingResp() Packet {
	return Packet{FixedHeader: FixedHeader{Kind: Pingresp}}
}

// NewDisconnect builds a Disconnect notification.
func NewDisconnect() Packet {
	return Packet{FixedHeader: FixedHeader{Kind: Disconnect}}
}

// NoResponse builds the "send nothing" sentinel response.
func NoResponse() Packet {
	return Packet{FixedHeader: FixedHeader{Kind: None}}
}
