// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package packets

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestConnAckCanonical covers spec scenario 1: ConnAck(session=0,
// reason=0) encodes to 20 02 00 00.
func TestConnAckCanonical(t *testing.T) {
	pk := ConnAck()
	buf := new(bytes.Buffer)
	require.NoError(t, pk.Encode(buf))
	require.Equal(t, []byte{0x20, 0x02, 0x00, 0x00}, buf.Bytes())
}

// TestConnectV311Minimal covers spec scenario 2.
func TestConnectV311Minimal(t *testing.T) {
	pk := NewConnect(ProtocolV311, "CLIENT", 60, true)
	buf := new(bytes.Buffer)
	require.NoError(t, pk.Encode(buf))

	want := []byte{
		0x10, 0x14,
		0x00, 0x04, 'M', 'Q', 'T', 'T',
		0x04,
		0x02,
		0x00, 0x3C,
		0x00, 0x06, 'C', 'L', 'I', 'E', 'N', 'T',
	}
	require.Equal(t, want, buf.Bytes())
}

// TestSubscribeToSubAck covers spec scenario 3.
func TestSubscribeToSubAck(t *testing.T) {
	req := NewSubscribe(21, []string{"test/foo", "test/bar"}, []byte{0, 1})
	resp := SubAck(req)

	buf := new(bytes.Buffer)
	require.NoError(t, resp.Encode(buf))
	require.Equal(t, []byte{0x90, 0x04, 0x00, 0x15, 0x00, 0x01}, buf.Bytes())
}

// TestPublishQoS1ToPubAck covers spec scenario 4.
func TestPublishQoS1ToPubAck(t *testing.T) {
	pk := NewPublish("foo/bar", QoS1, false, 123, []byte("TEST"))
	buf := new(bytes.Buffer)
	require.NoError(t, pk.Encode(buf))

	want := []byte{
		0x32, 0x0F,
		0x00, 0x07, 'f', 'o', 'o', '/', 'b', 'a', 'r',
		0x00, 0x7B,
		'T', 'E', 'S', 'T',
	}
	require.Equal(t, want, buf.Bytes())

	resp := PubAck(123)
	buf = new(bytes.Buffer)
	require.NoError(t, resp.Encode(buf))
	require.Equal(t, []byte{0x40, 0x02, 0x00, 0x7B}, buf.Bytes())
}

// TestPingReqToPingResp covers spec scenario 5.
func TestPingReqToPingResp(t *testing.T) {
	pk, consumed, err := Decode([]byte{0xC0, 0x00}, ProtocolV311)
	require.NoError(t, err)
	require.Equal(t, 2, consumed)
	require.Equal(t, Pingreq, pk.Kind())

	resp := PingResp()
	buf := new(bytes.Buffer)
	require.NoError(t, resp.Encode(buf))
	require.Equal(t, []byte{0xD0, 0x00}, buf.Bytes())
}

// TestDisconnectSilence covers spec scenario 6: the no-op sentinel
// never serialises.
func TestDisconnectSilence(t *testing.T) {
	pk, consumed, err := Decode([]byte{0xE0, 0x00}, ProtocolV311)
	require.NoError(t, err)
	require.Equal(t, 2, consumed)
	require.Equal(t, Disconnect, pk.Kind())

	resp := NoResponse()
	buf := new(bytes.Buffer)
	require.NoError(t, resp.Encode(buf))
	require.Zero(t, buf.Len())
}

// TestRoundTrip checks decode(encode(p)) == p for one packet of each
// kind with in-range fields.
func TestRoundTrip(t *testing.T) {
	cases := []Packet{
		NewConnect(ProtocolV311, "zen", 30, true),
		ConnAck(),
		NewPublish("a/b", QoS0, false, 0, []byte("hi")),
		NewPublish("a/b", QoS1, true, 7, []byte("hi")),
		NewPublish("a/b", QoS2, false, 8, nil),
		PubAck(1),
		PubRec(2),
		PubRel(3),
		PubComp(4),
		NewSubscribe(5, []string{"a", "b"}, []byte{0, 2}),
		SubAck(NewSubscribe(5, []string{"a", "b"}, []byte{0, 2})),
		NewUnsubscribe(6, []string{"a", "b"}),
		UnsubAck(6),
		PingReq(),
		PingResp(),
		NewDisconnect(),
	}

	for i, want := range cases {
		buf := new(bytes.Buffer)
		require.NoError(t, want.Encode(buf), "i:%d", i)

		got, consumed, err := Decode(buf.Bytes(), ProtocolV311)
		require.NoError(t, err, "i:%d", i)
		require.Equal(t, buf.Len(), consumed, "i:%d", i)
		require.Equal(t, want, got, "i:%d", i)
	}
}

// TestIncrementalDecode feeds an encoded stream of several packets one
// byte at a time and expects NeedMore until each frame completes, with
// no spurious promotion to a malformed error.
func TestIncrementalDecode(t *testing.T) {
	var stream bytes.Buffer
	want := []Packet{
		PingReq(),
		PubAck(9),
		NewPublish("x/y", QoS1, false, 2, []byte("z")),
	}
	for i := range want {
		require.NoError(t, want[i].Encode(&stream))
	}

	raw := stream.Bytes()
	var got []Packet
	for i := 1; i <= len(raw); i++ {
		pk, consumed, err := Decode(raw[:i], ProtocolV311)
		if err == ErrNeedMoreData {
			continue
		}
		require.NoError(t, err)
		got = append(got, pk)
		raw = raw[consumed:]
		i = 0
	}

	require.Equal(t, want, got)
}

// TestFrameExactness ensures a trailing byte beyond a declared frame is
// never consumed.
func TestFrameExactness(t *testing.T) {
	pk := PingResp()
	buf := new(bytes.Buffer)
	require.NoError(t, pk.Encode(buf))
	buf.WriteByte(0xFF) // trailing garbage belonging to the next frame

	_, consumed, err := Decode(buf.Bytes(), ProtocolV311)
	require.NoError(t, err)
	require.Equal(t, 2, consumed)
}

// TestCanonicalEncoding checks that equal packets encode identically.
func TestCanonicalEncoding(t *testing.T) {
	a := NewPublish("a/b", QoS1, false, 5, []byte("x"))
	b := NewPublish("a/b", QoS1, false, 5, []byte("x"))

	var bufA, bufB bytes.Buffer
	require.NoError(t, a.Encode(&bufA))
	require.NoError(t, b.Encode(&bufB))
	require.Equal(t, bufA.Bytes(), bufB.Bytes())
}

func TestDecodeInvalidKindByte(t *testing.T) {
	_, _, err := Decode([]byte{0x00, 0x00}, ProtocolV311)
	require.ErrorIs(t, err, ErrInvalidKind)

	_, _, err = Decode([]byte{0xF0, 0x00}, ProtocolV311)
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestDecodeNeedsMoreDataLeavesNoPartialPacket(t *testing.T) {
	pk := NewPublish("a/b/c", QoS0, false, 0, []byte("payload"))
	buf := new(bytes.Buffer)
	require.NoError(t, pk.Encode(buf))

	full := buf.Bytes()
	_, _, err := Decode(full[:len(full)-1], ProtocolV311)
	require.ErrorIs(t, err, ErrNeedMoreData)
}

// TestDecodeV5SkipsPublishPropertyBlock covers spec scenario 3.1: a
// V5 Publish carries an opaque property block before the payload that
// Decode skips without interpreting.
func TestDecodeV5SkipsPublishPropertyBlock(t *testing.T) {
	raw := []byte{
		0x30, 0x08,
		0x00, 0x01, 'a',
		0x02, 0xAA, 0xBB, // property block: length 2, opaque bytes
		'h', 'i',
	}

	pk, consumed, err := Decode(raw, ProtocolV5)
	require.NoError(t, err)
	require.Equal(t, len(raw), consumed)
	require.Equal(t, "a", pk.TopicName)
	require.Equal(t, []byte("hi"), pk.Payload)
}

// TestDecodeV5SkipsSubscribePropertyBlock covers the Subscribe half of
// spec scenario 3.1.
func TestDecodeV5SkipsSubscribePropertyBlock(t *testing.T) {
	raw := []byte{
		0x82, 0x07,
		0x00, 0x05, // packet id
		0x00, // property block: length 0
		0x00, 0x01, 'a', 0x00,
	}

	pk, consumed, err := Decode(raw, ProtocolV5)
	require.NoError(t, err)
	require.Equal(t, len(raw), consumed)
	require.EqualValues(t, 5, pk.PacketID)
	require.Equal(t, []string{"a"}, pk.Topics)
	require.Equal(t, []byte{QoS0}, pk.Qoss)
}

// TestDecodeV311IgnoresPropertyBlockGate ensures the property skip is
// gated strictly on ProtocolV5: the same bytes decoded at V311 treat
// the would-be property block as payload/topic data instead.
func TestDecodeV311IgnoresPropertyBlockGate(t *testing.T) {
	raw := []byte{
		0x30, 0x08,
		0x00, 0x01, 'a',
		0x02, 0xAA, 0xBB,
		'h', 'i',
	}

	pk, _, err := Decode(raw, ProtocolV311)
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0xAA, 0xBB, 'h', 'i'}, pk.Payload)
}

func TestPublishQoS0RejectsSurplusPacketID(t *testing.T) {
	pk := Packet{FixedHeader: FixedHeader{Kind: Publish, Qos: QoS0}, TopicName: "a", PacketID: 9}
	buf := new(bytes.Buffer)
	require.ErrorIs(t, pk.Encode(buf), ErrSurplusPacketID)
}

func TestPublishQoS1RequiresPacketID(t *testing.T) {
	pk := Packet{FixedHeader: FixedHeader{Kind: Publish, Qos: QoS1}, TopicName: "a"}
	buf := new(bytes.Buffer)
	require.ErrorIs(t, pk.Encode(buf), ErrMissingPacketID)
}
