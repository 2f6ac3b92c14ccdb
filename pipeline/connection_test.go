// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mochi-mqtt/conformance/packets"
	"github.com/mochi-mqtt/conformance/pool"
	"github.com/mochi-mqtt/conformance/system"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPair(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	p := pool.New(2)
	t.Cleanup(p.Close)
	conn := New("test", server, p, testLogger(), nil)
	return conn, client
}

func TestServePingReqPingResp(t *testing.T) {
	conn, client := newTestPair(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go conn.Serve(ctx)

	req := new(bytes.Buffer)
	pingReq := packets.PingReq()
	require.NoError(t, pingReq.Encode(req))
	_, err := client.Write(req.Bytes())
	require.NoError(t, err)

	out := make([]byte, 2)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(client, out)
	require.NoError(t, err)
	require.Equal(t, []byte{0xD0, 0x00}, out)

	conn.Close()
}

func TestServeOrdersResponsesByRequest(t *testing.T) {
	conn, client := newTestPair(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go conn.Serve(ctx)

	var req bytes.Buffer
	for _, id := range []uint16{1, 2, 3} {
		pub := packets.NewPublish("t", packets.QoS1, false, id, nil)
		require.NoError(t, pub.Encode(&req))
	}
	_, err := client.Write(req.Bytes())
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got []byte
	buf := make([]byte, 64)
	for len(got) < 12 {
		n, err := client.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}

	want := []byte{
		0x40, 0x02, 0x00, 0x01,
		0x40, 0x02, 0x00, 0x02,
		0x40, 0x02, 0x00, 0x03,
	}
	require.Equal(t, want, got)

	conn.Close()
}

func TestServeClosesOnMalformedFrame(t *testing.T) {
	conn, client := newTestPair(t)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- conn.Serve(ctx) }()

	// Invalid kind nibble (0x00) must close the connection without a response.
	_, err := client.Write([]byte{0x00, 0x00})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not close on malformed frame")
	}
}

func TestSetKeepaliveDisablesTimerOnZero(t *testing.T) {
	conn, client := newTestPair(t)
	defer client.Close()
	defer conn.Close()

	conn.arm(10 * time.Millisecond)
	conn.SetKeepalive(0)

	time.Sleep(30 * time.Millisecond)
	select {
	case <-conn.done:
		t.Fatal("keep-alive fired after being disabled")
	default:
	}
}

func TestReapplyKeepaliveUsesConnectDeadline(t *testing.T) {
	conn, client := newTestPair(t)
	defer client.Close()
	defer conn.Close()

	conn.arm(time.Hour)
	conn.keepaliveMu.Lock()
	conn.keepaliveDeadline = 10 * time.Millisecond
	conn.keepaliveMu.Unlock()

	conn.reapplyKeepalive()

	select {
	case <-conn.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reapplyKeepalive did not re-arm to the stored keep-alive deadline")
	}
}

func TestKeepaliveExpiryClosesConnection(t *testing.T) {
	conn, client := newTestPair(t)
	defer client.Close()

	conn.arm(10 * time.Millisecond)

	select {
	case <-conn.done:
	case <-time.After(2 * time.Second):
		t.Fatal("keep-alive did not close the connection")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	conn, client := newTestPair(t)
	defer client.Close()

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
}

func TestServeRecordsMetrics(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	p := pool.New(2)
	t.Cleanup(p.Close)

	info := &system.Info{}
	conn := New("test", server, p, testLogger(), info)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- conn.Serve(ctx) }()
	defer conn.Close()

	req := new(bytes.Buffer)
	pingReq := packets.PingReq()
	require.NoError(t, pingReq.Encode(req))
	_, err := client.Write(req.Bytes())
	require.NoError(t, err)

	out := make([]byte, 2)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(client, out)
	require.NoError(t, err)

	// The sent counters are updated after conn.Write returns, which can
	// be after the client has read the reply; wait for Serve to finish
	// so the write loop has recorded them.
	conn.Close()
	<-served

	require.EqualValues(t, 1, info.PacketsReceived)
	require.EqualValues(t, 1, info.PacketsSent)
	require.Greater(t, info.BytesReceived, int64(0))
	require.Greater(t, info.BytesSent, int64(0))
}
