// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package service maps a decoded request packet to the response packet
// (or the no-op sentinel) required to act as a minimal conformant MQTT
// server. It holds no mutable state of its own.
package service

import (
	"context"

	"github.com/mochi-mqtt/conformance/packets"
)

// connKey is the context key under which the dispatcher attaches the
// owning connection before invoking Handle, so that the Connect case
// can reach back to set the keep-alive deadline without any global
// mutable state. [spec: per-connection event-thread context]
type connKey struct{}

// KeepAliver is the slice of a pipeline connection that the service
// needs: setting the keep-alive deadline in response to a Connect.
type KeepAliver interface {
	SetKeepalive(seconds uint16)
}

// WithConn attaches conn to ctx so Handle can reach it when processing
// a Connect packet. The dispatcher calls this once per dispatched
// packet, before invoking Handle on the worker pool.
func WithConn(ctx context.Context, conn KeepAliver) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

// connFromContext recovers the connection attached by WithConn, or nil
// if none was attached (e.g. in a unit test that calls Handle directly).
func connFromContext(ctx context.Context) KeepAliver {
	conn, _ := ctx.Value(connKey{}).(KeepAliver)
	return conn
}

// Handle implements the request/response truth table. It is pure with
// one exception: processing a Connect reaches back into the context-
// carried connection to re-arm its keep-alive timer.
func Handle(ctx context.Context, req packets.Packet) packets.Packet {
	switch req.Kind() {
	case packets.Connect:
		if conn := connFromContext(ctx); conn != nil && req.Keepalive != 0 {
			conn.SetKeepalive(req.Keepalive)
		}
		return packets.ConnAck()

	case packets.Publish:
		switch req.FixedHeader.Qos {
		case packets.QoS1:
			return packets.PubAck(req.PacketID)
		case packets.QoS2:
			return packets.PubRec(req.PacketID)
		default:
			return packets.NoResponse()
		}

	case packets.Pubrel:
		return packets.PubComp(req.PacketID)

	case packets.Subscribe:
		return packets.SubAck(req)

	case packets.Unsubscribe:
		return packets.UnsubAck(req.PacketID)

	case packets.Pingreq:
		return packets.PingResp()

	default:
		// Disconnect and any server-origin packet (ConnAck, PubAck,
		// PubRec, PubComp, SubAck, UnsubAck, PingResp) yield no-op.
		return packets.NoResponse()
	}
}
