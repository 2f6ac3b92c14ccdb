// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package pipeline implements the per-connection byte->packet->packet->byte
// pipeline: inbound byte ingestion, restartable codec draining, service
// dispatch onto a shared worker pool, order-preserving write-back, and
// the keep-alive timer that closes idle connections.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"log/slog"
	"sync/atomic"

	"github.com/mochi-mqtt/conformance/packets"
	"github.com/mochi-mqtt/conformance/pool"
	"github.com/mochi-mqtt/conformance/service"
	"github.com/mochi-mqtt/conformance/system"
)

// defaultKeepaliveDeadline is armed once at connection-open, before any
// Connect has necessarily arrived, matching the original source's
// dual-arm strategy (see design notes on transportActive timing).
const defaultKeepaliveDeadline = 90 * time.Second

// readChunkSize is the size of each read(2) into the inbound queue.
const readChunkSize = 4096

// pendingCapacity bounds how many dispatched-but-unwritten responses a
// connection may have outstanding before the socket read loop backs
// off by blocking on dispatch. This is the pipeline's flow-control
// knob; the design does not mandate a specific pause threshold.
const pendingCapacity = 256

// Connection is one accepted socket's pipeline. All mutation of
// inbound/protocolLevel happens on the single goroutine running Serve;
// SetKeepalive may be called from a worker-pool goroutine and is the
// only field guarded by a mutex.
type Connection struct {
	ID   string
	conn net.Conn
	pool *pool.Pool
	log  *slog.Logger
	info *system.Info

	inbound       bytes.Buffer
	protocolLevel byte

	pending chan chan packets.Packet

	keepaliveMu       sync.Mutex
	timer             *time.Timer
	keepaliveDeadline time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a connection pipeline over conn. p is the shared worker
// pool every connection dispatches service work onto. info, if
// non-nil, receives byte/packet/keep-alive counters for $SYS-style
// reporting; a nil info disables metrics recording.
func New(id string, conn net.Conn, p *pool.Pool, log *slog.Logger, info *system.Info) *Connection {
	return &Connection{
		ID:                id,
		conn:              conn,
		pool:              p,
		log:               log,
		info:              info,
		protocolLevel:     packets.ProtocolV311,
		pending:           make(chan chan packets.Packet, pendingCapacity),
		done:              make(chan struct{}),
		keepaliveDeadline: defaultKeepaliveDeadline,
	}
}

// SetKeepalive implements service.KeepAliver. seconds is the raw
// keep-alive value carried by a Connect packet; the armed deadline is
// 1.5x that value. A value of 0 disables the timer. [spec §4.E]
func (c *Connection) SetKeepalive(seconds uint16) {
	if seconds == 0 {
		c.keepaliveMu.Lock()
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.keepaliveMu.Unlock()
		return
	}
	deadline := time.Duration(float64(seconds)*1.5) * time.Second
	c.keepaliveMu.Lock()
	c.keepaliveDeadline = deadline
	c.keepaliveMu.Unlock()
	c.arm(deadline)
}

// arm (re)schedules the keep-alive timer to fire deadline from now,
// closing the connection on expiry without emitting a Disconnect.
func (c *Connection) arm(deadline time.Duration) {
	c.keepaliveMu.Lock()
	defer c.keepaliveMu.Unlock()

	if c.timer == nil {
		c.timer = time.AfterFunc(deadline, c.onKeepaliveExpired)
		return
	}
	c.timer.Reset(deadline)
}

func (c *Connection) onKeepaliveExpired() {
	c.log.Debug("keep-alive expired, closing connection", "id", c.ID)
	if c.info != nil {
		atomic.AddInt64(&c.info.KeepaliveDisconnects, 1)
	}
	c.Close()
}

// Serve runs the pipeline until the socket closes, the keep-alive
// timer fires, or ctx is cancelled. It blocks the calling goroutine;
// callers typically invoke it as `go conn.Serve(ctx)` per accepted
// socket.
func (c *Connection) Serve(ctx context.Context) error {
	c.arm(defaultKeepaliveDeadline)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	err := c.readLoop(ctx)
	c.Close()
	wg.Wait()
	return err
}

// readLoop is the socket + codec stage: it appends inbound chunks to
// the byte queue and drains complete frames from it. All codec state
// (inbound, protocolLevel) is touched only here.
func (c *Connection) readLoop(ctx context.Context) error {
	buf := make([]byte, readChunkSize)
	for {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			if c.info != nil {
				atomic.AddInt64(&c.info.BytesReceived, int64(n))
			}
			c.inbound.Write(buf[:n])
			if derr := c.drain(ctx); derr != nil {
				c.log.Warn("closing connection on decode failure", "id", c.ID, "err", derr)
				return derr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("transport failure: %w", err)
		}
	}
}

// drain decodes as many complete frames as the inbound queue holds,
// dispatching each to the worker pool and re-arming the keep-alive
// timer after each successful decode. It stops, without error, the
// moment a frame is incomplete. [spec §4.E]
func (c *Connection) drain(ctx context.Context) error {
	for {
		pk, consumed, err := packets.Decode(c.inbound.Bytes(), c.protocolLevel)
		if err == packets.ErrNeedMoreData {
			return nil
		}
		if err != nil {
			return err
		}

		c.inbound.Next(consumed)
		c.reapplyKeepalive()
		if c.info != nil {
			atomic.AddInt64(&c.info.PacketsReceived, 1)
		}

		if pk.Kind() == packets.Connect {
			c.protocolLevel = pk.ProtocolVersion
		}

		c.dispatch(ctx, pk)
	}
}

// reapplyKeepalive re-arms the timer to D from now, where D is the
// deadline SetKeepalive last established (1.5x the Connect's
// keep-alive value), or the default until the first Connect lands.
// [spec §4.E]
func (c *Connection) reapplyKeepalive() {
	c.keepaliveMu.Lock()
	timer := c.timer
	deadline := c.keepaliveDeadline
	c.keepaliveMu.Unlock()
	if timer == nil {
		return
	}
	// arm takes keepaliveMu, so this Reset is serialised with
	// SetKeepalive (called from worker goroutines) and Close; expiry
	// routes through Close, which this goroutine observes via c.done
	// before reading again.
	c.arm(deadline)
}

// dispatch schedules req onto the shared worker pool and pushes a
// completion slot onto the ordering queue before the task is even
// enqueued, so writeLoop drains responses in request order regardless
// of how the pool schedules the underlying goroutines.
func (c *Connection) dispatch(ctx context.Context, req packets.Packet) {
	slot := make(chan packets.Packet, 1)

	select {
	case c.pending <- slot:
	case <-c.done:
		return
	}

	c.pool.Enqueue(func() {
		select {
		case <-c.done:
			return
		default:
		}
		resp := service.Handle(service.WithConn(ctx, c), req)
		slot <- resp
	})
}

// writeLoop is the dispatcher's write-back half: it drains completion
// slots strictly in the order dispatch() created them, encoding and
// writing each non-sentinel response.
func (c *Connection) writeLoop() {
	for {
		select {
		case slot, ok := <-c.pending:
			if !ok {
				return
			}
			var resp packets.Packet
			select {
			case resp = <-slot:
			case <-c.done:
				return
			}
			if resp.Kind() == packets.None {
				continue
			}
			if err := c.write(resp); err != nil {
				c.log.Warn("write failed, closing connection", "id", c.ID, "err", err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// write encodes pk to its canonical wire form and writes it to the
// socket.
func (c *Connection) write(pk packets.Packet) error {
	buf := new(bytes.Buffer)
	if err := pk.Encode(buf); err != nil {
		return fmt.Errorf("encode failure: %w", err)
	}
	n, err := c.conn.Write(buf.Bytes())
	if c.info != nil {
		atomic.AddInt64(&c.info.BytesSent, int64(n))
		atomic.AddInt64(&c.info.PacketsSent, 1)
	}
	return err
}

// Close tears the connection down idempotently: stops the keep-alive
// timer, signals both loops to stop, and closes the socket. A
// cancelled worker task observes c.done and will not write to a
// closed pipeline.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.keepaliveMu.Lock()
		if c.timer != nil {
			c.timer.Stop()
		}
		c.keepaliveMu.Unlock()

		close(c.done)
		err = c.conn.Close()
	})
	return err
}
