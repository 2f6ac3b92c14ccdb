// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

package listeners

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrInvalidMessage indicates that a message payload was neither a
// Binary nor a Text data frame.
var ErrInvalidMessage = errors.New("message type not binary or text")

const defaultWSPath = "/mqtt"

// Websocket is a listener for establishing MQTT-over-WebSocket
// connections, upgraded from an HTTP front-end. [spec §4.G]
type Websocket struct {
	sync.RWMutex
	id        string
	address   string
	path      string
	timeout   time.Duration
	log       *slog.Logger
	listen    *http.Server
	establish EstablishFunc
	upgrader  *websocket.Upgrader
	end       uint32
}

// NewWebsocket initialises a new Websocket listener. path defaults to
// /mqtt and timeout to 60s when zero.
func NewWebsocket(id, address, path string, timeout time.Duration, log *slog.Logger) *Websocket {
	if path == "" {
		path = defaultWSPath
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Websocket{
		id:      id,
		address: address,
		path:    path,
		timeout: timeout,
		log:     log,
		upgrader: &websocket.Upgrader{
			Subprotocols: []string{"mqtt"},
			CheckOrigin:  func(r *http.Request) bool { return true },
		},
	}
}

// ID returns the id of the listener.
func (l *Websocket) ID() string {
	return l.id
}

// Serve starts the HTTP front-end and upgrades matching requests to
// WebSocket connections, handing each to establish.
func (l *Websocket) Serve(establish EstablishFunc) {
	l.Lock()
	l.establish = establish
	mux := http.NewServeMux()
	mux.HandleFunc(l.path, l.handler)
	l.listen = &http.Server{
		Addr:         l.address,
		Handler:      mux,
		ReadTimeout:  l.timeout,
		WriteTimeout: l.timeout,
	}
	l.Unlock()

	if err := l.listen.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.log.Warn("websocket listener stopped", "id", l.id, "err", err)
	}
}

// handler upgrades an incoming HTTP request to a WebSocket connection
// and hands the resulting byte-stream adapter to establish.
func (l *Websocket) handler(w http.ResponseWriter, r *http.Request) {
	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	c.SetPingHandler(func(data string) error {
		return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(l.timeout))
	})
	c.SetCloseHandler(func(code int, text string) error {
		if code == 0 {
			code = websocket.CloseNormalClosure
		}
		msg := websocket.FormatCloseMessage(code, text)
		c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return nil
	})

	l.RLock()
	establish := l.establish
	l.RUnlock()

	if err := establish(l.id, &wsConn{Conn: c.UnderlyingConn(), c: c}); err != nil {
		l.log.Warn("websocket connection ended", "id", l.id, "err", err)
	}
}

// Close shuts down the HTTP front-end, notifying closer to tear down
// any connections it accepted.
func (l *Websocket) Close(closer CloseFunc) {
	if atomic.CompareAndSwapUint32(&l.end, 0, 1) {
		l.RLock()
		srv := l.listen
		l.RUnlock()
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}
	}
	closer(l.id)
}

// wsConn adapts a *websocket.Conn's message framing to the net.Conn
// byte-stream interface the codec expects, per spec §4.G: Binary and
// Continuation frames are unmasked and concatenated transparently by
// gorilla; Text is accepted the same way; Ping is answered with Pong
// and Close echoes the received code via the handlers above; any
// other opcode sends a 1003 close frame and a malformed frame sends a
// 1002 close frame before surfacing as a Read error.
type wsConn struct {
	net.Conn
	c *websocket.Conn
}

func (ws *wsConn) Read(p []byte) (int, error) {
	op, r, err := ws.c.NextReader()
	if err != nil {
		var closeErr *websocket.CloseError
		if !errors.As(err, &closeErr) {
			ws.sendClose(websocket.CloseProtocolError, "malformed websocket frame")
		}
		return 0, err
	}
	if op != websocket.BinaryMessage && op != websocket.TextMessage {
		ws.sendClose(websocket.CloseUnsupportedData, "message type not binary or text")
		return 0, ErrInvalidMessage
	}

	var n int
	for {
		br, err := r.Read(p[n:])
		n += br
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return n, err
		}
	}
}

// sendClose best-effort writes a close control frame ahead of tearing
// the connection down; a write failure here just means the peer is
// already gone, which Read's returned error reports regardless.
func (ws *wsConn) sendClose(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	ws.c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (ws *wsConn) Write(p []byte) (int, error) {
	if err := ws.c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (ws *wsConn) Close() error {
	return ws.Conn.Close()
}
