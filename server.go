// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

// Package mqtt provides the accept loop and lifecycle for an MQTT
// conformance-surface server: it binds listeners, shares one worker
// pool and service across every accepted connection, and hands each
// socket to a pipeline.Connection. [spec §4.F]
package mqtt

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/mochi-mqtt/conformance/listeners"
	"github.com/mochi-mqtt/conformance/pipeline"
	"github.com/mochi-mqtt/conformance/pool"
	"github.com/mochi-mqtt/conformance/system"
)

// Version is the current server version.
const Version = "0.1.0"

// defaultPort and defaultPath match spec.md §6's documented defaults.
const (
	defaultPort = 1883
	defaultPath = "/mqtt"
)

var (
	// ErrListenerIDExists is returned when a listener with the same id
	// has already been registered.
	ErrListenerIDExists = errors.New("listener id already exists")

	// ErrAlreadyServing is returned by Serve if the server is already
	// running.
	ErrAlreadyServing = errors.New("server is already serving")
)

// Options configures a Server at construction time, matching
// spec.md §6's recognised configuration options. A zero-value Options
// takes all defaults. The server itself reads only Threads and Logger:
// Port, Path and Timeout are defaulted and carried for the caller, but
// the server binds nothing from them and accepts connections only on
// listeners registered with AddListener.
type Options struct {
	// Port is the TCP listen port. Default 1883.
	Port int `yaml:"port" json:"port"`

	// Threads is the worker-pool size. Default max(4, CPU count).
	Threads int `yaml:"threads" json:"threads"`

	// Path is the WebSocket upgrade mount point. Default /mqtt.
	Path string `yaml:"path" json:"path"`

	// Timeout is the HTTP front-end's idle timeout, applied before
	// the WebSocket upgrade. Default 60s.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Signals documents the OS signals that should initiate graceful
	// shutdown (default SIGINT, SIGTERM). Signal handling itself is
	// out of scope for this package [spec §1]; this field exists so
	// a config file can declare the intent and an embedding caller
	// can read it back and wire its own signal.Notify.
	Signals []string `yaml:"signals" json:"signals"`

	// Logger is used for all server, listener and connection logging.
	// Defaults to slog.Default().
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// ensureDefaults fills any zero-valued field with its documented
// default, mirroring the teacher's Options.ensureDefaults shallow-merge
// idiom.
func (o *Options) ensureDefaults() {
	if o.Port == 0 {
		o.Port = defaultPort
	}
	if o.Threads == 0 {
		o.Threads = threadDefault()
	}
	if o.Path == "" {
		o.Path = defaultPath
	}
	if o.Timeout == 0 {
		o.Timeout = 60 * time.Second
	}
	if len(o.Signals) == 0 {
		o.Signals = []string{"SIGINT", "SIGTERM"}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

func threadDefault() int {
	if n := runtime.NumCPU(); n > 4 {
		return n
	}
	return 4
}

// Server accepts connections on one or more listeners and serves the
// conformance surface described by spec.md. All accepted connections
// share one worker pool; the service they dispatch to holds no
// mutable state of its own. [spec §4.F, §5]
type Server struct {
	Options   *Options
	Listeners *listeners.Listeners
	Info      *system.Info
	log       *slog.Logger

	pool *pool.Pool

	mu     sync.Mutex
	conns  map[string]*pipeline.Connection
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// New returns a new Server configured with opts, or defaults if opts
// is nil.
func New(opts *Options) *Server {
	if opts == nil {
		opts = new(Options)
	}
	opts.ensureDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		Options:   opts,
		Listeners: listeners.New(),
		Info:      &system.Info{Version: Version},
		log:       opts.Logger,
		pool:      pool.New(uint64(opts.Threads)),
		conns:     make(map[string]*pipeline.Connection),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// AddListener registers a listener the server will accept connections
// on once Serve is called.
func (s *Server) AddListener(l listeners.Listener) error {
	if _, ok := s.Listeners.Get(l.ID()); ok {
		return ErrListenerIDExists
	}
	s.Listeners.Add(l)
	return nil
}

// Serve begins accepting connections on every registered listener,
// blocking until Close is called. It binds nothing itself: a TCP
// listener is bound by NewTCP, a WebSocket listener inside its own
// Serve.
func (s *Server) Serve() error {
	s.Info.Started = nowUnix()
	s.Listeners.ServeAll(s.establish)

	go s.trackUptime()

	<-s.done
	return nil
}

func (s *Server) trackUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Info.Uptime++
		case <-s.ctx.Done():
			return
		}
	}
}

// establish is the listeners.EstablishFunc every listener is served
// with: it wraps the accepted socket in a pipeline.Connection and
// runs it to completion in its own goroutine.
func (s *Server) establish(listenerID string, conn net.Conn) error {
	id := xid.New().String()
	p := pipeline.New(id, conn, s.pool, s.log.With("listener", listenerID, "conn", id), s.Info)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return conn.Close()
	}
	s.conns[id] = p
	s.mu.Unlock()

	connected := atomic.AddInt64(&s.Info.ClientsConnected, 1)
	for {
		max := atomic.LoadInt64(&s.Info.ClientsMaximum)
		if connected <= max || atomic.CompareAndSwapInt64(&s.Info.ClientsMaximum, max, connected) {
			break
		}
	}

	err := p.Serve(s.ctx)

	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
	atomic.AddInt64(&s.Info.ClientsConnected, -1)

	return err
}

// Close stops the server idempotently: it cancels every in-flight
// pipeline, closes all listeners, and closes the worker pool's task
// queue without waiting for running tasks. Calling Close more than
// once is a no-op. [spec §8.5]
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]*pipeline.Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	s.cancel()
	s.Listeners.CloseAll(listeners.MockCloser)

	for _, c := range conns {
		c.Close()
	}

	s.pool.Close()
	close(s.done)
	return nil
}

func nowUnix() int64 {
	return time.Now().Unix()
}
