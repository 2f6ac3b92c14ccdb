// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-mqtt, mochi-co
// SPDX-FileContributor: mochi-co

package listeners

import (
	"net"
	"sync"
)

// MockEstablisher is an EstablishFunc which can be used in testing.
func MockEstablisher(id string, c net.Conn) error {
	return nil
}

// MockCloser is a CloseFunc which can be used in testing.
func MockCloser(id string) {}

// MockListener is a mock listener for exercising server wiring
// without binding a real socket.
type MockListener struct {
	sync.RWMutex
	id        string
	address   string
	Config    *Config
	done      chan bool
	Serving   bool
	Listening bool
}

// NewMockListener returns a new instance of MockListener.
func NewMockListener(id, address string) *MockListener {
	return &MockListener{
		id:        id,
		address:   address,
		done:      make(chan bool),
		Listening: true,
	}
}

// Serve serves the mock listener until Close is called.
func (l *MockListener) Serve(establish EstablishFunc) {
	l.Lock()
	l.Serving = true
	l.Unlock()

	<-l.done
}

// ID returns the id of the mock listener.
func (l *MockListener) ID() string {
	return l.id
}

// Address returns the address the mock listener was constructed with.
func (l *MockListener) Address() string {
	return l.address
}

// Close closes the mock listener.
func (l *MockListener) Close(closer CloseFunc) {
	l.Lock()
	defer l.Unlock()
	l.Serving = false
	closer(l.id)
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}

// IsServing indicates whether the mock listener is serving.
func (l *MockListener) IsServing() bool {
	l.RLock()
	defer l.RUnlock()
	return l.Serving
}

// IsListening indicates whether the mock listener is listening.
func (l *MockListener) IsListening() bool {
	l.RLock()
	defer l.RUnlock()
	return l.Listening
}
