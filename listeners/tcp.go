// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2022 mochi-co
// SPDX-FileContributor: mochi-co

package listeners

import (
	"net"
	"sync"
)

// TCP is a listener for establishing client connections over raw TCP.
type TCP struct {
	id      string
	address string
	listen  net.Listener
	done    chan bool
	end     sync.Once
}

// NewTCP initialises and returns a new TCP listener bound to address.
func NewTCP(id, address string) (*TCP, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	return &TCP{
		id:      id,
		address: address,
		listen:  ln,
		done:    make(chan bool),
	}, nil
}

// ID returns the id of the listener.
func (l *TCP) ID() string {
	return l.id
}

// Serve accepts connections until Close is called, handing each one
// to establish in its own goroutine.
func (l *TCP) Serve(establish EstablishFunc) {
	for {
		conn, err := l.listen.Accept()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				continue
			}
		}

		go establish(l.id, conn)
	}
}

// Close closes the listener and notifies closer to tear down any
// connections it accepted.
func (l *TCP) Close(closer CloseFunc) {
	l.end.Do(func() {
		close(l.done)
		l.listen.Close()
		closer(l.id)
	})
}
