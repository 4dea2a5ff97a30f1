// Copyright (c) 2019 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package proxyserver

import (
	"io"
	"net"
	"sync"

	"github.com/m3db/thriftproxy/proxy"
	"github.com/m3db/thriftproxy/thrift"

	"go.uber.org/zap"
)

const readBufferSize = 32 * 1024

// connection adapts one net.Conn to the connection manager's view of the
// world. A mutex serializes every event against the connection (downstream
// reads, upstream bytes posted by filters, lifecycle), and the deferred
// queue drains once the current event unwinds, which provides the
// destroy-next-tick semantics rpc teardown relies on.
type connection struct {
	mu sync.Mutex

	conn net.Conn
	log  *zap.Logger

	callbacks []proxy.ConnectionCallbacks
	deferred  []func()

	halfCloseEnabled bool
	closed           bool
	closedCh         chan struct{}
}

func newConnection(conn net.Conn, log *zap.Logger) *connection {
	return &connection{
		conn:     conn,
		log:      log,
		closedCh: make(chan struct{}),
	}
}

// serve runs the downstream read loop until the connection fully closes.
func (c *connection) serve(cm *proxy.ConnectionManager) {
	readBuf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(readBuf)
		if n > 0 {
			data := thrift.NewBufferBytes(append([]byte(nil), readBuf[:n]...))
			c.execute(func() { cm.OnData(data, false) })
		}
		if err != nil {
			if err == io.EOF && c.isHalfCloseEnabled() {
				// Peer closed its write side; pending replies may still
				// need to drain before the manager closes us.
				c.execute(func() { cm.OnData(thrift.NewBuffer(), true) })
			} else if err != io.EOF {
				c.execute(func() {
					c.closeWithEvent(proxy.ConnectionCloseNoFlush, proxy.ConnectionEventRemoteClose)
				})
			} else {
				c.execute(func() {
					c.closeWithEvent(proxy.ConnectionCloseFlushWrite, proxy.ConnectionEventRemoteClose)
				})
			}
			break
		}
		if c.isClosed() {
			break
		}
	}

	<-c.closedCh
}

// execute runs fn serialized with all other connection events, then drains
// the deferred queue.
func (c *connection) execute(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		fn()
	}
	c.drainDeferred()
}

func (c *connection) drainDeferred() {
	for len(c.deferred) > 0 {
		fns := c.deferred
		c.deferred = nil
		for _, fn := range fns {
			fn()
		}
	}
}

func (c *connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *connection) isHalfCloseEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halfCloseEnabled
}

// closeWithEvent must be called with the event lock held.
func (c *connection) closeWithEvent(t proxy.ConnectionCloseType, event proxy.ConnectionEvent) {
	if c.closed {
		return
	}
	c.closed = true

	if t == proxy.ConnectionCloseNoFlush {
		if tcpConn, ok := c.conn.(*net.TCPConn); ok {
			tcpConn.SetLinger(0) // nolint: errcheck
		}
	}
	c.conn.Close() // nolint: errcheck

	for _, cb := range c.callbacks {
		cb.OnEvent(event)
	}

	close(c.closedCh)
}

// AddConnectionCallbacks registers for lifecycle events.
func (c *connection) AddConnectionCallbacks(callbacks proxy.ConnectionCallbacks) {
	c.callbacks = append(c.callbacks, callbacks)
}

// EnableHalfClose allows the peer to half-close without tearing the
// connection down.
func (c *connection) EnableHalfClose(enabled bool) {
	c.halfCloseEnabled = enabled
}

// Write writes buf to the socket, draining it. Write failures surface as a
// remote close on the next tick.
func (c *connection) Write(buf *thrift.Buffer, endStream bool) {
	if c.closed {
		buf.Clear()
		return
	}
	if _, err := c.conn.Write(buf.Bytes()); err != nil {
		c.log.Error("downstream write error", zap.Error(err))
		c.deferred = append(c.deferred, func() {
			c.closeWithEvent(proxy.ConnectionCloseNoFlush, proxy.ConnectionEventRemoteClose)
		})
	}
	buf.Clear()

	if endStream {
		c.closeWithEvent(proxy.ConnectionCloseFlushWrite, proxy.ConnectionEventLocalClose)
	}
}

// Close tears the connection down, firing a local close event. Must be
// called from the event loop.
func (c *connection) Close(t proxy.ConnectionCloseType) {
	c.closeWithEvent(t, proxy.ConnectionEventLocalClose)
}

// Dispatcher returns this connection's serialized executor.
func (c *connection) Dispatcher() proxy.Dispatcher { return (*dispatcher)(c) }

// RemoteAddr describes the peer.
func (c *connection) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "<unknown>"
}

// Connection implements proxy.ReadFilterCallbacks.
func (c *connection) Connection() proxy.Connection { return c }

// dispatcher exposes the connection's serialized executor without
// widening the connection's own method set.
type dispatcher connection

// Post runs fn serialized with connection events. Unlike execute, fn runs
// even after close: posted work guards itself on rpc destruction, and
// posters may block on fn's completion.
func (d *dispatcher) Post(fn func()) {
	c := (*connection)(d)
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
	c.drainDeferred()
}

// DeferredDelete queues fn to run once the current event unwinds. Must be
// called from the event loop.
func (d *dispatcher) DeferredDelete(fn func()) {
	c := (*connection)(d)
	c.deferred = append(c.deferred, fn)
}
