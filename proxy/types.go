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

// Package proxy implements the per-connection Thrift connection manager: it
// decodes downstream request frames, drives each request through a filter
// chain, decodes upstream responses, and writes re-framed replies back to
// the client with their original sequence ids.
package proxy

import (
	"github.com/m3db/thriftproxy/thrift"
)

// ConnectionCloseType controls how a connection is torn down.
type ConnectionCloseType int

const (
	// ConnectionCloseFlushWrite flushes pending write data before closing.
	ConnectionCloseFlushWrite ConnectionCloseType = iota

	// ConnectionCloseNoFlush closes immediately, discarding pending data.
	ConnectionCloseNoFlush
)

// ConnectionEvent is a connection lifecycle event.
type ConnectionEvent int

const (
	// ConnectionEventRemoteClose fires when the peer closed the connection.
	ConnectionEventRemoteClose ConnectionEvent = iota

	// ConnectionEventLocalClose fires when this end closed the connection.
	ConnectionEventLocalClose
)

// Dispatcher schedules work onto a connection's serialized event loop.
type Dispatcher interface {
	// Post runs fn on the connection's event loop, serialized with all
	// other connection events. Safe to call from any goroutine.
	Post(fn func())

	// DeferredDelete runs fn after the current event unwinds, on the
	// next event loop tick. Must be called from the event loop.
	DeferredDelete(fn func())
}

// ConnectionCallbacks receives connection lifecycle events.
type ConnectionCallbacks interface {
	// OnEvent is called on connection close, local or remote.
	OnEvent(event ConnectionEvent)
}

// Connection is the downstream network connection as seen by the
// connection manager.
type Connection interface {
	// AddConnectionCallbacks registers for lifecycle events.
	AddConnectionCallbacks(callbacks ConnectionCallbacks)

	// EnableHalfClose allows the peer to close its write side while
	// continuing to read pending replies.
	EnableHalfClose(enabled bool)

	// Write queues buf for writing downstream, draining it.
	Write(buf *thrift.Buffer, endStream bool)

	// Close tears the connection down.
	Close(closeType ConnectionCloseType)

	// Dispatcher returns the connection's event loop.
	Dispatcher() Dispatcher

	// RemoteAddr describes the peer, for logging.
	RemoteAddr() string
}

// ReadFilterCallbacks binds the connection manager to its host connection.
type ReadFilterCallbacks interface {
	// Connection returns the underlying network connection.
	Connection() Connection
}

// RouteEntry is the resolved target of a routed request.
type RouteEntry interface {
	// ClusterName names the upstream cluster to forward to.
	ClusterName() string
}

// Route is a resolved route.
type Route interface {
	// RouteEntry returns the route's target.
	RouteEntry() RouteEntry
}

// Router resolves a route for a request.
type Router interface {
	// Route returns the route for the message, or nil if no route
	// matches.
	Route(meta *thrift.MessageMetadata, streamID uint64) Route
}

// DecoderFilter observes and controls the decoded request event stream.
// Any event may return FilterStatusStopIteration to pause request decoding
// for the whole connection until the filter resumes it via its callbacks.
type DecoderFilter interface {
	thrift.DecoderEventHandler

	// SetDecoderFilterCallbacks provides the filter its callbacks before
	// any event is delivered.
	SetDecoderFilterCallbacks(callbacks DecoderFilterCallbacks)

	// OnDestroy is called when the rpc is destroyed; the filter must
	// release any upstream resources it holds.
	OnDestroy()

	// ResetUpstreamConnection is called when a response fails mid-decode
	// and the upstream can no longer be trusted.
	ResetUpstreamConnection()
}

// DecoderFilterCallbacks is the per-rpc interface filters use to interact
// with the connection manager.
type DecoderFilterCallbacks interface {
	// Connection returns the downstream connection.
	Connection() Connection

	// ContinueDecoding resumes a paused dispatch loop.
	ContinueDecoding()

	// Route resolves and memoizes the request's route; nil if no route
	// matched or no metadata has been decoded yet. A nil result is
	// sticky.
	Route() Route

	// StreamID returns a process-unique id for correlating this rpc.
	StreamID() uint64

	// SendLocalReply encodes and writes a proxy-synthesized response to
	// the downstream with the request's original sequence id, then
	// retires the rpc.
	SendLocalReply(response thrift.DirectResponse)

	// StartUpstreamResponse installs the response decoder for this rpc.
	// Called exactly once, with the upstream's transport and protocol.
	StartUpstreamResponse(transport thrift.Transport, proto thrift.Protocol)

	// UpstreamData feeds upstream response bytes, returning true once
	// the response is complete or its decoding failed. Completion retires
	// the rpc; a decoding failure is answered with a local reply, which
	// retires it as well.
	UpstreamData(buf *thrift.Buffer) bool

	// ResetDownstreamConnection closes the downstream with no flush.
	ResetDownstreamConnection()
}

// FilterChainFactoryCallbacks installs filters for one rpc.
type FilterChainFactoryCallbacks interface {
	// AddDecoderFilter appends a filter to the rpc's chain.
	AddDecoderFilter(filter DecoderFilter)
}

// FilterChainFactory builds the filter chain for each new rpc.
type FilterChainFactory interface {
	// CreateFilterChain installs the configured filters.
	CreateFilterChain(callbacks FilterChainFactoryCallbacks)
}

// FilterChainFactoryFunc adapts a function to FilterChainFactory.
type FilterChainFactoryFunc func(callbacks FilterChainFactoryCallbacks)

// CreateFilterChain installs the configured filters.
func (f FilterChainFactoryFunc) CreateFilterChain(callbacks FilterChainFactoryCallbacks) {
	f(callbacks)
}
