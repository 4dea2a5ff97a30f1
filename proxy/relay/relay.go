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

// Package relay implements the forwarding decoder filter: it resolves each
// request's route, re-encodes the request for the routed cluster's
// transport and protocol, relays it over TCP, and feeds the upstream's
// response bytes back into the rpc.
package relay

import (
	"fmt"
	"net"
	"time"

	"github.com/m3db/thriftproxy/instrument"
	"github.com/m3db/thriftproxy/proxy"
	"github.com/m3db/thriftproxy/thrift"

	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	defaultDialTimeout = 10 * time.Second

	upstreamReadSize = 32 * 1024
)

// Cluster describes one upstream a route may target.
type Cluster struct {
	// Address is the host:port to dial.
	Address string

	// Transport frames requests to this cluster.
	Transport thrift.TransportType

	// Protocol encodes requests to this cluster.
	Protocol thrift.ProtocolType

	// DialTimeout bounds connection establishment. Zero means the
	// default.
	DialTimeout time.Duration
}

type relayMetrics struct {
	routeMissing   tally.Counter
	clusterMissing tally.Counter
	upstreamErrors tally.Counter
}

func newRelayMetrics(scope tally.Scope) relayMetrics {
	return relayMetrics{
		routeMissing:   scope.Counter("route_missing"),
		clusterMissing: scope.Counter("cluster_missing"),
		upstreamErrors: scope.Counter("upstream_errors"),
	}
}

// NewFilterChainFactory returns a filter chain factory that installs one
// relay filter per rpc.
func NewFilterChainFactory(
	clusters map[string]Cluster,
	iopts instrument.Options,
) proxy.FilterChainFactory {
	log := iopts.Logger()
	metrics := newRelayMetrics(iopts.MetricsScope().Tagged(map[string]string{"filter": "relay"}))
	return proxy.FilterChainFactoryFunc(func(callbacks proxy.FilterChainFactoryCallbacks) {
		callbacks.AddDecoderFilter(&filter{
			clusters: clusters,
			log:      log,
			metrics:  metrics,
		})
	})
}

// filter relays one request. It re-encodes decoder events through a
// protocol converter into a request buffer and, at transport end, frames
// and writes the result upstream. Responses are pumped back on a reader
// goroutine, serialized onto the connection's dispatcher.
type filter struct {
	thrift.ProtocolConverter

	clusters map[string]Cluster
	log      *zap.Logger
	metrics  relayMetrics

	callbacks proxy.DecoderFilterCallbacks

	upstreamTransport thrift.Transport
	upstreamProto     thrift.Protocol
	requestBuffer     *thrift.Buffer
	conn              net.Conn

	meta      *thrift.MessageMetadata
	oneway    bool
	replied   bool
	destroyed bool
}

func (f *filter) SetDecoderFilterCallbacks(callbacks proxy.DecoderFilterCallbacks) {
	f.callbacks = callbacks

	// Point the converter at a scratch target until a route resolves, so
	// events on a request that was answered locally have somewhere
	// harmless to go.
	f.requestBuffer = thrift.NewBuffer()
	f.Reset(thrift.NewBinaryProtocol(), f.requestBuffer)
}

// MessageBegin resolves the route and dials the routed cluster. A request
// with no usable destination is answered locally and decoding pauses; the
// client is expected to give up on the connection.
func (f *filter) MessageBegin(meta *thrift.MessageMetadata) thrift.FilterStatus {
	f.meta = meta
	f.oneway = meta.HasMessageType() && meta.MessageType() == thrift.MessageTypeOneway

	route := f.callbacks.Route()
	if route == nil {
		f.metrics.routeMissing.Inc(1)
		f.replied = true
		f.callbacks.SendLocalReply(thrift.NewApplicationException(
			thrift.AppExceptionUnknownMethod,
			fmt.Sprintf("no route for method %q", meta.MethodName())))
		return thrift.FilterStatusStopIteration
	}

	clusterName := route.RouteEntry().ClusterName()
	cluster, ok := f.clusters[clusterName]
	if !ok {
		f.metrics.clusterMissing.Inc(1)
		f.replied = true
		f.callbacks.SendLocalReply(thrift.NewApplicationException(
			thrift.AppExceptionInternalError,
			fmt.Sprintf("unknown cluster %q", clusterName)))
		return thrift.FilterStatusStopIteration
	}

	timeout := cluster.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	conn, err := net.DialTimeout("tcp", cluster.Address, timeout)
	if err != nil {
		f.metrics.upstreamErrors.Inc(1)
		f.log.Error("upstream dial failed",
			zap.String("cluster", clusterName),
			zap.Uint64("stream", f.callbacks.StreamID()),
			zap.Error(err))
		f.replied = true
		f.callbacks.SendLocalReply(thrift.NewApplicationException(
			thrift.AppExceptionInternalError,
			fmt.Sprintf("upstream connection to cluster %q failed", clusterName)))
		return thrift.FilterStatusStopIteration
	}

	f.conn = conn
	f.upstreamTransport = thrift.NewTransport(cluster.Transport)
	f.upstreamProto = thrift.NewProtocol(cluster.Protocol)
	f.Reset(f.upstreamProto, f.requestBuffer)

	return f.ProtocolConverter.MessageBegin(meta)
}

// TransportEnd frames and writes the re-encoded request upstream. Oneways
// are released immediately; everything else installs the response decoder
// and pauses request decoding until the response retires the rpc.
func (f *filter) TransportEnd() thrift.FilterStatus {
	if f.replied || f.conn == nil {
		return thrift.FilterStatusContinue
	}

	out := thrift.NewBuffer()
	if err := f.upstreamTransport.EncodeFrame(out, f.meta, f.requestBuffer); err != nil {
		return f.abortUpstream(err)
	}
	if _, err := f.conn.Write(out.Bytes()); err != nil {
		return f.abortUpstream(err)
	}

	if f.oneway {
		// No response expected; the rpc is already retiring.
		f.closeUpstream()
		return thrift.FilterStatusContinue
	}

	f.callbacks.StartUpstreamResponse(f.upstreamTransport, f.upstreamProto)

	conn := f.conn
	dispatcher := f.callbacks.Connection().Dispatcher()
	go f.pumpUpstream(conn, dispatcher)

	return thrift.FilterStatusStopIteration
}

func (f *filter) abortUpstream(err error) thrift.FilterStatus {
	f.metrics.upstreamErrors.Inc(1)
	f.log.Error("upstream write failed",
		zap.Uint64("stream", f.callbacks.StreamID()), zap.Error(err))
	f.closeUpstream()
	f.replied = true
	f.callbacks.SendLocalReply(thrift.NewApplicationException(
		thrift.AppExceptionInternalError, "upstream request write failed"))
	return thrift.FilterStatusStopIteration
}

// pumpUpstream reads response bytes off the upstream socket and posts them
// onto the connection's event loop until the response completes or the
// upstream fails.
func (f *filter) pumpUpstream(conn net.Conn, dispatcher proxy.Dispatcher) {
	readBuf := make([]byte, upstreamReadSize)
	for {
		n, err := conn.Read(readBuf)
		if n > 0 {
			chunk := append([]byte(nil), readBuf[:n]...)
			done := make(chan bool, 1)
			dispatcher.Post(func() {
				if f.destroyed {
					done <- true
					return
				}
				complete := f.callbacks.UpstreamData(thrift.NewBufferBytes(chunk))
				if complete {
					f.callbacks.ContinueDecoding()
				}
				done <- complete
			})
			if <-done {
				return
			}
		}
		if err != nil {
			dispatcher.Post(func() {
				if f.destroyed {
					return
				}
				f.metrics.upstreamErrors.Inc(1)
				f.log.Error("upstream closed before response completed",
					zap.Uint64("stream", f.callbacks.StreamID()), zap.Error(err))
				f.replied = true
				f.callbacks.SendLocalReply(thrift.NewApplicationException(
					thrift.AppExceptionInternalError,
					"upstream connection closed before response completed"))
				f.callbacks.ContinueDecoding()
			})
			return
		}
	}
}

func (f *filter) closeUpstream() {
	if f.conn != nil {
		f.conn.Close() // nolint: errcheck
		f.conn = nil
	}
}

func (f *filter) OnDestroy() {
	f.destroyed = true
	f.closeUpstream()
}

func (f *filter) ResetUpstreamConnection() {
	f.closeUpstream()
}
