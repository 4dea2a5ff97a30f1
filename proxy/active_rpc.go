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

package proxy

import (
	"container/list"

	"github.com/m3db/thriftproxy/thrift"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var nextStreamID = atomic.NewUint64(0)

// ActiveRpc is one in-flight request. It plays two roles over one state
// record: the decoder event handler for the request's events, and the
// callbacks its filters use to interact with the connection manager. The
// event handler slot normally points at the rpc's own filter chain and is
// redirected to the protocol's upgrade decoder for upgrade messages.
type ActiveRpc struct {
	parent *ConnectionManager
	entry  *list.Element

	metadata           *thrift.MessageMetadata
	originalSequenceID int32
	streamID           uint64

	chain          filterChain
	eventHandler   thrift.DecoderEventHandler
	upgradeHandler thrift.DecoderEventHandler

	responseDecoder *responseDecoder
	responseBuffer  *thrift.Buffer

	cachedRoute   Route
	routeResolved bool
}

func newActiveRpc(parent *ConnectionManager) *ActiveRpc {
	rpc := &ActiveRpc{
		parent:         parent,
		streamID:       nextStreamID.Inc(),
		responseBuffer: thrift.NewBuffer(),
	}
	rpc.eventHandler = &rpc.chain
	return rpc
}

func (r *ActiveRpc) createFilterChain() {
	r.parent.opts.FilterChainFactory().CreateFilterChain(r)
}

// AddDecoderFilter installs a filter at the end of the chain.
func (r *ActiveRpc) AddDecoderFilter(filter DecoderFilter) {
	filter.SetDecoderFilterCallbacks(r)
	r.chain.filters = append(r.chain.filters, filter)
}

func (r *ActiveRpc) onReset() {
	r.parent.doDeferredRpcDestroy(r)
}

func (r *ActiveRpc) onDestroy() {
	for _, f := range r.chain.filters {
		f.OnDestroy()
	}
	r.responseDecoder = nil
}

// onError answers a decode failure with a protocol-error reply when the
// request envelope was already captured. A failure before (or during)
// message begin has no valid envelope to reply into, so nothing is sent.
func (r *ActiveRpc) onError(what string) {
	if r.metadata != nil {
		r.SendLocalReply(thrift.NewApplicationException(thrift.AppExceptionProtocolError, what))
	}
}

// MessageBegin captures the request envelope and original sequence id and,
// for protocol upgrade messages, redirects all further events to the
// protocol's upgrade decoder.
func (r *ActiveRpc) MessageBegin(meta *thrift.MessageMetadata) thrift.FilterStatus {
	if !meta.HasSequenceID() {
		panic("proxy: message begin without sequence id")
	}

	r.metadata = meta
	r.originalSequenceID = meta.SequenceID()

	if meta.IsProtocolUpgradeMessage() {
		if !r.parent.proto.SupportsUpgrade() {
			panic("proxy: upgrade message on protocol without upgrade support")
		}

		r.parent.log.Debug("decoding protocol upgrade request",
			zap.Uint64("stream", r.streamID))
		r.upgradeHandler = r.parent.proto.UpgradeRequestDecoder()
		r.eventHandler = r.upgradeHandler
	}

	return r.eventHandler.MessageBegin(meta)
}

// TransportEnd accounts for the finished request, retires oneway rpcs (no
// response is forthcoming), and answers protocol upgrades.
func (r *ActiveRpc) TransportEnd() thrift.FilterStatus {
	if r.metadata == nil || !r.metadata.HasMessageType() {
		panic("proxy: transport end without message type")
	}

	r.parent.stats.Request.Inc(1)

	switch r.metadata.MessageType() {
	case thrift.MessageTypeCall:
		r.parent.stats.RequestCall.Inc(1)

	case thrift.MessageTypeOneway:
		r.parent.stats.RequestOneway.Inc(1)

		// No response forthcoming, we're done.
		r.parent.doDeferredRpcDestroy(r)

	default:
		r.parent.stats.RequestInvalidType.Inc(1)
	}

	status := r.eventHandler.TransportEnd()

	if r.metadata.IsProtocolUpgradeMessage() {
		r.parent.log.Debug("sending protocol upgrade response",
			zap.Uint64("stream", r.streamID))
		r.SendLocalReply(r.parent.proto.UpgradeResponse(r.upgradeHandler))
	}

	return status
}

// TransportBegin forwards to the active event handler.
func (r *ActiveRpc) TransportBegin(meta *thrift.MessageMetadata) thrift.FilterStatus {
	return r.eventHandler.TransportBegin(meta)
}

// MessageEnd forwards to the active event handler.
func (r *ActiveRpc) MessageEnd() thrift.FilterStatus { return r.eventHandler.MessageEnd() }

// StructBegin forwards to the active event handler.
func (r *ActiveRpc) StructBegin(name string) thrift.FilterStatus {
	return r.eventHandler.StructBegin(name)
}

// StructEnd forwards to the active event handler.
func (r *ActiveRpc) StructEnd() thrift.FilterStatus { return r.eventHandler.StructEnd() }

// FieldBegin forwards to the active event handler.
func (r *ActiveRpc) FieldBegin(name string, fieldType thrift.FieldType, fieldID int16) thrift.FilterStatus {
	return r.eventHandler.FieldBegin(name, fieldType, fieldID)
}

// FieldEnd forwards to the active event handler.
func (r *ActiveRpc) FieldEnd() thrift.FilterStatus { return r.eventHandler.FieldEnd() }

// MapBegin forwards to the active event handler.
func (r *ActiveRpc) MapBegin(keyType, valueType thrift.FieldType, size uint32) thrift.FilterStatus {
	return r.eventHandler.MapBegin(keyType, valueType, size)
}

// MapEnd forwards to the active event handler.
func (r *ActiveRpc) MapEnd() thrift.FilterStatus { return r.eventHandler.MapEnd() }

// ListBegin forwards to the active event handler.
func (r *ActiveRpc) ListBegin(elemType thrift.FieldType, size uint32) thrift.FilterStatus {
	return r.eventHandler.ListBegin(elemType, size)
}

// ListEnd forwards to the active event handler.
func (r *ActiveRpc) ListEnd() thrift.FilterStatus { return r.eventHandler.ListEnd() }

// SetBegin forwards to the active event handler.
func (r *ActiveRpc) SetBegin(elemType thrift.FieldType, size uint32) thrift.FilterStatus {
	return r.eventHandler.SetBegin(elemType, size)
}

// SetEnd forwards to the active event handler.
func (r *ActiveRpc) SetEnd() thrift.FilterStatus { return r.eventHandler.SetEnd() }

// BoolValue forwards to the active event handler.
func (r *ActiveRpc) BoolValue(value bool) thrift.FilterStatus {
	return r.eventHandler.BoolValue(value)
}

// ByteValue forwards to the active event handler.
func (r *ActiveRpc) ByteValue(value int8) thrift.FilterStatus {
	return r.eventHandler.ByteValue(value)
}

// Int16Value forwards to the active event handler.
func (r *ActiveRpc) Int16Value(value int16) thrift.FilterStatus {
	return r.eventHandler.Int16Value(value)
}

// Int32Value forwards to the active event handler.
func (r *ActiveRpc) Int32Value(value int32) thrift.FilterStatus {
	return r.eventHandler.Int32Value(value)
}

// Int64Value forwards to the active event handler.
func (r *ActiveRpc) Int64Value(value int64) thrift.FilterStatus {
	return r.eventHandler.Int64Value(value)
}

// DoubleValue forwards to the active event handler.
func (r *ActiveRpc) DoubleValue(value float64) thrift.FilterStatus {
	return r.eventHandler.DoubleValue(value)
}

// StringValue forwards to the active event handler.
func (r *ActiveRpc) StringValue(value string) thrift.FilterStatus {
	return r.eventHandler.StringValue(value)
}

// Connection returns the downstream connection.
func (r *ActiveRpc) Connection() Connection {
	return r.parent.connection()
}

// ContinueDecoding resumes the connection's dispatch loop.
func (r *ActiveRpc) ContinueDecoding() {
	r.parent.ContinueDecoding()
}

// Route lazily resolves the request's route. The result, including a nil
// one, is memoized: a router that already declined is not retried.
func (r *ActiveRpc) Route() Route {
	if !r.routeResolved {
		if r.metadata != nil {
			r.cachedRoute = r.parent.opts.Router().Route(r.metadata, r.streamID)
		}
		r.routeResolved = true
	}
	return r.cachedRoute
}

// StreamID returns the process-unique id of this rpc.
func (r *ActiveRpc) StreamID() uint64 {
	return r.streamID
}

// SendLocalReply restores the request's original sequence id, writes the
// synthesized response downstream, and retires this rpc.
func (r *ActiveRpc) SendLocalReply(response thrift.DirectResponse) {
	r.metadata.SetSequenceID(r.originalSequenceID)

	r.parent.sendLocalReply(r.metadata, response)
	r.parent.doDeferredRpcDestroy(r)
}

// StartUpstreamResponse installs the response decoder, parameterized by
// the upstream's (possibly different) transport and protocol.
func (r *ActiveRpc) StartUpstreamResponse(transport thrift.Transport, proto thrift.Protocol) {
	if r.responseDecoder != nil {
		panic("proxy: upstream response already started")
	}

	r.responseDecoder = newResponseDecoder(r, transport, proto)
}

// UpstreamData feeds upstream response bytes through the response decoder.
// Completion retires the rpc. A decode failure is answered downstream when
// possible and asks the filter chain to reset the upstream.
func (r *ActiveRpc) UpstreamData(buf *thrift.Buffer) bool {
	if r.responseDecoder == nil {
		panic("proxy: upstream data without response decoder")
	}

	complete, err := r.responseDecoder.OnData(buf)
	if err == nil {
		if complete {
			r.parent.doDeferredRpcDestroy(r)
		}
		return complete
	}

	var appEx *thrift.ApplicationException
	if errors.As(err, &appEx) {
		r.parent.log.Error("thrift response application error",
			zap.Uint64("stream", r.streamID), zap.Error(err))
		r.parent.stats.ResponseDecodingError.Inc(1)

		r.SendLocalReply(appEx)
	} else {
		r.parent.log.Error("thrift response error",
			zap.Uint64("stream", r.streamID), zap.Error(err))
		r.parent.stats.ResponseDecodingError.Inc(1)

		r.onError(err.Error())
	}
	r.chain.resetUpstreamConnection()
	return true
}

// ResetDownstreamConnection closes the downstream with no flush.
func (r *ActiveRpc) ResetDownstreamConnection() {
	r.parent.connection().Close(ConnectionCloseNoFlush)
}

// filterChain fans decoder events across the rpc's filters in installation
// order; the first filter to pause iteration wins for that event.
type filterChain struct {
	filters []DecoderFilter
}

func (c *filterChain) resetUpstreamConnection() {
	for _, f := range c.filters {
		f.ResetUpstreamConnection()
	}
}

func (c *filterChain) apply(event func(f DecoderFilter) thrift.FilterStatus) thrift.FilterStatus {
	for _, f := range c.filters {
		if event(f) == thrift.FilterStatusStopIteration {
			return thrift.FilterStatusStopIteration
		}
	}
	return thrift.FilterStatusContinue
}

func (c *filterChain) TransportBegin(meta *thrift.MessageMetadata) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.TransportBegin(meta) })
}

func (c *filterChain) TransportEnd() thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.TransportEnd() })
}

func (c *filterChain) MessageBegin(meta *thrift.MessageMetadata) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.MessageBegin(meta) })
}

func (c *filterChain) MessageEnd() thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.MessageEnd() })
}

func (c *filterChain) StructBegin(name string) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.StructBegin(name) })
}

func (c *filterChain) StructEnd() thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.StructEnd() })
}

func (c *filterChain) FieldBegin(name string, fieldType thrift.FieldType, fieldID int16) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus {
		return f.FieldBegin(name, fieldType, fieldID)
	})
}

func (c *filterChain) FieldEnd() thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.FieldEnd() })
}

func (c *filterChain) MapBegin(keyType, valueType thrift.FieldType, size uint32) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus {
		return f.MapBegin(keyType, valueType, size)
	})
}

func (c *filterChain) MapEnd() thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.MapEnd() })
}

func (c *filterChain) ListBegin(elemType thrift.FieldType, size uint32) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.ListBegin(elemType, size) })
}

func (c *filterChain) ListEnd() thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.ListEnd() })
}

func (c *filterChain) SetBegin(elemType thrift.FieldType, size uint32) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.SetBegin(elemType, size) })
}

func (c *filterChain) SetEnd() thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.SetEnd() })
}

func (c *filterChain) BoolValue(value bool) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.BoolValue(value) })
}

func (c *filterChain) ByteValue(value int8) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.ByteValue(value) })
}

func (c *filterChain) Int16Value(value int16) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.Int16Value(value) })
}

func (c *filterChain) Int32Value(value int32) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.Int32Value(value) })
}

func (c *filterChain) Int64Value(value int64) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.Int64Value(value) })
}

func (c *filterChain) DoubleValue(value float64) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.DoubleValue(value) })
}

func (c *filterChain) StringValue(value string) thrift.FilterStatus {
	return c.apply(func(f DecoderFilter) thrift.FilterStatus { return f.StringValue(value) })
}
