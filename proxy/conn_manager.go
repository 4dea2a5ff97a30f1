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
	"go.uber.org/zap"
)

// ConnectionManager drives one downstream connection: it owns the request
// decoder and buffers, the ordered set of in-flight rpcs, and the
// connection lifecycle. All methods must be called from the connection's
// event loop.
type ConnectionManager struct {
	opts      Options
	log       *zap.Logger
	stats     *Stats
	transport thrift.Transport
	proto     thrift.Protocol
	decoder   *thrift.Decoder

	readCallbacks ReadFilterCallbacks
	requestBuffer *thrift.Buffer

	// rpcs is ordered by request arrival: the front is the oldest
	// in-flight rpc, the back the one currently being decoded.
	rpcs *list.List

	stopped    bool
	halfClosed bool
}

// NewConnectionManager creates a connection manager.
func NewConnectionManager(opts Options) *ConnectionManager {
	iopts := opts.InstrumentOptions()
	cm := &ConnectionManager{
		opts:          opts,
		log:           iopts.Logger(),
		stats:         NewStats(iopts.MetricsScope()),
		transport:     opts.TransportFactory()(),
		proto:         opts.ProtocolFactory()(),
		requestBuffer: thrift.NewBuffer(),
		rpcs:          list.New(),
	}
	cm.decoder = thrift.NewDecoder(cm.transport, cm.proto, cm)
	return cm
}

// InitializeReadFilterCallbacks binds the manager to its host connection.
func (cm *ConnectionManager) InitializeReadFilterCallbacks(callbacks ReadFilterCallbacks) {
	cm.readCallbacks = callbacks
	cm.readCallbacks.Connection().AddConnectionCallbacks(cm)
	cm.readCallbacks.Connection().EnableHalfClose(true)
}

// OnData absorbs downstream bytes and runs the dispatch loop. With
// endStream set the downstream has half-closed; unless decoding is paused
// waiting for an outstanding oneway to finish upstream, all rpcs are reset
// and the connection closes. Always stops further filter iteration: the
// manager is a terminal network filter.
func (cm *ConnectionManager) OnData(data *thrift.Buffer, endStream bool) thrift.FilterStatus {
	cm.requestBuffer.MoveFrom(data)
	cm.dispatch()

	if endStream {
		cm.log.Debug("downstream half-closed",
			zap.String("remote", cm.connection().RemoteAddr()))

		// Downstream has closed. Unless we're waiting for an upstream to
		// complete a oneway request, close. The special case lets the
		// oneway reach the upstream before the manager is destroyed.
		if front := cm.frontRpc(); cm.stopped && front != nil {
			meta := front.metadata
			if meta != nil && meta.HasMessageType() &&
				meta.MessageType() == thrift.MessageTypeOneway {
				cm.log.Debug("waiting for oneway completion",
					zap.String("remote", cm.connection().RemoteAddr()))
				cm.halfClosed = true
				return thrift.FilterStatusStopIteration
			}
		}

		cm.resetAllRpcs(false)
		cm.connection().Close(ConnectionCloseFlushWrite)
	}

	return thrift.FilterStatusStopIteration
}

// dispatch decodes buffered request data until it underflows, a filter
// pauses iteration, or decoding fails. Decode failures are fatal to the
// connection; when possible an error reply is sent first.
func (cm *ConnectionManager) dispatch() {
	if cm.stopped {
		cm.log.Debug("thrift filter stopped")
		return
	}

	err := cm.decodeRequests()
	if err == nil {
		return
	}

	var appEx *thrift.ApplicationException
	if errors.As(err, &appEx) {
		cm.log.Error("thrift application exception", zap.Error(err))
		if front := cm.frontRpc(); front != nil && front.metadata != nil {
			cm.sendLocalReply(front.metadata, appEx)
		} else {
			cm.sendLocalReply(thrift.NewMessageMetadata(), appEx)
		}
	} else {
		cm.log.Error("thrift error", zap.Error(err))

		// Use the current rpc to send an error downstream, if possible.
		if front := cm.frontRpc(); front != nil {
			front.onError(err.Error())
		}
	}

	cm.stats.RequestDecodingError.Inc(1)
	cm.resetAllRpcs(true)
	cm.connection().Close(ConnectionCloseFlushWrite)
}

func (cm *ConnectionManager) decodeRequests() error {
	for {
		status, underflow, err := cm.decoder.OnData(cm.requestBuffer)
		if err != nil {
			return err
		}
		if status == thrift.FilterStatusStopIteration {
			cm.stopped = true
			return nil
		}
		if underflow {
			return nil
		}
	}
}

// ContinueDecoding resumes a dispatch loop paused by a filter. If the
// downstream half-closed while we were paused and nothing stopped us
// again, the connection drains and closes.
func (cm *ConnectionManager) ContinueDecoding() {
	cm.log.Debug("thrift filter continued")
	cm.stopped = false
	cm.dispatch()

	if !cm.stopped && cm.halfClosed {
		cm.resetAllRpcs(false)
		cm.connection().Close(ConnectionCloseFlushWrite)
	}
}

// OnEvent resets all outstanding rpcs when the connection closes.
func (cm *ConnectionManager) OnEvent(event ConnectionEvent) {
	cm.resetAllRpcs(event == ConnectionEventLocalClose)
}

// NewDecoderEventHandler starts a new rpc for the message whose frame just
// began, building its filter chain and appending it in arrival order.
func (cm *ConnectionManager) NewDecoderEventHandler() thrift.DecoderEventHandler {
	cm.log.Debug("new decoder filter")

	rpc := newActiveRpc(cm)
	rpc.createFilterChain()
	rpc.entry = cm.rpcs.PushBack(rpc)
	return rpc
}

// sendLocalReply encodes a proxy-synthesized response with the downstream
// protocol, frames it with the downstream transport, and writes it without
// ending the stream.
func (cm *ConnectionManager) sendLocalReply(meta *thrift.MessageMetadata, response thrift.DirectResponse) {
	payload := thrift.NewBuffer()
	response.Encode(meta, cm.proto, payload)

	out := thrift.NewBuffer()
	meta.SetProtocol(cm.proto.Type())
	if err := cm.transport.EncodeFrame(out, meta, payload); err != nil {
		cm.log.Error("failed to encode local reply", zap.Error(err))
		return
	}

	cm.connection().Write(out, false)
}

// resetAllRpcs tears down every in-flight rpc, attributing the teardown to
// a local or remote close.
func (cm *ConnectionManager) resetAllRpcs(localReset bool) {
	for cm.rpcs.Len() > 0 {
		if localReset {
			cm.log.Debug("local close with active request")
			cm.stats.CxDestroyLocalWithActiveRq.Inc(1)
		} else {
			cm.log.Debug("remote close with active request")
			cm.stats.CxDestroyRemoteWithActiveRq.Inc(1)
		}

		cm.rpcs.Front().Value.(*ActiveRpc).onReset()
	}
}

// doDeferredRpcDestroy unlinks the rpc and schedules its destruction for
// the next event loop tick, so an rpc may retire itself from inside one of
// its own callbacks without the call frame being destroyed under itself.
func (cm *ConnectionManager) doDeferredRpcDestroy(rpc *ActiveRpc) {
	if rpc.entry == nil {
		panic("proxy: deferred destroy of rpc not in list")
	}
	cm.rpcs.Remove(rpc.entry)
	rpc.entry = nil
	cm.connection().Dispatcher().DeferredDelete(rpc.onDestroy)
}

func (cm *ConnectionManager) frontRpc() *ActiveRpc {
	front := cm.rpcs.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*ActiveRpc)
}

func (cm *ConnectionManager) connection() Connection {
	return cm.readCallbacks.Connection()
}
