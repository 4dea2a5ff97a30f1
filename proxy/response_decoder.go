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
	"github.com/m3db/thriftproxy/thrift"

	"go.uber.org/zap"
)

// responseDecoder decodes one upstream reply with the upstream's transport
// and protocol, rewrites its sequence id back to the one the downstream
// originally sent, re-encodes it through the downstream protocol, and
// writes the re-framed result to the client.
type responseDecoder struct {
	thrift.ProtocolConverter

	parent         *ActiveRpc
	decoder        *thrift.Decoder
	upstreamBuffer *thrift.Buffer

	metadata        *thrift.MessageMetadata
	firstReplyField bool
	success         bool
	successSet      bool
	complete        bool
}

func newResponseDecoder(parent *ActiveRpc, transport thrift.Transport, proto thrift.Protocol) *responseDecoder {
	d := &responseDecoder{
		parent:         parent,
		upstreamBuffer: thrift.NewBuffer(),
	}
	d.decoder = thrift.NewDecoder(transport, proto, d)
	d.Reset(parent.parent.proto, parent.responseBuffer)
	return d
}

// NewDecoderEventHandler hands the decoder this responseDecoder itself:
// there is exactly one message to decode.
func (d *responseDecoder) NewDecoderEventHandler() thrift.DecoderEventHandler {
	return d
}

// OnData decodes buffered upstream bytes, returning whether the response
// completed.
func (d *responseDecoder) OnData(data *thrift.Buffer) (bool, error) {
	d.upstreamBuffer.MoveFrom(data)

	_, underflow, err := d.decoder.OnData(d.upstreamBuffer)
	if err != nil {
		return false, err
	}
	if !d.complete && !underflow {
		panic("proxy: response decoder neither complete nor underflowed")
	}
	return d.complete, nil
}

// MessageBegin rewrites the reply's sequence id to the id the downstream
// sent on the corresponding request: the proxy is free to renumber on the
// upstream wire, but the client must see the id it originally used.
func (d *responseDecoder) MessageBegin(meta *thrift.MessageMetadata) thrift.FilterStatus {
	d.metadata = meta
	meta.SetSequenceID(d.parent.originalSequenceID)

	d.firstReplyField = meta.HasMessageType() && meta.MessageType() == thrift.MessageTypeReply
	return d.ProtocolConverter.MessageBegin(meta)
}

// FieldBegin classifies the reply on its first field. Reply messages carry
// a struct where field 0 is the call result and fields 1+ are declared
// exceptions, with at most one set; the first field therefore decides
// success or error.
func (d *responseDecoder) FieldBegin(name string, fieldType thrift.FieldType, fieldID int16) thrift.FilterStatus {
	if d.firstReplyField {
		d.success = fieldID == 0 && fieldType != thrift.FieldTypeStop
		d.successSet = true
		d.firstReplyField = false
	}

	return d.ProtocolConverter.FieldBegin(name, fieldType, fieldID)
}

// TransportEnd re-frames the re-encoded reply with the downstream
// transport, writes it to the client, and accounts for the response.
func (d *responseDecoder) TransportEnd() thrift.FilterStatus {
	if d.metadata == nil {
		panic("proxy: response transport end without metadata")
	}

	cm := d.parent.parent

	// Resolve the manager's transport type to a concrete transport, as
	// opposed to whatever pre-negotiation instance the decoder carries.
	transport := thrift.NewTransport(cm.decoder.TransportType())

	out := thrift.NewBuffer()
	d.metadata.SetProtocol(cm.decoder.ProtocolType())
	if err := transport.EncodeFrame(out, d.metadata, d.parent.responseBuffer); err != nil {
		cm.log.Error("failed to encode response frame", zap.Error(err))
		d.complete = true
		return thrift.FilterStatusContinue
	}
	d.complete = true

	cm.connection().Write(out, false)

	cm.stats.Response.Inc(1)

	switch d.metadata.MessageType() {
	case thrift.MessageTypeReply:
		cm.stats.ResponseReply.Inc(1)
		if d.successSet && d.success {
			cm.stats.ResponseSuccess.Inc(1)
		} else {
			cm.stats.ResponseError.Inc(1)
		}

	case thrift.MessageTypeException:
		cm.stats.ResponseException.Inc(1)

	default:
		cm.stats.ResponseInvalidType.Inc(1)
	}

	return thrift.FilterStatusContinue
}
