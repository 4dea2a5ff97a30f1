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

package thrift

import (
	"context"
	"fmt"
	"testing"

	apachethrift "github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/require"
)

// recordingHandler records every decoder event as a compact string, and
// can pause decoding after chosen events.
type recordingHandler struct {
	events    []string
	stopAfter map[string]bool
	meta      *MessageMetadata
}

func (h *recordingHandler) record(event string) FilterStatus {
	h.events = append(h.events, event)
	if h.stopAfter[event] {
		delete(h.stopAfter, event)
		return FilterStatusStopIteration
	}
	return FilterStatusContinue
}

func (h *recordingHandler) TransportBegin(meta *MessageMetadata) FilterStatus {
	return h.record("transportBegin")
}

func (h *recordingHandler) TransportEnd() FilterStatus { return h.record("transportEnd") }

func (h *recordingHandler) MessageBegin(meta *MessageMetadata) FilterStatus {
	h.meta = meta
	return h.record(fmt.Sprintf("messageBegin:%s:%v:%d",
		meta.MethodName(), meta.MessageType(), meta.SequenceID()))
}

func (h *recordingHandler) MessageEnd() FilterStatus  { return h.record("messageEnd") }
func (h *recordingHandler) StructBegin(name string) FilterStatus {
	return h.record("structBegin")
}
func (h *recordingHandler) StructEnd() FilterStatus { return h.record("structEnd") }

func (h *recordingHandler) FieldBegin(name string, fieldType FieldType, fieldID int16) FilterStatus {
	return h.record(fmt.Sprintf("fieldBegin:%d:%d", fieldType, fieldID))
}

func (h *recordingHandler) FieldEnd() FilterStatus { return h.record("fieldEnd") }

func (h *recordingHandler) MapBegin(keyType, valueType FieldType, size uint32) FilterStatus {
	return h.record(fmt.Sprintf("mapBegin:%d:%d:%d", keyType, valueType, size))
}

func (h *recordingHandler) MapEnd() FilterStatus { return h.record("mapEnd") }

func (h *recordingHandler) ListBegin(elemType FieldType, size uint32) FilterStatus {
	return h.record(fmt.Sprintf("listBegin:%d:%d", elemType, size))
}

func (h *recordingHandler) ListEnd() FilterStatus { return h.record("listEnd") }

func (h *recordingHandler) SetBegin(elemType FieldType, size uint32) FilterStatus {
	return h.record(fmt.Sprintf("setBegin:%d:%d", elemType, size))
}

func (h *recordingHandler) SetEnd() FilterStatus { return h.record("setEnd") }

func (h *recordingHandler) BoolValue(v bool) FilterStatus {
	return h.record(fmt.Sprintf("bool:%v", v))
}
func (h *recordingHandler) ByteValue(v int8) FilterStatus {
	return h.record(fmt.Sprintf("byte:%d", v))
}
func (h *recordingHandler) Int16Value(v int16) FilterStatus {
	return h.record(fmt.Sprintf("i16:%d", v))
}
func (h *recordingHandler) Int32Value(v int32) FilterStatus {
	return h.record(fmt.Sprintf("i32:%d", v))
}
func (h *recordingHandler) Int64Value(v int64) FilterStatus {
	return h.record(fmt.Sprintf("i64:%d", v))
}
func (h *recordingHandler) DoubleValue(v float64) FilterStatus {
	return h.record(fmt.Sprintf("double:%v", v))
}
func (h *recordingHandler) StringValue(v string) FilterStatus {
	return h.record(fmt.Sprintf("string:%s", v))
}

type testDecoderCallbacks struct {
	handler  *recordingHandler
	handlers int
}

func (c *testDecoderCallbacks) NewDecoderEventHandler() DecoderEventHandler {
	c.handlers++
	return c.handler
}

func apacheFramedBinaryBytes(t *testing.T, encode func(p apachethrift.TProtocol) error) []byte {
	mem := apachethrift.NewTMemoryBuffer()
	framed := apachethrift.NewTFramedTransport(mem)
	p := apachethrift.NewTBinaryProtocol(framed, false, true)
	require.NoError(t, encode(p))
	require.NoError(t, p.Flush(context.Background()))
	return mem.Bytes()
}

// encodeComplexCall exercises every container and primitive type.
func encodeComplexCall(p apachethrift.TProtocol) error {
	if err := p.WriteMessageBegin("op", apachethrift.CALL, 3); err != nil {
		return err
	}
	if err := p.WriteStructBegin("op_args"); err != nil {
		return err
	}

	if err := p.WriteFieldBegin("id", apachethrift.I32, 1); err != nil {
		return err
	}
	if err := p.WriteI32(42); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}

	if err := p.WriteFieldBegin("names", apachethrift.LIST, 2); err != nil {
		return err
	}
	if err := p.WriteListBegin(apachethrift.STRING, 2); err != nil {
		return err
	}
	if err := p.WriteString("a"); err != nil {
		return err
	}
	if err := p.WriteString("bb"); err != nil {
		return err
	}
	if err := p.WriteListEnd(); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}

	if err := p.WriteFieldBegin("flags", apachethrift.MAP, 3); err != nil {
		return err
	}
	if err := p.WriteMapBegin(apachethrift.I16, apachethrift.BOOL, 1); err != nil {
		return err
	}
	if err := p.WriteI16(5); err != nil {
		return err
	}
	if err := p.WriteBool(true); err != nil {
		return err
	}
	if err := p.WriteMapEnd(); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}

	if err := p.WriteFieldBegin("nested", apachethrift.STRUCT, 4); err != nil {
		return err
	}
	if err := p.WriteStructBegin("nested"); err != nil {
		return err
	}
	if err := p.WriteFieldBegin("ratio", apachethrift.DOUBLE, 1); err != nil {
		return err
	}
	if err := p.WriteDouble(1.5); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}
	if err := p.WriteFieldStop(); err != nil {
		return err
	}
	if err := p.WriteStructEnd(); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}

	if err := p.WriteFieldBegin("ids", apachethrift.SET, 5); err != nil {
		return err
	}
	if err := p.WriteSetBegin(apachethrift.I64, 1); err != nil {
		return err
	}
	if err := p.WriteI64(9); err != nil {
		return err
	}
	if err := p.WriteSetEnd(); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}

	if err := p.WriteFieldBegin("kind", apachethrift.BYTE, 6); err != nil {
		return err
	}
	if err := p.WriteByte(7); err != nil {
		return err
	}
	if err := p.WriteFieldEnd(); err != nil {
		return err
	}

	if err := p.WriteFieldStop(); err != nil {
		return err
	}
	if err := p.WriteStructEnd(); err != nil {
		return err
	}
	return p.WriteMessageEnd()
}

var complexCallEvents = []string{
	"transportBegin",
	"messageBegin:op:call:3",
	"structBegin",
	"fieldBegin:8:1", "i32:42", "fieldEnd",
	"fieldBegin:15:2", "listBegin:11:2", "string:a", "string:bb", "listEnd", "fieldEnd",
	"fieldBegin:13:3", "mapBegin:6:2:1", "i16:5", "bool:true", "mapEnd", "fieldEnd",
	"fieldBegin:12:4", "structBegin", "fieldBegin:4:1", "double:1.5", "fieldEnd",
	"structEnd", "fieldEnd",
	"fieldBegin:14:5", "setBegin:10:1", "i64:9", "setEnd", "fieldEnd",
	"fieldBegin:3:6", "byte:7", "fieldEnd",
	"structEnd",
	"messageEnd",
	"transportEnd",
}

func TestDecoderEventSequenceFramedBinary(t *testing.T) {
	data := apacheFramedBinaryBytes(t, encodeComplexCall)

	callbacks := &testDecoderCallbacks{handler: &recordingHandler{}}
	decoder := NewDecoder(NewFramedTransport(), NewBinaryProtocol(), callbacks)

	status, underflow, err := decoder.OnData(NewBufferBytes(data))
	require.NoError(t, err)
	require.Equal(t, FilterStatusContinue, status)
	require.True(t, underflow)
	require.Equal(t, 1, callbacks.handlers)
	require.Equal(t, complexCallEvents, callbacks.handler.events)
}

func TestDecoderResumesAcrossArbitrarySplits(t *testing.T) {
	data := apacheFramedBinaryBytes(t, encodeComplexCall)

	callbacks := &testDecoderCallbacks{handler: &recordingHandler{}}
	decoder := NewDecoder(NewFramedTransport(), NewBinaryProtocol(), callbacks)

	buf := NewBuffer()
	for _, b := range data {
		buf.Write([]byte{b})
		status, _, err := decoder.OnData(buf)
		require.NoError(t, err)
		require.Equal(t, FilterStatusContinue, status)
	}

	require.Equal(t, 1, callbacks.handlers)
	require.Equal(t, complexCallEvents, callbacks.handler.events)
}

func TestDecoderStopAndResume(t *testing.T) {
	data := apacheFramedBinaryBytes(t, encodeComplexCall)

	handler := &recordingHandler{stopAfter: map[string]bool{"messageBegin:op:call:3": true}}
	callbacks := &testDecoderCallbacks{handler: handler}
	decoder := NewDecoder(NewFramedTransport(), NewBinaryProtocol(), callbacks)

	buf := NewBufferBytes(data)
	status, underflow, err := decoder.OnData(buf)
	require.NoError(t, err)
	require.Equal(t, FilterStatusStopIteration, status)
	require.False(t, underflow)
	require.Equal(t, []string{"transportBegin", "messageBegin:op:call:3"}, handler.events)

	status, underflow, err = decoder.OnData(buf)
	require.NoError(t, err)
	require.Equal(t, FilterStatusContinue, status)
	require.True(t, underflow)
	require.Equal(t, 1, callbacks.handlers)
	require.Equal(t, complexCallEvents, handler.events)
}

func TestDecoderDecodesPipelinedMessages(t *testing.T) {
	first := apacheFramedBinaryBytes(t, encodeComplexCall)
	second := apacheFramedBinaryBytes(t, encodePingCall)

	callbacks := &testDecoderCallbacks{handler: &recordingHandler{}}
	decoder := NewDecoder(NewFramedTransport(), NewBinaryProtocol(), callbacks)

	buf := NewBufferBytes(append(append([]byte(nil), first...), second...))
	_, underflow, err := decoder.OnData(buf)
	require.NoError(t, err)
	require.True(t, underflow)
	require.Equal(t, 2, callbacks.handlers)
	require.Equal(t, 0, buf.Len())

	// The second message's events follow the first's.
	require.Equal(t, "messageBegin:ping:call:7",
		callbacks.handler.events[len(complexCallEvents)+1])
}

func TestProtocolConverterRebuildsBinaryMessage(t *testing.T) {
	original := apacheBinaryBytes(t, encodeComplexCall)

	rebuilt := NewBuffer()
	converter := &ProtocolConverter{}
	converter.Reset(NewBinaryProtocol(), rebuilt)

	callbacks := &converterCallbacks{handler: converter}
	decoder := NewDecoder(NewUnframedTransport(), NewBinaryProtocol(), callbacks)
	_, underflow, err := decoder.OnData(NewBufferBytes(append([]byte(nil), original...)))
	require.NoError(t, err)
	require.True(t, underflow)

	require.Equal(t, original, rebuilt.Bytes())
}

func TestProtocolConverterTranslatesBinaryToCompact(t *testing.T) {
	original := apacheBinaryBytes(t, encodeComplexCall)

	compact := NewBuffer()
	converter := &ProtocolConverter{}
	converter.Reset(NewCompactProtocol(), compact)

	decoder := NewDecoder(NewUnframedTransport(), NewBinaryProtocol(),
		&converterCallbacks{handler: converter})
	_, _, err := decoder.OnData(NewBufferBytes(append([]byte(nil), original...)))
	require.NoError(t, err)

	// Decoding the compact rendition yields the identical event stream.
	recording := &recordingHandler{}
	callbacks := &testDecoderCallbacks{handler: recording}
	compactDecoder := NewDecoder(NewUnframedTransport(), NewCompactProtocol(), callbacks)
	_, _, err = compactDecoder.OnData(compact)
	require.NoError(t, err)
	require.Equal(t, complexCallEvents, recording.events)
}

type converterCallbacks struct {
	handler DecoderEventHandler
}

func (c *converterCallbacks) NewDecoderEventHandler() DecoderEventHandler {
	return c.handler
}
