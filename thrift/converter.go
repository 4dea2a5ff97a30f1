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

// ProtocolConverter is a DecoderEventHandler that re-encodes every decoder
// event through a target protocol into a target buffer, translating a
// message between protocols event by event. Transport events are framing
// concerns and write nothing. Every event continues iteration; embedders
// override the events they care about.
type ProtocolConverter struct {
	proto Protocol
	buf   *Buffer
}

// Reset points the converter at a target protocol and output buffer.
func (c *ProtocolConverter) Reset(proto Protocol, buf *Buffer) {
	c.proto = proto
	c.buf = buf
}

// TransportBegin writes nothing; framing is applied separately.
func (c *ProtocolConverter) TransportBegin(meta *MessageMetadata) FilterStatus {
	return FilterStatusContinue
}

// TransportEnd writes nothing; framing is applied separately.
func (c *ProtocolConverter) TransportEnd() FilterStatus {
	return FilterStatusContinue
}

// MessageBegin re-encodes the message envelope.
func (c *ProtocolConverter) MessageBegin(meta *MessageMetadata) FilterStatus {
	c.proto.WriteMessageBegin(c.buf, meta)
	return FilterStatusContinue
}

// MessageEnd re-encodes the message end.
func (c *ProtocolConverter) MessageEnd() FilterStatus {
	c.proto.WriteMessageEnd(c.buf)
	return FilterStatusContinue
}

// StructBegin re-encodes a struct begin.
func (c *ProtocolConverter) StructBegin(name string) FilterStatus {
	c.proto.WriteStructBegin(c.buf, name)
	return FilterStatusContinue
}

// StructEnd re-encodes the field stop and struct end. The decoder consumes
// stop fields without firing a field event, so the stop is restored here.
func (c *ProtocolConverter) StructEnd() FilterStatus {
	c.proto.WriteFieldBegin(c.buf, "", FieldTypeStop, 0)
	c.proto.WriteStructEnd(c.buf)
	return FilterStatusContinue
}

// FieldBegin re-encodes a field begin.
func (c *ProtocolConverter) FieldBegin(name string, fieldType FieldType, fieldID int16) FilterStatus {
	c.proto.WriteFieldBegin(c.buf, name, fieldType, fieldID)
	return FilterStatusContinue
}

// FieldEnd re-encodes a field end.
func (c *ProtocolConverter) FieldEnd() FilterStatus {
	c.proto.WriteFieldEnd(c.buf)
	return FilterStatusContinue
}

// MapBegin re-encodes a map begin.
func (c *ProtocolConverter) MapBegin(keyType, valueType FieldType, size uint32) FilterStatus {
	c.proto.WriteMapBegin(c.buf, keyType, valueType, size)
	return FilterStatusContinue
}

// MapEnd re-encodes a map end.
func (c *ProtocolConverter) MapEnd() FilterStatus {
	c.proto.WriteMapEnd(c.buf)
	return FilterStatusContinue
}

// ListBegin re-encodes a list begin.
func (c *ProtocolConverter) ListBegin(elemType FieldType, size uint32) FilterStatus {
	c.proto.WriteListBegin(c.buf, elemType, size)
	return FilterStatusContinue
}

// ListEnd re-encodes a list end.
func (c *ProtocolConverter) ListEnd() FilterStatus {
	c.proto.WriteListEnd(c.buf)
	return FilterStatusContinue
}

// SetBegin re-encodes a set begin.
func (c *ProtocolConverter) SetBegin(elemType FieldType, size uint32) FilterStatus {
	c.proto.WriteSetBegin(c.buf, elemType, size)
	return FilterStatusContinue
}

// SetEnd re-encodes a set end.
func (c *ProtocolConverter) SetEnd() FilterStatus {
	c.proto.WriteSetEnd(c.buf)
	return FilterStatusContinue
}

// BoolValue re-encodes a bool.
func (c *ProtocolConverter) BoolValue(value bool) FilterStatus {
	c.proto.WriteBool(c.buf, value)
	return FilterStatusContinue
}

// ByteValue re-encodes a byte.
func (c *ProtocolConverter) ByteValue(value int8) FilterStatus {
	c.proto.WriteByte(c.buf, value)
	return FilterStatusContinue
}

// Int16Value re-encodes an i16.
func (c *ProtocolConverter) Int16Value(value int16) FilterStatus {
	c.proto.WriteInt16(c.buf, value)
	return FilterStatusContinue
}

// Int32Value re-encodes an i32.
func (c *ProtocolConverter) Int32Value(value int32) FilterStatus {
	c.proto.WriteInt32(c.buf, value)
	return FilterStatusContinue
}

// Int64Value re-encodes an i64.
func (c *ProtocolConverter) Int64Value(value int64) FilterStatus {
	c.proto.WriteInt64(c.buf, value)
	return FilterStatusContinue
}

// DoubleValue re-encodes a double.
func (c *ProtocolConverter) DoubleValue(value float64) FilterStatus {
	c.proto.WriteDouble(c.buf, value)
	return FilterStatusContinue
}

// StringValue re-encodes a string.
func (c *ProtocolConverter) StringValue(value string) FilterStatus {
	c.proto.WriteString(c.buf, value)
	return FilterStatusContinue
}
