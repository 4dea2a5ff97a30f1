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

// Protocol is the inner message codec. Read methods return false on
// underflow (not enough queued bytes) and consume nothing in that case;
// protocol errors are returned as errors. Write methods append to the
// buffer and cannot fail. Protocol implementations may carry per-message
// decode/encode state (compact field-id deltas, pending bools) and are not
// safe for concurrent use.
type Protocol interface {
	// Type returns the protocol type.
	Type() ProtocolType

	ReadMessageBegin(buf *Buffer, meta *MessageMetadata) (bool, error)
	ReadMessageEnd(buf *Buffer) (bool, error)
	ReadStructBegin(buf *Buffer, name *string) (bool, error)
	ReadStructEnd(buf *Buffer) (bool, error)
	ReadFieldBegin(buf *Buffer, name *string, fieldType *FieldType, fieldID *int16) (bool, error)
	ReadFieldEnd(buf *Buffer) (bool, error)
	ReadMapBegin(buf *Buffer, keyType *FieldType, valueType *FieldType, size *uint32) (bool, error)
	ReadMapEnd(buf *Buffer) (bool, error)
	ReadListBegin(buf *Buffer, elemType *FieldType, size *uint32) (bool, error)
	ReadListEnd(buf *Buffer) (bool, error)
	ReadSetBegin(buf *Buffer, elemType *FieldType, size *uint32) (bool, error)
	ReadSetEnd(buf *Buffer) (bool, error)
	ReadBool(buf *Buffer, value *bool) (bool, error)
	ReadByte(buf *Buffer, value *int8) (bool, error)
	ReadInt16(buf *Buffer, value *int16) (bool, error)
	ReadInt32(buf *Buffer, value *int32) (bool, error)
	ReadInt64(buf *Buffer, value *int64) (bool, error)
	ReadDouble(buf *Buffer, value *float64) (bool, error)
	ReadString(buf *Buffer, value *string) (bool, error)
	ReadBinary(buf *Buffer, value *[]byte) (bool, error)

	WriteMessageBegin(buf *Buffer, meta *MessageMetadata)
	WriteMessageEnd(buf *Buffer)
	WriteStructBegin(buf *Buffer, name string)
	WriteStructEnd(buf *Buffer)
	WriteFieldBegin(buf *Buffer, name string, fieldType FieldType, fieldID int16)
	WriteFieldEnd(buf *Buffer)
	WriteMapBegin(buf *Buffer, keyType FieldType, valueType FieldType, size uint32)
	WriteMapEnd(buf *Buffer)
	WriteListBegin(buf *Buffer, elemType FieldType, size uint32)
	WriteListEnd(buf *Buffer)
	WriteSetBegin(buf *Buffer, elemType FieldType, size uint32)
	WriteSetEnd(buf *Buffer)
	WriteBool(buf *Buffer, value bool)
	WriteByte(buf *Buffer, value int8)
	WriteInt16(buf *Buffer, value int16)
	WriteInt32(buf *Buffer, value int32)
	WriteInt64(buf *Buffer, value int64)
	WriteDouble(buf *Buffer, value float64)
	WriteString(buf *Buffer, value string)
	WriteBinary(buf *Buffer, value []byte)

	// SupportsUpgrade returns true if the protocol defines an in-band
	// upgrade exchange.
	SupportsUpgrade() bool

	// UpgradeRequestDecoder returns an event handler that consumes an
	// upgrade request's body. Only valid when SupportsUpgrade is true.
	UpgradeRequestDecoder() DecoderEventHandler

	// UpgradeResponse returns the response to a decoded upgrade request.
	// Only valid when SupportsUpgrade is true.
	UpgradeResponse(decoder DecoderEventHandler) DirectResponse
}

// NewProtocol returns a fresh protocol codec of the given type.
func NewProtocol(t ProtocolType) Protocol {
	switch t {
	case ProtocolTypeBinary:
		return NewBinaryProtocol()
	case ProtocolTypeCompact:
		return NewCompactProtocol()
	}
	panic("thrift: unknown protocol type")
}
