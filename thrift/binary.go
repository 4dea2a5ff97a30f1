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
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	binaryVersionMask = 0xffff0000
	binaryVersion1    = 0x80010000
)

type binaryProtocol struct{}

// NewBinaryProtocol returns the strict binary protocol codec.
func NewBinaryProtocol() Protocol { return &binaryProtocol{} }

func (p *binaryProtocol) Type() ProtocolType { return ProtocolTypeBinary }

func (p *binaryProtocol) ReadMessageBegin(buf *Buffer, meta *MessageMetadata) (bool, error) {
	header, ok := buf.PeekBytes(0, 4)
	if !ok {
		return false, nil
	}
	version := binary.BigEndian.Uint32(header)
	if version&binaryVersionMask != binaryVersion1 {
		return false, errors.Errorf("invalid thrift binary protocol version 0x%08x", version)
	}
	msgType := MessageType(version & 0xff)
	if msgType < MessageTypeCall || msgType > messageTypeLast {
		return false, errors.Errorf("invalid thrift binary protocol message type %d", int32(msgType))
	}

	lenBytes, ok := buf.PeekBytes(4, 4)
	if !ok {
		return false, nil
	}
	nameLen := int32(binary.BigEndian.Uint32(lenBytes))
	if nameLen < 0 {
		return false, errors.Errorf("invalid thrift binary protocol message name length %d", nameLen)
	}

	rest, ok := buf.PeekBytes(8, int(nameLen)+4)
	if !ok {
		return false, nil
	}
	name := string(rest[:nameLen])
	seqID := int32(binary.BigEndian.Uint32(rest[nameLen:]))

	meta.SetMessageType(msgType)
	meta.SetMethodName(name)
	meta.SetSequenceID(seqID)
	buf.Drain(8 + int(nameLen) + 4)
	return true, nil
}

func (p *binaryProtocol) ReadMessageEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *binaryProtocol) ReadStructBegin(buf *Buffer, name *string) (bool, error) {
	*name = ""
	return true, nil
}

func (p *binaryProtocol) ReadStructEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *binaryProtocol) ReadFieldBegin(
	buf *Buffer,
	name *string,
	fieldType *FieldType,
	fieldID *int16,
) (bool, error) {
	t, ok := buf.PeekByte(0)
	if !ok {
		return false, nil
	}
	if FieldType(t) == FieldTypeStop {
		*name = ""
		*fieldType = FieldTypeStop
		*fieldID = 0
		buf.Drain(1)
		return true, nil
	}

	idBytes, ok := buf.PeekBytes(1, 2)
	if !ok {
		return false, nil
	}
	*name = ""
	*fieldType = FieldType(t)
	*fieldID = int16(binary.BigEndian.Uint16(idBytes))
	buf.Drain(3)
	return true, nil
}

func (p *binaryProtocol) ReadFieldEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *binaryProtocol) ReadMapBegin(
	buf *Buffer,
	keyType *FieldType,
	valueType *FieldType,
	size *uint32,
) (bool, error) {
	header, ok := buf.PeekBytes(0, 6)
	if !ok {
		return false, nil
	}
	n := int32(binary.BigEndian.Uint32(header[2:]))
	if n < 0 {
		return false, errors.Errorf("invalid thrift binary protocol map size %d", n)
	}
	*keyType = FieldType(header[0])
	*valueType = FieldType(header[1])
	*size = uint32(n)
	buf.Drain(6)
	return true, nil
}

func (p *binaryProtocol) ReadMapEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *binaryProtocol) readListLike(buf *Buffer, elemType *FieldType, size *uint32) (bool, error) {
	header, ok := buf.PeekBytes(0, 5)
	if !ok {
		return false, nil
	}
	n := int32(binary.BigEndian.Uint32(header[1:]))
	if n < 0 {
		return false, errors.Errorf("invalid thrift binary protocol list/set size %d", n)
	}
	*elemType = FieldType(header[0])
	*size = uint32(n)
	buf.Drain(5)
	return true, nil
}

func (p *binaryProtocol) ReadListBegin(buf *Buffer, elemType *FieldType, size *uint32) (bool, error) {
	return p.readListLike(buf, elemType, size)
}

func (p *binaryProtocol) ReadListEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *binaryProtocol) ReadSetBegin(buf *Buffer, elemType *FieldType, size *uint32) (bool, error) {
	return p.readListLike(buf, elemType, size)
}

func (p *binaryProtocol) ReadSetEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *binaryProtocol) ReadBool(buf *Buffer, value *bool) (bool, error) {
	b, ok := buf.PeekByte(0)
	if !ok {
		return false, nil
	}
	*value = b != 0
	buf.Drain(1)
	return true, nil
}

func (p *binaryProtocol) ReadByte(buf *Buffer, value *int8) (bool, error) {
	b, ok := buf.PeekByte(0)
	if !ok {
		return false, nil
	}
	*value = int8(b)
	buf.Drain(1)
	return true, nil
}

func (p *binaryProtocol) ReadInt16(buf *Buffer, value *int16) (bool, error) {
	b, ok := buf.PeekBytes(0, 2)
	if !ok {
		return false, nil
	}
	*value = int16(binary.BigEndian.Uint16(b))
	buf.Drain(2)
	return true, nil
}

func (p *binaryProtocol) ReadInt32(buf *Buffer, value *int32) (bool, error) {
	b, ok := buf.PeekBytes(0, 4)
	if !ok {
		return false, nil
	}
	*value = int32(binary.BigEndian.Uint32(b))
	buf.Drain(4)
	return true, nil
}

func (p *binaryProtocol) ReadInt64(buf *Buffer, value *int64) (bool, error) {
	b, ok := buf.PeekBytes(0, 8)
	if !ok {
		return false, nil
	}
	*value = int64(binary.BigEndian.Uint64(b))
	buf.Drain(8)
	return true, nil
}

func (p *binaryProtocol) ReadDouble(buf *Buffer, value *float64) (bool, error) {
	b, ok := buf.PeekBytes(0, 8)
	if !ok {
		return false, nil
	}
	*value = math.Float64frombits(binary.BigEndian.Uint64(b))
	buf.Drain(8)
	return true, nil
}

func (p *binaryProtocol) ReadString(buf *Buffer, value *string) (bool, error) {
	var raw []byte
	ok, err := p.ReadBinary(buf, &raw)
	if !ok || err != nil {
		return ok, err
	}
	*value = string(raw)
	return true, nil
}

func (p *binaryProtocol) ReadBinary(buf *Buffer, value *[]byte) (bool, error) {
	lenBytes, ok := buf.PeekBytes(0, 4)
	if !ok {
		return false, nil
	}
	n := int32(binary.BigEndian.Uint32(lenBytes))
	if n < 0 {
		return false, errors.Errorf("invalid thrift binary protocol string length %d", n)
	}
	raw, ok := buf.PeekBytes(4, int(n))
	if !ok {
		return false, nil
	}
	*value = append([]byte(nil), raw...)
	buf.Drain(4 + int(n))
	return true, nil
}

func (p *binaryProtocol) WriteMessageBegin(buf *Buffer, meta *MessageMetadata) {
	buf.WriteUint32(binaryVersion1 | uint32(meta.MessageType()))
	p.WriteString(buf, meta.MethodName())
	buf.WriteUint32(uint32(meta.SequenceID()))
}

func (p *binaryProtocol) WriteMessageEnd(buf *Buffer) {}

func (p *binaryProtocol) WriteStructBegin(buf *Buffer, name string) {}

func (p *binaryProtocol) WriteStructEnd(buf *Buffer) {}

func (p *binaryProtocol) WriteFieldBegin(buf *Buffer, name string, fieldType FieldType, fieldID int16) {
	buf.WriteByte(byte(fieldType))
	if fieldType != FieldTypeStop {
		buf.WriteUint16(uint16(fieldID))
	}
}

func (p *binaryProtocol) WriteFieldEnd(buf *Buffer) {}

func (p *binaryProtocol) WriteMapBegin(buf *Buffer, keyType FieldType, valueType FieldType, size uint32) {
	buf.WriteByte(byte(keyType))
	buf.WriteByte(byte(valueType))
	buf.WriteUint32(size)
}

func (p *binaryProtocol) WriteMapEnd(buf *Buffer) {}

func (p *binaryProtocol) WriteListBegin(buf *Buffer, elemType FieldType, size uint32) {
	buf.WriteByte(byte(elemType))
	buf.WriteUint32(size)
}

func (p *binaryProtocol) WriteListEnd(buf *Buffer) {}

func (p *binaryProtocol) WriteSetBegin(buf *Buffer, elemType FieldType, size uint32) {
	buf.WriteByte(byte(elemType))
	buf.WriteUint32(size)
}

func (p *binaryProtocol) WriteSetEnd(buf *Buffer) {}

func (p *binaryProtocol) WriteBool(buf *Buffer, value bool) {
	if value {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func (p *binaryProtocol) WriteByte(buf *Buffer, value int8) {
	buf.WriteByte(byte(value))
}

func (p *binaryProtocol) WriteInt16(buf *Buffer, value int16) {
	buf.WriteUint16(uint16(value))
}

func (p *binaryProtocol) WriteInt32(buf *Buffer, value int32) {
	buf.WriteUint32(uint32(value))
}

func (p *binaryProtocol) WriteInt64(buf *Buffer, value int64) {
	buf.WriteUint64(uint64(value))
}

func (p *binaryProtocol) WriteDouble(buf *Buffer, value float64) {
	buf.WriteUint64(math.Float64bits(value))
}

func (p *binaryProtocol) WriteString(buf *Buffer, value string) {
	buf.WriteUint32(uint32(len(value)))
	buf.WriteString(value)
}

func (p *binaryProtocol) WriteBinary(buf *Buffer, value []byte) {
	buf.WriteUint32(uint32(len(value)))
	buf.Write(value)
}

func (p *binaryProtocol) SupportsUpgrade() bool { return false }

func (p *binaryProtocol) UpgradeRequestDecoder() DecoderEventHandler {
	panic("thrift: binary protocol does not support upgrade")
}

func (p *binaryProtocol) UpgradeResponse(decoder DecoderEventHandler) DirectResponse {
	panic("thrift: binary protocol does not support upgrade")
}
