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
	compactProtocolID  = 0x82
	compactVersion     = 1
	compactVersionMask = 0x1f
	compactTypeShift   = 5
	compactTypeBits    = 0x07

	compactBoolTrue  = 0x01
	compactBoolFalse = 0x02
	compactByte      = 0x03
	compactI16       = 0x04
	compactI32       = 0x05
	compactI64       = 0x06
	compactDouble    = 0x07
	compactBinary    = 0x08
	compactList      = 0x09
	compactSet       = 0x0a
	compactMap       = 0x0b
	compactStruct    = 0x0c
)

func compactToFieldType(t byte) (FieldType, error) {
	switch t {
	case compactBoolTrue, compactBoolFalse:
		return FieldTypeBool, nil
	case compactByte:
		return FieldTypeByte, nil
	case compactI16:
		return FieldTypeI16, nil
	case compactI32:
		return FieldTypeI32, nil
	case compactI64:
		return FieldTypeI64, nil
	case compactDouble:
		return FieldTypeDouble, nil
	case compactBinary:
		return FieldTypeString, nil
	case compactList:
		return FieldTypeList, nil
	case compactSet:
		return FieldTypeSet, nil
	case compactMap:
		return FieldTypeMap, nil
	case compactStruct:
		return FieldTypeStruct, nil
	}
	return 0, errors.Errorf("unknown thrift compact protocol field type %d", t)
}

func fieldTypeToCompact(t FieldType) byte {
	switch t {
	case FieldTypeStop:
		return 0
	case FieldTypeBool:
		return compactBoolTrue
	case FieldTypeByte:
		return compactByte
	case FieldTypeI16:
		return compactI16
	case FieldTypeI32:
		return compactI32
	case FieldTypeI64:
		return compactI64
	case FieldTypeDouble:
		return compactDouble
	case FieldTypeString:
		return compactBinary
	case FieldTypeList:
		return compactList
	case FieldTypeSet:
		return compactSet
	case FieldTypeMap:
		return compactMap
	case FieldTypeStruct:
		return compactStruct
	}
	panic("thrift: field type not representable in compact protocol")
}

// peekVarint reads an unsigned LEB128 varint at offset without consuming.
// Returns the value, the encoded width, and false on underflow.
func peekVarint(buf *Buffer, offset, maxBytes int) (uint64, int, bool, error) {
	var (
		value uint64
		shift uint
	)
	for i := 0; i < maxBytes; i++ {
		b, ok := buf.PeekByte(offset + i)
		if !ok {
			return 0, 0, false, nil
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, true, nil
		}
		shift += 7
	}
	return 0, 0, false, errors.New("invalid thrift compact protocol varint: too long")
}

func zigzagToInt64(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

func int64ToZigzag(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func writeVarint(buf *Buffer, v uint64) {
	for v >= 0x80 {
		buf.WriteByte(byte(v)&0x7f | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}

type compactProtocol struct {
	// Read-side state.
	readFieldIDStack  []int16
	readLastFieldID   int16
	pendingBoolField  bool
	pendingBoolValue  bool

	// Write-side state.
	writeFieldIDStack []int16
	writeLastFieldID  int16
	pendingBoolWrite  bool
	pendingBoolID     int16
}

// NewCompactProtocol returns the compact protocol codec.
func NewCompactProtocol() Protocol { return &compactProtocol{} }

func (p *compactProtocol) Type() ProtocolType { return ProtocolTypeCompact }

func (p *compactProtocol) ReadMessageBegin(buf *Buffer, meta *MessageMetadata) (bool, error) {
	header, ok := buf.PeekBytes(0, 2)
	if !ok {
		return false, nil
	}
	if header[0] != compactProtocolID {
		return false, errors.Errorf("invalid thrift compact protocol id 0x%02x", header[0])
	}
	if header[1]&compactVersionMask != compactVersion {
		return false, errors.Errorf(
			"invalid thrift compact protocol version %d", header[1]&compactVersionMask)
	}
	msgType := MessageType((header[1] >> compactTypeShift) & compactTypeBits)
	if msgType < MessageTypeCall || msgType > messageTypeLast {
		return false, errors.Errorf("invalid thrift compact protocol message type %d", int32(msgType))
	}

	seqRaw, seqLen, ok, err := peekVarint(buf, 2, 5)
	if !ok || err != nil {
		return false, err
	}
	nameRaw, nameLenLen, ok, err := peekVarint(buf, 2+seqLen, 5)
	if !ok || err != nil {
		return false, err
	}
	nameLen := int32(nameRaw)
	if nameLen < 0 {
		return false, errors.Errorf("invalid thrift compact protocol message name length %d", nameLen)
	}
	nameBytes, ok := buf.PeekBytes(2+seqLen+nameLenLen, int(nameLen))
	if !ok {
		return false, nil
	}

	meta.SetMessageType(msgType)
	meta.SetSequenceID(int32(seqRaw))
	meta.SetMethodName(string(nameBytes))
	buf.Drain(2 + seqLen + nameLenLen + int(nameLen))
	return true, nil
}

func (p *compactProtocol) ReadMessageEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *compactProtocol) ReadStructBegin(buf *Buffer, name *string) (bool, error) {
	*name = ""
	p.readFieldIDStack = append(p.readFieldIDStack, p.readLastFieldID)
	p.readLastFieldID = 0
	return true, nil
}

func (p *compactProtocol) ReadStructEnd(buf *Buffer) (bool, error) {
	if len(p.readFieldIDStack) == 0 {
		return false, errors.New("invalid thrift compact protocol struct end: no struct begun")
	}
	p.readLastFieldID = p.readFieldIDStack[len(p.readFieldIDStack)-1]
	p.readFieldIDStack = p.readFieldIDStack[:len(p.readFieldIDStack)-1]
	return true, nil
}

func (p *compactProtocol) ReadFieldBegin(
	buf *Buffer,
	name *string,
	fieldType *FieldType,
	fieldID *int16,
) (bool, error) {
	header, ok := buf.PeekByte(0)
	if !ok {
		return false, nil
	}
	*name = ""
	if header == 0 {
		*fieldType = FieldTypeStop
		*fieldID = 0
		buf.Drain(1)
		return true, nil
	}

	typeBits := header & 0x0f
	modifier := int16((header & 0xf0) >> 4)

	var (
		id      int16
		consume = 1
	)
	if modifier == 0 {
		raw, n, ok, err := peekVarint(buf, 1, 5)
		if !ok || err != nil {
			return false, err
		}
		id = int16(zigzagToInt64(raw))
		consume += n
	} else {
		id = p.readLastFieldID + modifier
	}

	ft, err := compactToFieldType(typeBits)
	if err != nil {
		return false, err
	}
	if typeBits == compactBoolTrue || typeBits == compactBoolFalse {
		p.pendingBoolField = true
		p.pendingBoolValue = typeBits == compactBoolTrue
	}

	*fieldType = ft
	*fieldID = id
	p.readLastFieldID = id
	buf.Drain(consume)
	return true, nil
}

func (p *compactProtocol) ReadFieldEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *compactProtocol) ReadMapBegin(
	buf *Buffer,
	keyType *FieldType,
	valueType *FieldType,
	size *uint32,
) (bool, error) {
	raw, n, ok, err := peekVarint(buf, 0, 5)
	if !ok || err != nil {
		return false, err
	}
	count := int32(raw)
	if count < 0 {
		return false, errors.Errorf("invalid thrift compact protocol map size %d", count)
	}
	if count == 0 {
		*keyType = FieldTypeStop
		*valueType = FieldTypeStop
		*size = 0
		buf.Drain(n)
		return true, nil
	}

	kv, ok := buf.PeekByte(n)
	if !ok {
		return false, nil
	}
	kt, err := compactToFieldType((kv & 0xf0) >> 4)
	if err != nil {
		return false, err
	}
	vt, err := compactToFieldType(kv & 0x0f)
	if err != nil {
		return false, err
	}
	*keyType = kt
	*valueType = vt
	*size = uint32(count)
	buf.Drain(n + 1)
	return true, nil
}

func (p *compactProtocol) ReadMapEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *compactProtocol) readListLike(buf *Buffer, elemType *FieldType, size *uint32) (bool, error) {
	header, ok := buf.PeekByte(0)
	if !ok {
		return false, nil
	}
	et, err := compactToFieldType(header & 0x0f)
	if err != nil {
		return false, err
	}

	count := uint32((header & 0xf0) >> 4)
	consume := 1
	if count == 0x0f {
		raw, n, ok, err := peekVarint(buf, 1, 5)
		if !ok || err != nil {
			return false, err
		}
		if int32(raw) < 0 {
			return false, errors.Errorf("invalid thrift compact protocol list/set size %d", int32(raw))
		}
		count = uint32(raw)
		consume += n
	}

	*elemType = et
	*size = count
	buf.Drain(consume)
	return true, nil
}

func (p *compactProtocol) ReadListBegin(buf *Buffer, elemType *FieldType, size *uint32) (bool, error) {
	return p.readListLike(buf, elemType, size)
}

func (p *compactProtocol) ReadListEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *compactProtocol) ReadSetBegin(buf *Buffer, elemType *FieldType, size *uint32) (bool, error) {
	return p.readListLike(buf, elemType, size)
}

func (p *compactProtocol) ReadSetEnd(buf *Buffer) (bool, error) { return true, nil }

func (p *compactProtocol) ReadBool(buf *Buffer, value *bool) (bool, error) {
	if p.pendingBoolField {
		// Value was carried by the field header.
		*value = p.pendingBoolValue
		p.pendingBoolField = false
		return true, nil
	}
	b, ok := buf.PeekByte(0)
	if !ok {
		return false, nil
	}
	*value = b == compactBoolTrue
	buf.Drain(1)
	return true, nil
}

func (p *compactProtocol) ReadByte(buf *Buffer, value *int8) (bool, error) {
	b, ok := buf.PeekByte(0)
	if !ok {
		return false, nil
	}
	*value = int8(b)
	buf.Drain(1)
	return true, nil
}

func (p *compactProtocol) ReadInt16(buf *Buffer, value *int16) (bool, error) {
	raw, n, ok, err := peekVarint(buf, 0, 5)
	if !ok || err != nil {
		return false, err
	}
	*value = int16(zigzagToInt64(raw))
	buf.Drain(n)
	return true, nil
}

func (p *compactProtocol) ReadInt32(buf *Buffer, value *int32) (bool, error) {
	raw, n, ok, err := peekVarint(buf, 0, 5)
	if !ok || err != nil {
		return false, err
	}
	*value = int32(zigzagToInt64(raw))
	buf.Drain(n)
	return true, nil
}

func (p *compactProtocol) ReadInt64(buf *Buffer, value *int64) (bool, error) {
	raw, n, ok, err := peekVarint(buf, 0, 10)
	if !ok || err != nil {
		return false, err
	}
	*value = zigzagToInt64(raw)
	buf.Drain(n)
	return true, nil
}

func (p *compactProtocol) ReadDouble(buf *Buffer, value *float64) (bool, error) {
	b, ok := buf.PeekBytes(0, 8)
	if !ok {
		return false, nil
	}
	*value = math.Float64frombits(binary.LittleEndian.Uint64(b))
	buf.Drain(8)
	return true, nil
}

func (p *compactProtocol) ReadString(buf *Buffer, value *string) (bool, error) {
	var raw []byte
	ok, err := p.ReadBinary(buf, &raw)
	if !ok || err != nil {
		return ok, err
	}
	*value = string(raw)
	return true, nil
}

func (p *compactProtocol) ReadBinary(buf *Buffer, value *[]byte) (bool, error) {
	raw, n, ok, err := peekVarint(buf, 0, 5)
	if !ok || err != nil {
		return false, err
	}
	size := int32(raw)
	if size < 0 {
		return false, errors.Errorf("invalid thrift compact protocol string length %d", size)
	}
	data, ok := buf.PeekBytes(n, int(size))
	if !ok {
		return false, nil
	}
	*value = append([]byte(nil), data...)
	buf.Drain(n + int(size))
	return true, nil
}

func (p *compactProtocol) WriteMessageBegin(buf *Buffer, meta *MessageMetadata) {
	buf.WriteByte(compactProtocolID)
	buf.WriteByte(compactVersion | byte(meta.MessageType())<<compactTypeShift)
	writeVarint(buf, uint64(uint32(meta.SequenceID())))
	p.WriteString(buf, meta.MethodName())
}

func (p *compactProtocol) WriteMessageEnd(buf *Buffer) {}

func (p *compactProtocol) WriteStructBegin(buf *Buffer, name string) {
	p.writeFieldIDStack = append(p.writeFieldIDStack, p.writeLastFieldID)
	p.writeLastFieldID = 0
}

func (p *compactProtocol) WriteStructEnd(buf *Buffer) {
	if len(p.writeFieldIDStack) == 0 {
		panic("thrift: compact protocol struct end without struct begin")
	}
	p.writeLastFieldID = p.writeFieldIDStack[len(p.writeFieldIDStack)-1]
	p.writeFieldIDStack = p.writeFieldIDStack[:len(p.writeFieldIDStack)-1]
}

func (p *compactProtocol) writeFieldHeader(buf *Buffer, compactType byte, fieldID int16) {
	delta := fieldID - p.writeLastFieldID
	if delta > 0 && delta <= 15 {
		buf.WriteByte(byte(delta)<<4 | compactType)
	} else {
		buf.WriteByte(compactType)
		writeVarint(buf, int64ToZigzag(int64(fieldID)))
	}
	p.writeLastFieldID = fieldID
}

func (p *compactProtocol) WriteFieldBegin(buf *Buffer, name string, fieldType FieldType, fieldID int16) {
	switch fieldType {
	case FieldTypeStop:
		buf.WriteByte(0)
	case FieldTypeBool:
		// Bool values ride in the field header; defer to WriteBool.
		p.pendingBoolWrite = true
		p.pendingBoolID = fieldID
	default:
		p.writeFieldHeader(buf, fieldTypeToCompact(fieldType), fieldID)
	}
}

func (p *compactProtocol) WriteFieldEnd(buf *Buffer) {}

func (p *compactProtocol) WriteMapBegin(buf *Buffer, keyType FieldType, valueType FieldType, size uint32) {
	if size == 0 {
		writeVarint(buf, 0)
		return
	}
	writeVarint(buf, uint64(size))
	buf.WriteByte(fieldTypeToCompact(keyType)<<4 | fieldTypeToCompact(valueType))
}

func (p *compactProtocol) WriteMapEnd(buf *Buffer) {}

func (p *compactProtocol) writeListLike(buf *Buffer, elemType FieldType, size uint32) {
	if size < 15 {
		buf.WriteByte(byte(size)<<4 | fieldTypeToCompact(elemType))
		return
	}
	buf.WriteByte(0xf0 | fieldTypeToCompact(elemType))
	writeVarint(buf, uint64(size))
}

func (p *compactProtocol) WriteListBegin(buf *Buffer, elemType FieldType, size uint32) {
	p.writeListLike(buf, elemType, size)
}

func (p *compactProtocol) WriteListEnd(buf *Buffer) {}

func (p *compactProtocol) WriteSetBegin(buf *Buffer, elemType FieldType, size uint32) {
	p.writeListLike(buf, elemType, size)
}

func (p *compactProtocol) WriteSetEnd(buf *Buffer) {}

func (p *compactProtocol) WriteBool(buf *Buffer, value bool) {
	b := byte(compactBoolFalse)
	if value {
		b = compactBoolTrue
	}
	if p.pendingBoolWrite {
		p.writeFieldHeader(buf, b, p.pendingBoolID)
		p.pendingBoolWrite = false
		return
	}
	buf.WriteByte(b)
}

func (p *compactProtocol) WriteByte(buf *Buffer, value int8) {
	buf.WriteByte(byte(value))
}

func (p *compactProtocol) WriteInt16(buf *Buffer, value int16) {
	writeVarint(buf, int64ToZigzag(int64(value)))
}

func (p *compactProtocol) WriteInt32(buf *Buffer, value int32) {
	writeVarint(buf, int64ToZigzag(int64(value)))
}

func (p *compactProtocol) WriteInt64(buf *Buffer, value int64) {
	writeVarint(buf, int64ToZigzag(value))
}

func (p *compactProtocol) WriteDouble(buf *Buffer, value float64) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(value))
	buf.Write(scratch[:])
}

func (p *compactProtocol) WriteString(buf *Buffer, value string) {
	writeVarint(buf, uint64(len(value)))
	buf.WriteString(value)
}

func (p *compactProtocol) WriteBinary(buf *Buffer, value []byte) {
	writeVarint(buf, uint64(len(value)))
	buf.Write(value)
}

func (p *compactProtocol) SupportsUpgrade() bool { return false }

func (p *compactProtocol) UpgradeRequestDecoder() DecoderEventHandler {
	panic("thrift: compact protocol does not support upgrade")
}

func (p *compactProtocol) UpgradeResponse(decoder DecoderEventHandler) DirectResponse {
	panic("thrift: compact protocol does not support upgrade")
}
