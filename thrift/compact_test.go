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
	"testing"

	apachethrift "github.com/apache/thrift/lib/go/thrift"
	"github.com/stretchr/testify/require"
)

func TestCompactProtocolReadsApacheMessage(t *testing.T) {
	data := apacheCompactBytes(t, func(p apachethrift.TProtocol) error {
		if err := p.WriteMessageBegin("ping", apachethrift.CALL, 7); err != nil {
			return err
		}
		if err := p.WriteStructBegin("ping_args"); err != nil {
			return err
		}
		if err := p.WriteFieldBegin("id", apachethrift.I32, 1); err != nil {
			return err
		}
		if err := p.WriteI32(-42); err != nil {
			return err
		}
		if err := p.WriteFieldEnd(); err != nil {
			return err
		}
		if err := p.WriteFieldBegin("enabled", apachethrift.BOOL, 2); err != nil {
			return err
		}
		if err := p.WriteBool(true); err != nil {
			return err
		}
		if err := p.WriteFieldEnd(); err != nil {
			return err
		}
		// A large field id delta forces the long form header.
		if err := p.WriteFieldBegin("name", apachethrift.STRING, 100); err != nil {
			return err
		}
		if err := p.WriteString("hello"); err != nil {
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
	})

	buf := NewBufferBytes(data)
	proto := NewCompactProtocol()

	meta := NewMessageMetadata()
	ok, err := proto.ReadMessageBegin(buf, meta)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, MessageTypeCall, meta.MessageType())
	require.Equal(t, "ping", meta.MethodName())
	require.Equal(t, int32(7), meta.SequenceID())

	var name string
	ok, err = proto.ReadStructBegin(buf, &name)
	require.NoError(t, err)
	require.True(t, ok)

	var (
		fieldType FieldType
		fieldID   int16
	)
	ok, err = proto.ReadFieldBegin(buf, &name, &fieldType, &fieldID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FieldTypeI32, fieldType)
	require.Equal(t, int16(1), fieldID)

	var i32 int32
	ok, err = proto.ReadInt32(buf, &i32)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(-42), i32)

	_, err = proto.ReadFieldEnd(buf)
	require.NoError(t, err)

	ok, err = proto.ReadFieldBegin(buf, &name, &fieldType, &fieldID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FieldTypeBool, fieldType)
	require.Equal(t, int16(2), fieldID)

	var b bool
	ok, err = proto.ReadBool(buf, &b)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, b)

	_, err = proto.ReadFieldEnd(buf)
	require.NoError(t, err)

	ok, err = proto.ReadFieldBegin(buf, &name, &fieldType, &fieldID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FieldTypeString, fieldType)
	require.Equal(t, int16(100), fieldID)

	var s string
	ok, err = proto.ReadString(buf, &s)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", s)

	_, err = proto.ReadFieldEnd(buf)
	require.NoError(t, err)

	ok, err = proto.ReadFieldBegin(buf, &name, &fieldType, &fieldID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, FieldTypeStop, fieldType)

	_, err = proto.ReadStructEnd(buf)
	require.NoError(t, err)
	_, err = proto.ReadMessageEnd(buf)
	require.NoError(t, err)
	require.Equal(t, 0, buf.Len())
}

func TestCompactProtocolWritesApacheReadableMessage(t *testing.T) {
	proto := NewCompactProtocol()
	buf := NewBuffer()

	meta := NewMessageMetadata()
	meta.SetMethodName("echo")
	meta.SetMessageType(MessageTypeCall)
	meta.SetSequenceID(1234)

	proto.WriteMessageBegin(buf, meta)
	proto.WriteStructBegin(buf, "echo_args")
	proto.WriteFieldBegin(buf, "on", FieldTypeBool, 1)
	proto.WriteBool(buf, false)
	proto.WriteFieldEnd(buf)
	proto.WriteFieldBegin(buf, "count", FieldTypeI64, 2)
	proto.WriteInt64(buf, 1<<40)
	proto.WriteFieldEnd(buf)
	proto.WriteFieldBegin(buf, "ratio", FieldTypeDouble, 50)
	proto.WriteDouble(buf, -1.5)
	proto.WriteFieldEnd(buf)
	proto.WriteFieldBegin(buf, "tags", FieldTypeList, 51)
	proto.WriteListBegin(buf, FieldTypeString, 2)
	proto.WriteString(buf, "a")
	proto.WriteString(buf, "b")
	proto.WriteListEnd(buf)
	proto.WriteFieldEnd(buf)
	proto.WriteFieldBegin(buf, "", FieldTypeStop, 0)
	proto.WriteStructEnd(buf)
	proto.WriteMessageEnd(buf)

	p := apacheCompactReader(buf.Bytes())
	name, typeID, seqID, err := p.ReadMessageBegin()
	require.NoError(t, err)
	require.Equal(t, "echo", name)
	require.Equal(t, apachethrift.CALL, typeID)
	require.Equal(t, int32(1234), seqID)

	_, err = p.ReadStructBegin()
	require.NoError(t, err)

	_, fieldType, fieldID, err := p.ReadFieldBegin()
	require.NoError(t, err)
	require.Equal(t, apachethrift.TType(apachethrift.BOOL), fieldType)
	require.Equal(t, int16(1), fieldID)
	b, err := p.ReadBool()
	require.NoError(t, err)
	require.False(t, b)
	require.NoError(t, p.ReadFieldEnd())

	_, fieldType, fieldID, err = p.ReadFieldBegin()
	require.NoError(t, err)
	require.Equal(t, apachethrift.TType(apachethrift.I64), fieldType)
	require.Equal(t, int16(2), fieldID)
	i64, err := p.ReadI64()
	require.NoError(t, err)
	require.Equal(t, int64(1<<40), i64)
	require.NoError(t, p.ReadFieldEnd())

	_, fieldType, fieldID, err = p.ReadFieldBegin()
	require.NoError(t, err)
	require.Equal(t, apachethrift.TType(apachethrift.DOUBLE), fieldType)
	require.Equal(t, int16(50), fieldID)
	d, err := p.ReadDouble()
	require.NoError(t, err)
	require.Equal(t, -1.5, d)
	require.NoError(t, p.ReadFieldEnd())

	_, fieldType, fieldID, err = p.ReadFieldBegin()
	require.NoError(t, err)
	require.Equal(t, apachethrift.TType(apachethrift.LIST), fieldType)
	require.Equal(t, int16(51), fieldID)
	elemType, size, err := p.ReadListBegin()
	require.NoError(t, err)
	require.Equal(t, apachethrift.TType(apachethrift.STRING), elemType)
	require.Equal(t, 2, size)
	first, err := p.ReadString()
	require.NoError(t, err)
	require.Equal(t, "a", first)
	second, err := p.ReadString()
	require.NoError(t, err)
	require.Equal(t, "b", second)
	require.NoError(t, p.ReadListEnd())
	require.NoError(t, p.ReadFieldEnd())

	_, fieldType, _, err = p.ReadFieldBegin()
	require.NoError(t, err)
	require.Equal(t, apachethrift.TType(apachethrift.STOP), fieldType)
	require.NoError(t, p.ReadStructEnd())
	require.NoError(t, p.ReadMessageEnd())
}

func TestCompactProtocolUnderflowConsumesNothing(t *testing.T) {
	data := apacheCompactBytes(t, encodePingCall)

	for n := 0; n < len(data); n++ {
		proto := NewCompactProtocol()
		buf := NewBufferBytes(append([]byte(nil), data[:n]...))
		before := buf.Len()
		meta := NewMessageMetadata()
		ok, err := proto.ReadMessageBegin(buf, meta)
		require.NoError(t, err)
		if !ok {
			require.Equal(t, before, buf.Len())
			continue
		}
		require.Equal(t, "ping", meta.MethodName())
	}
}

func TestCompactProtocolRejectsBadProtocolID(t *testing.T) {
	proto := NewCompactProtocol()
	buf := NewBufferBytes([]byte{0x80, 0x21})
	meta := NewMessageMetadata()
	_, err := proto.ReadMessageBegin(buf, meta)
	require.Error(t, err)
}

func TestCompactProtocolRejectsBadVersion(t *testing.T) {
	proto := NewCompactProtocol()
	buf := NewBufferBytes([]byte{0x82, 0x22 | 0x02})
	meta := NewMessageMetadata()
	_, err := proto.ReadMessageBegin(buf, meta)
	require.Error(t, err)
}
