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

// MessageMetadata describes one Thrift message envelope. Each attribute is
// individually present or absent; reading an absent attribute is a
// programmer error and panics. The metadata is shared between the decoder
// that produced it and the consumers downstream of it, and the sequence id
// and protocol tag are rewritten on the response path.
type MessageMetadata struct {
	frameSize       uint32
	hasFrameSize    bool
	messageType     MessageType
	hasMessageType  bool
	sequenceID      int32
	hasSequenceID   bool
	methodName      string
	hasMethodName   bool
	protocol        ProtocolType
	hasProtocol     bool
	protocolUpgrade bool
}

// NewMessageMetadata returns empty metadata with every attribute absent.
func NewMessageMetadata() *MessageMetadata {
	return &MessageMetadata{}
}

// HasFrameSize returns true if the transport frame size is known.
func (m *MessageMetadata) HasFrameSize() bool { return m.hasFrameSize }

// FrameSize returns the transport frame size.
func (m *MessageMetadata) FrameSize() uint32 {
	if !m.hasFrameSize {
		panic("thrift: metadata frame size not set")
	}
	return m.frameSize
}

// SetFrameSize sets the transport frame size.
func (m *MessageMetadata) SetFrameSize(size uint32) {
	m.frameSize = size
	m.hasFrameSize = true
}

// HasMessageType returns true if the message type is known.
func (m *MessageMetadata) HasMessageType() bool { return m.hasMessageType }

// MessageType returns the message type.
func (m *MessageMetadata) MessageType() MessageType {
	if !m.hasMessageType {
		panic("thrift: metadata message type not set")
	}
	return m.messageType
}

// SetMessageType sets the message type.
func (m *MessageMetadata) SetMessageType(t MessageType) {
	m.messageType = t
	m.hasMessageType = true
}

// HasSequenceID returns true if the sequence id is known.
func (m *MessageMetadata) HasSequenceID() bool { return m.hasSequenceID }

// SequenceID returns the sequence id.
func (m *MessageMetadata) SequenceID() int32 {
	if !m.hasSequenceID {
		panic("thrift: metadata sequence id not set")
	}
	return m.sequenceID
}

// SetSequenceID sets the sequence id.
func (m *MessageMetadata) SetSequenceID(id int32) {
	m.sequenceID = id
	m.hasSequenceID = true
}

// HasMethodName returns true if the method name is known.
func (m *MessageMetadata) HasMethodName() bool { return m.hasMethodName }

// MethodName returns the method name.
func (m *MessageMetadata) MethodName() string {
	if !m.hasMethodName {
		panic("thrift: metadata method name not set")
	}
	return m.methodName
}

// SetMethodName sets the method name.
func (m *MessageMetadata) SetMethodName(name string) {
	m.methodName = name
	m.hasMethodName = true
}

// HasProtocol returns true if the protocol tag is set.
func (m *MessageMetadata) HasProtocol() bool { return m.hasProtocol }

// Protocol returns the protocol tag.
func (m *MessageMetadata) Protocol() ProtocolType {
	if !m.hasProtocol {
		panic("thrift: metadata protocol not set")
	}
	return m.protocol
}

// SetProtocol sets the protocol tag.
func (m *MessageMetadata) SetProtocol(t ProtocolType) {
	m.protocol = t
	m.hasProtocol = true
}

// IsProtocolUpgradeMessage returns true if this message is an in-band
// protocol upgrade request.
func (m *MessageMetadata) IsProtocolUpgradeMessage() bool { return m.protocolUpgrade }

// SetProtocolUpgradeMessage flags this message as a protocol upgrade request.
func (m *MessageMetadata) SetProtocolUpgradeMessage(upgrade bool) {
	m.protocolUpgrade = upgrade
}
