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

// DirectResponse is a message the proxy can synthesize and encode itself,
// without an upstream, typically an error reply.
type DirectResponse interface {
	// Encode writes a complete message body for the response into buf
	// using the given protocol and the envelope attributes in meta.
	Encode(meta *MessageMetadata, proto Protocol, buf *Buffer)
}

// ApplicationExceptionType mirrors the TApplicationException error codes.
type ApplicationExceptionType int32

// Application exception codes.
const (
	AppExceptionUnknown               ApplicationExceptionType = 0
	AppExceptionUnknownMethod         ApplicationExceptionType = 1
	AppExceptionInvalidMessageType    ApplicationExceptionType = 2
	AppExceptionWrongMethodName       ApplicationExceptionType = 3
	AppExceptionBadSequenceID         ApplicationExceptionType = 4
	AppExceptionMissingResult         ApplicationExceptionType = 5
	AppExceptionInternalError         ApplicationExceptionType = 6
	AppExceptionProtocolError         ApplicationExceptionType = 7
	AppExceptionInvalidTransform      ApplicationExceptionType = 8
	AppExceptionInvalidProtocol       ApplicationExceptionType = 9
	AppExceptionUnsupportedClientType ApplicationExceptionType = 10
)

// ApplicationException is a well-formed, application-level Thrift error. As
// a decode error it is replyable: the proxy answers it with an exception
// message instead of tearing the stream down without a response first.
type ApplicationException struct {
	Type    ApplicationExceptionType
	Message string
}

// NewApplicationException returns an application exception error.
func NewApplicationException(t ApplicationExceptionType, msg string) *ApplicationException {
	return &ApplicationException{Type: t, Message: msg}
}

func (e *ApplicationException) Error() string { return e.Message }

// Encode writes the exception as a complete Exception message body. The
// method name and sequence id come from meta when present so the reply
// correlates with the request that produced it.
func (e *ApplicationException) Encode(meta *MessageMetadata, proto Protocol, buf *Buffer) {
	method := ""
	if meta.HasMethodName() {
		method = meta.MethodName()
	}
	var seqID int32
	if meta.HasSequenceID() {
		seqID = meta.SequenceID()
	}

	envelope := NewMessageMetadata()
	envelope.SetMethodName(method)
	envelope.SetSequenceID(seqID)
	envelope.SetMessageType(MessageTypeException)

	proto.WriteMessageBegin(buf, envelope)
	proto.WriteStructBegin(buf, "TApplicationException")
	proto.WriteFieldBegin(buf, "message", FieldTypeString, 1)
	proto.WriteString(buf, e.Message)
	proto.WriteFieldEnd(buf)
	proto.WriteFieldBegin(buf, "type", FieldTypeI32, 2)
	proto.WriteInt32(buf, int32(e.Type))
	proto.WriteFieldEnd(buf)
	proto.WriteFieldBegin(buf, "", FieldTypeStop, 0)
	proto.WriteStructEnd(buf)
	proto.WriteMessageEnd(buf)
}
