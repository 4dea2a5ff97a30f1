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

import "github.com/uber-go/tally"

// Stats are the proxy counters. Names are part of the stable interface
// exposed to the hosting process.
type Stats struct {
	Request                     tally.Counter
	RequestCall                 tally.Counter
	RequestOneway               tally.Counter
	RequestInvalidType          tally.Counter
	RequestDecodingError        tally.Counter
	Response                    tally.Counter
	ResponseReply               tally.Counter
	ResponseSuccess             tally.Counter
	ResponseError               tally.Counter
	ResponseException           tally.Counter
	ResponseInvalidType         tally.Counter
	ResponseDecodingError       tally.Counter
	CxDestroyLocalWithActiveRq  tally.Counter
	CxDestroyRemoteWithActiveRq tally.Counter
}

// NewStats creates proxy stats on the given scope.
func NewStats(scope tally.Scope) *Stats {
	return &Stats{
		Request:                     scope.Counter("request"),
		RequestCall:                 scope.Counter("request_call"),
		RequestOneway:               scope.Counter("request_oneway"),
		RequestInvalidType:          scope.Counter("request_invalid_type"),
		RequestDecodingError:        scope.Counter("request_decoding_error"),
		Response:                    scope.Counter("response"),
		ResponseReply:               scope.Counter("response_reply"),
		ResponseSuccess:             scope.Counter("response_success"),
		ResponseError:               scope.Counter("response_error"),
		ResponseException:           scope.Counter("response_exception"),
		ResponseInvalidType:         scope.Counter("response_invalid_type"),
		ResponseDecodingError:       scope.Counter("response_decoding_error"),
		CxDestroyLocalWithActiveRq:  scope.Counter("cx_destroy_local_with_active_rq"),
		CxDestroyRemoteWithActiveRq: scope.Counter("cx_destroy_remote_with_active_rq"),
	}
}
