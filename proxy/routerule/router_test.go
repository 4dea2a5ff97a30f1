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

package routerule

import (
	"testing"

	"github.com/m3db/thriftproxy/thrift"

	"github.com/stretchr/testify/require"
)

func metaForMethod(method string) *thrift.MessageMetadata {
	meta := thrift.NewMessageMetadata()
	meta.SetMethodName(method)
	return meta
}

func TestRouteMatcherExactAndPrefix(t *testing.T) {
	matcher, err := NewRouteMatcher([]Rule{
		{Method: "getUser", Cluster: "users"},
		{MethodPrefix: "get", Cluster: "readers"},
		{MethodPrefix: "", Cluster: "default"},
	})
	require.NoError(t, err)

	route := matcher.Route(metaForMethod("getUser"), 1)
	require.NotNil(t, route)
	require.Equal(t, "users", route.RouteEntry().ClusterName())

	route = matcher.Route(metaForMethod("getThing"), 1)
	require.NotNil(t, route)
	require.Equal(t, "readers", route.RouteEntry().ClusterName())

	route = matcher.Route(metaForMethod("putThing"), 1)
	require.NotNil(t, route)
	require.Equal(t, "default", route.RouteEntry().ClusterName())
}

func TestRouteMatcherNoMatch(t *testing.T) {
	matcher, err := NewRouteMatcher([]Rule{
		{Method: "getUser", Cluster: "users"},
	})
	require.NoError(t, err)

	require.Nil(t, matcher.Route(metaForMethod("putUser"), 1))
	require.Nil(t, matcher.Route(thrift.NewMessageMetadata(), 1))
}

func TestRouteMatcherRejectsBadRules(t *testing.T) {
	_, err := NewRouteMatcher([]Rule{{Method: "x"}})
	require.Error(t, err)

	_, err = NewRouteMatcher([]Rule{{Method: "x", MethodPrefix: "y", Cluster: "c"}})
	require.Error(t, err)
}

func TestRouteMatcherEmptyRulesMatchNothing(t *testing.T) {
	matcher, err := NewRouteMatcher(nil)
	require.NoError(t, err)
	require.Nil(t, matcher.Route(metaForMethod("anything"), 1))
}
