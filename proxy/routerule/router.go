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

// Package routerule implements method-driven request routing.
package routerule

import (
	"strings"

	"github.com/m3db/thriftproxy/proxy"
	"github.com/m3db/thriftproxy/thrift"

	"github.com/pkg/errors"
)

// Rule matches requests by method name and maps them to a cluster. Method
// matches exactly when set; otherwise MethodPrefix matches by prefix, with
// the empty prefix matching every request.
type Rule struct {
	Method       string `yaml:"method"`
	MethodPrefix string `yaml:"methodPrefix"`
	Cluster      string `yaml:"cluster" validate:"nonzero"`
}

type routeEntry struct {
	cluster string
}

func (e *routeEntry) ClusterName() string { return e.cluster }

type route struct {
	entry routeEntry
}

func (r *route) RouteEntry() proxy.RouteEntry { return &r.entry }

type matcher struct {
	rules  []Rule
	routes []route
}

// NewRouteMatcher builds a router from ordered rules; the first matching
// rule wins.
func NewRouteMatcher(rules []Rule) (proxy.Router, error) {
	routes := make([]route, 0, len(rules))
	for i, rule := range rules {
		if rule.Cluster == "" {
			return nil, errors.Errorf("route rule %d: no cluster", i)
		}
		if rule.Method != "" && rule.MethodPrefix != "" {
			return nil, errors.Errorf(
				"route rule %d: method and methodPrefix are mutually exclusive", i)
		}
		routes = append(routes, route{entry: routeEntry{cluster: rule.Cluster}})
	}
	return &matcher{rules: rules, routes: routes}, nil
}

func (m *matcher) Route(meta *thrift.MessageMetadata, streamID uint64) proxy.Route {
	if !meta.HasMethodName() {
		return nil
	}
	method := meta.MethodName()
	for i, rule := range m.rules {
		if rule.Method != "" {
			if rule.Method == method {
				return &m.routes[i]
			}
			continue
		}
		if strings.HasPrefix(method, rule.MethodPrefix) {
			return &m.routes[i]
		}
	}
	return nil
}
