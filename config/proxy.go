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

package config

import (
	"github.com/m3db/thriftproxy/proxy"
	"github.com/m3db/thriftproxy/proxy/relay"
	"github.com/m3db/thriftproxy/proxy/routerule"
	"github.com/m3db/thriftproxy/thrift"

	"github.com/pkg/errors"
)

// ProxyConfiguration is the top level proxy configuration.
type ProxyConfiguration struct {
	// ListenAddress is the downstream listen address.
	ListenAddress string `yaml:"listenAddress" validate:"nonzero"`

	// Transport is the downstream transport, framed or unframed.
	Transport string `yaml:"transport"`

	// Protocol is the downstream protocol, binary or compact.
	Protocol string `yaml:"protocol"`

	// Routes are evaluated in order; the first match wins.
	Routes []routerule.Rule `yaml:"routes"`

	// Clusters are the routable upstreams, keyed by cluster name.
	Clusters map[string]ClusterConfiguration `yaml:"clusters"`

	// MetricsPrefix prefixes all emitted metrics.
	MetricsPrefix string `yaml:"metricsPrefix"`
}

// ClusterConfiguration describes one upstream cluster.
type ClusterConfiguration struct {
	// Address is the upstream host:port.
	Address string `yaml:"address" validate:"nonzero"`

	// Transport is the upstream transport. Defaults to the downstream
	// transport when empty.
	Transport string `yaml:"transport"`

	// Protocol is the upstream protocol. Defaults to the downstream
	// protocol when empty.
	Protocol string `yaml:"protocol"`
}

// TransportType resolves the configured downstream transport, defaulting
// to framed.
func (c ProxyConfiguration) TransportType() (thrift.TransportType, error) {
	if c.Transport == "" {
		return thrift.TransportTypeFramed, nil
	}
	return thrift.ParseTransportType(c.Transport)
}

// ProtocolType resolves the configured downstream protocol, defaulting to
// binary.
func (c ProxyConfiguration) ProtocolType() (thrift.ProtocolType, error) {
	if c.Protocol == "" {
		return thrift.ProtocolTypeBinary, nil
	}
	return thrift.ParseProtocolType(c.Protocol)
}

// RelayClusters translates the cluster configurations for the relay
// filter, inheriting the downstream transport and protocol where a cluster
// leaves them unset.
func (c ProxyConfiguration) RelayClusters() (map[string]relay.Cluster, error) {
	downstreamTransport, err := c.TransportType()
	if err != nil {
		return nil, err
	}
	downstreamProtocol, err := c.ProtocolType()
	if err != nil {
		return nil, err
	}

	clusters := make(map[string]relay.Cluster, len(c.Clusters))
	for name, cluster := range c.Clusters {
		transport := downstreamTransport
		if cluster.Transport != "" {
			if transport, err = thrift.ParseTransportType(cluster.Transport); err != nil {
				return nil, errors.Wrapf(err, "cluster %s", name)
			}
		}
		protocol := downstreamProtocol
		if cluster.Protocol != "" {
			if protocol, err = thrift.ParseProtocolType(cluster.Protocol); err != nil {
				return nil, errors.Wrapf(err, "cluster %s", name)
			}
		}
		clusters[name] = relay.Cluster{
			Address:   cluster.Address,
			Transport: transport,
			Protocol:  protocol,
		}
	}
	return clusters, nil
}

// NewProxyOptions assembles connection manager options from the
// configuration: codec factories, route matcher and relay filter chain.
func (c ProxyConfiguration) NewProxyOptions(
	iopts proxy.Options,
) (proxy.Options, error) {
	opts := iopts

	transportType, err := c.TransportType()
	if err != nil {
		return nil, err
	}
	protocolType, err := c.ProtocolType()
	if err != nil {
		return nil, err
	}
	opts = opts.
		SetTransportFactory(func() thrift.Transport { return thrift.NewTransport(transportType) }).
		SetProtocolFactory(func() thrift.Protocol { return thrift.NewProtocol(protocolType) })

	router, err := routerule.NewRouteMatcher(c.Routes)
	if err != nil {
		return nil, err
	}
	opts = opts.SetRouter(router)

	clusters, err := c.RelayClusters()
	if err != nil {
		return nil, err
	}
	opts = opts.SetFilterChainFactory(
		relay.NewFilterChainFactory(clusters, opts.InstrumentOptions()))

	return opts, nil
}
