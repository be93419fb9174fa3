// Copyright 2026 The YTFlow Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tunnel

import (
	"net/netip"

	"github.com/ytflow/tunnelcore/host"
)

const (
	// MTU is the packet size advertised to the host.
	MTU = 1500
	// HeaderSize is the room the host reserves per packet.
	HeaderSize = 1512
)

var (
	assignedIPv4 = netip.MustParseAddr("192.168.3.1")
	resolverIPv4 = netip.MustParseAddr("1.1.1.1")
)

// DefaultRoutes returns the IPv4 prefixes routed into the tunnel. Local subnets stay outside.
func DefaultRoutes() host.RouteSet {
	return host.RouteSet{
		IPv4Inclusion: []netip.Prefix{
			netip.PrefixFrom(resolverIPv4, 32),
			netip.MustParsePrefix("172.17.0.0/16"),
		},
		ExcludeLocalSubnets: true,
	}
}

// DefaultDNS sends every name to the fixed resolver.
func DefaultDNS() host.DNSAssignment {
	return host.DNSAssignment{
		Rules: []host.DNSRule{{Suffix: ".", Servers: []netip.Addr{resolverIPv4}}},
	}
}

func startOptions() host.StartOptions {
	return host.StartOptions{
		AssignedIPv4:    []netip.Addr{assignedIPv4},
		Routes:          DefaultRoutes(),
		DNS:             DefaultDNS(),
		MTU:             MTU,
		HeaderSize:      HeaderSize,
		ForceAllTraffic: false,
	}
}
