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

/*
Package host defines the boundary between the tunnel core and the platform that owns the tunnel interface.

The platform implements [Channel]. It hands outbound IP packets to the core and receives inbound ones as [Buffer]
batches, assigns routes and DNS, and keeps an opaque context slot where the core stores its per-channel state.
The core creates the [Transport] that the platform uses to exchange packets with it.

[UDPTransport] is a [Transport] over a loopback UDP socket. Sub-package tunhost is a Linux host built on a TUN
device, and hosttest is a recording [Channel] for tests.
*/
package host

import (
	"context"
	"net/netip"
)

// Channel is the host side of a tunnel. Its methods may be called from any goroutine.
type Channel interface {
	// AssociateTransport registers t as the transport of the next start.
	AssociateTransport(t Transport) error
	// StartWithMainTransport starts packet flow over t with the given assignment.
	StartWithMainTransport(opts StartOptions, t Transport) error
	// Stop ends packet flow.
	Stop()

	// ReceiveBuffer returns an empty host-owned buffer for one inbound packet.
	ReceiveBuffer() (*Buffer, error)

	LogDiagnosticMessage(msg string)
	// TerminateConnection ends the tunnel abnormally and shows reason to the user.
	TerminateConnection(reason string)

	// PluginContext returns the value stored with SetPluginContext, or nil.
	PluginContext() any
	SetPluginContext(v any)
}

// Transport carries encapsulated packets between the host and the core.
type Transport interface {
	// BindEndpoint binds the local end. It returns once the bind has completed or failed.
	BindEndpoint(ctx context.Context, local netip.AddrPort) error
	// LocalAddr returns the bound address, or the zero value before binding.
	LocalAddr() netip.AddrPort
	// Connect sets the remote end.
	Connect(ctx context.Context, remote netip.AddrPort) error
	Close() error
}

// PacketTransport is a [Transport] the host can send and receive encapsulated packets on.
type PacketTransport interface {
	Transport
	Send(p []byte) (int, error)
	Receive(p []byte) (int, error)
}

// Deferral keeps the host process alive until Complete is called.
type Deferral interface {
	Complete()
}

// DeferralFunc adapts a function to [Deferral].
type DeferralFunc func()

func (f DeferralFunc) Complete() { f() }

// StartOptions is the assignment requested when packet flow starts.
type StartOptions struct {
	AssignedIPv4    []netip.Addr
	Routes          RouteSet
	DNS             DNSAssignment
	MTU             int
	HeaderSize      int
	ForceAllTraffic bool
}

// RouteSet lists the IPv4 prefixes routed into the tunnel.
type RouteSet struct {
	IPv4Inclusion       []netip.Prefix
	IPv4Exclusion       []netip.Prefix
	ExcludeLocalSubnets bool
}

// DNSAssignment lists the resolvers advertised to the system.
type DNSAssignment struct {
	Rules []DNSRule
}

// DNSRule sends names under Suffix to Servers. The suffix "." matches every name.
type DNSRule struct {
	Suffix  string
	Servers []netip.Addr
}
