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
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/ytflow/tunnelcore/host"
	"github.com/ytflow/tunnelcore/network"
	"github.com/ytflow/tunnelcore/network/lwip2transport"
	"github.com/ytflow/tunnelcore/transport"
)

var (
	// DefaultTransportAddr is where the host transport is bound.
	DefaultTransportAddr = netip.MustParseAddrPort("127.0.0.1:9007")
	// DefaultRelayAddr is where the session listens for packets from the host transport.
	DefaultRelayAddr = netip.MustParseAddrPort("127.0.0.1:9008")
)

const defaultBindTimeout = 10 * time.Second

// DeviceFactory creates the IP device of a session. TCP flows must be dialed with sd and UDP flows handed to pp.
type DeviceFactory func(sd transport.StreamDialer, pp network.PacketProxy) (network.IPDevice, error)

// TransportFactory creates the transport handed to the host on each Connect.
type TransportFactory func() host.Transport

// Option configures a [Plugin].
type Option func(*Plugin) error

func WithLogger(l *slog.Logger) Option {
	return func(p *Plugin) error {
		if l == nil {
			return errors.New("logger must not be nil")
		}
		p.logger = l
		return nil
	}
}

// WithDeferral sets the token completed once when a session is torn down by Disconnect.
func WithDeferral(d host.Deferral) Option {
	return func(p *Plugin) error {
		p.deferral = d
		return nil
	}
}

func WithTransportAddr(addr netip.AddrPort) Option {
	return func(p *Plugin) error {
		if !addr.IsValid() {
			return errors.New("invalid transport address")
		}
		p.transportAddr = addr
		return nil
	}
}

func WithRelayAddr(addr netip.AddrPort) Option {
	return func(p *Plugin) error {
		if !addr.IsValid() {
			return errors.New("invalid relay address")
		}
		p.relayAddr = addr
		return nil
	}
}

// WithDeviceFactory replaces the lwIP device.
func WithDeviceFactory(f DeviceFactory) Option {
	return func(p *Plugin) error {
		if f == nil {
			return errors.New("device factory must not be nil")
		}
		p.newDevice = f
		return nil
	}
}

// WithTransportFactory replaces [host.NewUDPTransport].
func WithTransportFactory(f TransportFactory) Option {
	return func(p *Plugin) error {
		if f == nil {
			return errors.New("transport factory must not be nil")
		}
		p.newTransport = f
		return nil
	}
}

// WithBackendCheck enables or disables the backend probe that runs after each successful Connect. It is enabled
// by default.
func WithBackendCheck(enabled bool) Option {
	return func(p *Plugin) error {
		p.backendCheck = enabled
		return nil
	}
}

func defaultTransport() host.Transport {
	return host.NewUDPTransport()
}

var defaultDevice DeviceFactory = lwip2transport.ConfigureDevice
