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

// Package adapter turns an adapter configuration into the dialers used to reach remote destinations.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ytflow/tunnelcore/config"
	"github.com/ytflow/tunnelcore/transport"
	"github.com/ytflow/tunnelcore/transport/httpconnect"
	"github.com/ytflow/tunnelcore/transport/shadowsocks"
	"github.com/ytflow/tunnelcore/transport/tls"
	"github.com/ytflow/tunnelcore/transport/trojan"
)

// ErrPacketUnsupported is returned by ListenPacket on adapters that cannot carry UDP.
var ErrPacketUnsupported = errors.New("adapter does not support UDP")

// Factory dials streams and opens packet sessions through a proxy server.
type Factory interface {
	transport.StreamDialer
	transport.PacketListener
	Kind() config.Kind
	Name() string
}

type factory struct {
	transport.StreamDialer
	transport.PacketListener
	kind config.Kind
	name string
}

func (f *factory) Kind() config.Kind { return f.kind }
func (f *factory) Name() string      { return f.name }

type unsupportedListener struct{}

func (unsupportedListener) ListenPacket(context.Context) (net.PacketConn, error) {
	return nil, ErrPacketUnsupported
}

// Build creates the [Factory] for cfg. Configs of unknown types yield an error wrapping
// [config.ErrUnknownKind].
func Build(cfg config.AdapterConfig) (Factory, error) {
	tcp := &transport.TCPDialer{}
	switch c := cfg.(type) {
	case *config.ShadowsocksConfig:
		cipher, err := shadowsocks.NewCipher(c.Method, c.Password)
		if err != nil {
			return nil, err
		}
		sd, err := shadowsocks.NewStreamDialer(c.Address(), tcp, cipher)
		if err != nil {
			return nil, err
		}
		pl, err := shadowsocks.NewPacketListener(c.Address(), &transport.UDPListener{}, cipher)
		if err != nil {
			return nil, err
		}
		return &factory{sd, pl, c.Kind, c.Name}, nil

	case *config.HTTPConfig:
		var base transport.StreamDialer = tcp
		if c.TLS {
			var err error
			if base, err = tls.NewStreamDialer(tcp, tlsOptions(c.SNI, c.SkipCertVerify)...); err != nil {
				return nil, err
			}
		}
		var opts []httpconnect.Option
		if c.User != "" {
			opts = append(opts, httpconnect.WithBasicAuth(c.User, c.Password))
		}
		sd, err := httpconnect.NewStreamDialer(c.Address(), base, opts...)
		if err != nil {
			return nil, err
		}
		return &factory{sd, unsupportedListener{}, c.Kind, c.Name}, nil

	case *config.TrojanConfig:
		td, err := tls.NewStreamDialer(tcp, tlsOptions(c.SNI, c.SkipCertVerify)...)
		if err != nil {
			return nil, err
		}
		sd, err := trojan.NewStreamDialer(c.Address(), td, c.Password)
		if err != nil {
			return nil, err
		}
		pl, err := trojan.NewPacketListener(c.Address(), td, c.Password)
		if err != nil {
			return nil, err
		}
		return &factory{sd, pl, c.Kind, c.Name}, nil

	default:
		return nil, fmt.Errorf("%w: %T", config.ErrUnknownKind, cfg)
	}
}

func tlsOptions(sni string, skipVerify bool) []tls.ClientOption {
	var opts []tls.ClientOption
	if sni != "" {
		opts = append(opts, tls.WithSNI(sni))
	}
	if skipVerify {
		opts = append(opts, tls.WithSkipVerify(true))
	}
	return opts
}
