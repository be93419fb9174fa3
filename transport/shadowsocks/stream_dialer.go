// Copyright 2023 The Outline Authors
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
Package shadowsocks implements a [Shadowsocks] client on top of the AEAD ciphers of [go-shadowsocks2].

Both TCP ([StreamDialer]) and UDP ([PacketListener]) are supported. Method names are the ones accepted by
go-shadowsocks2, including the common aliases such as "chacha20-ietf-poly1305" and "aes-256-gcm".

[Shadowsocks]: https://shadowsocks.org/
[go-shadowsocks2]: https://github.com/shadowsocks/go-shadowsocks2
*/
package shadowsocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/shadowsocks/go-shadowsocks2/core"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"github.com/ytflow/tunnelcore/transport"
)

// NewCipher returns the cipher for the given method and password.
func NewCipher(method, password string) (core.Cipher, error) {
	cipher, err := core.PickCipher(method, nil, password)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher %q: %w", method, err)
	}
	return cipher, nil
}

// StreamDialer is a [transport.StreamDialer] that connects to destinations through a Shadowsocks server.
type StreamDialer struct {
	endpoint string
	dialer   transport.StreamDialer
	cipher   core.Cipher
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [StreamDialer] for the server at endpoint (host:port). Connections to the server are
// made with dialer.
func NewStreamDialer(endpoint string, dialer transport.StreamDialer, cipher core.Cipher) (*StreamDialer, error) {
	if dialer == nil {
		return nil, errors.New("argument dialer must not be nil")
	}
	if cipher == nil {
		return nil, errors.New("argument cipher must not be nil")
	}
	return &StreamDialer{endpoint: endpoint, dialer: dialer, cipher: cipher}, nil
}

// DialStream implements [transport.StreamDialer].DialStream. The target address header is sent immediately.
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	tgt := socks.ParseAddr(remoteAddr)
	if tgt == nil {
		return nil, fmt.Errorf("invalid target address %q", remoteAddr)
	}
	proxyConn, err := d.dialer.DialStream(ctx, d.endpoint)
	if err != nil {
		return nil, err
	}
	ssConn := d.cipher.StreamConn(proxyConn)
	if deadline, ok := ctx.Deadline(); ok {
		proxyConn.SetWriteDeadline(deadline)
	}
	if _, err := ssConn.Write(tgt); err != nil {
		proxyConn.Close()
		return nil, fmt.Errorf("failed to write target address: %w", err)
	}
	proxyConn.SetWriteDeadline(noDeadline)
	return transport.WrapConn(proxyConn, ssConn, ssConn), nil
}
