// Copyright 2020 Jigsaw Operations LLC
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

package shadowsocks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/shadowsocks/go-shadowsocks2/core"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"github.com/ytflow/tunnelcore/transport"
)

var noDeadline = time.Time{}

// maxUDPPacketSize is the largest datagram the server can send us.
const maxUDPPacketSize = 64 * 1024

// PacketListener is a [transport.PacketListener] that relays UDP packets through a Shadowsocks server.
type PacketListener struct {
	endpoint string
	listener transport.PacketListener
	cipher   core.Cipher
}

var _ transport.PacketListener = (*PacketListener)(nil)

// NewPacketListener creates a [PacketListener] for the server at endpoint (host:port). Local sockets are created
// with listener.
func NewPacketListener(endpoint string, listener transport.PacketListener, cipher core.Cipher) (*PacketListener, error) {
	if listener == nil {
		return nil, errors.New("argument listener must not be nil")
	}
	if cipher == nil {
		return nil, errors.New("argument cipher must not be nil")
	}
	return &PacketListener{endpoint: endpoint, listener: listener, cipher: cipher}, nil
}

// ListenPacket implements [transport.PacketListener].ListenPacket.
func (l *PacketListener) ListenPacket(ctx context.Context) (net.PacketConn, error) {
	serverAddr, err := net.DefaultResolver.LookupNetIP(ctx, "ip", hostOf(l.endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %v: %w", l.endpoint, err)
	}
	udpAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(serverAddr[0].Unmap().String(), portOf(l.endpoint)))
	if err != nil {
		return nil, err
	}
	pc, err := l.listener.ListenPacket(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not create PacketConn: %w", err)
	}
	return &packetConn{
		PacketConn: l.cipher.PacketConn(pc),
		serverAddr: udpAddr,
	}, nil
}

type packetConn struct {
	net.PacketConn
	serverAddr net.Addr

	// Protects rbuf.
	rmu  sync.Mutex
	rbuf []byte
}

var _ net.PacketConn = (*packetConn)(nil)

// WriteTo prefixes p with the destination address and sends it to the server.
func (c *packetConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	tgt := socks.ParseAddr(addr.String())
	if tgt == nil {
		return 0, fmt.Errorf("invalid destination address %v", addr)
	}
	buf := make([]byte, 0, len(tgt)+len(p))
	buf = append(buf, tgt...)
	buf = append(buf, p...)
	if _, err := c.PacketConn.WriteTo(buf, c.serverAddr); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ReadFrom reads a packet relayed by the server and returns the address of its original source.
// Packets that are not from the server are ignored.
func (c *packetConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	if c.rbuf == nil {
		c.rbuf = make([]byte, maxUDPPacketSize)
	}
	for {
		n, from, err := c.PacketConn.ReadFrom(c.rbuf)
		if err != nil {
			return 0, nil, err
		}
		if from.String() != c.serverAddr.String() {
			continue
		}
		src := socks.SplitAddr(c.rbuf[:n])
		if src == nil {
			return 0, nil, errors.New("invalid source address in packet")
		}
		srcAddr, err := net.ResolveUDPAddr("udp", src.String())
		if err != nil {
			return 0, nil, err
		}
		payload := c.rbuf[len(src):n]
		copied := copy(p, payload)
		if copied < len(payload) {
			return copied, srcAddr, io.ErrShortBuffer
		}
		return copied, srcAddr, nil
	}
}

func hostOf(endpoint string) string {
	host, _, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint
	}
	return host
}

func portOf(endpoint string) string {
	_, port, _ := net.SplitHostPort(endpoint)
	return port
}
