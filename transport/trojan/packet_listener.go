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

package trojan

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"

	"github.com/shadowsocks/go-shadowsocks2/socks"
	"github.com/ytflow/tunnelcore/transport"
)

// The address in the UDP associate header is not used by servers.
var unspecifiedAddr = socks.ParseAddr("0.0.0.0:0")

// PacketListener is a [transport.PacketListener] that relays UDP packets over a Trojan UDP associate session.
type PacketListener struct {
	endpoint string
	dialer   transport.StreamDialer
	key      Key
}

var _ transport.PacketListener = (*PacketListener)(nil)

// NewPacketListener creates a [PacketListener] for the server at endpoint (host:port). The dialer must return TLS
// connections to the server.
func NewPacketListener(endpoint string, dialer transport.StreamDialer, password string) (*PacketListener, error) {
	if dialer == nil {
		return nil, errors.New("argument dialer must not be nil")
	}
	return &PacketListener{endpoint: endpoint, dialer: dialer, key: NewKey(password)}, nil
}

// ListenPacket implements [transport.PacketListener].ListenPacket. Each call opens a new session.
func (l *PacketListener) ListenPacket(ctx context.Context) (net.PacketConn, error) {
	conn, err := l.dialer.DialStream(ctx, l.endpoint)
	if err != nil {
		return nil, err
	}
	if err := writeHeader(conn, l.key, cmdUDPAssociate, unspecifiedAddr); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to write request header: %w", err)
	}
	return &packetConn{StreamConn: conn, r: bufio.NewReader(conn)}, nil
}

type packetConn struct {
	transport.StreamConn

	wmu sync.Mutex
	rmu sync.Mutex
	r   *bufio.Reader
}

var _ net.PacketConn = (*packetConn)(nil)

func appendPacket(buf []byte, addr socks.Addr, p []byte) []byte {
	buf = append(buf, addr...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p)))
	buf = append(buf, crlf...)
	return append(buf, p...)
}

// WriteTo sends one framed packet for addr.
func (c *packetConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	if len(p) > math.MaxUint16 {
		return 0, fmt.Errorf("packet of %d bytes is too big", len(p))
	}
	tgt := socks.ParseAddr(addr.String())
	if tgt == nil {
		return 0, fmt.Errorf("invalid destination address %v", addr)
	}
	buf := appendPacket(make([]byte, 0, len(tgt)+4+len(p)), tgt, p)
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.StreamConn.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

// ReadFrom reads one framed packet. If p is too small, the excess bytes are discarded and [io.ErrShortBuffer]
// is returned.
func (c *packetConn) ReadFrom(p []byte) (int, net.Addr, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()
	src, err := socks.ReadAddr(c.r)
	if err != nil {
		return 0, nil, err
	}
	var lenCRLF [4]byte
	if _, err := io.ReadFull(c.r, lenCRLF[:]); err != nil {
		return 0, nil, err
	}
	length := int(binary.BigEndian.Uint16(lenCRLF[:2]))
	srcAddr, err := net.ResolveUDPAddr("udp", src.String())
	if err != nil {
		return 0, nil, err
	}
	n, err := io.ReadFull(c.r, p[:min(len(p), length)])
	if err != nil {
		return n, srcAddr, err
	}
	if n < length {
		if _, err := c.r.Discard(length - n); err != nil {
			return n, srcAddr, err
		}
		return n, srcAddr, io.ErrShortBuffer
	}
	return n, srcAddr, nil
}
