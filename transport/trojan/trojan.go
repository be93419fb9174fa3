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
Package trojan implements a [Trojan] client.

A Trojan session is a TLS connection to the server that starts with a request header:

	+-----------------------+---------+----------------+---------+----------+
	| hex(SHA224(password)) |  CRLF   | Command | Addr |  CRLF   | Payload  |
	+-----------------------+---------+----------------+---------+----------+
	|          56           | X'0D0A' |    1    | Var  | X'0D0A' | Variable |
	+-----------------------+---------+----------------+---------+----------+

Addr uses the SOCKS5 address encoding. With the UDP associate command, the payload is a sequence of packets, each
framed as Addr, a big-endian 2-byte length, CRLF and the packet data.

The TLS layer is provided by the dialer passed to the constructors.

[Trojan]: https://trojan-gfw.github.io/trojan/protocol
*/
package trojan

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/shadowsocks/go-shadowsocks2/socks"
	"github.com/ytflow/tunnelcore/transport"
)

const (
	cmdConnect      = byte(1)
	cmdUDPAssociate = byte(3)
)

var crlf = []byte{'\r', '\n'}

// Key is the hex encoded SHA224 hash of the password, as sent to the server.
type Key [sha256.Size224 * 2]byte

// NewKey hashes a password.
func NewKey(password string) Key {
	var key Key
	hash := sha256.Sum224([]byte(password))
	hex.Encode(key[:], hash[:])
	return key
}

func appendHeader(buf []byte, key Key, cmd byte, addr socks.Addr) []byte {
	buf = append(buf, key[:]...)
	buf = append(buf, crlf...)
	buf = append(buf, cmd)
	buf = append(buf, addr...)
	return append(buf, crlf...)
}

func writeHeader(w io.Writer, key Key, cmd byte, addr socks.Addr) error {
	buf := appendHeader(make([]byte, 0, len(key)+len(addr)+5), key, cmd, addr)
	_, err := w.Write(buf)
	return err
}

// readHeader parses a request header. It is the server side of writeHeader.
func readHeader(r io.Reader) (Key, byte, socks.Addr, error) {
	var key Key
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, 0, nil, err
	}
	var sep [3]byte
	if _, err := io.ReadFull(r, sep[:]); err != nil {
		return key, 0, nil, err
	}
	if !bytes.Equal(sep[:2], crlf) {
		return key, 0, nil, errors.New("missing CRLF after key")
	}
	addr, err := socks.ReadAddr(r)
	if err != nil {
		return key, 0, nil, fmt.Errorf("invalid address: %w", err)
	}
	if _, err := io.ReadFull(r, sep[:2]); err != nil {
		return key, 0, nil, err
	}
	if !bytes.Equal(sep[:2], crlf) {
		return key, 0, nil, errors.New("missing CRLF after address")
	}
	return key, sep[2], addr, nil
}

// StreamDialer is a [transport.StreamDialer] that connects to destinations through a Trojan server.
type StreamDialer struct {
	endpoint string
	dialer   transport.StreamDialer
	key      Key
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// NewStreamDialer creates a [StreamDialer] for the server at endpoint (host:port). The dialer must return TLS
// connections to the server.
func NewStreamDialer(endpoint string, dialer transport.StreamDialer, password string) (*StreamDialer, error) {
	if dialer == nil {
		return nil, errors.New("argument dialer must not be nil")
	}
	return &StreamDialer{endpoint: endpoint, dialer: dialer, key: NewKey(password)}, nil
}

// DialStream implements [transport.StreamDialer].DialStream.
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	tgt := socks.ParseAddr(remoteAddr)
	if tgt == nil {
		return nil, fmt.Errorf("invalid target address %q", remoteAddr)
	}
	conn, err := d.dialer.DialStream(ctx, d.endpoint)
	if err != nil {
		return nil, err
	}
	if err := writeHeader(conn, d.key, cmdConnect, tgt); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to write request header: %w", err)
	}
	return conn, nil
}
