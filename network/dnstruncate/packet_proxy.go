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

package dnstruncate

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/ytflow/tunnelcore/network"
)

const (
	dnsPort        = 53
	dnsHeaderLen   = 12
	ancountOffset  = 6
	maxResponseLen = 512
)

type packetProxy struct{}

// NewPacketProxy returns the truncating [network.PacketProxy].
func NewPacketProxy() network.PacketProxy {
	return packetProxy{}
}

func (packetProxy) NewSession(receiver network.PacketResponseReceiver) (network.PacketRequestSender, error) {
	if receiver == nil {
		return nil, errors.New("receiver must not be nil")
	}
	return &session{receiver: receiver}, nil
}

type session struct {
	closed   atomic.Bool
	receiver network.PacketResponseReceiver
}

func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return network.ErrClosed
	}
	return s.receiver.Close()
}

// WriteTo answers query p as if it came from destination.
func (s *session) WriteTo(p []byte, destination netip.AddrPort) (int, error) {
	if s.closed.Load() {
		return 0, network.ErrClosed
	}
	if destination.Port() != dnsPort {
		return 0, fmt.Errorf("UDP to port %d: %w", destination.Port(), network.ErrPortUnreachable)
	}
	resp, err := truncatedResponse(p)
	if err != nil {
		return 0, err
	}
	if _, err := s.receiver.WriteFrom(resp, net.UDPAddrFromAddrPort(destination)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// truncatedResponse builds the reply to query: the question section is echoed, TC and NOERROR are set and the
// other sections are dropped. ANCOUNT copies QDCOUNT even though no answer follows, since some Windows resolvers
// only retry over TCP when it is non-zero.
func truncatedResponse(query []byte) ([]byte, error) {
	if len(query) < dnsHeaderLen {
		return nil, fmt.Errorf("DNS message of %d bytes is shorter than the header", len(query))
	}
	var msg layers.DNS
	if err := msg.DecodeFromBytes(query, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("invalid DNS message: %w", err)
	}
	if msg.QR {
		return nil, errors.New("DNS message is not a query")
	}
	resp := layers.DNS{
		ID:           msg.ID,
		QR:           true,
		OpCode:       msg.OpCode,
		RD:           msg.RD,
		TC:           true,
		ResponseCode: layers.DNSResponseCodeNoErr,
		Questions:    msg.Questions,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := resp.SerializeTo(buf, gopacket.SerializeOptions{FixLengths: true}); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if len(out) > maxResponseLen {
		return nil, fmt.Errorf("question section of %d bytes does not fit a UDP response", len(out))
	}
	binary.BigEndian.PutUint16(out[ancountOffset:], uint16(len(resp.Questions)))
	return out, nil
}
