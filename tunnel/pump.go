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
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/ytflow/tunnelcore/host"
)

// Encapsulate moves every packet from packets to encapsulated, in order and unmodified.
func (p *Plugin) Encapsulate(ch host.Channel, packets, encapsulated *host.BufferList) {
	s := sessionOf(ch)
	for b := packets.RemoveFirst(); b != nil; b = packets.RemoveFirst() {
		encapsulated.Append(b)
		if s != nil {
			s.egress.Add(1)
		}
	}
}

// Decapsulate delivers the pending packets to decapsulated, then arranges for the host to be woken if more
// packets arrived meanwhile. The encapsulated buffer only signals that packets are waiting, and control packets
// are not used.
func (p *Plugin) Decapsulate(ch host.Channel, encapsulated *host.Buffer, decapsulated, control *host.BufferList) {
	s := sessionOf(ch)
	if s == nil {
		return
	}
	s.drain(decapsulated)
	s.CheckPendingPackets()
}

// sessionOf returns the live session of ch, or nil.
func sessionOf(ch host.Channel) *Session {
	s, _ := ch.PluginContext().(*Session)
	if s == nil || s.isClosed() {
		return nil
	}
	return s
}

// drain copies pending packets into receive buffers until the queue is empty. Packets larger than the buffer
// are dropped. A buffer taken from the host but left unfilled, because every remaining packet was oversize, is
// not returned to the host.
func (s *Session) drain(out *host.BufferList) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()

	var buf *host.Buffer
	for !s.isClosed() {
		pkt, ok := s.pending.Peek()
		if !ok {
			return
		}
		if buf == nil {
			b, err := s.ch.ReceiveBuffer()
			if err != nil {
				s.logger.Warn("failed to get receive buffer", "pending", s.pending.Len(), "err", err)
				s.ch.LogDiagnosticMessage(fmt.Sprintf("failed to get receive buffer: %v", err))
				return
			}
			buf = b
		}
		if len(pkt) > buf.Capacity() {
			s.pending.Remove()
			s.dropped.Add(1)
			err := fmt.Errorf("%w: %d > %d bytes (%s)", ErrOversize, len(pkt), buf.Capacity(), summarize(pkt))
			s.logger.Warn("dropped pending packet", "err", err)
			s.ch.LogDiagnosticMessage(err.Error())
			continue
		}
		n := copy(buf.Data(), pkt)
		if err := buf.SetLen(n); err != nil {
			s.logger.Error("bad receive buffer", "err", err)
			return
		}
		out.Append(buf)
		buf = nil
		s.pending.Remove()
		s.ingress.Add(1)
	}
}

// summarize describes an IP packet for logging, like "IPv4 10.0.0.2->1.1.1.1 UDP 5353->53".
func summarize(pkt []byte) string {
	if len(pkt) == 0 {
		return "empty"
	}
	var first gopacket.LayerType
	switch pkt[0] >> 4 {
	case 4:
		first = layers.LayerTypeIPv4
	case 6:
		first = layers.LayerTypeIPv6
	default:
		return fmt.Sprintf("not IP, version %d", pkt[0]>>4)
	}
	packet := gopacket.NewPacket(pkt, first, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	var parts []string
	if nl := packet.NetworkLayer(); nl != nil {
		src, dst := nl.NetworkFlow().Endpoints()
		parts = append(parts, fmt.Sprintf("%v %v->%v", nl.LayerType(), src, dst))
	}
	if tl := packet.TransportLayer(); tl != nil {
		src, dst := tl.TransportFlow().Endpoints()
		parts = append(parts, fmt.Sprintf("%v %v->%v", tl.LayerType(), src, dst))
	}
	if len(parts) == 0 {
		return "undecodable " + first.String()
	}
	return strings.Join(parts, " ")
}
