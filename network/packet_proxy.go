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

package network

import (
	"net"
	"net/netip"
)

// PacketProxy handles the UDP flows of a network stack. The stack calls NewSession when a local socket starts
// sending, then sends requests through the returned [PacketRequestSender]. Responses, which may arrive without any
// request, go to the [PacketResponseReceiver] given to NewSession.
//
// PacketProxy must be safe for concurrent use.
type PacketProxy interface {
	NewSession(PacketResponseReceiver) (PacketRequestSender, error)
}

// PacketRequestSender carries the requests of one UDP session. It is implemented by the proxy.
type PacketRequestSender interface {
	// WriteTo sends payload p to destination. p must not be retained after WriteTo returns.
	WriteTo(p []byte, destination netip.AddrPort) (int, error)

	// Close ends the session. Later calls to WriteTo fail with [ErrClosed].
	Close() error
}

// PacketResponseReceiver accepts the responses of one UDP session. It is implemented by the network stack.
type PacketResponseReceiver interface {
	// WriteFrom delivers payload p received from source. p must not be retained after WriteFrom returns.
	WriteFrom(p []byte, source net.Addr) (int, error)

	// Close tells the stack no more responses will arrive. The proxy calls it when the session ends.
	Close() error
}
