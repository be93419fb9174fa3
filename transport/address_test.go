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

package transport

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeNetAddrResolverTargets(t *testing.T) {
	// The addresses the backend check and the UDP relay hand to DialPacket.
	for _, tc := range []struct {
		address string
		want    string
		ip      bool
	}{
		{address: "1.1.1.1:53", want: "1.1.1.1:53", ip: true},
		{address: "[2606:4700:4700::1111]:53", want: "[2606:4700:4700::1111]:53", ip: true},
		{address: "www.google.com:53", want: "www.google.com:53"},
		{address: "WWW.Google.com:domain", want: "WWW.Google.com:53"},
	} {
		t.Run(tc.address, func(t *testing.T) {
			netAddr, err := MakeNetAddr("udp", tc.address)
			require.NoError(t, err)
			require.Equal(t, "udp", netAddr.Network())
			require.Equal(t, tc.want, netAddr.String())
			if tc.ip {
				require.IsType(t, &net.UDPAddr{}, netAddr)
			} else {
				require.IsType(t, &domainAddr{}, netAddr)
			}
		})
	}
}

func TestMakeNetAddrMappedIPv4(t *testing.T) {
	netAddr, err := MakeNetAddr("udp", "[::ffff:127.0.0.1]:9008")
	require.NoError(t, err)
	udpAddr, ok := netAddr.(*net.UDPAddr)
	require.True(t, ok)
	// The mapping is kept; callers that compare with IPv4 addresses unmap first.
	require.Equal(t, netip.MustParseAddrPort("127.0.0.1:9008"), netip.AddrPortFrom(udpAddr.AddrPort().Addr().Unmap(), udpAddr.AddrPort().Port()))
}

func TestMakeNetAddrTCP(t *testing.T) {
	netAddr, err := MakeNetAddr("tcp", "[0000:0000:0000::0001]:443")
	require.NoError(t, err)
	require.IsType(t, &net.TCPAddr{}, netAddr)
	require.Equal(t, "[::1]:443", netAddr.String())
}

func TestMakeNetAddrErrors(t *testing.T) {
	for _, address := range []string{"1.1.1.1", "example.com:70000", "example.com:no-such-service", ""} {
		t.Run(address, func(t *testing.T) {
			_, err := MakeNetAddr("udp", address)
			require.Error(t, err)
		})
	}

	_, err := MakeNetAddr("ip", "10.0.0.1:80")
	var unknown net.UnknownNetworkError
	require.ErrorAs(t, err, &unknown)
}

func TestDialPacketKeepsDomainTarget(t *testing.T) {
	conn, err := PacketListenerDialer{Listener: &UDPListener{Address: "127.0.0.1:0"}}.DialPacket(t.Context(), "resolver.example:53")
	require.NoError(t, err)
	defer conn.Close()
	require.IsType(t, &domainAddr{}, conn.RemoteAddr())
	require.Equal(t, "resolver.example:53", conn.RemoteAddr().String())
}
