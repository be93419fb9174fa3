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

package adapter

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/shadowsocks/go-shadowsocks2/core"
	"github.com/shadowsocks/go-shadowsocks2/socks"
	"github.com/stretchr/testify/require"
	"github.com/ytflow/tunnelcore/config"
)

// TestMain turns off the process-wide replay filter of go-shadowsocks2. The client and the in-process server share
// it, so the server would reject every client salt as a replay.
func TestMain(m *testing.M) {
	os.Setenv("SHADOWSOCKS_SF_CAPACITY", "0")
	os.Exit(m.Run())
}

type bogusConfig struct {
	config.Base
}

func TestBuildUnknownType(t *testing.T) {
	f, err := Build(&bogusConfig{config.Base{Kind: "bogus"}})
	require.ErrorIs(t, err, config.ErrUnknownKind)
	require.Nil(t, f)
}

func endpoint(host string, port uint16) config.Endpoint {
	return config.Endpoint{Server: host, ServerPort: port}
}

func TestBuildKinds(t *testing.T) {
	for _, cfg := range []config.AdapterConfig{
		&config.ShadowsocksConfig{
			Base:     config.Base{Kind: config.KindShadowsocks, Name: "ss"},
			Endpoint: endpoint("127.0.0.1", 8388), Method: "aes-128-gcm", Password: "p",
		},
		&config.HTTPConfig{
			Base:     config.Base{Kind: config.KindHTTP, Name: "http"},
			Endpoint: endpoint("127.0.0.1", 3128), TLS: true, SNI: "proxy.example.com",
		},
		&config.TrojanConfig{
			Base:     config.Base{Kind: config.KindTrojan, Name: "trojan"},
			Endpoint: endpoint("127.0.0.1", 443), Password: "p",
		},
	} {
		t.Run(string(cfg.Header().Kind), func(t *testing.T) {
			f, err := Build(cfg)
			require.NoError(t, err)
			require.Equal(t, cfg.Header().Kind, f.Kind())
			require.Equal(t, cfg.Header().Name, f.Name())
		})
	}
}

func TestResolveAndBuild(t *testing.T) {
	for kind, text := range map[config.Kind]string{
		config.KindShadowsocks: `{"kind": "shadowsocks", "name": "Tokyo", "server": "127.0.0.1", "server_port": 8388, "method": "chacha20-ietf-poly1305", "password": "p"}`,
		config.KindHTTP:        "kind: http\nname: Office\nserver: 127.0.0.1\nserver_port: 3128\nuser: alice\npassword: pw\n",
		config.KindTrojan:      `{"kind": "trojan", "name": "Edge", "server": "::1", "server_port": 443, "password": "p", "sni": "edge.example.com"}`,
	} {
		t.Run(string(kind), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "adapter.conf")
			require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
			cfg, err := config.Resolve(path)
			require.NoError(t, err)
			f, err := Build(cfg)
			require.NoError(t, err)
			require.Equal(t, kind, f.Kind())
			require.Equal(t, cfg.Header().Name, f.Name())
		})
	}
}

func TestBuildShadowsocksBadMethod(t *testing.T) {
	_, err := Build(&config.ShadowsocksConfig{
		Base:     config.Base{Kind: config.KindShadowsocks},
		Endpoint: endpoint("127.0.0.1", 8388), Method: "rot13", Password: "p",
	})
	require.Error(t, err)
}

func TestHTTPPacketUnsupported(t *testing.T) {
	f, err := Build(&config.HTTPConfig{
		Base:     config.Base{Kind: config.KindHTTP},
		Endpoint: endpoint("127.0.0.1", 3128),
	})
	require.NoError(t, err)
	_, err = f.ListenPacket(context.Background())
	require.ErrorIs(t, err, ErrPacketUnsupported)
}

func TestShadowsocksDialStream(t *testing.T) {
	cipher, err := core.PickCipher("chacha20-ietf-poly1305", nil, "secret")
	require.NoError(t, err)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		ssConn := cipher.StreamConn(conn)
		if _, err := socks.ReadAddr(ssConn); err != nil {
			return
		}
		io.Copy(ssConn, ssConn)
	}()

	port := uint16(listener.Addr().(*net.TCPAddr).Port)
	f, err := Build(&config.ShadowsocksConfig{
		Base:     config.Base{Kind: config.KindShadowsocks, Name: "local"},
		Endpoint: endpoint("127.0.0.1", port), Method: "chacha20-ietf-poly1305", Password: "secret",
	})
	require.NoError(t, err)
	conn, err := f.DialStream(context.Background(), "1.1.1.1:53")
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("hi"))
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf))
}
