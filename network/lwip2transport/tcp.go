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

package lwip2transport

import (
	"context"
	"fmt"
	"io"
	"net"

	lwip "github.com/eycorsican/go-tun2socks/core"
	"github.com/ytflow/tunnelcore/transport"
	"golang.org/x/sync/errgroup"
)

var _ lwip.TCPConnHandler = (*tcpHandler)(nil)

type tcpHandler struct {
	dialer transport.StreamDialer
}

// Handle dials target and relays the flow in the background.
func (h *tcpHandler) Handle(conn net.Conn, target *net.TCPAddr) error {
	remote, err := h.dialer.DialStream(context.Background(), target.String())
	if err != nil {
		return err
	}
	local, ok := conn.(lwip.TCPConn)
	if !ok {
		remote.Close()
		return fmt.Errorf("unexpected lwIP connection type %T", conn)
	}
	go func() {
		relay(local, remote)
		local.Close()
		remote.Close()
	}()
	return nil
}

// relay copies both directions until each side reaches EOF. A half-closed side keeps receiving from its peer.
func relay(left, right transport.StreamConn) error {
	var g errgroup.Group
	g.Go(func() error { return copyHalf(right, left) })
	g.Go(func() error { return copyHalf(left, right) })
	return g.Wait()
}

// copyHalf copies src to dst, then forwards the EOF.
func copyHalf(dst, src transport.StreamConn) error {
	_, err := io.Copy(dst, src)
	dst.CloseWrite()
	src.CloseRead()
	return err
}
