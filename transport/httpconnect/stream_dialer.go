// Copyright 2025 The Outline Authors
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

// Package httpconnect implements a client for HTTP proxies that support the CONNECT method.
package httpconnect

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ytflow/tunnelcore/transport"
)

// ErrProxyAuth is returned when the proxy rejects the credentials.
var ErrProxyAuth = errors.New("proxy authentication required")

// StreamDialer is a [transport.StreamDialer] that tunnels connections through an HTTP proxy with CONNECT.
type StreamDialer struct {
	endpoint string
	dialer   transport.StreamDialer
	headers  http.Header
}

var _ transport.StreamDialer = (*StreamDialer)(nil)

// Option configures a [StreamDialer].
type Option func(d *StreamDialer)

// WithBasicAuth sends the given credentials in the Proxy-Authorization header.
func WithBasicAuth(user, password string) Option {
	return func(d *StreamDialer) {
		creds := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
		d.headers.Set("Proxy-Authorization", "Basic "+creds)
	}
}

// WithHeaders adds headers to every CONNECT request.
func WithHeaders(headers http.Header) Option {
	return func(d *StreamDialer) {
		for k, vs := range headers {
			for _, v := range vs {
				d.headers.Add(k, v)
			}
		}
	}
}

// NewStreamDialer creates a [StreamDialer] for the proxy at endpoint (host:port). Connections to the proxy are
// made with dialer, which may wrap them in TLS.
func NewStreamDialer(endpoint string, dialer transport.StreamDialer, opts ...Option) (*StreamDialer, error) {
	if dialer == nil {
		return nil, errors.New("argument dialer must not be nil")
	}
	d := &StreamDialer{
		endpoint: endpoint,
		dialer:   dialer,
		headers:  make(http.Header),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// DialStream implements [transport.StreamDialer].DialStream.
func (d *StreamDialer) DialStream(ctx context.Context, remoteAddr string) (transport.StreamConn, error) {
	conn, err := d.dialer.DialStream(ctx, d.endpoint)
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	br, err := d.handshake(conn, remoteAddr)
	if err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetDeadline(time.Time{})
	// The reader may hold bytes the proxy sent right after the response.
	return transport.WrapConn(conn, br, conn), nil
}

func (d *StreamDialer) handshake(conn transport.StreamConn, remoteAddr string) (*bufio.Reader, error) {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Host: remoteAddr},
		Host:   remoteAddr,
		Header: d.headers.Clone(),
	}
	req.Header.Set("Proxy-Connection", "Keep-Alive")
	if err := req.Write(conn); err != nil {
		return nil, fmt.Errorf("failed to write CONNECT request: %w", err)
	}
	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, fmt.Errorf("failed to read CONNECT response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return br, nil
	case resp.StatusCode == http.StatusProxyAuthRequired:
		return nil, ErrProxyAuth
	default:
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
}
