// Copyright 2023 Jigsaw Operations LLC
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

package dns

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/ytflow/tunnelcore/transport"
	"golang.org/x/net/dns/dnsmessage"
)

// Errors of a round trip. They wrap the underlying cause, so both can be tested with [errors.Is].
var (
	ErrDial        = errors.New("failed to dial resolver")
	ErrSend        = errors.New("failed to send query")
	ErrReceive     = errors.New("failed to receive response")
	ErrBadResponse = errors.New("bad response")
)

// RoundTripper runs a single DNS transaction.
type RoundTripper interface {
	RoundTrip(ctx context.Context, q dnsmessage.Question) (*dnsmessage.Message, error)
}

// FuncRoundTripper is a [RoundTripper] backed by a function.
type FuncRoundTripper func(ctx context.Context, q dnsmessage.Question) (*dnsmessage.Message, error)

// RoundTrip implements [RoundTripper].
func (f FuncRoundTripper) RoundTrip(ctx context.Context, q dnsmessage.Question) (*dnsmessage.Message, error) {
	return f(ctx, q)
}

// NewQuestion creates an IN class question. A missing trailing dot is added.
func NewQuestion(domain string, qtype dnsmessage.Type) (*dnsmessage.Question, error) {
	if len(domain) == 0 || domain[len(domain)-1] != '.' {
		domain += "."
	}
	name, err := dnsmessage.NewName(domain)
	if err != nil {
		return nil, fmt.Errorf("cannot parse domain name: %w", err)
	}
	return &dnsmessage.Question{Name: name, Type: qtype, Class: dnsmessage.ClassINET}, nil
}

const (
	maxStreamMessageSize = 65535
	// Advertised with EDNS(0). See https://dnsflagday.net/2020/.
	maxUDPMessageSize = 1232
)

// appendRequest appends a recursive query for q with an EDNS(0) OPT record to buf.
func appendRequest(id uint16, q dnsmessage.Question, buf []byte) ([]byte, error) {
	b := dnsmessage.NewBuilder(buf, dnsmessage.Header{ID: id, RecursionDesired: true})
	if err := b.StartQuestions(); err != nil {
		return nil, err
	}
	if err := b.Question(q); err != nil {
		return nil, err
	}
	if err := b.StartAdditionals(); err != nil {
		return nil, err
	}
	var rh dnsmessage.ResourceHeader
	if err := rh.SetEDNS0(maxUDPMessageSize, dnsmessage.RCodeSuccess, false); err != nil {
		return nil, err
	}
	if err := b.OPTResource(rh, dnsmessage.OPTResource{}); err != nil {
		return nil, err
	}
	return b.Finish()
}

func foldCase(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

func equalASCIIName(x, y dnsmessage.Name) bool {
	if x.Length != y.Length {
		return false
	}
	for i := 0; i < int(x.Length); i++ {
		if foldCase(x.Data[i]) != foldCase(y.Data[i]) {
			return false
		}
	}
	return true
}

// checkResponse applies the checks of RFC 5452 section 4: matching ID and matching question.
func checkResponse(reqID uint16, reqQ dnsmessage.Question, hdr dnsmessage.Header, qs []dnsmessage.Question) error {
	if !hdr.Response {
		return errors.New("response bit not set")
	}
	if hdr.ID != reqID {
		return fmt.Errorf("message id does not match: expected %v, got %v", reqID, hdr.ID)
	}
	if len(qs) == 0 {
		return errors.New("no questions in response")
	}
	q := qs[0]
	if q.Type != reqQ.Type || q.Class != reqQ.Class || !equalASCIIName(q.Name, reqQ.Name) {
		return errors.New("response question doesn't match request")
	}
	return nil
}

// queryStream runs a query over a stream, framing each message with its length.
func queryStream(conn io.ReadWriter, q dnsmessage.Question) (*dnsmessage.Message, error) {
	id := uint16(rand.Uint32())
	buf, err := appendRequest(id, q, make([]byte, 2, 514))
	if err != nil {
		return nil, fmt.Errorf("cannot build query: %w", err)
	}
	binary.BigEndian.PutUint16(buf, uint16(len(buf)-2))
	if _, err := conn.Write(buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSend, err)
	}

	var msgLen uint16
	if err := binary.Read(conn, binary.BigEndian, &msgLen); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReceive, err)
	}
	if int(msgLen) <= cap(buf) {
		buf = buf[:msgLen]
	} else {
		buf = make([]byte, msgLen)
	}
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReceive, err)
	}
	var msg dnsmessage.Message
	if err := msg.Unpack(buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if err := checkResponse(id, q, msg.Header, msg.Questions); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return &msg, nil
}

// queryDatagram runs a query over a datagram connection. Datagrams that do not answer the query are skipped,
// since anyone can send to the socket.
func queryDatagram(conn io.ReadWriter, q dnsmessage.Question) (*dnsmessage.Message, error) {
	id := uint16(rand.Uint32())
	buf, err := appendRequest(id, q, make([]byte, 0, maxUDPMessageSize))
	if err != nil {
		return nil, fmt.Errorf("cannot build query: %w", err)
	}
	if _, err := conn.Write(buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSend, err)
	}
	buf = buf[:cap(buf)]
	var skipped error
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReceive, errors.Join(err, skipped))
		}
		var msg dnsmessage.Message
		if err := msg.Unpack(buf[:n]); err != nil {
			skipped = errors.Join(skipped, err)
			continue
		}
		if err := checkResponse(id, q, msg.Header, msg.Questions); err != nil {
			skipped = errors.Join(skipped, err)
			continue
		}
		return &msg, nil
	}
}

// NewTCPRoundTripper creates a [RoundTripper] for DNS-over-TCP to resolverAddr. Each query uses a new connection.
func NewTCPRoundTripper(sd transport.StreamDialer, resolverAddr string) RoundTripper {
	return FuncRoundTripper(func(ctx context.Context, q dnsmessage.Question) (*dnsmessage.Message, error) {
		conn, err := sd.DialStream(ctx, resolverAddr)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDial, err)
		}
		defer conn.Close()
		if deadline, ok := ctx.Deadline(); ok {
			conn.SetDeadline(deadline)
		}
		// Cancellation unblocks the query by closing the connection.
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
		return queryStream(conn, q)
	})
}

// NewUDPRoundTripper creates a [RoundTripper] for DNS over UDP to resolverAddr. Each query uses a new socket.
func NewUDPRoundTripper(pd transport.PacketDialer, resolverAddr string) RoundTripper {
	return FuncRoundTripper(func(ctx context.Context, q dnsmessage.Question) (*dnsmessage.Message, error) {
		conn, err := pd.DialPacket(ctx, resolverAddr)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDial, err)
		}
		defer conn.Close()
		if deadline, ok := ctx.Deadline(); ok {
			conn.SetDeadline(deadline)
		}
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
		return queryDatagram(conn, q)
	})
}
