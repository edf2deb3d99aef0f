// Copyright (c) 2024 anidb-go contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package transport owns the single AniDB UDP socket (spec §4.4): one
// datagram out, the first matching-tag datagram back, with stray late
// replies dropped by tag. There is no third-party UDP client library in the
// teacher or the wider pack to ground this on — raw datagram sockets are
// exactly what net.UDPConn is for, so this package is one of the module's
// deliberate, documented exceptions to "prefer an ecosystem library"
// (see DESIGN.md).
package transport

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anidb-go/anidb-core/common"
)

// pollSlice bounds each SetReadDeadline wait in SendReceive's receive loop,
// so a cancelled ctx with no Deadline of its own (context.WithCancel) is
// still noticed within spec §8's 200ms cancellation-promptness invariant:
// worst case is one in-flight poll plus the re-check at the top of the
// next iteration.
const pollSlice = 100 * time.Millisecond

// Options configures a Transport.
type Options struct {
	Host string // default "api.anidb.net"
	Port int    // default 9000
}

// Transport owns one UDP socket addressed to a fixed remote endpoint.
// Concurrent SendReceive calls are serialized: spec §4.4 describes a single
// outstanding request at a time, matched by tag.
type Transport struct {
	conn    *net.UDPConn
	mu      sync.Mutex // serializes send/receive pairs on the one socket
	nextTag int64
}

// Dial opens the UDP socket on an ephemeral local port, addressed to
// opts.Host:opts.Port.
func Dial(opts Options) (*Transport, error) {
	host := opts.Host
	if host == "" {
		host = "api.anidb.net"
	}
	port := opts.Port
	if port == 0 {
		port = 9000
	}
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, common.WrapError(common.EErrorKind.Network(), "resolve AniDB UDP address", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, common.WrapError(common.EErrorKind.Network(), "dial AniDB UDP socket", err)
	}
	return &Transport{conn: conn}, nil
}

// Close releases the underlying socket.
func (t *Transport) Close() error {
	return t.conn.Close()
}

// NextTag returns the next monotonic tag to embed in an outgoing request.
func (t *Transport) NextTag() string {
	n := atomic.AddInt64(&t.nextTag, 1)
	return "T" + strconv.FormatInt(n, 10)
}

// SendReceive transmits one datagram and waits for the first reply whose
// leading "TAG " echo matches tag, dropping anything else as a stray late
// reply from a previous, already-abandoned request (spec §4.4). It honors
// ctx cancellation and the given per-call timeout, whichever fires first.
func (t *Transport) SendReceive(ctx context.Context, tag string, requestBytes []byte, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := t.conn.Write(requestBytes); err != nil {
		return nil, common.WrapError(common.EErrorKind.Network(), "send AniDB request", err)
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, 8192)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, common.NewError(common.EErrorKind.Timeout(), "AniDB UDP receive timed out")
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Closing the pending receive on cancellation (spec §5) means
		// bounding SetReadDeadline to the smaller of ctx's remaining
		// budget and the request timeout, then re-checking ctx after
		// each short wait rather than blocking the full timeout.
		waitSlice := remaining
		if d, ok := ctx.Deadline(); ok {
			if left := time.Until(d); left < waitSlice {
				waitSlice = left
			}
		}
		if waitSlice > pollSlice {
			waitSlice = pollSlice
		}
		_ = t.conn.SetReadDeadline(time.Now().Add(waitSlice))

		n, err := t.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // short slice elapsed; loop re-checks ctx and deadline
			}
			return nil, common.WrapError(common.EErrorKind.Network(), "receive AniDB reply", err)
		}

		reply := buf[:n]
		if !bytes.HasPrefix(reply, []byte(tag+" ")) {
			continue // stray reply for an earlier, abandoned request
		}
		return bytes.TrimPrefix(reply, []byte(tag+" ")), nil
	}
}
