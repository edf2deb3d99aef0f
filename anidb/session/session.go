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

// Package session implements the AniDB AUTH/LOGOUT handshake and session
// state machine from spec §4.5 and the "State machine — Session" section:
// Absent -> Authenticating -> Active -> Expired -> Authenticating -> ...,
// never persisted across process restarts.
package session

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/JeffreyRichter/enum/enum"

	"github.com/anidb-go/anidb-core/anidb/transport"
	"github.com/anidb-go/anidb-core/common"
	"github.com/anidb-go/anidb-core/ratelimit"
)

// State is the closed session-state enumeration.
type State uint8

const (
	stateAbsent State = iota
	stateAuthenticating
	stateActive
	stateExpired
)

var EState = State(stateAbsent)

func (State) Absent() State         { return State(stateAbsent) }
func (State) Authenticating() State { return State(stateAuthenticating) }
func (State) Active() State         { return State(stateActive) }
func (State) Expired() State        { return State(stateExpired) }

func (s *State) Parse(str string) error {
	val, err := enum.ParseInt(reflect.TypeOf(s), str, true, true)
	if err == nil {
		*s = val.(State)
	}
	return err
}

func (s State) String() string {
	switch s {
	case EState.Absent():
		return "Absent"
	case EState.Authenticating():
		return "Authenticating"
	case EState.Active():
		return "Active"
	case EState.Expired():
		return "Expired"
	default:
		return enum.StringInt(s, reflect.TypeOf(s))
	}
}

// Credentials supplies the AUTH handshake's username/password.
type Credentials struct {
	Username string
	Password string
}

// ClientInfo identifies this implementation to AniDB, per §6.2's AUTH
// request fields.
type ClientInfo struct {
	Name            string
	Version         int
	ProtocolVersion int
}

// Options configures a Manager.
type Options struct {
	Transport        *transport.Transport
	Limiter          *ratelimit.Limiter
	Credentials      Credentials
	Client           ClientInfo
	HandshakeTimeout time.Duration // default 15s, spec §5
	Logger           common.ILogger
}

// Manager owns zero or one active AniDB session token. It depends only on
// a transport and a rate limiter (spec §9's cycle-free graph: "the session
// depends on limiter + transport only").
type Manager struct {
	transport   *transport.Transport
	limiter     *ratelimit.Limiter
	creds       Credentials
	client      ClientInfo
	handshakeTO time.Duration
	logger      common.ILogger

	mu    sync.Mutex
	state State
	token string
}

// New constructs a Manager in the Absent state.
func New(opts Options) *Manager {
	to := opts.HandshakeTimeout
	if to <= 0 {
		to = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.NopLogger{}
	}
	return &Manager{
		transport:   opts.Transport,
		limiter:     opts.Limiter,
		creds:       opts.Credentials,
		client:      opts.Client,
		handshakeTO: to,
		logger:      logger,
		state:       EState.Absent(),
	}
}

// State reports the manager's current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Expire flags the session as expired, so the next EnsureSession call
// re-authenticates. Callers invoke this when any protocol reply reports
// "login required" or "invalid session" (spec §4.5).
func (m *Manager) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == EState.Active() {
		m.state = EState.Expired()
	}
}

// EnsureSession returns the live session token, authenticating first if the
// session is Absent or Expired.
func (m *Manager) EnsureSession(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state == EState.Active() {
		tok := m.token
		m.mu.Unlock()
		return tok, nil
	}
	m.state = EState.Authenticating()
	m.mu.Unlock()

	tok, err := m.authenticate(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = EState.Absent()
		return "", err
	}
	m.token = tok
	m.state = EState.Active()
	return tok, nil
}

func (m *Manager) authenticate(ctx context.Context) (string, error) {
	if err := m.limiter.Acquire(ctx); err != nil {
		return "", common.WrapError(common.EErrorKind.Cancelled(), "acquire rate-limit slot for AUTH", err)
	}

	tag := m.transport.NextTag()
	req := fmt.Sprintf(
		"AUTH tag=%s&user=%s&pass=%s&protover=%d&client=%s&clientver=%d\n",
		tag,
		url.QueryEscape(m.creds.Username),
		url.QueryEscape(m.creds.Password),
		m.client.ProtocolVersion,
		url.QueryEscape(m.client.Name),
		m.client.Version,
	)

	ctx, cancel := context.WithTimeout(ctx, m.handshakeTO)
	defer cancel()

	reply, err := m.transport.SendReceive(ctx, tag, []byte(req), m.handshakeTO)
	if err != nil {
		return "", err
	}

	code, rest := splitCode(reply)
	switch code {
	case 200, 201:
		// "SESSKEY LOGIN ACCEPTED" / "...NEW VERSION AVAILABLE"
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return "", common.NewError(common.EErrorKind.Protocol(), "AUTH reply missing session key")
		}
		return fields[0], nil
	case 500, 501:
		return "", common.NewError(common.EErrorKind.AuthFailed(), "AniDB login failed: "+rest)
	case 555:
		return "", common.NewError(common.EErrorKind.Banned(), "AniDB client banned: "+rest)
	default:
		return "", common.NewError(common.EErrorKind.Protocol(), fmt.Sprintf("unexpected AUTH reply code %d: %s", code, rest))
	}
}

// Logout issues LOGOUT best-effort and forgets the token regardless of the
// server's reply (spec §4.5).
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	tok := m.token
	active := m.state == EState.Active()
	m.mu.Unlock()
	if !active {
		return nil
	}

	defer func() {
		m.mu.Lock()
		m.token = ""
		m.state = EState.Absent()
		m.mu.Unlock()
	}()

	if err := m.limiter.Acquire(ctx); err != nil {
		return err
	}
	tag := m.transport.NextTag()
	req := fmt.Sprintf("LOGOUT tag=%s&s=%s\n", tag, tok)
	_, err := m.transport.SendReceive(ctx, tag, []byte(req), 10*time.Second)
	return err // best-effort: caller may ignore
}

// splitCode parses the leading "CODE TEXT" line per spec §6.2.
func splitCode(reply []byte) (int, string) {
	s := string(reply)
	line := s
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		line = s[:i]
	}
	var code int
	var rest string
	if _, err := fmt.Sscanf(line, "%d", &code); err != nil {
		return 0, line
	}
	if i := strings.IndexByte(line, ' '); i >= 0 {
		rest = line[i+1:]
	}
	return code, rest
}
