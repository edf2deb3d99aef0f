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

// Package client composes the rate limiter, transport, and session manager
// into the typed AniDB protocol operations of spec §4.6: identify,
// mylist_add, mylist_delete, mylist_get.
package client

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/JeffreyRichter/enum/enum"
	"github.com/google/uuid"

	"github.com/anidb-go/anidb-core/anidb/session"
	"github.com/anidb-go/anidb-core/anidb/transport"
	"github.com/anidb-go/anidb-core/common"
	"github.com/anidb-go/anidb-core/ratelimit"
)

// InfoSource is the closed enumeration of where an AnimeInfo came from.
type InfoSource uint8

const (
	infoSourceCatalog InfoSource = iota
	infoSourceLocalCache
	infoSourceFilename
)

var EInfoSource = InfoSource(infoSourceCatalog)

func (InfoSource) Catalog() InfoSource    { return InfoSource(infoSourceCatalog) }
func (InfoSource) LocalCache() InfoSource { return InfoSource(infoSourceLocalCache) }
func (InfoSource) Filename() InfoSource   { return InfoSource(infoSourceFilename) }

func (s *InfoSource) Parse(str string) error {
	val, err := enum.ParseInt(reflect.TypeOf(s), str, true, true)
	if err == nil {
		*s = val.(InfoSource)
	}
	return err
}

func (s InfoSource) String() string {
	switch s {
	case EInfoSource.Catalog():
		return "Catalog"
	case EInfoSource.LocalCache():
		return "LocalCache"
	case EInfoSource.Filename():
		return "Filename"
	default:
		return enum.StringInt(s, reflect.TypeOf(s))
	}
}

// AnimeInfo is spec §3's catalog identification record.
type AnimeInfo struct {
	AnimeID       uint64
	EpisodeID     uint64
	Title         string
	EpisodeNumber uint32
	Confidence    float64
	Source        InfoSource
}

// MyListEntry is the remote per-user list record addressed by mylist_get
// (spec §4.6, GLOSSARY "MyList").
type MyListEntry struct {
	ID        uint64
	AnimeID   uint64
	EpisodeID uint64
	State     int
	ViewDate  int64 // unix seconds, 0 if unwatched
}

// MyListAddFields are the parameters accepted by mylist_add.
type MyListAddFields struct {
	ED2K    string
	Size    int64
	State   int
	Watched bool
}

// Options configures a Client.
type Options struct {
	Transport      *transport.Transport
	Limiter        *ratelimit.Limiter
	Session        *session.Manager
	RetryPolicy    common.RetryPolicy
	RequestTimeout time.Duration // default 10s, spec §4.6
	Logger         common.ILogger
}

// Client composes limiter + transport + session into the typed operations
// of spec §4.6. It holds no back-reference to any of its collaborators'
// owners (spec §9's cycle-free graph).
type Client struct {
	transport  *transport.Transport
	limiter    *ratelimit.Limiter
	session    *session.Manager
	retry      common.RetryPolicy
	reqTimeout time.Duration
	logger     common.ILogger
}

// serverPausedBackoffFloor is the minimum wait spec §9 mandates before
// retrying after a 601/602 "server busy/paused" reply, regardless of where
// the caller's RetryPolicy curve would otherwise land.
const serverPausedBackoffFloor = 30 * time.Second

// New constructs a Client from its collaborators.
func New(opts Options) *Client {
	rt := opts.RequestTimeout
	if rt <= 0 {
		rt = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = common.NopLogger{}
	}
	retry := opts.RetryPolicy
	if retry == (common.RetryPolicy{}) {
		retry = common.DefaultRetryPolicy()
	}
	return &Client{
		transport:  opts.Transport,
		limiter:    opts.Limiter,
		session:    opts.Session,
		retry:      retry,
		reqTimeout: rt,
		logger:     logger,
	}
}

// reply is one parsed AniDB response: a three-digit code, the text after
// it on the first line, and the `|`-separated data lines that follow
// (spec §6.2).
type reply struct {
	code     int
	text     string
	dataRows [][]string
}

// call implements the per-request sequence of spec §4.6: ensure_session,
// acquire_token, send, receive, parse, and the retry policy of step 6.
// Timeout, 601/602 server-busy replies (each wait floored at
// serverPausedBackoffFloor) and a single other Network error (the
// invalid-session reply or a send/receive failure) are retried; everything
// else (Banned, AuthFailed,
// malformed responses) fails permanently.
func (c *Client) call(ctx context.Context, command string, params map[string]string) (reply, error) {
	invalidSessionRetried := false
	var result reply

	// corrID ties every retried attempt of this logical call together in
	// the log, distinct from the transport's own per-attempt wire tag
	// (spec §4.4's monotonic integer, which NextTag still generates).
	corrID := uuid.NewString()

	shouldRetry := func(err error) bool {
		switch common.KindOf(err) {
		case common.EErrorKind.Timeout():
			return true
		case common.EErrorKind.Network():
			if common.MinDelayOf(err) > 0 {
				// server-paused (601/602): retried up to the policy's
				// normal MaxRetries, each wait floored at MinDelay.
				return true
			}
			// the one "invalid session, retry once" signal from below
			if invalidSessionRetried {
				return false
			}
			invalidSessionRetried = true
			return true
		default:
			return false
		}
	}

	err := c.retry.Do(ctx, shouldRetry, func() error {
		tok, err := c.session.EnsureSession(ctx)
		if err != nil {
			return err
		}
		if err := c.limiter.Acquire(ctx); err != nil {
			return err
		}

		tag := c.transport.NextTag()
		req := buildRequest(command, tag, tok, params)

		rctx, cancel := context.WithTimeout(ctx, c.reqTimeout)
		defer cancel()
		raw, err := c.transport.SendReceive(rctx, tag, []byte(req), c.reqTimeout)
		if err != nil {
			return err // retried when Timeout, per shouldRetry
		}

		r := parseReply(raw)
		switch r.code {
		case 506: // invalid session
			c.session.Expire()
			c.logger.Log(common.ELogLevel.Info(), fmt.Sprintf("[%s] AniDB session expired, re-authenticating", corrID))
			return common.NewError(common.EErrorKind.Network(), "invalid session, retrying once")
		case 555:
			return common.NewError(common.EErrorKind.Banned(), "AniDB client banned: "+r.text)
		case 502:
			return common.NewError(common.EErrorKind.AuthFailed(), "AniDB access denied: "+r.text)
		case 601, 602: // server busy / server paused, spec §9
			c.logger.Log(common.ELogLevel.Info(), fmt.Sprintf("[%s] AniDB server paused, backing off", corrID))
			return common.NewErrorWithMinDelay(common.EErrorKind.Network(),
				fmt.Sprintf("AniDB server paused (code %d): %s", r.code, r.text), serverPausedBackoffFloor)
		}

		result = r
		return nil
	})

	if err != nil {
		return reply{}, err
	}
	return result, nil
}

func buildRequest(command, tag, sessionToken string, params map[string]string) string {
	var b strings.Builder
	b.WriteString(command)
	b.WriteByte(' ')
	b.WriteString("tag=")
	b.WriteString(tag)
	if sessionToken != "" {
		b.WriteString("&s=")
		b.WriteString(sessionToken)
	}
	for k, v := range params {
		b.WriteByte('&')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	}
	b.WriteByte('\n')
	return b.String()
}

func parseReply(raw []byte) reply {
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) == 0 {
		return reply{}
	}
	var code int
	var text string
	first := lines[0]
	if sp := strings.IndexByte(first, ' '); sp >= 0 {
		code, _ = strconv.Atoi(first[:sp])
		text = first[sp+1:]
	} else {
		code, _ = strconv.Atoi(first)
	}
	var rows [][]string
	for _, l := range lines[1:] {
		if l == "" {
			continue
		}
		rows = append(rows, strings.Split(l, "|"))
	}
	return reply{code: code, text: text, dataRows: rows}
}

// Identify resolves (ed2k, size) to catalog metadata via the FILE command
// (spec §4.6, §6.2 code 220 FILE reply / 320 no such file).
func (c *Client) Identify(ctx context.Context, ed2k string, size int64) (*AnimeInfo, error) {
	r, err := c.call(ctx, "FILE", map[string]string{
		"size":  strconv.FormatInt(size, 10),
		"ed2k":  ed2k,
		"fmask": "",
		"amask": "",
	})
	if err != nil {
		return nil, err
	}
	switch r.code {
	case 320:
		return nil, nil
	case 220:
		if len(r.dataRows) == 0 || len(r.dataRows[0]) < 4 {
			return nil, common.NewError(common.EErrorKind.Protocol(), "malformed FILE reply")
		}
		row := r.dataRows[0]
		animeID, _ := strconv.ParseUint(row[0], 10, 64)
		episodeID, _ := strconv.ParseUint(row[1], 10, 64)
		epNum, _ := strconv.ParseUint(strings.TrimFunc(row[2], func(r rune) bool { return r < '0' || r > '9' }), 10, 32)
		return &AnimeInfo{
			AnimeID:       animeID,
			EpisodeID:     episodeID,
			Title:         row[3],
			EpisodeNumber: uint32(epNum),
			Confidence:    1.0,
			Source:        EInfoSource.Catalog(),
		}, nil
	default:
		return nil, common.NewError(common.EErrorKind.Protocol(), fmt.Sprintf("unexpected FILE reply code %d: %s", r.code, r.text))
	}
}

// MyListAdd adds a file to the remote MyList via MYLISTADD.
func (c *Client) MyListAdd(ctx context.Context, fields MyListAddFields) error {
	viewed := "0"
	if fields.Watched {
		viewed = "1"
	}
	_, err := c.call(ctx, "MYLISTADD", map[string]string{
		"size":   strconv.FormatInt(fields.Size, 10),
		"ed2k":   fields.ED2K,
		"state":  strconv.Itoa(fields.State),
		"viewed": viewed,
	})
	return err
}

// MyListDelete removes a MyList entry by id via MYLISTDEL.
func (c *Client) MyListDelete(ctx context.Context, id uint64) error {
	_, err := c.call(ctx, "MYLISTDEL", map[string]string{
		"lid": strconv.FormatUint(id, 10),
	})
	return err
}

// MyListGet looks up a MyList entry by id via MYLIST.
func (c *Client) MyListGet(ctx context.Context, id uint64) (*MyListEntry, error) {
	r, err := c.call(ctx, "MYLIST", map[string]string{
		"lid": strconv.FormatUint(id, 10),
	})
	if err != nil {
		return nil, err
	}
	if r.code == 321 { // no such entry
		return nil, nil
	}
	if r.code != 221 || len(r.dataRows) == 0 {
		return nil, common.NewError(common.EErrorKind.Protocol(), fmt.Sprintf("unexpected MYLIST reply code %d: %s", r.code, r.text))
	}
	row := r.dataRows[0]
	if len(row) < 3 {
		return nil, common.NewError(common.EErrorKind.Protocol(), "malformed MYLIST reply")
	}
	animeID, _ := strconv.ParseUint(row[1], 10, 64)
	episodeID, _ := strconv.ParseUint(row[2], 10, 64)
	return &MyListEntry{ID: id, AnimeID: animeID, EpisodeID: episodeID}, nil
}
