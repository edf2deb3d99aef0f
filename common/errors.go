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

package common

import (
	"fmt"
	"reflect"
	"time"

	"github.com/JeffreyRichter/enum/enum"
	"github.com/pkg/errors"
)

// ErrorKind is the closed, stable-across-implementations error taxonomy from
// the spec's error handling design. It is modeled the same way the teacher
// models its other closed enumerations (LogLevel, TransferStatus, ...): a
// narrow integer newtype plus an enum.StringInt/enum.ParseInt pair.
type ErrorKind uint8

const (
	kindUnknown ErrorKind = iota
	kindInvalidInput
	kindFileNotFound
	kindPermissionDenied
	kindIO
	kindOutOfMemory
	kindCancelled
	kindTimeout
	kindNetwork
	kindProtocol
	kindAuthFailed
	kindBanned
	kindRateLimited
	kindCacheCorrupt
	kindCredentialDecryptFailed
	kindVersionMismatch
)

var EErrorKind = ErrorKind(kindUnknown)

func (ErrorKind) Unknown() ErrorKind                 { return ErrorKind(kindUnknown) }
func (ErrorKind) InvalidInput() ErrorKind            { return ErrorKind(kindInvalidInput) }
func (ErrorKind) FileNotFound() ErrorKind            { return ErrorKind(kindFileNotFound) }
func (ErrorKind) PermissionDenied() ErrorKind        { return ErrorKind(kindPermissionDenied) }
func (ErrorKind) Io() ErrorKind                      { return ErrorKind(kindIO) }
func (ErrorKind) OutOfMemory() ErrorKind             { return ErrorKind(kindOutOfMemory) }
func (ErrorKind) Cancelled() ErrorKind               { return ErrorKind(kindCancelled) }
func (ErrorKind) Timeout() ErrorKind                 { return ErrorKind(kindTimeout) }
func (ErrorKind) Network() ErrorKind                 { return ErrorKind(kindNetwork) }
func (ErrorKind) Protocol() ErrorKind                { return ErrorKind(kindProtocol) }
func (ErrorKind) AuthFailed() ErrorKind              { return ErrorKind(kindAuthFailed) }
func (ErrorKind) Banned() ErrorKind                  { return ErrorKind(kindBanned) }
func (ErrorKind) RateLimited() ErrorKind  { return ErrorKind(kindRateLimited) }
func (ErrorKind) CacheCorrupt() ErrorKind { return ErrorKind(kindCacheCorrupt) }
func (ErrorKind) CredentialDecryptFailed() ErrorKind {
	return ErrorKind(kindCredentialDecryptFailed)
}
func (ErrorKind) VersionMismatch() ErrorKind         { return ErrorKind(kindVersionMismatch) }

func (k *ErrorKind) Parse(s string) error {
	val, err := enum.ParseInt(reflect.TypeOf(k), s, true, true)
	if err == nil {
		*k = val.(ErrorKind)
	}
	return err
}

func (k ErrorKind) String() string {
	switch k {
	case EErrorKind.Unknown():
		return "Unknown"
	case EErrorKind.InvalidInput():
		return "InvalidInput"
	case EErrorKind.FileNotFound():
		return "FileNotFound"
	case EErrorKind.PermissionDenied():
		return "PermissionDenied"
	case EErrorKind.Io():
		return "Io"
	case EErrorKind.OutOfMemory():
		return "OutOfMemory"
	case EErrorKind.Cancelled():
		return "Cancelled"
	case EErrorKind.Timeout():
		return "Timeout"
	case EErrorKind.Network():
		return "Network"
	case EErrorKind.Protocol():
		return "Protocol"
	case EErrorKind.AuthFailed():
		return "AuthFailed"
	case EErrorKind.Banned():
		return "Banned"
	case EErrorKind.RateLimited():
		return "RateLimited"
	case EErrorKind.CacheCorrupt():
		return "CacheCorrupt"
	case EErrorKind.CredentialDecryptFailed():
		return "CredentialDecryptFailed"
	case EErrorKind.VersionMismatch():
		return "VersionMismatch"
	default:
		return enum.StringInt(k, reflect.TypeOf(k))
	}
}

// Error is the single error type that crosses every component boundary in
// this module. No component recovers from panics: a programming error that
// panics inside a component propagates to the caller as a panic, not as an
// EErrorKind.Unknown() error.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error

	// MinDelay is a per-error retry backoff floor that overrides whatever
	// the caller's RetryPolicy would otherwise compute for the next
	// attempt. Zero means "no floor, use the policy's normal curve". Set
	// this for server-signaled backpressure (e.g. AniDB's 601/602 "server
	// busy/paused" replies, spec §9) where the server names a minimum
	// wait rather than leaving it to the client's own curve.
	MinDelay time.Duration
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError builds a taxonomy error with no underlying cause.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorWithMinDelay builds a taxonomy error carrying a retry backoff
// floor (see Error.MinDelay).
func NewErrorWithMinDelay(kind ErrorKind, message string, minDelay time.Duration) *Error {
	return &Error{Kind: kind, Message: message, MinDelay: minDelay}
}

// MinDelayOf extracts the retry backoff floor from err, or zero if err
// didn't originate from this module or carries no floor.
func MinDelayOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.MinDelay
	}
	return 0
}

// WrapError attaches a taxonomy kind to a lower-level error, preserving the
// cause chain via github.com/pkg/errors the way the teacher wraps transfer
// failures before they reach the job log.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.WithStack(cause)}
}

// KindOf extracts the taxonomy kind from err, defaulting to Unknown for any
// error that didn't originate from this module.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return EErrorKind.Unknown()
}

// IsRetryable reports whether the propagation policy (spec §7) allows a
// retry of err: Timeout and Network are retryable; Banned, AuthFailed,
// Protocol, CacheCorrupt and CredentialDecryptFailed never are.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case EErrorKind.Timeout(), EErrorKind.Network():
		return true
	default:
		return false
	}
}
