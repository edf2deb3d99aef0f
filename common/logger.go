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
	"io"
	"log"
	"reflect"

	"github.com/JeffreyRichter/enum/enum"
)

// LogLevel is the closed severity enumeration, modeled the same way the
// teacher models LogLevel in common/fe-ste-models.go.
type LogLevel uint8

const (
	logNone LogLevel = iota
	logError
	logWarning
	logInfo
	logDebug
)

var ELogLevel = LogLevel(logNone)

func (LogLevel) None() LogLevel    { return LogLevel(logNone) }
func (LogLevel) Error() LogLevel   { return LogLevel(logError) }
func (LogLevel) Warning() LogLevel { return LogLevel(logWarning) }
func (LogLevel) Info() LogLevel    { return LogLevel(logInfo) }
func (LogLevel) Debug() LogLevel   { return LogLevel(logDebug) }

func (ll *LogLevel) Parse(s string) error {
	val, err := enum.ParseInt(reflect.TypeOf(ll), s, true, true)
	if err == nil {
		*ll = val.(LogLevel)
	}
	return err
}

func (ll LogLevel) String() string {
	switch ll {
	case ELogLevel.None():
		return "NONE"
	case ELogLevel.Error():
		return "ERR"
	case ELogLevel.Warning():
		return "WARN"
	case ELogLevel.Info():
		return "INFO"
	case ELogLevel.Debug():
		return "DBG"
	default:
		return enum.StringInt(ll, reflect.TypeOf(ll))
	}
}

// ILogger is the logging seam every component takes instead of reaching for
// a package-level logger. No component here is reentrant across instances
// via shared globals (spec §9, "global state removal").
type ILogger interface {
	ShouldLog(level LogLevel) bool
	Log(level LogLevel, msg string)
}

// ILoggerCloser additionally owns an underlying writer lifetime.
type ILoggerCloser interface {
	ILogger
	Close() error
}

// NopLogger discards everything; it is the default when a caller supplies
// no logger to a constructor.
type NopLogger struct{}

func (NopLogger) ShouldLog(LogLevel) bool { return false }
func (NopLogger) Log(LogLevel, string)    {}
func (NopLogger) Close() error            { return nil }

// WriterLogger writes level-prefixed lines to w via the standard library
// logger, the same minimal approach the teacher uses for its job log
// (log.Logger over a plain io.Writer) rather than a structured logging
// framework — the teacher carries none, so neither do we.
type WriterLogger struct {
	minimum LogLevel
	logger  *log.Logger
	closer  io.Closer
}

// NewWriterLogger builds a logger over w that logs everything at or above
// minimum severity order (Error is the most severe, Debug the least; a
// higher LogLevel value is logged whenever it is <= minimum).
func NewWriterLogger(w io.Writer, minimum LogLevel) *WriterLogger {
	c, _ := w.(io.Closer)
	return &WriterLogger{
		minimum: minimum,
		logger:  log.New(w, "", log.LstdFlags|log.LUTC),
		closer:  c,
	}
}

func (l *WriterLogger) ShouldLog(level LogLevel) bool {
	if level == ELogLevel.None() {
		return false
	}
	return level <= l.minimum
}

func (l *WriterLogger) Log(level LogLevel, msg string) {
	if !l.ShouldLog(level) {
		return
	}
	l.logger.Println(level.String()+":", msg)
}

func (l *WriterLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
