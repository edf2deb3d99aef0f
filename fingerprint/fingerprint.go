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

// Package fingerprint holds the small, dependency-free types shared by the
// hash pipeline and the hash cache: the cache-invalidation key (spec §3,
// FileFingerprint) and the per-file outcome record (FileResult). Keeping
// them in their own package, the way the teacher keeps its shared wire
// models in "common" rather than in any one pipeline stage, avoids an
// import cycle between package pipeline and package hashcache.
package fingerprint

import (
	"os"
	"path/filepath"
	"reflect"

	"github.com/JeffreyRichter/enum/enum"

	"github.com/anidb-go/anidb-core/hash"
)

// File is the (path, size, mtime) cache-invalidation key from spec §3.
// Equality is structural: two Files are equal iff all three fields match.
type File struct {
	Path  string
	Size  int64
	Mtime int64 // unix seconds
}

// Stat computes the canonical fingerprint of the file at path by resolving
// it to an absolute path and stat-ing it.
func Stat(path string) (File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return File{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return File{}, err
	}
	return File{Path: abs, Size: info.Size(), Mtime: info.ModTime().Unix()}, nil
}

// Status is the closed FileResult status enumeration (spec §3).
type Status uint8

const (
	statusPending Status = iota
	statusProcessing
	statusCompleted
	statusFailed
	statusCancelled
)

var EStatus = Status(statusPending)

func (Status) Pending() Status    { return Status(statusPending) }
func (Status) Processing() Status { return Status(statusProcessing) }
func (Status) Completed() Status  { return Status(statusCompleted) }
func (Status) Failed() Status     { return Status(statusFailed) }
func (Status) Cancelled() Status  { return Status(statusCancelled) }

func (s *Status) Parse(str string) error {
	val, err := enum.ParseInt(reflect.TypeOf(s), str, true, true)
	if err == nil {
		*s = val.(Status)
	}
	return err
}

func (s Status) String() string {
	switch s {
	case EStatus.Pending():
		return "Pending"
	case EStatus.Processing():
		return "Processing"
	case EStatus.Completed():
		return "Completed"
	case EStatus.Failed():
		return "Failed"
	case EStatus.Cancelled():
		return "Cancelled"
	default:
		return enum.StringInt(s, reflect.TypeOf(s))
	}
}

// Result is the outcome of hashing one file (spec §3, FileResult).
//
// Invariants enforced by callers that build a Result: Status ==
// Completed implies Hashes holds one entry per requested algorithm and
// Error == ""; Status == Failed implies Error != "" and Hashes may be
// partial.
type Result struct {
	File             File
	Status           Status
	Hashes           map[hash.Algorithm]hash.Value
	ProcessingTimeMS int64
	Error            string
	FromCache        bool
}

// ProgressFunc receives (bytesProcessed, totalBytes) during a pipeline run.
// The pipeline serializes calls (a call never starts before the previous one
// has returned), so it need not be reentrant, but it is invoked on whatever
// goroutine the pipeline runs on.
type ProgressFunc func(bytesProcessed, totalBytes int64)
