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

// Package pipeline drives a chunkReader across one file and fans every
// chunk out to a hash.Set, the way spec §4.1 describes: single pass, O(1)
// buffers, throttled progress, cancellation-observant.
package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/anidb-go/anidb-core/common"
	"github.com/anidb-go/anidb-core/fingerprint"
	"github.com/anidb-go/anidb-core/hash"
)

var errMemoryCapTooSmall = errors.New("pipeline: memory cap too small for requested algorithm count")

const (
	progressMinBytes    = 64 * 1024
	progressMinInterval = 50 * time.Millisecond
)

// Options configures one Run call.
type Options struct {
	Algorithms  []hash.Algorithm
	MemoryCap   int64 // 0 => DefaultMemoryCap
	ED2KVariant hash.ED2KVariant
	Progress    fingerprint.ProgressFunc
}

// Run computes the fingerprint of the file at path and hashes it against opts.Algorithms
// in a single sequential pass, returning a Result whose Status reflects the
// outcome (spec §4.1). Run never returns a Go error: every failure mode is
// encoded in the returned Result so batch callers can record per-file
// outcomes without special-casing error returns.
func Run(ctx context.Context, path string, opts Options) fingerprint.Result {
	start := time.Now()

	fp, err := fingerprint.Stat(path)
	if err != nil {
		return failResult(fingerprint.File{Path: path}, start, statErrorKind(err), err)
	}

	f, err := os.Open(fp.Path)
	if err != nil {
		return failResult(fp, start, statErrorKind(err), err)
	}
	defer f.Close()

	memCap := opts.MemoryCap
	if memCap <= 0 {
		memCap = DefaultMemoryCap
	}
	size, err := chunkSize(memCap, len(opts.Algorithms))
	if err != nil {
		return failResult(fp, start, common.EErrorKind.OutOfMemory(), err)
	}

	reader := newChunkReader(f, size)
	set := hash.NewSet(opts.Algorithms, opts.ED2KVariant)

	var bytesProcessed int64
	lastEmitBytes := int64(0)
	lastEmitTime := start

	emit := func(force bool) {
		if opts.Progress == nil {
			return
		}
		if !force {
			if bytesProcessed-lastEmitBytes < progressMinBytes {
				return
			}
			if time.Since(lastEmitTime) < progressMinInterval {
				return
			}
		}
		opts.Progress(bytesProcessed, fp.Size)
		lastEmitBytes = bytesProcessed
		lastEmitTime = time.Now()
	}

	for {
		chunk, rerr := reader.next(ctx)
		if len(chunk) > 0 {
			set.Write(chunk)
			bytesProcessed += int64(len(chunk))
			emit(false)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
				return fingerprint.Result{
					File:             fp,
					Status:           fingerprint.EStatus.Cancelled(),
					ProcessingTimeMS: time.Since(start).Milliseconds(),
				}
			}
			return failResult(fp, start, common.EErrorKind.Io(), rerr)
		}
	}

	emit(true)

	return fingerprint.Result{
		File:             fp,
		Status:           fingerprint.EStatus.Completed(),
		Hashes:           set.Finalize(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
}

func failResult(fp fingerprint.File, start time.Time, kind common.ErrorKind, cause error) fingerprint.Result {
	return fingerprint.Result{
		File:             fp,
		Status:           fingerprint.EStatus.Failed(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Error:            common.WrapError(kind, "hashing failed", cause).Error(),
	}
}

func statErrorKind(err error) common.ErrorKind {
	if os.IsNotExist(err) {
		return common.EErrorKind.FileNotFound()
	}
	if os.IsPermission(err) {
		return common.EErrorKind.PermissionDenied()
	}
	return common.EErrorKind.Io()
}
