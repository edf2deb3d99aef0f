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

package pipeline

import (
	"context"
	"os"
)

// MinChunkSize is the smallest permitted read buffer (spec §4.1).
const MinChunkSize = 64 * 1024

// DefaultMemoryCap bounds the single read buffer's size when the caller
// doesn't supply one.
const DefaultMemoryCap = 64 << 20

// chunkReader performs bounded-memory sequential reads over one file,
// reusing a single allocation regardless of file size (spec §2, "Chunk
// reader: bounded-memory sequential read with backpressure"). It is not
// safe for concurrent use.
type chunkReader struct {
	f   *os.File
	buf []byte
}

func newChunkReader(f *os.File, chunkSize int) *chunkReader {
	return &chunkReader{f: f, buf: make([]byte, chunkSize)}
}

// next checks ctx for cancellation, then reads one chunk, returning a slice
// view into the reader's single reusable buffer. The returned slice is only
// valid until the next call to next. io.EOF is returned (with a possibly
// non-empty slice) when the final chunk has been read; a subsequent call
// returns io.EOF with a zero-length slice.
func (r *chunkReader) next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n, err := r.f.Read(r.buf)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return r.buf[:n], ctxErr
	}
	return r.buf[:n], err
}

// chunkSize computes the read buffer size per spec §4.1: 64 KiB <=
// chunk_size <= memory_cap / (1 + |requested|), clamped to a practical
// upper bound so a huge memory cap doesn't turn into one giant read.
func chunkSize(memoryCap int64, numAlgorithms int) (int, error) {
	if numAlgorithms < 0 {
		numAlgorithms = 0
	}
	upper := memoryCap / int64(1+numAlgorithms)
	if upper < MinChunkSize {
		return 0, errMemoryCapTooSmall
	}
	const practicalMax = 4 << 20
	if upper > practicalMax {
		upper = practicalMax
	}
	return int(upper), nil
}
